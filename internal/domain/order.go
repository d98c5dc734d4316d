package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a trading order on a single venue.
type Order struct {
	ID        string          `json:"id"`
	Venue     string          `json:"venue"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"` // "BUY", "SELL"
	Type      string          `json:"type"` // "LIMIT", "MARKET"
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"` // Zero for market orders
	Status    string          `json:"status"`
	FillSize  decimal.Decimal `json:"fill_size"`
	FillPrice decimal.Decimal `json:"fill_price"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusPending         = "PENDING"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusRejected        = "REJECTED"
)

// IsOpen checks if the order is still active on the venue.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// IsFilled checks if the order is completely filled.
func (o *Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// Opposite returns the opposite order side.
func Opposite(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderRequest describes an order to be placed on a venue.
type OrderRequest struct {
	ClientID string
	Symbol   string
	Side     string
	Type     string
	Size     decimal.Decimal
	Price    decimal.Decimal
}

// ResultKind tags the outcome of a venue order call.
type ResultKind int

const (
	ResultOK ResultKind = iota + 1
	ResultRejected
	ResultError
)

// String returns the string representation of ResultKind.
func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "OK"
	case ResultRejected:
		return "REJECTED"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// OrderResult is the tagged result of an order placement.
// A venue rejection is an expected outcome, not an error: the venue
// answered, it just said no. Err is set only for transport-level
// failures (timeout, network) where no authoritative answer exists.
type OrderResult struct {
	Kind   ResultKind
	Order  Order
	Reason string
	Err    error
}

// OK builds a successful order result.
func OK(order Order) OrderResult {
	return OrderResult{Kind: ResultOK, Order: order}
}

// Rejected builds a venue-rejection result. The embedded order carries
// status REJECTED so read-only deployments degrade gracefully.
func Rejected(req OrderRequest, reason string) OrderResult {
	return OrderResult{
		Kind:   ResultRejected,
		Reason: reason,
		Order: Order{
			ID:     req.ClientID,
			Symbol: req.Symbol,
			Side:   req.Side,
			Type:   req.Type,
			Size:   req.Size,
			Price:  req.Price,
			Status: OrderStatusRejected,
		},
	}
}

// Errored builds a transport-failure result.
func Errored(err error) OrderResult {
	return OrderResult{Kind: ResultError, Err: err}
}
