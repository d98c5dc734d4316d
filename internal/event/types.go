package event

import (
	"time"

	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Kind identifies an event type on the bus.
type Kind string

const (
	KindQuoteUpdated     Kind = "QUOTE_UPDATED"
	KindOpportunityFound Kind = "OPPORTUNITY_FOUND"
	KindOrderPlaced      Kind = "ORDER_PLACED"
	KindOrderFilled      Kind = "ORDER_FILLED"
	KindOrderFailed      Kind = "ORDER_FAILED"
	KindPositionUpdated  Kind = "POSITION_UPDATED"
	KindCapitalUpdated   Kind = "CAPITAL_UPDATED"
)

// Event is the unit passed through the bus. Immutable once published.
type Event struct {
	Kind      Kind
	Payload   any
	Timestamp time.Time
}

// New builds an event stamped with the current time.
func New(kind Kind, payload any) Event {
	return Event{Kind: kind, Payload: payload, Timestamp: time.Now()}
}

// QuotePayload carries a best bid/offer update from a feed worker.
type QuotePayload struct {
	Quote domain.Quote
}

// OpportunityPayload carries a scanner-detected spread.
type OpportunityPayload struct {
	Opportunity domain.Opportunity
}

// OrderPlacedPayload is published when a venue acknowledges an order.
type OrderPlacedPayload struct {
	OrderID string
	Venue   string
	Symbol  string
	Side    string
	Size    decimal.Decimal
	Price   decimal.Decimal
}

// OrderFilledPayload is published for each filled leg.
type OrderFilledPayload struct {
	OrderID   string
	Venue     string
	Symbol    string
	Side      string
	FillPrice decimal.Decimal
	FillSize  decimal.Decimal
	Fee       decimal.Decimal
	IsPartial bool
}

// OrderFailedPayload is published when a leg or a whole spread fails.
type OrderFailedPayload struct {
	OrderID string
	Venue   string
	Symbol  string
	Reason  string
}

// ReasonPartialFill marks the single most dangerous failure state and
// must be used whenever exactly one leg of a spread filled.
const ReasonPartialFill = "partial_fill"

// PositionPayload is published when global exposure for a symbol changes.
type PositionPayload struct {
	Symbol      string
	NetExposure decimal.Decimal
}

// CapitalPayload is published on every pool mutation.
type CapitalPayload struct {
	Venue     string
	Pool      string
	Available decimal.Decimal
}
