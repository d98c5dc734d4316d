package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents the best bid/offer on one venue for one symbol.
// Produced by feed workers; read-only to the core.
type Quote struct {
	Venue     string          `json:"venue"`
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	BidSize   decimal.Decimal `json:"bid_size"`
	AskSize   decimal.Decimal `json:"ask_size"`
	Timestamp time.Time       `json:"timestamp"`
}

// Mid returns the midpoint price, or zero if the book is one-sided.
func (q Quote) Mid() decimal.Decimal {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return decimal.Zero
	}
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// SpreadPct returns the bid/ask spread as a percentage of the mid.
func (q Quote) SpreadPct() decimal.Decimal {
	mid := q.Mid()
	if mid.IsZero() {
		return decimal.Zero
	}
	return q.Ask.Sub(q.Bid).Div(mid).Mul(decimal.NewFromInt(100))
}

// PriceLevel is one level of an order book side.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook holds venue order book depth for one symbol.
type OrderBook struct {
	Venue  string       `json:"venue"`
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"` // Sorted best first
	Asks   []PriceLevel `json:"asks"`
}
