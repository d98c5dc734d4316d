package domain

import "github.com/shopspring/decimal"

// Position is an open position on one venue for one symbol.
// Size is always non-negative; direction is carried by Side.
type Position struct {
	Venue      string          `json:"venue"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"` // "BUY" = long, "SELL" = short
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
}

// Notional returns the unsigned USD notional of the position.
func (p Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.EntryPrice)
}

// SignedNotional returns the notional, negative for shorts.
func (p Position) SignedNotional() decimal.Decimal {
	n := p.Notional()
	if p.Side == SideSell {
		return n.Neg()
	}
	return n
}

// GlobalExposureSnapshot is a derived read-only view of cross-venue
// exposure, recomputed on demand from the active position set.
type GlobalExposureSnapshot struct {
	NetBySymbol   map[string]decimal.Decimal `json:"net_by_symbol"`
	GrossBySymbol map[string]decimal.Decimal `json:"gross_by_symbol"`
	NetTotal      decimal.Decimal            `json:"net_total"`
	GrossTotal    decimal.Decimal            `json:"gross_total"`
}

// Net returns the net exposure for a symbol, zero if none.
func (s GlobalExposureSnapshot) Net(symbol string) decimal.Decimal {
	return s.NetBySymbol[symbol]
}

// Gross returns the gross exposure for a symbol, zero if none.
func (s GlobalExposureSnapshot) Gross(symbol string) decimal.Decimal {
	return s.GrossBySymbol[symbol]
}
