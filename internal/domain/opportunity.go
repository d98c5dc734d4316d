package domain

import "github.com/shopspring/decimal"

// Opportunity represents a detected two-legged cross-venue spread.
// Created by the scanner; consumed exactly once by the execution engine.
type Opportunity struct {
	Symbol       string          `json:"symbol"`
	BuyVenue     string          `json:"buy_venue"`
	SellVenue    string          `json:"sell_venue"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Size         decimal.Decimal `json:"size"`
	SpreadPct    decimal.Decimal `json:"spread_pct"`
	NetProfitPct decimal.Decimal `json:"net_profit_pct"`
	Score        decimal.Decimal `json:"score"`
}

// BuyNotional returns the notional consumed by the buy leg.
func (o Opportunity) BuyNotional() decimal.Decimal {
	return o.Size.Mul(o.BuyPrice)
}

// SellNotional returns the notional consumed by the sell leg.
func (o Opportunity) SellNotional() decimal.Decimal {
	return o.Size.Mul(o.SellPrice)
}
