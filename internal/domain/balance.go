package domain

import "github.com/shopspring/decimal"

// Balance is one asset balance on a venue account.
type Balance struct {
	Venue     string          `json:"venue"`
	Asset     string          `json:"asset"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	USDValue  decimal.Decimal `json:"usd_value"`
}

// TotalEquityUSD sums the USD value of a balance set.
func TotalEquityUSD(balances []Balance) decimal.Decimal {
	equity := decimal.Zero
	for _, b := range balances {
		equity = equity.Add(b.USDValue)
	}
	return equity
}
