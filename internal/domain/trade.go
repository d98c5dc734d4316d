package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the persisted row for one fill or failure outcome.
type TradeRecord struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   string          `gorm:"index" json:"order_id"`
	Venue     string          `json:"venue"`
	Symbol    string          `gorm:"index" json:"symbol"`
	Side      string          `json:"side"`
	FillPrice decimal.Decimal `gorm:"type:numeric" json:"fill_price"`
	FillSize  decimal.Decimal `gorm:"type:numeric" json:"fill_size"`
	Fee       decimal.Decimal `gorm:"type:numeric" json:"fee"`
	IsPartial bool            `json:"is_partial"`
	Outcome   string          `json:"outcome"` // "FILLED" or "FAILED"
	Reason    string          `json:"reason"`  // Failure reason, empty on fills
	CreatedAt time.Time       `json:"created_at"`
}
