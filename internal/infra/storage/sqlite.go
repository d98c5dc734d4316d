// Package storage persists trade history to SQLite. It is a read-only
// consumer of the core: it subscribes to fill/failure events and never
// writes back into the execution path.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"arb_go/internal/domain"
	"arb_go/internal/event"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage wraps the trade history database.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (and migrates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		path = defaultDBPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func defaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	return filepath.Join(configDir, "ArbGo", "data", "trades.db")
}

// Attach subscribes the recorder to the bus so every fill and failure
// lands in the trade history.
func (s *Storage) Attach(bus *event.Bus) {
	bus.Subscribe(event.KindOrderFilled, func(ev event.Event) {
		fill, ok := ev.Payload.(event.OrderFilledPayload)
		if !ok {
			return
		}
		record := &domain.TradeRecord{
			OrderID:   fill.OrderID,
			Venue:     fill.Venue,
			Symbol:    fill.Symbol,
			Side:      fill.Side,
			FillPrice: fill.FillPrice,
			FillSize:  fill.FillSize,
			Fee:       fill.Fee,
			IsPartial: fill.IsPartial,
			Outcome:   "FILLED",
		}
		if err := s.SaveTrade(record); err != nil {
			slog.Error("failed to persist fill", slog.String("order_id", fill.OrderID), slog.Any("error", err))
		}
	})

	bus.Subscribe(event.KindOrderFailed, func(ev event.Event) {
		fail, ok := ev.Payload.(event.OrderFailedPayload)
		if !ok {
			return
		}
		record := &domain.TradeRecord{
			OrderID: fail.OrderID,
			Venue:   fail.Venue,
			Symbol:  fail.Symbol,
			Outcome: "FAILED",
			Reason:  fail.Reason,
		}
		if err := s.SaveTrade(record); err != nil {
			slog.Error("failed to persist failure", slog.String("order_id", fail.OrderID), slog.Any("error", err))
		}
	})
}

// SaveTrade inserts a trade record.
func (s *Storage) SaveTrade(record *domain.TradeRecord) error {
	return s.db.Create(record).Error
}

// RecentTrades returns the latest trades, newest first.
func (s *Storage) RecentTrades(limit int) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	err := s.db.Order("id desc").Limit(limit).Find(&trades).Error
	return trades, err
}

// TradesBySymbol returns all trades for one symbol, newest first.
func (s *Storage) TradesBySymbol(symbol string) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	err := s.db.Where("symbol = ?", symbol).Order("id desc").Find(&trades).Error
	return trades, err
}

// FailureCount returns how many failures were recorded for a reason.
func (s *Storage) FailureCount(reason string) (int64, error) {
	var count int64
	err := s.db.Model(&domain.TradeRecord{}).
		Where("outcome = ? AND reason = ?", "FAILED", reason).
		Count(&count).Error
	return count, err
}
