// Package scanner watches cross-venue quotes and publishes spread
// opportunities. Its heuristics are intentionally simple: best ask on
// one venue against best bid on another, fee-adjusted.
package scanner

import (
	"log/slog"
	"sync"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/event"

	"github.com/shopspring/decimal"
)

// Config holds the scanner thresholds.
type Config struct {
	MinNetProfitPct decimal.Decimal // Floor below which no opportunity is emitted
	TakerFeePct     decimal.Decimal // Per-leg taker fee
	MaxSize         decimal.Decimal // Cap on opportunity size
	EmitInterval    time.Duration   // Minimum gap between emits per symbol
}

// DefaultConfig returns conservative scanner settings.
func DefaultConfig() Config {
	return Config{
		MinNetProfitPct: decimal.NewFromFloat(0.05),
		TakerFeePct:     decimal.NewFromFloat(0.1),
		MaxSize:         decimal.NewFromInt(1),
		EmitInterval:    time.Second,
	}
}

// Scanner keeps the latest quote per venue per symbol and emits
// OPPORTUNITY_FOUND when a fee-adjusted cross-venue spread clears the
// profit floor.
type Scanner struct {
	cfg    Config
	bus    *event.Bus
	logger *slog.Logger

	mu       sync.Mutex
	quotes   map[string]map[string]domain.Quote // symbol -> venue -> quote
	lastEmit map[string]time.Time
}

// NewScanner creates a scanner and subscribes it to quote updates.
func NewScanner(cfg Config, bus *event.Bus) *Scanner {
	s := &Scanner{
		cfg:      cfg,
		bus:      bus,
		logger:   slog.Default().With("module", "scanner"),
		quotes:   make(map[string]map[string]domain.Quote),
		lastEmit: make(map[string]time.Time),
	}
	if bus != nil {
		bus.Subscribe(event.KindQuoteUpdated, s.onQuote)
	}
	return s
}

func (s *Scanner) onQuote(ev event.Event) {
	payload, ok := ev.Payload.(event.QuotePayload)
	if !ok {
		return
	}
	if op, ok := s.Observe(payload.Quote); ok {
		s.bus.Publish(event.New(event.KindOpportunityFound, event.OpportunityPayload{Opportunity: op}))
	}
}

// Observe records a quote and returns a qualifying opportunity, if any.
func (s *Scanner) Observe(q domain.Quote) (domain.Opportunity, bool) {
	if q.Bid.IsZero() || q.Ask.IsZero() {
		return domain.Opportunity{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	venues, ok := s.quotes[q.Symbol]
	if !ok {
		venues = make(map[string]domain.Quote)
		s.quotes[q.Symbol] = venues
	}
	venues[q.Venue] = q

	op, found := s.bestSpread(q.Symbol, venues)
	if !found {
		return domain.Opportunity{}, false
	}

	if last, ok := s.lastEmit[q.Symbol]; ok && time.Since(last) < s.cfg.EmitInterval {
		return domain.Opportunity{}, false
	}
	s.lastEmit[q.Symbol] = time.Now()

	s.logger.Debug("spread detected",
		slog.String("symbol", op.Symbol),
		slog.String("buy_venue", op.BuyVenue),
		slog.String("sell_venue", op.SellVenue),
		slog.String("net_profit_pct", op.NetProfitPct.String()))
	return op, true
}

// bestSpread finds the cheapest ask and richest bid across venues.
// Caller holds the lock.
func (s *Scanner) bestSpread(symbol string, venues map[string]domain.Quote) (domain.Opportunity, bool) {
	var buy, sell domain.Quote
	for _, q := range venues {
		if buy.Venue == "" || q.Ask.LessThan(buy.Ask) {
			buy = q
		}
		if sell.Venue == "" || q.Bid.GreaterThan(sell.Bid) {
			sell = q
		}
	}
	if buy.Venue == "" || sell.Venue == "" || buy.Venue == sell.Venue {
		return domain.Opportunity{}, false
	}
	if !sell.Bid.GreaterThan(buy.Ask) {
		return domain.Opportunity{}, false
	}

	hundred := decimal.NewFromInt(100)
	spreadPct := sell.Bid.Sub(buy.Ask).Div(buy.Ask).Mul(hundred)
	netProfitPct := spreadPct.Sub(s.cfg.TakerFeePct.Mul(decimal.NewFromInt(2)))
	if netProfitPct.LessThan(s.cfg.MinNetProfitPct) {
		return domain.Opportunity{}, false
	}

	size := decimal.Min(buy.AskSize, sell.BidSize)
	if s.cfg.MaxSize.IsPositive() {
		size = decimal.Min(size, s.cfg.MaxSize)
	}
	if !size.IsPositive() {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		Symbol:       symbol,
		BuyVenue:     buy.Venue,
		SellVenue:    sell.Venue,
		BuyPrice:     buy.Ask,
		SellPrice:    sell.Bid,
		Size:         size,
		SpreadPct:    spreadPct,
		NetProfitPct: netProfitPct,
		Score:        netProfitPct,
	}, true
}
