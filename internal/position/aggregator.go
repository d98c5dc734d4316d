// Package position maintains the global cross-venue exposure view. The
// position ledger is exclusively owned here and mutated only by the
// ORDER_FILLED handler; everything else reads derived snapshots.
package position

import (
	"log/slog"
	"sync"

	"arb_go/internal/domain"
	"arb_go/internal/event"

	"github.com/shopspring/decimal"
)

// Aggregator subscribes to fill events and keeps per-venue-per-symbol
// positions.
type Aggregator struct {
	bus    *event.Bus
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]map[string]*domain.Position // venue -> symbol -> position
}

// NewAggregator creates an aggregator and subscribes it to fill events.
func NewAggregator(bus *event.Bus) *Aggregator {
	a := &Aggregator{
		bus:       bus,
		logger:    slog.Default().With("module", "position"),
		positions: make(map[string]map[string]*domain.Position),
	}
	if bus != nil {
		bus.Subscribe(event.KindOrderFilled, a.onOrderFilled)
	}
	return a
}

func (a *Aggregator) onOrderFilled(ev event.Event) {
	fill, ok := ev.Payload.(event.OrderFilledPayload)
	if !ok {
		a.logger.Warn("unexpected payload on ORDER_FILLED", slog.Any("payload", ev.Payload))
		return
	}
	a.ApplyFill(fill.Venue, fill.Symbol, fill.Side, fill.FillPrice, fill.FillSize)
}

// ApplyFill opens, increases, reduces, closes or flips a position. A fill
// larger than an opposing position flips it to the remainder at the fill
// price. Closed positions are removed rather than kept at zero size.
func (a *Aggregator) ApplyFill(venue, symbol, side string, price, size decimal.Decimal) {
	if size.IsZero() || size.IsNegative() || price.IsNegative() {
		return
	}

	a.mu.Lock()
	book, ok := a.positions[venue]
	if !ok {
		book = make(map[string]*domain.Position)
		a.positions[venue] = book
	}

	pos, ok := book[symbol]
	switch {
	case !ok:
		book[symbol] = &domain.Position{
			Venue:      venue,
			Symbol:     symbol,
			Side:       side,
			Size:       size,
			EntryPrice: price,
		}

	case pos.Side == side:
		// Increase: size-weighted average entry.
		total := pos.Size.Add(size)
		pos.EntryPrice = pos.EntryPrice.Mul(pos.Size).Add(price.Mul(size)).Div(total)
		pos.Size = total

	default:
		switch size.Cmp(pos.Size) {
		case -1:
			pos.Size = pos.Size.Sub(size)
		case 0:
			delete(book, symbol)
		case 1:
			pos.Side = side
			pos.Size = size.Sub(pos.Size)
			pos.EntryPrice = price
		}
	}
	net := a.netLocked(symbol)
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.Publish(event.New(event.KindPositionUpdated, event.PositionPayload{
			Symbol:      symbol,
			NetExposure: net,
		}))
	}
}

// netLocked computes net exposure for a symbol. Caller holds the lock.
func (a *Aggregator) netLocked(symbol string) decimal.Decimal {
	net := decimal.Zero
	for _, book := range a.positions {
		if pos, ok := book[symbol]; ok {
			net = net.Add(pos.SignedNotional())
		}
	}
	return net
}

// NetExposure returns the signed USD notional for a symbol across venues.
func (a *Aggregator) NetExposure(symbol string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.netLocked(symbol)
}

// GrossExposure returns the unsigned USD notional for a symbol across venues.
func (a *Aggregator) GrossExposure(symbol string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	gross := decimal.Zero
	for _, book := range a.positions {
		if pos, ok := book[symbol]; ok {
			gross = gross.Add(pos.Notional())
		}
	}
	return gross
}

// Snapshot recomputes the global exposure view from the position set.
func (a *Aggregator) Snapshot() domain.GlobalExposureSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := domain.GlobalExposureSnapshot{
		NetBySymbol:   make(map[string]decimal.Decimal),
		GrossBySymbol: make(map[string]decimal.Decimal),
		NetTotal:      decimal.Zero,
		GrossTotal:    decimal.Zero,
	}

	for _, book := range a.positions {
		for symbol, pos := range book {
			snap.NetBySymbol[symbol] = snap.NetBySymbol[symbol].Add(pos.SignedNotional())
			snap.GrossBySymbol[symbol] = snap.GrossBySymbol[symbol].Add(pos.Notional())
		}
	}
	for _, n := range snap.NetBySymbol {
		snap.NetTotal = snap.NetTotal.Add(n)
	}
	for _, g := range snap.GrossBySymbol {
		snap.GrossTotal = snap.GrossTotal.Add(g)
	}
	return snap
}

// Positions returns a copy of the active position set.
func (a *Aggregator) Positions() []domain.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.Position
	for _, book := range a.positions {
		for _, pos := range book {
			out = append(out, *pos)
		}
	}
	return out
}
