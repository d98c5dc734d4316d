// Package capital gates all capital-consuming actions behind an
// admission-control reservation protocol. Pool state is exclusively
// owned here and mutated only via Reserve/Release under a per-venue lock.
package capital

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"arb_go/internal/event"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pool identifies one of the three capital buckets per venue.
type Pool string

const (
	PoolWash    Pool = "WASH"
	PoolArb     Pool = "ARB"
	PoolReserve Pool = "RESERVE"
)

// Reservation is a temporary hold on capital. A successful reservation
// must be released exactly once; the caller enforces that with a defer.
type Reservation struct {
	ID       string
	Venue    string
	Pool     Pool
	Amount   decimal.Decimal
	Approved bool
	Reason   string
}

// Config holds pool budgets and global caps as fractions of venue equity.
type Config struct {
	WashFraction    decimal.Decimal // Budget of the wash pool
	ArbFraction     decimal.Decimal // Budget of the arb pool
	ReserveFraction decimal.Decimal // Budget of the reserve pool

	SafeModeDrawdownPct decimal.Decimal // Drawdown that trips safe mode
	MaxSingleFraction   decimal.Decimal // Cap on one reservation
	MaxTotalFraction    decimal.Decimal // Cap on total in-flight notional
}

// DefaultConfig returns the standard budget split: Wash 70%, Arb 20%,
// Reserve 10%, safe mode at 5% drawdown, single cap 10%, total cap 30%.
func DefaultConfig() Config {
	return Config{
		WashFraction:        decimal.NewFromFloat(0.70),
		ArbFraction:         decimal.NewFromFloat(0.20),
		ReserveFraction:     decimal.NewFromFloat(0.10),
		SafeModeDrawdownPct: decimal.NewFromFloat(5.0),
		MaxSingleFraction:   decimal.NewFromFloat(0.10),
		MaxTotalFraction:    decimal.NewFromFloat(0.30),
	}
}

func (c Config) budget(pool Pool) decimal.Decimal {
	switch pool {
	case PoolWash:
		return c.WashFraction
	case PoolArb:
		return c.ArbFraction
	case PoolReserve:
		return c.ReserveFraction
	default:
		return decimal.Zero
	}
}

// venueState is all mutable state for one venue, guarded by its own lock.
type venueState struct {
	mu          sync.Mutex
	equity      decimal.Decimal
	drawdownPct decimal.Decimal
	safeMode    bool
	allocated   map[Pool]decimal.Decimal
}

func newVenueState() *venueState {
	return &venueState{
		allocated: map[Pool]decimal.Decimal{
			PoolWash:    decimal.Zero,
			PoolArb:     decimal.Zero,
			PoolReserve: decimal.Zero,
		},
	}
}

// Orchestrator maintains per-venue tiered fund pools.
type Orchestrator struct {
	cfg    Config
	bus    *event.Bus
	logger *slog.Logger

	mu     sync.RWMutex
	venues map[string]*venueState

	// Instrumentation for the exactly-once-release property.
	reserveCount atomic.Uint64
	releaseCount atomic.Uint64
}

// NewOrchestrator creates an orchestrator publishing pool mutations to bus.
// The bus may be nil in tests that do not care about events.
func NewOrchestrator(cfg Config, bus *event.Bus) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		bus:    bus,
		logger: slog.Default().With("module", "capital"),
		venues: make(map[string]*venueState),
	}
}

func (o *Orchestrator) venue(name string) *venueState {
	o.mu.RLock()
	v, ok := o.venues[name]
	o.mu.RUnlock()
	if ok {
		return v
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok = o.venues[name]; ok {
		return v
	}
	v = newVenueState()
	o.venues[name] = v
	return v
}

// ReserveWash requests capital from the wash pool.
func (o *Orchestrator) ReserveWash(venue string, amount decimal.Decimal) Reservation {
	return o.reserve(venue, PoolWash, amount)
}

// ReserveArb requests capital from the arb pool. Refused while the venue
// is in safe mode.
func (o *Orchestrator) ReserveArb(venue string, amount decimal.Decimal) Reservation {
	return o.reserve(venue, PoolArb, amount)
}

// ReserveReserve requests capital from the reserve pool.
func (o *Orchestrator) ReserveReserve(venue string, amount decimal.Decimal) Reservation {
	return o.reserve(venue, PoolReserve, amount)
}

func (o *Orchestrator) reserve(venue string, pool Pool, amount decimal.Decimal) Reservation {
	res := Reservation{Venue: venue, Pool: pool, Amount: amount}

	if !amount.IsPositive() {
		res.Reason = "reservation amount must be positive"
		return res
	}

	v := o.venue(venue)
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.safeMode && pool == PoolArb {
		res.Reason = fmt.Sprintf("venue %s in safe mode: arb pool closed", venue)
		return res
	}

	if v.equity.IsZero() || v.equity.IsNegative() {
		res.Reason = fmt.Sprintf("venue %s has no equity", venue)
		return res
	}

	if amount.GreaterThan(o.cfg.MaxSingleFraction.Mul(v.equity)) {
		res.Reason = fmt.Sprintf("amount %s exceeds single reservation cap (%s%% of equity)",
			amount, o.cfg.MaxSingleFraction.Mul(decimal.NewFromInt(100)))
		return res
	}

	total := decimal.Zero
	for _, a := range v.allocated {
		total = total.Add(a)
	}
	if total.Add(amount).GreaterThan(o.cfg.MaxTotalFraction.Mul(v.equity)) {
		res.Reason = fmt.Sprintf("amount %s exceeds total in-flight cap (%s%% of equity)",
			amount, o.cfg.MaxTotalFraction.Mul(decimal.NewFromInt(100)))
		return res
	}

	available := o.cfg.budget(pool).Mul(v.equity).Sub(v.allocated[pool])
	if amount.GreaterThan(available) {
		res.Reason = fmt.Sprintf("insufficient funds in %s/%s: need %s, available %s",
			venue, pool, amount, available)
		return res
	}

	v.allocated[pool] = v.allocated[pool].Add(amount)
	res.ID = uuid.NewString()
	res.Approved = true
	o.reserveCount.Add(1)

	o.publishCapital(venue, pool, available.Sub(amount))
	return res
}

// Release returns reserved capital to its pool. It must be called exactly
// once per approved reservation; double release is a caller bug and trips
// the pool invariant loudly. Releasing a refused reservation is a no-op.
func (o *Orchestrator) Release(r Reservation) {
	if !r.Approved {
		return
	}

	v := o.venue(r.Venue)
	v.mu.Lock()
	defer v.mu.Unlock()

	next := v.allocated[r.Pool].Sub(r.Amount)
	if next.IsNegative() {
		panic(fmt.Sprintf("CAPITAL_INVARIANT_NEGATIVE_ALLOCATED: %s/%s released %s, allocated %s",
			r.Venue, r.Pool, r.Amount, v.allocated[r.Pool]))
	}
	v.allocated[r.Pool] = next
	o.releaseCount.Add(1)

	available := o.cfg.budget(r.Pool).Mul(v.equity).Sub(next)
	o.publishCapital(r.Venue, r.Pool, available)
}

// UpdateEquity sets the equity snapshot for a venue. Driven externally by
// the balance poller.
func (o *Orchestrator) UpdateEquity(venue string, equity decimal.Decimal) {
	v := o.venue(venue)
	v.mu.Lock()
	v.equity = equity
	v.mu.Unlock()
}

// UpdateDrawdown sets the venue drawdown percentage and recomputes safe
// mode. The transition is immediate in both directions, no hysteresis.
func (o *Orchestrator) UpdateDrawdown(venue string, drawdownPct decimal.Decimal) {
	v := o.venue(venue)
	v.mu.Lock()
	defer v.mu.Unlock()

	v.drawdownPct = drawdownPct
	was := v.safeMode
	v.safeMode = drawdownPct.GreaterThanOrEqual(o.cfg.SafeModeDrawdownPct)

	if v.safeMode != was {
		if v.safeMode {
			o.logger.Warn("safe mode engaged",
				slog.String("venue", venue),
				slog.String("drawdown_pct", drawdownPct.String()))
		} else {
			o.logger.Info("safe mode cleared", slog.String("venue", venue))
		}
	}
}

// SafeMode reports whether the venue's arb pool is closed.
func (o *Orchestrator) SafeMode(venue string) bool {
	v := o.venue(venue)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.safeMode
}

// Available returns the free capital in a pool.
func (o *Orchestrator) Available(venue string, pool Pool) decimal.Decimal {
	v := o.venue(venue)
	v.mu.Lock()
	defer v.mu.Unlock()
	return o.cfg.budget(pool).Mul(v.equity).Sub(v.allocated[pool])
}

// Allocated returns the currently reserved notional in a pool.
func (o *Orchestrator) Allocated(venue string, pool Pool) decimal.Decimal {
	v := o.venue(venue)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allocated[pool]
}

// Counts returns the successful reserve and release call counts. Used to
// verify the exactly-once-release property under concurrent load.
func (o *Orchestrator) Counts() (reserves, releases uint64) {
	return o.reserveCount.Load(), o.releaseCount.Load()
}

func (o *Orchestrator) publishCapital(venue string, pool Pool, available decimal.Decimal) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(event.New(event.KindCapitalUpdated, event.CapitalPayload{
		Venue:     venue,
		Pool:      string(pool),
		Available: available,
	}))
}
