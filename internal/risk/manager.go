// Package risk applies layered pre-trade checks in fixed priority order,
// short-circuiting on the first failure. Refusals are expected outcomes
// reported as values, never errors.
package risk

import (
	"fmt"
	"sync"
	"time"

	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Config holds the risk thresholds.
type Config struct {
	MaxRiskPct              decimal.Decimal // Per-trade notional vs equity
	MaxDrawdownPct          decimal.Decimal
	DailyLossLimit          decimal.Decimal // Positive USD amount
	ConsecutiveFailureLimit int
	MaxSymbolExposurePct    decimal.Decimal // Gross symbol exposure vs equity
	FastMoveThresholdPct    decimal.Decimal // Price move that trips the freeze
	FastMoveWindow          time.Duration   // Lookback for the move check
	FreezeWindow            time.Duration   // Cooldown once tripped
}

// DefaultConfig returns the standard limits: 5% per trade, 10% max
// drawdown, 3 consecutive failures, 30% symbol exposure, 1s fast-move
// lookback with a 10s cooldown.
func DefaultConfig() Config {
	return Config{
		MaxRiskPct:              decimal.NewFromFloat(5.0),
		MaxDrawdownPct:          decimal.NewFromFloat(10.0),
		DailyLossLimit:          decimal.NewFromInt(1000),
		ConsecutiveFailureLimit: 3,
		MaxSymbolExposurePct:    decimal.NewFromFloat(30.0),
		FastMoveThresholdPct:    decimal.NewFromFloat(1.0),
		FastMoveWindow:          time.Second,
		FreezeWindow:            10 * time.Second,
	}
}

// AccountState is the externally fed account snapshot the checks read.
type AccountState struct {
	Equity      decimal.Decimal
	DrawdownPct decimal.Decimal
	DailyPnL    decimal.Decimal
}

// Evaluation is the result of one risk decision. Computed fresh per
// opportunity, never persisted.
type Evaluation struct {
	Allowed bool
	Reason  string
	Scores  map[string]decimal.Decimal
}

type pricePoint struct {
	price decimal.Decimal
	ts    time.Time
}

// Manager evaluates opportunities against the configured limits. The only
// state it mutates on its own is the consecutive-failure counter (via
// RecordSuccess/RecordFailure) and the fast-market freeze bookkeeping.
type Manager struct {
	cfg Config

	mu                  sync.Mutex
	account             AccountState
	consecutiveFailures int
	manualOverride      bool
	lastPrice           map[string]pricePoint
	frozenUntil         map[string]time.Time
}

// NewManager creates a risk manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:         cfg,
		lastPrice:   make(map[string]pricePoint),
		frozenUntil: make(map[string]time.Time),
	}
}

// UpdateAccount replaces the account snapshot used by the checks.
func (m *Manager) UpdateAccount(state AccountState) {
	m.mu.Lock()
	m.account = state
	m.mu.Unlock()
}

// SetManualOverride toggles the override that bypasses only the
// consecutive-failure check. All other checks remain enforced.
func (m *Manager) SetManualOverride(on bool) {
	m.mu.Lock()
	m.manualOverride = on
	m.mu.Unlock()
}

// RecordSuccess resets the consecutive-failure counter.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	m.consecutiveFailures = 0
	m.mu.Unlock()
}

// RecordFailure bumps the consecutive-failure counter.
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	m.consecutiveFailures++
	m.mu.Unlock()
}

// ConsecutiveFailures returns the current counter value.
func (m *Manager) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

// ObservePrice feeds a market price into the fast-market detector. A move
// beyond the threshold within the lookback window freezes the symbol for
// the cooldown period.
func (m *Manager) ObservePrice(symbol string, price decimal.Decimal, ts time.Time) {
	if price.IsZero() || price.IsNegative() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastPrice[symbol]
	m.lastPrice[symbol] = pricePoint{price: price, ts: ts}
	if !ok || last.price.IsZero() {
		return
	}
	if ts.Sub(last.ts) > m.cfg.FastMoveWindow {
		return
	}

	movePct := price.Sub(last.price).Abs().Div(last.price).Mul(decimal.NewFromInt(100))
	if movePct.GreaterThan(m.cfg.FastMoveThresholdPct) {
		m.frozenUntil[symbol] = ts.Add(m.cfg.FreezeWindow)
	}
}

// Evaluate runs the checks in priority order against the opportunity and
// the current global exposure. It mutates nothing.
func (m *Manager) Evaluate(op domain.Opportunity, exposure domain.GlobalExposureSnapshot) Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()

	scores := make(map[string]decimal.Decimal)
	hundred := decimal.NewFromInt(100)

	// 1. Per-trade size vs equity.
	if m.account.Equity.IsZero() || m.account.Equity.IsNegative() {
		return Evaluation{Reason: "no account equity", Scores: scores}
	}
	tradePct := op.BuyNotional().Div(m.account.Equity).Mul(hundred)
	scores["trade_pct"] = tradePct
	if tradePct.GreaterThan(m.cfg.MaxRiskPct) {
		return Evaluation{
			Reason: fmt.Sprintf("trade size %s%% of equity exceeds limit %s%%", tradePct.StringFixed(2), m.cfg.MaxRiskPct),
			Scores: scores,
		}
	}

	// 2. Drawdown.
	scores["drawdown_pct"] = m.account.DrawdownPct
	if m.account.DrawdownPct.GreaterThanOrEqual(m.cfg.MaxDrawdownPct) {
		return Evaluation{
			Reason: fmt.Sprintf("drawdown %s%% at or above limit %s%%", m.account.DrawdownPct, m.cfg.MaxDrawdownPct),
			Scores: scores,
		}
	}

	// 3. Daily realized PnL vs loss limit.
	scores["daily_pnl"] = m.account.DailyPnL
	if m.account.DailyPnL.IsNegative() && m.account.DailyPnL.Abs().GreaterThanOrEqual(m.cfg.DailyLossLimit) {
		return Evaluation{
			Reason: fmt.Sprintf("daily loss %s at or above limit %s", m.account.DailyPnL.Abs(), m.cfg.DailyLossLimit),
			Scores: scores,
		}
	}

	// 4. Consecutive failures; the single check the manual override bypasses.
	scores["consecutive_failures"] = decimal.NewFromInt(int64(m.consecutiveFailures))
	if !m.manualOverride && m.consecutiveFailures >= m.cfg.ConsecutiveFailureLimit {
		return Evaluation{
			Reason: fmt.Sprintf("%d consecutive failures at or above limit %d", m.consecutiveFailures, m.cfg.ConsecutiveFailureLimit),
			Scores: scores,
		}
	}

	// 5. Per-symbol gross exposure after this trade.
	projected := exposure.Gross(op.Symbol).Add(op.BuyNotional()).Add(op.SellNotional())
	exposurePct := projected.Div(m.account.Equity).Mul(hundred)
	scores["symbol_exposure_pct"] = exposurePct
	if exposurePct.GreaterThan(m.cfg.MaxSymbolExposurePct) {
		return Evaluation{
			Reason: fmt.Sprintf("symbol exposure %s%% exceeds limit %s%%", exposurePct.StringFixed(2), m.cfg.MaxSymbolExposurePct),
			Scores: scores,
		}
	}

	// 6. Fast-market freeze.
	if until, ok := m.frozenUntil[op.Symbol]; ok {
		if time.Now().Before(until) {
			return Evaluation{
				Reason: fmt.Sprintf("symbol %s frozen after fast move", op.Symbol),
				Scores: scores,
			}
		}
		delete(m.frozenUntil, op.Symbol)
	}

	return Evaluation{Allowed: true, Scores: scores}
}
