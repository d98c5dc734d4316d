// Package engine coordinates the full decision pipeline for each
// opportunity: admission, risk check, concurrent two-leg placement,
// fill resolution and guaranteed resource release. The engine owns no
// persistent state; it is a pure coordinator.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"arb_go/internal/capital"
	"arb_go/internal/domain"
	"arb_go/internal/event"
	"arb_go/internal/infra"
	"arb_go/internal/position"
	"arb_go/internal/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is the terminal state of one opportunity's execution.
type Outcome string

const (
	OutcomeCompleted       Outcome = "COMPLETED"
	OutcomePartiallyHedged Outcome = "PARTIALLY_HEDGED"
	OutcomeRejected        Outcome = "REJECTED"
	OutcomeFailed          Outcome = "FAILED"
)

// Result reports how one opportunity ended. Err carries a sentinel from
// the domain package so callers can classify outcomes with errors.Is.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
	BuyLeg  domain.OrderResult
	SellLeg domain.OrderResult
	Hedge   *domain.Order
}

// Config holds the engine tunables.
type Config struct {
	LegTimeout time.Duration
	Policy     PolicyConfig
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		LegTimeout: 30 * time.Second,
		Policy:     DefaultPolicyConfig(),
	}
}

// Engine executes opportunities against two venue clients at a time.
// Each opportunity runs in its own goroutine; one opportunity's failure
// never aborts another's in-flight execution.
type Engine struct {
	cfg       Config
	bus       *event.Bus
	capital   *capital.Orchestrator
	risk      *risk.Manager
	positions *position.Aggregator
	policy    FallbackPolicy
	metrics   *infra.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[string]domain.ExchangeClient

	paused atomic.Bool
	wg     sync.WaitGroup
}

// NewEngine wires the engine to its collaborators. All references are
// explicit; no process-wide singletons.
func NewEngine(cfg Config, bus *event.Bus, cap *capital.Orchestrator, rm *risk.Manager, pa *position.Aggregator, metrics *infra.Metrics) *Engine {
	return &Engine{
		cfg:       cfg,
		bus:       bus,
		capital:   cap,
		risk:      rm,
		positions: pa,
		policy:    NewFallbackPolicy(cfg.Policy),
		metrics:   metrics,
		logger:    slog.Default().With("module", "engine"),
		clients:   make(map[string]domain.ExchangeClient),
	}
}

// RegisterClient adds a venue client.
func (e *Engine) RegisterClient(c domain.ExchangeClient) {
	e.mu.Lock()
	e.clients[c.Venue()] = c
	e.mu.Unlock()
}

func (e *Engine) client(venue string) (domain.ExchangeClient, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.clients[venue]
	return c, ok
}

// Start subscribes the engine to OPPORTUNITY_FOUND. Each opportunity is
// executed on its own goroutine; capital acts as the natural backpressure
// on how many run at once.
func (e *Engine) Start(ctx context.Context) {
	e.bus.Subscribe(event.KindOpportunityFound, func(ev event.Event) {
		if e.paused.Load() {
			return
		}
		payload, ok := ev.Payload.(event.OpportunityPayload)
		if !ok {
			e.logger.Warn("unexpected payload on OPPORTUNITY_FOUND", slog.Any("payload", ev.Payload))
			return
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("opportunity execution panicked", slog.Any("panic", r))
				}
			}()
			e.Execute(ctx, payload.Opportunity)
		}()
	})
}

// Drain waits for all in-flight opportunity executions to finish.
func (e *Engine) Drain() {
	e.wg.Wait()
}

// Pause stops consumption of new opportunities. In-flight executions
// are unaffected.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume re-enables opportunity consumption.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports whether new opportunities are being refused.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Execute runs one opportunity through the state machine. The capital
// reservation is released on every exit path, including panics during
// venue calls.
func (e *Engine) Execute(ctx context.Context, op domain.Opportunity) Result {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordOpportunity()
	}

	if e.paused.Load() {
		return e.reject(op, "engine paused", domain.ErrEnginePaused)
	}

	buyClient, ok := e.client(op.BuyVenue)
	if !ok {
		return Result{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("no client for venue %s", op.BuyVenue),
			Err:     domain.ErrUnknownVenue,
		}
	}
	sellClient, ok := e.client(op.SellVenue)
	if !ok {
		return Result{
			Outcome: OutcomeFailed,
			Reason:  fmt.Sprintf("no client for venue %s", op.SellVenue),
			Err:     domain.ErrUnknownVenue,
		}
	}

	// Admission: both legs' notional, arb pool.
	buyRes := e.capital.ReserveArb(op.BuyVenue, op.BuyNotional())
	if !buyRes.Approved {
		return e.reject(op, buyRes.Reason, domain.ErrInsufficientCapital)
	}
	sellRes := e.capital.ReserveArb(op.SellVenue, op.SellNotional())
	if !sellRes.Approved {
		e.capital.Release(buyRes)
		return e.reject(op, sellRes.Reason, domain.ErrInsufficientCapital)
	}

	// Scoped acquisition: from here on, release happens exactly once on
	// every exit path, and the attempt outcome is recorded.
	outcome := OutcomeRejected
	defer func() {
		e.capital.Release(buyRes)
		e.capital.Release(sellRes)
		if e.metrics != nil {
			e.metrics.RecordLatency(time.Since(start).Nanoseconds())
		}
		switch outcome {
		case OutcomeCompleted:
			e.risk.RecordSuccess()
		case OutcomeFailed, OutcomePartiallyHedged:
			e.risk.RecordFailure()
		}
	}()

	// Risk check.
	eval := e.risk.Evaluate(op, e.positions.Snapshot())
	if !eval.Allowed {
		return e.reject(op, eval.Reason, domain.ErrRiskRejected)
	}

	// Policy selection.
	strat := e.policy.Select(e.classify(ctx, op, buyClient, sellClient))
	size := op.Size.Mul(strat.SizeFactor)

	buyReq := domain.OrderRequest{
		ClientID: uuid.NewString(),
		Symbol:   op.Symbol,
		Side:     domain.SideBuy,
		Type:     strat.OrderType,
		Size:     size,
		Price:    op.BuyPrice,
	}
	sellReq := domain.OrderRequest{
		ClientID: uuid.NewString(),
		Symbol:   op.Symbol,
		Side:     domain.SideSell,
		Type:     strat.OrderType,
		Size:     size,
		Price:    op.SellPrice,
	}

	// Concurrent placement: both legs in flight at once so their
	// latencies overlap, with a bounded wait.
	legCtx, cancel := context.WithTimeout(ctx, e.cfg.LegTimeout)
	defer cancel()

	outcome = OutcomeFailed

	var buyLeg, sellLeg domain.OrderResult
	var placeWG sync.WaitGroup
	placeWG.Add(2)
	go func() {
		defer placeWG.Done()
		buyLeg = e.placeLeg(legCtx, buyClient, buyReq)
	}()
	go func() {
		defer placeWG.Done()
		sellLeg = e.placeLeg(legCtx, sellClient, sellReq)
	}()
	placeWG.Wait()

	// Settlement runs on the outer context: the bounded wait has passed
	// but unwinding still needs to talk to the venues.
	buyExec := e.settleLeg(ctx, buyClient, buyReq, &buyLeg)
	sellExec := e.settleLeg(ctx, sellClient, sellReq, &sellLeg)

	result := Result{BuyLeg: buyLeg, SellLeg: sellLeg}

	// Every executed fraction enters the book, whole leg or not.
	if buyExec.IsPositive() {
		e.publishFill(buyLeg.Order, buyExec)
	}
	if sellExec.IsPositive() {
		e.publishFill(sellLeg.Order, sellExec)
	}

	switch {
	case buyExec.IsPositive() && buyExec.Equal(sellExec):
		outcome = OutcomeCompleted

	case buyExec.Equal(sellExec):
		// Neither leg executed anything.
		reason := legFailureReason(buyLeg, sellLeg)
		e.publishFailure(buyLeg.Order.ID, op.Symbol, op.BuyVenue, reason)
		outcome = OutcomeFailed
		result.Reason = reason
		result.Err = legFailureError(buyLeg, sellLeg)

	default:
		// Partial-fill hazard: hedge only the unmatched quantity, on the
		// underfilled venue, before capital is released.
		residual := buyExec.Sub(sellExec)
		underClient, underReq, underLeg := sellClient, sellReq, sellLeg
		if residual.IsNegative() {
			residual = residual.Neg()
			underClient, underReq, underLeg = buyClient, buyReq, buyLeg
		}

		result.Hedge = e.hedge(ctx, underClient, underReq, residual)
		e.publishFailure(underLeg.Order.ID, underReq.Symbol, underClient.Venue(), event.ReasonPartialFill)
		outcome = OutcomePartiallyHedged
		result.Reason = event.ReasonPartialFill
		result.Err = domain.ErrPartialFill
	}

	result.Outcome = outcome
	if e.metrics != nil && outcome == OutcomeCompleted {
		e.metrics.RecordExecuted()
	}
	e.logger.Info("opportunity resolved",
		slog.String("symbol", op.Symbol),
		slog.String("outcome", string(outcome)),
		slog.String("reason", result.Reason))
	return result
}

func (e *Engine) reject(op domain.Opportunity, reason string, err error) Result {
	if e.metrics != nil {
		e.metrics.RecordRejected()
	}
	e.logger.Info("opportunity rejected",
		slog.String("symbol", op.Symbol),
		slog.String("reason", reason))
	return Result{Outcome: OutcomeRejected, Reason: reason, Err: err}
}

// classify fetches both legs' quotes to pick the order strategy. Quote
// failures degrade to the normal condition rather than blocking the trade.
func (e *Engine) classify(ctx context.Context, op domain.Opportunity, buyClient, sellClient domain.ExchangeClient) MarketCondition {
	buyQuote, err := buyClient.CurrentPrice(ctx, op.Symbol)
	if err != nil {
		return ConditionNormal
	}
	sellQuote, err := sellClient.CurrentPrice(ctx, op.Symbol)
	if err != nil {
		return ConditionNormal
	}
	return e.policy.Classify(buyQuote, sellQuote, op.Size)
}

// placeLeg isolates one venue call: a panicking client becomes a
// transport error for this leg, never a crash of the engine.
func (e *Engine) placeLeg(ctx context.Context, client domain.ExchangeClient, req domain.OrderRequest) (res domain.OrderResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("venue client panicked",
				slog.String("venue", client.Venue()),
				slog.Any("panic", r))
			res = domain.Errored(fmt.Errorf("venue %s panicked: %v", client.Venue(), r))
		}
	}()

	res = client.PlaceOpenOrder(ctx, req)
	if res.Kind == domain.ResultError && e.metrics != nil {
		e.metrics.RecordError()
	}
	if res.Kind == domain.ResultOK {
		res.Order.Venue = client.Venue()
		e.bus.Publish(event.New(event.KindOrderPlaced, event.OrderPlacedPayload{
			OrderID: res.Order.ID,
			Venue:   res.Order.Venue,
			Symbol:  res.Order.Symbol,
			Side:    res.Order.Side,
			Size:    res.Order.Size,
			Price:   res.Order.Price,
		}))
	}
	return res
}

// settleLeg resolves one leg to its executed quantity. A leg still open
// after the bounded wait has its remainder cancelled before the leg is
// declared done; a cancel refused because the order already filled counts
// as a late fill. A leg that errored may still have reached the venue, so
// its client order ID is cancelled before the leg counts as unexecuted.
func (e *Engine) settleLeg(ctx context.Context, client domain.ExchangeClient, req domain.OrderRequest, leg *domain.OrderResult) decimal.Decimal {
	if leg.Kind == domain.ResultError {
		if _, err := client.CancelOrder(ctx, req.ClientID, req.Symbol); err != nil {
			e.logger.Error("cancel of unacknowledged leg failed",
				slog.String("venue", client.Venue()),
				slog.String("client_id", req.ClientID),
				slog.Any("error", err))
		}
		return decimal.Zero
	}
	if leg.Kind != domain.ResultOK {
		return decimal.Zero
	}
	if leg.Order.IsFilled() {
		return fillSize(leg.Order)
	}
	if !leg.Order.IsOpen() {
		return leg.Order.FillSize
	}

	cancelled, err := client.CancelOrder(ctx, leg.Order.ID, leg.Order.Symbol)
	if err != nil {
		e.logger.Error("cancel of open leg failed",
			slog.String("venue", client.Venue()),
			slog.String("order_id", leg.Order.ID),
			slog.Any("error", err))
		return leg.Order.FillSize
	}
	if cancelled {
		// The executed fraction before the cancel still counts.
		leg.Order.Status = domain.OrderStatusCancelled
		return leg.Order.FillSize
	}

	// Cancel refused: the order filled while we were unwinding.
	leg.Order.Status = domain.OrderStatusFilled
	leg.Order.FillSize = leg.Order.Size
	leg.Order.FillPrice = leg.Order.Price
	return leg.Order.FillSize
}

// hedge re-attempts the unmatched quantity as a market order on the
// underfilled venue so the filled side is no longer naked. Any executed
// fraction of the hedge counts toward the book; whatever imbalance
// remains after the one attempt is logged, and the partial-fill event
// downstream is the alerting path.
func (e *Engine) hedge(ctx context.Context, client domain.ExchangeClient, req domain.OrderRequest, size decimal.Decimal) *domain.Order {
	hedgeReq := domain.OrderRequest{
		ClientID: uuid.NewString(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     domain.OrderTypeMarket,
		Size:     size,
	}

	res := client.PlaceCloseOrder(ctx, hedgeReq)
	exec := res.Order.FillSize
	if res.Order.IsFilled() && exec.IsZero() {
		exec = res.Order.Size
	}
	if res.Kind != domain.ResultOK || !exec.IsPositive() {
		e.logger.Error("hedge attempt failed",
			slog.String("venue", client.Venue()),
			slog.String("symbol", req.Symbol),
			slog.String("reason", res.Reason))
		return nil
	}

	res.Order.Venue = client.Venue()
	e.publishFill(res.Order, exec)
	if exec.LessThan(size) {
		e.logger.Error("hedge executed only part of the residual",
			slog.String("venue", client.Venue()),
			slog.String("symbol", req.Symbol),
			slog.String("unhedged", size.Sub(exec).String()))
	}
	return &res.Order
}

func (e *Engine) publishFill(order domain.Order, execSize decimal.Decimal) {
	if e.metrics != nil {
		e.metrics.RecordOrderFilled()
	}
	e.bus.Publish(event.New(event.KindOrderFilled, event.OrderFilledPayload{
		OrderID:   order.ID,
		Venue:     order.Venue,
		Symbol:    order.Symbol,
		Side:      order.Side,
		FillPrice: fillPrice(order),
		FillSize:  execSize,
		Fee:       order.Fee,
		IsPartial: execSize.LessThan(order.Size),
	}))
}

func (e *Engine) publishFailure(orderID, symbol, venue, reason string) {
	if e.metrics != nil {
		e.metrics.RecordOrderFailed()
	}
	e.bus.Publish(event.New(event.KindOrderFailed, event.OrderFailedPayload{
		OrderID: orderID,
		Venue:   venue,
		Symbol:  symbol,
		Reason:  reason,
	}))
}

func fillPrice(order domain.Order) decimal.Decimal {
	if order.FillPrice.IsZero() {
		return order.Price
	}
	return order.FillPrice
}

func fillSize(order domain.Order) decimal.Decimal {
	if order.FillSize.IsZero() {
		return order.Size
	}
	return order.FillSize
}

func legFailureReason(buy, sell domain.OrderResult) string {
	for _, leg := range []domain.OrderResult{buy, sell} {
		if leg.Kind == domain.ResultRejected && leg.Reason != "" {
			return leg.Reason
		}
		if leg.Kind == domain.ResultError && leg.Err != nil {
			return leg.Err.Error()
		}
	}
	return "no leg filled"
}

// legFailureError maps a no-fill outcome to an errors.Is-able sentinel.
func legFailureError(buy, sell domain.OrderResult) error {
	for _, leg := range []domain.OrderResult{buy, sell} {
		if leg.Kind == domain.ResultError && leg.Err != nil {
			if errors.Is(leg.Err, context.DeadlineExceeded) {
				return domain.ErrVenueTimeout
			}
			return leg.Err
		}
	}
	return domain.ErrVenueRejected
}
