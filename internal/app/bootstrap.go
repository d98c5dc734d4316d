// Package app assembles the system: configuration, logging, storage and
// the event-driven core. Construction order matters; everything that
// publishes depends on the bus existing first.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arb_go/internal/capital"
	"arb_go/internal/domain"
	"arb_go/internal/engine"
	"arb_go/internal/event"
	"arb_go/internal/infra"
	"arb_go/internal/infra/feed"
	"arb_go/internal/infra/paper"
	"arb_go/internal/infra/storage"
	"arb_go/internal/position"
	"arb_go/internal/risk"
	"arb_go/internal/scanner"

	"github.com/shopspring/decimal"
)

const (
	defaultQueueSize   = 1024
	defaultWorkers     = 4
	equityPollInterval = 30 * time.Second
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Bus       *event.Bus
	Metrics   *infra.Metrics
	Capital   *capital.Orchestrator
	Risk      *risk.Manager
	Positions *position.Aggregator
	Scanner   *scanner.Scanner
	Engine    *engine.Engine

	clients []domain.ExchangeClient
	feeds   []*feed.Worker
	poller  *infra.EquityPoller

	mu    sync.Mutex
	peaks map[string]decimal.Decimal // Peak equity per venue, for drawdown
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{peaks: make(map[string]decimal.Decimal)}
}

// Initialize loads config and constructs every component. Nothing runs
// yet; Start launches the background loops.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Arb Go...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Trade history initialized")

	queueSize, workers := cfg.Engine.QueueSize, cfg.Engine.Workers
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}
	if workers == 0 {
		workers = defaultWorkers
	}
	b.Bus = event.NewBus(queueSize, workers)
	b.Metrics = &infra.Metrics{}

	b.Capital = capital.NewOrchestrator(b.capitalConfig(), b.Bus)
	b.Risk = risk.NewManager(b.riskConfig())
	b.Positions = position.NewAggregator(b.Bus)
	b.Scanner = scanner.NewScanner(b.scannerConfig(), b.Bus)
	b.Engine = engine.NewEngine(b.engineConfig(), b.Bus, b.Capital, b.Risk, b.Positions, b.Metrics)

	b.Storage.Attach(b.Bus)

	for _, vc := range cfg.Venues {
		client := b.buildClient(vc)
		b.clients = append(b.clients, client)
		b.Engine.RegisterClient(client)

		if !vc.Paper {
			b.feeds = append(b.feeds, feed.NewWorker(vc.Name, vc.WSURL, vc.Symbols, b.Bus, b.Metrics))
		}
	}

	b.poller = infra.NewEquityPoller(b.clients, equityPollInterval, b.onEquity)

	slog.Info("✅ Core assembled",
		slog.Int("venues", len(cfg.Venues)),
		slog.Int("feeds", len(b.feeds)))
	return nil
}

// buildClient returns the trading client for one venue. Venues without a
// live connector degrade to a read-only paper client: quotes still flow,
// order placement is refused gracefully.
func (b *Bootstrap) buildClient(vc infra.VenueConfig) domain.ExchangeClient {
	if vc.Paper {
		return paper.NewClient(vc.Name)
	}
	if vc.AccessKey == "" || vc.SecretKey == "" {
		slog.Warn("venue has no credentials, trading disabled",
			slog.String("venue", vc.Name))
		return paper.NewReadOnlyClient(vc.Name)
	}
	// Live order connectors plug in here per venue.
	return paper.NewReadOnlyClient(vc.Name)
}

// Start launches the bus workers, the engine, the balance poller and the
// feed workers.
func (b *Bootstrap) Start(ctx context.Context) error {
	b.Bus.Start(ctx)

	// Quote stream drives the fast-market detector.
	b.Bus.Subscribe(event.KindQuoteUpdated, func(ev event.Event) {
		payload, ok := ev.Payload.(event.QuotePayload)
		if !ok {
			return
		}
		b.Risk.ObservePrice(payload.Quote.Symbol, payload.Quote.Mid(), payload.Quote.Timestamp)
	})

	b.Engine.Start(ctx)
	b.poller.Start(ctx)

	for _, w := range b.feeds {
		if err := w.Connect(ctx); err != nil {
			slog.Error("feed connect failed", slog.String("worker", w.String()), slog.Any("error", err))
		}
	}

	for _, c := range b.clients {
		if err := c.Connect(ctx); err != nil {
			slog.Warn("client connect failed", slog.String("venue", c.Venue()), slog.Any("error", err))
		}
	}

	slog.InfoContext(ctx, "✨ Arb Go fully operational")
	return nil
}

// Shutdown stops ingestion first, then drains in-flight executions so
// every reservation is released before the process exits.
func (b *Bootstrap) Shutdown() {
	for _, w := range b.feeds {
		w.Disconnect()
	}
	b.poller.Stop()
	b.Engine.Drain()
	b.Bus.Wait()
	for _, c := range b.clients {
		c.Close()
	}
	slog.Info("👋 Shutdown complete")
}

// onEquity feeds each balance snapshot into the capital orchestrator and
// derives the drawdown from the running peak.
func (b *Bootstrap) onEquity(venue string, equity decimal.Decimal) {
	b.Capital.UpdateEquity(venue, equity)

	b.mu.Lock()
	peak := b.peaks[venue]
	if equity.GreaterThan(peak) {
		peak = equity
		b.peaks[venue] = peak
	}
	var totalPeak decimal.Decimal
	for v := range b.peaks {
		totalPeak = totalPeak.Add(b.peaks[v])
	}
	b.mu.Unlock()

	hundred := decimal.NewFromInt(100)
	drawdown := decimal.Zero
	if peak.IsPositive() {
		drawdown = peak.Sub(equity).Div(peak).Mul(hundred)
	}
	b.Capital.UpdateDrawdown(venue, drawdown)

	// The risk checks read one account-level snapshot; approximate the
	// global view with the per-venue aggregate.
	total := b.totalEquity()
	globalDrawdown := decimal.Zero
	if totalPeak.IsPositive() {
		globalDrawdown = totalPeak.Sub(total).Div(totalPeak).Mul(hundred)
	}
	b.Risk.UpdateAccount(risk.AccountState{
		Equity:      total,
		DrawdownPct: globalDrawdown,
	})
}

func (b *Bootstrap) totalEquity() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.clients {
		balances, err := c.GetAccountBalances(context.Background())
		if err != nil {
			continue
		}
		total = total.Add(domain.TotalEquityUSD(balances))
	}
	return total
}

func (b *Bootstrap) capitalConfig() capital.Config {
	cfg := capital.DefaultConfig()
	c := b.Config.Capital
	if c.WashFraction.IsPositive() {
		cfg.WashFraction = c.WashFraction
	}
	if c.ArbFraction.IsPositive() {
		cfg.ArbFraction = c.ArbFraction
	}
	if c.ReserveFraction.IsPositive() {
		cfg.ReserveFraction = c.ReserveFraction
	}
	if c.SafeModeDrawdownPct.IsPositive() {
		cfg.SafeModeDrawdownPct = c.SafeModeDrawdownPct
	}
	if c.MaxSingleFraction.IsPositive() {
		cfg.MaxSingleFraction = c.MaxSingleFraction
	}
	if c.MaxTotalFraction.IsPositive() {
		cfg.MaxTotalFraction = c.MaxTotalFraction
	}
	return cfg
}

func (b *Bootstrap) riskConfig() risk.Config {
	cfg := risk.DefaultConfig()
	r := b.Config.Risk
	if r.MaxRiskPct.IsPositive() {
		cfg.MaxRiskPct = r.MaxRiskPct
	}
	if r.MaxDrawdownPct.IsPositive() {
		cfg.MaxDrawdownPct = r.MaxDrawdownPct
	}
	if r.DailyLossLimit.IsPositive() {
		cfg.DailyLossLimit = r.DailyLossLimit
	}
	if r.ConsecutiveFailureLimit > 0 {
		cfg.ConsecutiveFailureLimit = r.ConsecutiveFailureLimit
	}
	if r.MaxSymbolExposurePct.IsPositive() {
		cfg.MaxSymbolExposurePct = r.MaxSymbolExposurePct
	}
	if r.FastMoveThresholdPct.IsPositive() {
		cfg.FastMoveThresholdPct = r.FastMoveThresholdPct
	}
	if r.FastMoveWindowMS > 0 {
		cfg.FastMoveWindow = time.Duration(r.FastMoveWindowMS) * time.Millisecond
	}
	if r.FreezeWindowMS > 0 {
		cfg.FreezeWindow = time.Duration(r.FreezeWindowMS) * time.Millisecond
	}
	return cfg
}

func (b *Bootstrap) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	e := b.Config.Engine
	if e.LegTimeoutSec > 0 {
		cfg.LegTimeout = time.Duration(e.LegTimeoutSec) * time.Second
	}
	if e.VolatilityThresholdPct.IsPositive() {
		cfg.Policy.VolatilityThresholdPct = e.VolatilityThresholdPct
	}
	if e.LiquidityFactor.IsPositive() {
		cfg.Policy.LiquidityFactor = e.LiquidityFactor
	}
	if e.ReducedSizeFactor.IsPositive() {
		cfg.Policy.ReducedSizeFactor = e.ReducedSizeFactor
	}
	return cfg
}

func (b *Bootstrap) scannerConfig() scanner.Config {
	cfg := scanner.DefaultConfig()
	s := b.Config.Scanner
	if s.MinNetProfitPct.IsPositive() {
		cfg.MinNetProfitPct = s.MinNetProfitPct
	}
	if s.TakerFeePct.IsPositive() {
		cfg.TakerFeePct = s.TakerFeePct
	}
	if s.MaxSize.IsPositive() {
		cfg.MaxSize = s.MaxSize
	}
	if s.EmitIntervalMS > 0 {
		cfg.EmitInterval = time.Duration(s.EmitIntervalMS) * time.Millisecond
	}
	return cfg
}
