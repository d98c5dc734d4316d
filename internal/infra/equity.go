package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

// EquityPoller periodically snapshots venue account balances and reports
// the resulting equity per venue. It is the external balance-snapshot
// provider the capital orchestrator depends on.
type EquityPoller struct {
	onEquity     func(venue string, equity decimal.Decimal)
	pollInterval time.Duration
	clients      []domain.ExchangeClient
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewEquityPoller creates a poller reporting through onEquity.
func NewEquityPoller(clients []domain.ExchangeClient, pollInterval time.Duration, onEquity func(string, decimal.Decimal)) *EquityPoller {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &EquityPoller{
		onEquity:     onEquity,
		pollInterval: pollInterval,
		clients:      clients,
	}
}

// Start begins polling. The first snapshot is taken immediately so the
// orchestrator has equity before the first opportunity arrives.
func (p *EquityPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.poll(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()
}

// Stop terminates polling and waits for the loop to exit.
func (p *EquityPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *EquityPoller) poll(ctx context.Context) {
	for _, client := range p.clients {
		balances, err := client.GetAccountBalances(ctx)
		if err != nil {
			slog.Warn("balance snapshot failed",
				slog.String("venue", client.Venue()),
				slog.Any("error", err))
			continue
		}
		p.onEquity(client.Venue(), domain.TotalEquityUSD(balances))
	}
}
