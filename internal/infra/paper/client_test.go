package paper

import (
	"context"
	"testing"
	"time"

	"arb_go/internal/domain"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func btcQuote() domain.Quote {
	return domain.Quote{
		Symbol:  "BTC",
		Bid:     d(94_990),
		Ask:     d(95_010),
		BidSize: d(5),
		AskSize: d(5),
	}
}

func TestPlaceOpenOrder_MarketFill(t *testing.T) {
	c := NewClient("paperA")
	c.SetQuote(btcQuote())

	res := c.PlaceOpenOrder(context.Background(), domain.OrderRequest{
		ClientID: "o-1",
		Symbol:   "BTC",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Size:     d(0.1),
	})

	if res.Kind != domain.ResultOK {
		t.Fatalf("expected OK, got %s (%s)", res.Kind, res.Reason)
	}
	if !res.Order.IsFilled() {
		t.Fatalf("expected filled order, got status %s", res.Order.Status)
	}
	if !res.Order.FillPrice.Equal(d(95_010)) {
		t.Errorf("buy should fill at the ask: got %s", res.Order.FillPrice)
	}

	if fills := c.Fills(); len(fills) != 1 {
		t.Errorf("expected 1 fill, got %d", len(fills))
	}
}

func TestPlaceOpenOrder_SellFillsAtBid(t *testing.T) {
	c := NewClient("paperA")
	c.SetQuote(btcQuote())

	res := c.PlaceOpenOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC",
		Side:   domain.SideSell,
		Type:   domain.OrderTypeMarket,
		Size:   d(0.1),
	})

	if !res.Order.FillPrice.Equal(d(94_990)) {
		t.Errorf("sell should fill at the bid: got %s", res.Order.FillPrice)
	}
	if res.Order.ID == "" {
		t.Error("client should assign an id when the request has none")
	}
}

func TestGracefulDegradation_NoCredentials(t *testing.T) {
	c := NewReadOnlyClient("paperA")
	c.SetQuote(btcQuote())

	res := c.PlaceOpenOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC",
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeMarket,
		Size:   d(0.1),
	})

	// Never an error: a rejected order with a descriptive reason.
	if res.Kind != domain.ResultRejected {
		t.Fatalf("expected rejection, got %s", res.Kind)
	}
	if res.Err != nil {
		t.Errorf("no-credentials must not surface as an error: %v", res.Err)
	}
	if res.Order.Status != domain.OrderStatusRejected {
		t.Errorf("embedded order should carry REJECTED, got %s", res.Order.Status)
	}

	// Market data stays available in read-only mode.
	if _, err := c.CurrentPrice(context.Background(), "BTC"); err != nil {
		t.Errorf("read path should still work: %v", err)
	}
}

func TestRestingLimit_CancelRoundTrip(t *testing.T) {
	c := NewClient("paperA")
	c.SetQuote(btcQuote())
	c.SetRestingLimits(true)

	res := c.PlaceOpenOrder(context.Background(), domain.OrderRequest{
		ClientID: "o-2",
		Symbol:   "BTC",
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeLimit,
		Size:     d(0.1),
		Price:    d(95_000),
	})
	if res.Order.Status != domain.OrderStatusPending {
		t.Fatalf("expected resting order, got %s", res.Order.Status)
	}

	active, err := c.GetActiveOrders(context.Background(), "BTC")
	if err != nil || len(active) != 1 {
		t.Fatalf("expected 1 active order, got %d (err=%v)", len(active), err)
	}

	cancelled, err := c.CancelOrder(context.Background(), "o-2", "BTC")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !cancelled {
		t.Error("expected cancel of a resting order to succeed")
	}

	// Second cancel: order is gone.
	cancelled, _ = c.CancelOrder(context.Background(), "o-2", "BTC")
	if cancelled {
		t.Error("cancel of a missing order should report false")
	}
}

func TestPartialFill(t *testing.T) {
	c := NewClient("paperA")
	c.SetQuote(btcQuote())
	c.SetPartialFill(d(0.5))

	res := c.PlaceOpenOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC",
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeMarket,
		Size:   d(1),
	})

	if res.Order.Status != domain.OrderStatusPartiallyFilled {
		t.Fatalf("expected partial fill, got %s", res.Order.Status)
	}
	if !res.Order.FillSize.Equal(d(0.5)) {
		t.Errorf("fill size: got %s, want 0.5", res.Order.FillSize)
	}
}

func TestLatencyRespectsContext(t *testing.T) {
	c := NewClient("paperA")
	c.SetQuote(btcQuote())
	c.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := c.PlaceOpenOrder(ctx, domain.OrderRequest{
		Symbol: "BTC",
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeMarket,
		Size:   d(0.1),
	})

	if res.Kind != domain.ResultError {
		t.Fatalf("expected transport error on timeout, got %s", res.Kind)
	}
	if !domain.IsRetriable(res.Err) {
		t.Error("venue timeout should be retriable")
	}
}

func TestBalancesAndEquity(t *testing.T) {
	c := NewClient("paperA")
	c.Deposit("USDT", d(10_000), d(10_000))
	c.Deposit("BTC", d(0.5), d(47_500))

	balances, err := c.GetAccountBalances(context.Background())
	if err != nil {
		t.Fatalf("GetAccountBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}
	if got := domain.TotalEquityUSD(balances); !got.Equal(d(57_500)) {
		t.Errorf("equity: got %s, want 57500", got)
	}
}

func TestClient_ImplementsInterface(t *testing.T) {
	var _ domain.ExchangeClient = (*Client)(nil)
}
