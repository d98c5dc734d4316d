// Package paper provides an in-memory ExchangeClient for tests and dry
// runs. Orders fill deterministically against the tracked quote;
// rejection, latency and partial fills are configurable per client.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arb_go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is a paper-trading venue.
type Client struct {
	venue string

	mu          sync.Mutex
	connected   bool
	credentials bool
	quotes      map[string]domain.Quote
	balances    map[string]domain.Balance
	orders      map[string]*domain.Order // Active (resting) orders
	fills       []domain.Order
	positions   map[string]*domain.Position

	rejectReason string          // When set, every order is rejected
	rejectNext   int             // Reject only this many upcoming orders
	latency      time.Duration   // Simulated venue latency per call
	partialFrac  decimal.Decimal // <1 fills only a fraction
	restLimits   bool            // Limit orders rest instead of filling
	feePct       decimal.Decimal
	cancelCalls  int
}

// NewClient creates a paper venue with credentials present.
func NewClient(venue string) *Client {
	return &Client{
		venue:       venue,
		credentials: true,
		quotes:      make(map[string]domain.Quote),
		balances:    make(map[string]domain.Balance),
		orders:      make(map[string]*domain.Order),
		positions:   make(map[string]*domain.Position),
		partialFrac: decimal.NewFromInt(1),
	}
}

// NewReadOnlyClient creates a paper venue without trading credentials.
func NewReadOnlyClient(venue string) *Client {
	c := NewClient(venue)
	c.credentials = false
	return c
}

// SetQuote sets the current best bid/offer for a symbol.
func (c *Client) SetQuote(q domain.Quote) {
	c.mu.Lock()
	q.Venue = c.venue
	c.quotes[q.Symbol] = q
	c.mu.Unlock()
}

// SetReject makes every subsequent order placement fail with reason.
// An empty reason restores normal fills.
func (c *Client) SetReject(reason string) {
	c.mu.Lock()
	c.rejectReason = reason
	c.mu.Unlock()
}

// RejectNext rejects only the next n order placements, then resumes
// normal fills. Used to exercise hedge-after-rejection paths.
func (c *Client) RejectNext(n int, reason string) {
	c.mu.Lock()
	c.rejectNext = n
	c.rejectReason = reason
	c.mu.Unlock()
}

// SetLatency adds a simulated delay to order placement.
func (c *Client) SetLatency(d time.Duration) {
	c.mu.Lock()
	c.latency = d
	c.mu.Unlock()
}

// SetPartialFill makes orders fill only the given fraction of their size.
func (c *Client) SetPartialFill(frac decimal.Decimal) {
	c.mu.Lock()
	c.partialFrac = frac
	c.mu.Unlock()
}

// SetRestingLimits makes limit orders rest in the book instead of
// filling immediately, so cancellation paths can be exercised.
func (c *Client) SetRestingLimits(on bool) {
	c.mu.Lock()
	c.restLimits = on
	c.mu.Unlock()
}

// SetFee sets the taker fee percentage applied to fills.
func (c *Client) SetFee(pct decimal.Decimal) {
	c.mu.Lock()
	c.feePct = pct
	c.mu.Unlock()
}

// Deposit credits an asset balance.
func (c *Client) Deposit(asset string, amount, usdValue decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.balances[asset]
	b.Venue = c.venue
	b.Asset = asset
	b.Total = b.Total.Add(amount)
	b.Available = b.Available.Add(amount)
	b.USDValue = b.USDValue.Add(usdValue)
	c.balances[asset] = b
}

// Venue returns the venue name.
func (c *Client) Venue() string { return c.venue }

// Connect marks the session established.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// CurrentPrice returns the tracked quote for a symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%s: no quote for %s", c.venue, symbol)
	}
	return q, nil
}

// GetOrderBook synthesizes a single-level book from the tracked quote.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	q, err := c.CurrentPrice(ctx, symbol)
	if err != nil {
		return domain.OrderBook{}, err
	}
	return domain.OrderBook{
		Venue:  c.venue,
		Symbol: symbol,
		Bids:   []domain.PriceLevel{{Price: q.Bid, Size: q.BidSize}},
		Asks:   []domain.PriceLevel{{Price: q.Ask, Size: q.AskSize}},
	}, nil
}

// PlaceOpenOrder simulates order placement against the tracked quote.
func (c *Client) PlaceOpenOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	return c.place(ctx, req)
}

// PlaceCloseOrder behaves like PlaceOpenOrder on a paper venue.
func (c *Client) PlaceCloseOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	return c.place(ctx, req)
}

func (c *Client) place(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	c.mu.Lock()
	latency := c.latency
	c.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return domain.Errored(domain.NewVenueError(c.venue, "place", ctx.Err()))
		case <-time.After(latency):
		}
	} else if err := ctx.Err(); err != nil {
		return domain.Errored(domain.NewVenueError(c.venue, "place", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.credentials {
		return domain.Rejected(req, "no credentials: trading disabled")
	}
	if c.rejectReason != "" {
		reason := c.rejectReason
		if c.rejectNext > 0 {
			c.rejectNext--
			if c.rejectNext == 0 {
				c.rejectReason = ""
			}
		}
		return domain.Rejected(req, reason)
	}
	if !req.Size.IsPositive() {
		return domain.Rejected(req, "size must be positive")
	}

	quote, ok := c.quotes[req.Symbol]
	if !ok {
		return domain.Rejected(req, fmt.Sprintf("no market for %s", req.Symbol))
	}

	order := domain.Order{
		ID:        req.ClientID,
		Venue:     c.venue,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Size:      req.Size,
		Price:     req.Price,
		CreatedAt: time.Now(),
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	execPrice := quote.Ask
	if req.Side == domain.SideSell {
		execPrice = quote.Bid
	}

	if req.Type == domain.OrderTypeLimit {
		marketable := (req.Side == domain.SideBuy && req.Price.GreaterThanOrEqual(quote.Ask)) ||
			(req.Side == domain.SideSell && req.Price.LessThanOrEqual(quote.Bid))
		if c.restLimits || !marketable {
			order.Status = domain.OrderStatusPending
			stored := order
			c.orders[order.ID] = &stored
			return domain.OK(order)
		}
		execPrice = req.Price
	}

	fillSize := req.Size.Mul(c.partialFrac)
	order.FillSize = fillSize
	order.FillPrice = execPrice
	order.Fee = fillSize.Mul(execPrice).Mul(c.feePct).Div(decimal.NewFromInt(100))
	if fillSize.LessThan(req.Size) {
		order.Status = domain.OrderStatusPartiallyFilled
		stored := order
		c.orders[order.ID] = &stored
	} else {
		order.Status = domain.OrderStatusFilled
	}

	c.fills = append(c.fills, order)
	c.applyFill(order)
	return domain.OK(order)
}

func (c *Client) applyFill(order domain.Order) {
	pos, ok := c.positions[order.Symbol]
	if !ok {
		c.positions[order.Symbol] = &domain.Position{
			Venue:      c.venue,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Size:       order.FillSize,
			EntryPrice: order.FillPrice,
		}
		return
	}
	if pos.Side == order.Side {
		pos.Size = pos.Size.Add(order.FillSize)
		return
	}
	switch order.FillSize.Cmp(pos.Size) {
	case -1:
		pos.Size = pos.Size.Sub(order.FillSize)
	case 0:
		delete(c.positions, order.Symbol)
	case 1:
		pos.Side = order.Side
		pos.Size = order.FillSize.Sub(pos.Size)
		pos.EntryPrice = order.FillPrice
	}
}

// CancelOrder cancels a resting order. Returns false when the order is
// not open anymore (already filled).
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelCalls++
	order, ok := c.orders[orderID]
	if !ok || !order.IsOpen() {
		return false, nil
	}
	order.Status = domain.OrderStatusCancelled
	delete(c.orders, orderID)
	return true, nil
}

// GetActiveOrders returns resting orders for a symbol.
func (c *Client) GetActiveOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Order
	for _, o := range c.orders {
		if o.Symbol == symbol && o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out, nil
}

// GetAccountPositions returns the venue-side positions.
func (c *Client) GetAccountPositions(ctx context.Context) ([]domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Position
	for _, p := range c.positions {
		out = append(out, *p)
	}
	return out, nil
}

// GetAccountBalances returns the account balance snapshot.
func (c *Client) GetAccountBalances(ctx context.Context) ([]domain.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Balance, 0, len(c.balances))
	for _, b := range c.balances {
		out = append(out, b)
	}
	return out, nil
}

// CancelCalls returns how many cancel attempts the venue has seen.
func (c *Client) CancelCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelCalls
}

// Fills returns all executed fills, oldest first.
func (c *Client) Fills() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Order, len(c.fills))
	copy(out, c.fills)
	return out
}

// Close wipes state.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.orders = make(map[string]*domain.Order)
	return nil
}
