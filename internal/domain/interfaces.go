package domain

import "context"

// ExchangeClient is the capability set every venue implementation satisfies.
// Implementations must never fail for "no credentials" or "trading disabled":
// they return an order with status REJECTED and a descriptive reason instead,
// so read-only/monitoring deployments keep working.
type ExchangeClient interface {
	// Venue returns the venue name this client trades on.
	Venue() string

	// Connect establishes the venue session.
	Connect(ctx context.Context) error

	// CurrentPrice returns the current best bid/offer for a symbol.
	CurrentPrice(ctx context.Context, symbol string) (Quote, error)

	// GetOrderBook returns order book depth for a symbol.
	GetOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)

	// PlaceOpenOrder submits an order that opens or increases a position.
	PlaceOpenOrder(ctx context.Context, req OrderRequest) OrderResult

	// PlaceCloseOrder submits an order that reduces or closes a position.
	PlaceCloseOrder(ctx context.Context, req OrderRequest) OrderResult

	// CancelOrder cancels an order. Returns false when the order could not
	// be cancelled because it already filled.
	CancelOrder(ctx context.Context, orderID, symbol string) (bool, error)

	// GetActiveOrders returns the open orders for a symbol.
	GetActiveOrders(ctx context.Context, symbol string) ([]Order, error)

	// GetAccountPositions returns the venue-side view of open positions.
	GetAccountPositions(ctx context.Context) ([]Position, error)

	// GetAccountBalances returns the account balance snapshot.
	GetAccountBalances(ctx context.Context) ([]Balance, error)

	// Close cleans up resources and wipes secrets.
	Close() error
}
