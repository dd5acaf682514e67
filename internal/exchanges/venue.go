package exchanges

import (
	"context"

	"github.com/shopspring/decimal"
)

// VenueClient is the narrow capability the trading core depends on: market
// data fetch, order placement, account query. Everything about how a
// concrete implementation reaches the venue — REST shapes, WebSocket
// framing, signing — lives behind this boundary.
type VenueClient interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// GetCandles returns up to limit most-recent candles for instrument at
	// timeframe, oldest first.
	GetCandles(ctx context.Context, instrument, timeframe string, limit int) ([]Candle, error)

	// SubscribeTrades delivers trade prints for instrument to onTrade until
	// ctx is cancelled or the stream drops, then returns. Reconnection is
	// the caller's responsibility.
	SubscribeTrades(ctx context.Context, instrument string, onTrade func(Trade)) error

	// GetAccount returns the current account snapshot.
	GetAccount(ctx context.Context) (AccountSnapshot, error)

	// PlaceMarketOrder submits a market order and blocks until it fills or
	// ctx is cancelled. clientOrderID is caller-generated for idempotent
	// retries.
	PlaceMarketOrder(ctx context.Context, instrument string, side OrderSide, sizeBase decimal.Decimal, clientOrderID string) (Fill, error)

	// CancelOrder is best-effort; the venue may have already filled or
	// expired the order.
	CancelOrder(ctx context.Context, clientOrderID string) error

	Name() string
}
