// Package dydx implements exchanges.VenueClient against the dYdX v4
// testnet indexer: REST candle/account queries and a trade-stream
// WebSocket subscription, plus best-effort signed order submission.
package dydx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/shopspring/decimal"
)

const (
	dydxAPIURL = "https://indexer.v4testnet.dydx.exchange"
	dydxWSURL  = "wss://indexer.v4testnet.dydx.exchange/v4/ws"
)

// Client implements exchanges.VenueClient for dYdX v4.
type Client struct {
	mnemonic string
	baseURL  string
	wsURL    string

	mu        sync.RWMutex
	connected bool

	wallet     *Wallet
	signer     *Signer
	httpClient *HTTPClient
	ws         *WebSocketClient
}

// NewClient creates a dYdX client whose wallet is derived from mnemonic for
// subAccountNumber, against the given REST/WebSocket base URLs. Pass empty
// baseURL/wsURL to use the default testnet indexer.
func NewClient(mnemonic string, subAccountNumber int, baseURL, wsURL string) (*Client, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	wallet, err := NewWalletFromMnemonic(mnemonic, subAccountNumber)
	if err != nil {
		return nil, fmt.Errorf("derive wallet: %w", err)
	}
	if baseURL == "" {
		baseURL = dydxAPIURL
	}
	if wsURL == "" {
		wsURL = dydxWSURL
	}
	return &Client{
		mnemonic:   mnemonic,
		baseURL:    baseURL,
		wsURL:      wsURL,
		wallet:     wallet,
		signer:     NewSigner(wallet),
		httpClient: NewHTTPClient(baseURL, "", ""),
		ws:         NewWebSocketClient(wsURL),
	}, nil
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetCandles fetches up to limit candles at timeframe for instrument.
func (c *Client) GetCandles(ctx context.Context, instrument, timeframe string, limit int) ([]exchanges.Candle, error) {
	resolution, err := toDydxResolution(timeframe)
	if err != nil {
		return nil, err
	}
	var resp CandlesResponse
	path := fmt.Sprintf("/v4/candles/perpetualMarkets/%s?resolution=%s&limit=%d", instrument, resolution, limit)
	if err := c.httpClient.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}

	candles := make([]exchanges.Candle, 0, len(resp.Candles))
	for i := range resp.Candles {
		candles = append(candles, exchanges.Candle{
			Symbol:    instrument,
			Timeframe: timeframe,
			StartTime: resp.Candles[i].StartedAt,
			Open:      resp.Candles[i].Open,
			High:      resp.Candles[i].High,
			Low:       resp.Candles[i].Low,
			Close:     resp.Candles[i].Close,
			Volume:    resp.Candles[i].BaseTokenVolume,
		})
	}
	// dYdX returns newest-first; the store wants oldest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// SubscribeTrades blocks delivering trade prints until the stream drops or
// ctx is cancelled. The caller (MarketData) is responsible for reconnection
// with backoff, per the VenueClient contract.
func (c *Client) SubscribeTrades(ctx context.Context, instrument string, onTrade func(exchanges.Trade)) error {
	return c.ws.SubscribeTrades(ctx, instrument, onTrade)
}

// GetAccount returns equity and free collateral for the client's subaccount.
func (c *Client) GetAccount(ctx context.Context) (exchanges.AccountSnapshot, error) {
	var resp AccountResponse
	path := fmt.Sprintf("/v4/addresses/%s", c.wallet.Address)
	if err := c.httpClient.get(ctx, path, &resp); err != nil {
		return exchanges.AccountSnapshot{}, fmt.Errorf("get account: %w", err)
	}
	for _, sub := range resp.SubAccounts {
		if sub.SubAccountNumber == c.wallet.SubAccountNumber {
			telemetry.RecordBalanceUpdate("USDC", sub.Equity.InexactFloat64())
			return exchanges.AccountSnapshot{
				EquityUSD:         sub.Equity,
				FreeCollateralUSD: sub.FreeCollateral,
			}, nil
		}
	}
	return exchanges.AccountSnapshot{}, fmt.Errorf("subaccount %d not found for %s", c.wallet.SubAccountNumber, c.wallet.Address)
}

// PlaceMarketOrder submits a signed market order and polls for a fill.
//
// The signer in this package authenticates requests with an HMAC over the
// wallet's derived key, not a Cosmos-SDK protobuf transaction signature.
// That is sufficient to authenticate against the indexer's order-submission
// endpoint in the simplified form this client targets, but it is not the
// on-chain transaction dYdX v4 validators ultimately require for order
// matching. Treat this path as best-effort testnet submission, not a
// production-grade chain client.
func (c *Client) PlaceMarketOrder(ctx context.Context, instrument string, side exchanges.OrderSide, sizeBase decimal.Decimal, clientOrderID string) (exchanges.Fill, error) {
	req := &OrderRequest{
		Market:      instrument,
		Side:        toDydxSide(side),
		Type:        "MARKET",
		TimeInForce: "IOC",
		Size:        sizeBase,
		ClientID:    clientOrderID,
	}

	headers, err := c.signer.SignOrderPlacement(req)
	if err != nil {
		return exchanges.Fill{}, fmt.Errorf("sign order: %w", err)
	}

	var resp OrderResponse
	if err := c.httpClient.postSigned(ctx, "/v4/orders", req, &resp, headers); err != nil {
		return exchanges.Fill{}, fmt.Errorf("place order: %w", err)
	}

	fill, err := c.awaitFill(ctx, resp.Order.ID, clientOrderID)
	if err != nil {
		telemetry.RecordError("order_fill_timeout")
		return exchanges.Fill{}, err
	}
	telemetry.RecordOrderPlaced(instrument, toDydxSide(side))
	return fill, nil
}

// awaitFill polls the order until it reaches a terminal filled state or ctx
// expires. The indexer does not push order-status events over the trade
// channel used by MarketData, so polling is the simplest correct approach
// at this scope.
func (c *Client) awaitFill(ctx context.Context, orderID, clientOrderID string) (exchanges.Fill, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return exchanges.Fill{}, exchanges.ErrOrderTimeout
		case <-ticker.C:
			var resp OrderResponse
			path := fmt.Sprintf("/v4/orders/%s", orderID)
			if err := c.httpClient.get(ctx, path, &resp); err != nil {
				continue
			}
			if resp.Order.Status == "FILLED" {
				filled := resp.Order.Size.Sub(resp.Order.RemainingSize)
				return exchanges.Fill{
					ClientOrderID: clientOrderID,
					FilledPrice:   resp.Order.Price,
					FilledSize:    filled,
				}, nil
			}
		}
	}
}

// CancelOrder is best-effort: the order may already have filled or expired.
func (c *Client) CancelOrder(ctx context.Context, clientOrderID string) error {
	path := fmt.Sprintf("/v4/orders/%s", clientOrderID)
	if err := c.httpClient.delete(ctx, path, nil); err != nil {
		logger.Exchange("dydx").WithError(err).Warn("cancel order failed", "client_order_id", clientOrderID)
		return err
	}
	return nil
}

func (c *Client) Name() string { return "dYdX" }

// WalletAddress returns the derived wallet address, used by the setup and
// status CLI verbs.
func (c *Client) WalletAddress() string { return c.wallet.Address }

func toDydxSide(side exchanges.OrderSide) string {
	if side == exchanges.OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

func toDydxResolution(timeframe string) (string, error) {
	switch timeframe {
	case "1m":
		return "1MIN", nil
	case "5m":
		return "5MINS", nil
	case "15m":
		return "15MINS", nil
	case "30m":
		return "30MINS", nil
	case "1h":
		return "1HOUR", nil
	case "4h":
		return "4HOURS", nil
	case "1d":
		return "1DAY", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", timeframe)
	}
}
