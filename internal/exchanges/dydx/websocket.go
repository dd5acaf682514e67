package dydx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// WebSocketClient handles the dYdX v4 indexer trade-stream WebSocket.
// Reconnection is the caller's responsibility (per the VenueClient
// contract): SubscribeTrades dials once, streams until the connection
// drops or ctx is cancelled, and returns. It does not retry internally.
type WebSocketClient struct {
	url string
	mu  sync.Mutex
}

// NewWebSocketClient creates a client for the given indexer WebSocket URL.
func NewWebSocketClient(url string) *WebSocketClient {
	return &WebSocketClient{url: url}
}

// SubscribeTrades dials the trade-stream socket for instrument and invokes
// onTrade for every print, until the connection fails or ctx is done. It
// returns a non-nil error in every case except a clean ctx cancellation.
func (ws *WebSocketClient) SubscribeTrades(ctx context.Context, instrument string, onTrade func(exchanges.Trade)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"type":    "subscribe",
		"channel": "v4_trades",
		"id":      instrument,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()
	defer close(closed)

	log := logger.Exchange("dydx").Symbol(instrument)
	log.Debug("subscribed to trade stream")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read websocket: %w", err)
		}
		processTradeMessage(message, instrument, onTrade)
	}
}

func processTradeMessage(message []byte, instrument string, onTrade func(exchanges.Trade)) {
	var msg struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		ID      string `json:"id"`
		Contents struct {
			Trades []struct {
				Price     string `json:"price"`
				Size      string `json:"size"`
				Side      string `json:"side"`
				CreatedAt string `json:"createdAt"`
			} `json:"trades"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != "channel_data" || msg.Channel != "v4_trades" || msg.ID != instrument {
		return
	}
	for _, t := range msg.Contents.Trades {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(t.Size)
		if err != nil {
			continue
		}
		at := time.Now()
		if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			at = ts
		}
		onTrade(exchanges.Trade{Symbol: instrument, Price: price, Size: size, At: at})
	}
}
