package exchanges

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PnLSink is an optional capability a VenueClient may implement so
// RiskManager-facing equity stays realistic across a simulated run.
// exchanges.SimVenue implements it; a live VenueClient does not need to —
// the venue itself is the source of truth for equity.
type PnLSink interface {
	ApplyFill(side OrderSide, price, size decimal.Decimal)
}

// SimVenue is a deterministic in-memory VenueClient. It honours an
// initial-equity value and tracks simulated realized PnL across
// open/close legs so the risk gate sees realistic numbers in a
// simulated run, per the "simulation mode should track PnL, not
// fabricate a flat AccountSnapshot" design decision.
type SimVenue struct {
	mu sync.Mutex

	name      string
	connected bool

	equity         decimal.Decimal
	freeCollateral decimal.Decimal
	maxLeverage    decimal.Decimal

	// openEntryPrice/openSize describe the single outstanding leg this
	// venue has seen a buy fill for but no matching sell yet. Zero size
	// means flat.
	openEntryPrice decimal.Decimal
	openSize       decimal.Decimal

	candles   map[string][]Candle
	trades    chan Trade
	lastPrice map[string]decimal.Decimal

	fillDelay time.Duration
}

// NewSimVenue returns a SimVenue seeded with initialEquity.
func NewSimVenue(name string, initialEquity decimal.Decimal) *SimVenue {
	return &SimVenue{
		name:           name,
		connected:      false,
		equity:         initialEquity,
		freeCollateral: initialEquity,
		maxLeverage:    decimal.NewFromInt(5),
		candles:        make(map[string][]Candle),
		trades:         make(chan Trade, 256),
		lastPrice:      make(map[string]decimal.Decimal),
	}
}

// SeedCandles registers canned candles returned by GetCandles for
// instrument+timeframe, used by tests.
func (s *SimVenue) SeedCandles(instrument, timeframe string, candles []Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[instrument+"|"+timeframe] = candles
}

// PushTrade feeds a synthetic trade print into the subscription stream.
// Blocks if the internal buffer is full.
func (s *SimVenue) PushTrade(t Trade) {
	s.mu.Lock()
	s.lastPrice[t.Symbol] = t.Price
	s.mu.Unlock()
	s.trades <- t
}

func (s *SimVenue) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *SimVenue) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *SimVenue) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SimVenue) GetCandles(ctx context.Context, instrument, timeframe string, limit int) ([]Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seeded := s.candles[instrument+"|"+timeframe]
	if len(seeded) <= limit {
		return append([]Candle(nil), seeded...), nil
	}
	return append([]Candle(nil), seeded[len(seeded)-limit:]...), nil
}

func (s *SimVenue) SubscribeTrades(ctx context.Context, instrument string, onTrade func(Trade)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-s.trades:
			if !ok {
				return nil
			}
			if t.Symbol == instrument {
				onTrade(t)
			}
		}
	}
}

func (s *SimVenue) GetAccount(ctx context.Context) (AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccountSnapshot{
		EquityUSD:         s.equity,
		FreeCollateralUSD: s.freeCollateral,
	}, nil
}

func (s *SimVenue) PlaceMarketOrder(ctx context.Context, instrument string, side OrderSide, sizeBase decimal.Decimal, clientOrderID string) (Fill, error) {
	if sizeBase.LessThanOrEqual(decimal.Zero) {
		return Fill{}, fmt.Errorf("sim venue: non-positive size %s", sizeBase)
	}
	if s.fillDelay > 0 {
		select {
		case <-time.After(s.fillDelay):
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		}
	}
	price := s.lastTradePriceOrZero(instrument)
	s.ApplyFill(side, price, sizeBase)
	return Fill{ClientOrderID: clientOrderID, FilledPrice: price, FilledSize: sizeBase}, nil
}

func (s *SimVenue) lastTradePriceOrZero(instrument string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.lastPrice[instrument]; ok {
		return p
	}
	return decimal.Zero
}

// ApplyFill updates simulated equity for a completed leg. A Buy opens the
// tracked leg; a Sell against an open leg realizes PnL into equity and
// clears it. Implements PnLSink so OrderManager's own fill synthesis (used
// when an explicit fill price, e.g. the strategy's entry_price, must be
// honoured rather than the venue's mark) still feeds the same accounting.
func (s *SimVenue) ApplyFill(side OrderSide, price, size decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch side {
	case OrderSideBuy:
		s.openEntryPrice = price
		s.openSize = size
		locked := price.Mul(size).Div(s.maxLeverage)
		s.freeCollateral = s.equity.Sub(locked)
	case OrderSideSell:
		if s.openSize.GreaterThan(decimal.Zero) {
			realized := price.Sub(s.openEntryPrice).Mul(s.openSize)
			s.equity = s.equity.Add(realized)
		}
		s.openEntryPrice = decimal.Zero
		s.openSize = decimal.Zero
		s.freeCollateral = s.equity
	}
}

func (s *SimVenue) CancelOrder(ctx context.Context, clientOrderID string) error {
	return nil
}

func (s *SimVenue) Name() string { return s.name }
