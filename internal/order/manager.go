package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/circuitbreaker"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	ordererrors "github.com/dougdotcon/dydx-breakout-bot/internal/order/errors"
	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/dougdotcon/dydx-breakout-bot/internal/risk"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// lotSizeDecimals bounds size_base precision. dYdX v4 markets publish a
// per-market stepSize; lacking a live markets feed this is a conservative
// stand-in applied when OpenLong converts size_usd to size_base.
const lotSizeDecimals = 6

const defaultFillTimeout = 10 * time.Second

// ErrFillTimeout is returned by OpenLong/Close when a live order does not
// fill within the configured timeout. No Position is created on an open
// timeout.
var ErrFillTimeout = errors.New("order: fill timed out")

// TradeStore is the append-only sink OrderManager hands closed trades to.
// Decoupled to an interface so order never imports tradestore directly.
type TradeStore interface {
	Append(trade position.Trade) error
}

// Manager implements the open/close lifecycle described for OrderManager:
// pre-trade risk gate, fill acquisition (synthesised in simulation, venue
// round-trip in live), and handoff to PositionManager and TradeStore.
type Manager struct {
	mode         Mode
	venue        exchanges.VenueClient
	positions    *position.Manager
	risk         *risk.Manager
	trades       TradeStore
	log          *logger.Logger
	fillTimeout  time.Duration
	accountQuery *circuitbreaker.CircuitBreaker

	mu            sync.RWMutex
	onOrderUpdate func(*OrderUpdate)
	onError       func(error)
}

// NewManager constructs an OrderManager. venue may be a live VenueClient or
// a SimVenue; in ModeSimulation it is still queried for account state but
// never asked to place an order. The account query ahead of every OpenLong
// runs behind its own circuit breaker, distinct from MarketData's, so a
// venue outage trips new entries without touching the price feed. Close
// does not go through this breaker.
func NewManager(mode Mode, venue exchanges.VenueClient, positions *position.Manager, riskMgr *risk.Manager, trades TradeStore) *Manager {
	return &Manager{
		mode:         mode,
		venue:        venue,
		positions:    positions,
		risk:         riskMgr,
		trades:       trades,
		log:          logger.Component("order"),
		fillTimeout:  defaultFillTimeout,
		accountQuery: circuitbreaker.New("order-account-query", nil),
	}
}

// SetOrderUpdateCallback registers a callback invoked on open/close/failure.
func (m *Manager) SetOrderUpdateCallback(cb func(*OrderUpdate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOrderUpdate = cb
}

// SetErrorCallback registers a callback invoked on any operational error.
func (m *Manager) SetErrorCallback(cb func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = cb
}

func newClientOrderID() string {
	return ulid.Make().String()
}

// OpenLong runs the pre-trade gate, acquires a fill, and opens a Position.
// On risk denial or fill failure, no Position is created.
func (m *Manager) OpenLong(ctx context.Context, req OpenLongRequest) error {
	var account exchanges.AccountSnapshot
	err := m.accountQuery.Execute(ctx, func() error {
		var queryErr error
		account, queryErr = m.venue.GetAccount(ctx)
		return queryErr
	})
	if err != nil {
		return m.fail(ordererrors.New(ordererrors.OperationOpenLong, req.Instrument, err))
	}

	if err := m.risk.AllowEntry(req.SizeUSD, account.FreeCollateralUSD); err != nil {
		m.log.Symbol(req.Instrument).Info("entry denied by risk manager", "reason", err)
		return err
	}

	sizeBase := req.SizeUSD.Div(req.EntryPrice).Truncate(lotSizeDecimals)
	if sizeBase.LessThanOrEqual(decimal.Zero) {
		return m.fail(ordererrors.New(ordererrors.OperationOpenLong, req.Instrument,
			errors.New("size_usd too small to clear lot rounding")))
	}

	fillPrice := req.EntryPrice
	clientOrderID := newClientOrderID()

	if m.mode == ModeLive {
		callCtx, cancel := context.WithTimeout(ctx, m.fillTimeout)
		fill, err := m.venue.PlaceMarketOrder(callCtx, req.Instrument, exchanges.OrderSideBuy, sizeBase, clientOrderID)
		cancel()
		if err != nil {
			telemetry.RecordError("order_open_fill_timeout")
			return m.fail(ordererrors.New(ordererrors.OperationOpenLong, req.Instrument, ErrFillTimeout))
		}
		fillPrice = fill.FilledPrice
	} else if sink, ok := m.venue.(exchanges.PnLSink); ok {
		sink.ApplyFill(exchanges.OrderSideBuy, fillPrice, sizeBase)
	}

	err = m.positions.Open(position.Position{
		Instrument: req.Instrument,
		EntryPrice: fillPrice,
		SizeBase:   sizeBase,
		SizeUSD:    req.SizeUSD,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   time.Now().UTC(),
	})
	if err != nil {
		return m.fail(ordererrors.New(ordererrors.OperationOpenLong, req.Instrument, err))
	}

	telemetry.RecordOrderPlaced(req.Instrument, string(exchanges.OrderSideBuy))
	m.emitUpdate(&OrderUpdate{Event: OrderEventOpened, Instrument: req.Instrument, Timestamp: time.Now().UTC()})
	m.log.Symbol(req.Instrument).Trade(map[string]any{"event": "opened long", "entry_price": fillPrice.String(), "size_base": sizeBase.String()})
	return nil
}

// Close acquires an exit fill for the held Position at triggerPrice, closes
// it, appends the resulting Trade, and folds its PnL into RiskManager.
func (m *Manager) Close(ctx context.Context, triggerPrice decimal.Decimal, reason position.ExitReason) error {
	pos, ok := m.positions.Current()
	if !ok {
		return m.fail(ordererrors.New(ordererrors.OperationClose, "", position.ErrNoPosition))
	}

	fillPrice := triggerPrice
	clientOrderID := newClientOrderID()

	if m.mode == ModeLive {
		callCtx, cancel := context.WithTimeout(ctx, m.fillTimeout)
		fill, err := m.venue.PlaceMarketOrder(callCtx, pos.Instrument, exchanges.OrderSideSell, pos.SizeBase, clientOrderID)
		cancel()
		if err != nil {
			telemetry.RecordError("order_close_fill_timeout")
			return m.fail(ordererrors.New(ordererrors.OperationClose, pos.Instrument, ErrFillTimeout))
		}
		fillPrice = fill.FilledPrice
	} else if sink, ok := m.venue.(exchanges.PnLSink); ok {
		sink.ApplyFill(exchanges.OrderSideSell, fillPrice, pos.SizeBase)
	}

	trade, err := m.positions.Close(fillPrice, reason, time.Now().UTC())
	if err != nil {
		return m.fail(ordererrors.New(ordererrors.OperationClose, pos.Instrument, err))
	}

	// Financial truth lives on the venue. A persistence failure here does
	// not reopen the position; it is logged and the metrics stay in
	// memory until a later append catches up.
	if err := m.trades.Append(trade); err != nil {
		telemetry.RecordError("tradestore_append_failed")
		m.log.WithError(err).Error("failed to persist closed trade")
	}

	m.risk.UpdateDailyPnL(trade.PnLUSD)

	m.emitUpdate(&OrderUpdate{Event: OrderEventClosed, Instrument: pos.Instrument, Timestamp: time.Now().UTC()})
	m.log.Symbol(pos.Instrument).Trade(map[string]any{"event": "closed position", "exit_reason": string(reason), "pnl_usd": trade.PnLUSD.String()})
	return nil
}

func (m *Manager) fail(err error) error {
	m.emitUpdate(&OrderUpdate{Event: OrderEventFailed, Timestamp: time.Now().UTC(), Err: err})
	m.emitError(err)
	return err
}

func (m *Manager) emitUpdate(update *OrderUpdate) {
	m.mu.RLock()
	cb := m.onOrderUpdate
	m.mu.RUnlock()
	if cb != nil {
		safeInvoke(func() { cb(update) })
	}
}

func (m *Manager) emitError(err error) {
	m.mu.RLock()
	cb := m.onError
	m.mu.RUnlock()
	if cb != nil {
		safeInvoke(func() { cb(err) })
	}
}

func safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.RecordCallbackPanic()
		}
	}()
	fn()
}
