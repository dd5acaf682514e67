// Package bot implements the control loop that ties MarketData, strategy
// evaluation, the risk gate, order lifecycle, and trade persistence into a
// single supervised run.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/order"
	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/dougdotcon/dydx-breakout-bot/internal/risk"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/dougdotcon/dydx-breakout-bot/internal/tradestore"
)

// State is the overall bot state machine, per spec §4.8.
type State string

const (
	StateInitialising  State = "initialising"
	StateRunning       State = "running"
	StateReconnecting  State = "reconnecting"
	StateCircuitBroken State = "circuit_broken"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
)

// ErrStartupCircuitBroken is returned by Run's start-up phase when replayed
// same-day PnL already exceeds the configured loss threshold (exit code 3
// in the CLI wrapper).
var ErrStartupCircuitBroken = errors.New("bot: circuit breaker tripped at start-up")

// Config holds the control-loop period and shutdown policy.
type Config struct {
	Instrument          string
	UpdateInterval      time.Duration
	ShutdownGracePeriod time.Duration
	// CloseOnShutdown, when true (the default), closes any open Position
	// at the current price with ExitShutdown on graceful shutdown. When
	// false, the Position is persisted to StatePath and left open at the
	// venue.
	CloseOnShutdown bool
	StatePath       string
}

// DefaultConfig returns spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		UpdateInterval:      30 * time.Second,
		ShutdownGracePeriod: 15 * time.Second,
		CloseOnShutdown:     true,
		StatePath:           "bot_state.json",
	}
}

// Bot is the top-level supervisor: no error from a component escapes the
// tick loop unhandled.
type Bot struct {
	cfg       Config
	venue     exchanges.VenueClient
	market    *marketdata.MarketData
	strategy  *strategy.BreakoutStrategy
	positions *position.Manager
	orders    *order.Manager
	risk      *risk.Manager
	trades    *tradestore.Store
	clock     clock.Clock
	log       *logger.Logger

	mu    sync.Mutex
	state State
}

// New wires an already-constructed component set into a Bot. Construction
// order (venue → marketdata → strategy → risk → positions → orders →
// tradestore) is the caller's responsibility, mirroring the CLI's setup
// sequence.
func New(cfg Config, venue exchanges.VenueClient, market *marketdata.MarketData, strat *strategy.BreakoutStrategy, positions *position.Manager, orders *order.Manager, riskMgr *risk.Manager, trades *tradestore.Store, clk clock.Clock) *Bot {
	return &Bot{
		cfg:       cfg,
		venue:     venue,
		market:    market,
		strategy:  strat,
		positions: positions,
		orders:    orders,
		risk:      riskMgr,
		trades:    trades,
		clock:     clk,
		log:       logger.Component("bot").Symbol(cfg.Instrument),
		state:     StateInitialising,
	}
}

// State reports the bot's current state-machine value.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	changed := b.state != s
	b.state = s
	b.mu.Unlock()
	if changed {
		b.log.Info("state transition", "state", string(s))
	}
}

// Run executes start-up (TradeStore replay, state rehydration, MarketData
// connect), then ticks until ctx is cancelled, then runs the shutdown
// sequence. It returns ErrStartupCircuitBroken if replayed same-day PnL
// already trips the breaker.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.startup(ctx); err != nil {
		return err
	}

	if err := b.market.Start(ctx); err != nil {
		return fmt.Errorf("bot: market data start-up failed: %w", err)
	}
	b.setState(StateRunning)

	ticker := time.NewTicker(b.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return b.shutdown()
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

// startup replays same-day trades into RiskState and rehydrates an
// open position from StatePath, per the §4.8 addendum.
func (b *Bot) startup(ctx context.Context) error {
	account, err := b.venue.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("bot: initial account read failed: %w", err)
	}
	b.risk.CaptureInitialEquity(account.EquityUSD)

	today := b.clock.TodayUTC()
	for _, t := range b.trades.LoadAll() {
		if sameUTCDate(t.ClosedAt, today) {
			b.risk.ReplayClosedTrade(t.PnLUSD)
		}
	}
	if b.risk.IsBreakerTripped() {
		return ErrStartupCircuitBroken
	}

	if err := b.rehydratePosition(ctx); err != nil {
		b.log.WithError(err).Warn("failed to rehydrate persisted position state")
	}

	return nil
}

func (b *Bot) rehydratePosition(ctx context.Context) error {
	saved, ok, err := loadState(b.cfg.StatePath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	// The narrowed VenueClient surface has no per-position query; a
	// successful account read is treated as confirmation the venue
	// connection is healthy enough to trust the persisted snapshot.
	if _, err := b.venue.GetAccount(ctx); err != nil {
		b.log.Warn("venue unreachable while rehydrating position, discarding bot_state.json")
		return removeState(b.cfg.StatePath)
	}

	if err := b.positions.Open(saved); err != nil {
		return err
	}
	b.log.Symbol(saved.Instrument).Info("rehydrated open position from bot_state.json")
	return removeState(b.cfg.StatePath)
}

// tick is the single iteration described in spec §4.8: exits are always
// checked before entries.
func (b *Bot) tick(ctx context.Context) {
	view := b.market.CurrentMarketView()

	if view.Instrument == "" {
		view.Instrument = b.cfg.Instrument
	}

	if account, err := b.venue.GetAccount(ctx); err == nil {
		b.risk.EvaluateDrawdown(account.EquityUSD)
	} else {
		b.log.WithError(err).Debug("account query failed this tick")
	}

	if b.risk.IsBreakerTripped() {
		b.setState(StateCircuitBroken)
	} else if b.market.ConnState() == marketdata.ConnStateReconnecting {
		b.setState(StateReconnecting)
	} else if s := b.State(); s == StateCircuitBroken || s == StateReconnecting {
		b.setState(StateRunning)
	}

	if pos, ok := b.positions.Current(); ok {
		if reason, hit := b.positions.CheckExit(view.LatestPrice); hit {
			if err := b.orders.Close(ctx, view.LatestPrice, reason); err != nil {
				b.log.WithError(err).Error("failed to close position on exit signal")
			}
		}
		_ = pos
		return
	}

	if b.risk.IsBreakerTripped() {
		return
	}

	sig := b.strategy.Evaluate(view)
	if sig.Kind != strategy.SignalEnterLong {
		return
	}

	req := order.OpenLongRequest{
		Instrument: view.Instrument,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		SizeUSD:    sig.SizeUSD,
	}
	if err := b.orders.OpenLong(ctx, req); err != nil {
		b.log.WithError(err).Info("open_long rejected or failed")
	}
}

// shutdown stops accepting new ticks, resolves any open position per
// CloseOnShutdown, and always flushes TradeStore.
func (b *Bot) shutdown() error {
	b.setState(StateStopping)
	defer b.setState(StateStopped)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), b.cfg.ShutdownGracePeriod)
	defer cancel()

	if pos, ok := b.positions.Current(); ok {
		if b.cfg.CloseOnShutdown {
			view := b.market.CurrentMarketView()
			if err := b.orders.Close(shutdownCtx, view.LatestPrice, position.ExitShutdown); err != nil {
				b.log.WithError(err).Error("failed to close position during shutdown")
			}
		} else if err := saveState(b.cfg.StatePath, pos); err != nil {
			b.log.WithError(err).Error("failed to persist open position before shutdown")
		}
	}

	if err := b.trades.Close(); err != nil {
		b.log.WithError(err).Error("failed to close trade store")
		return err
	}
	return nil
}

func sameUTCDate(t time.Time, today time.Time) bool {
	ty, tm, td := t.UTC().Date()
	ny, nm, nd := today.Date()
	return ty == ny && tm == nm && td == nd
}
