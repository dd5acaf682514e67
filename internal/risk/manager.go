// Package risk implements the pre-trade gate and PnL/drawdown circuit
// breaker that stand between a candidate entry and OrderManager.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/shopspring/decimal"
)

// DenialReason is a distinct, typed reason the pre-trade gate rejected a
// candidate entry. The gate is all-or-nothing: the first failing check
// wins.
type DenialReason string

const (
	DeniedPositionTooLarge   DenialReason = "position_exceeds_max_size"
	DeniedInsufficientMargin DenialReason = "insufficient_free_collateral"
	DeniedCircuitBroken      DenialReason = "circuit_breaker_tripped"
)

// DenialError reports why allow_entry rejected a candidate.
type DenialError struct {
	Reason DenialReason
}

func (e *DenialError) Error() string { return fmt.Sprintf("risk: denied (%s)", e.Reason) }

// Config holds the pre-trade gate and circuit-breaker thresholds.
type Config struct {
	MaxPositionSizeUSD decimal.Decimal
	MaxLeverage        decimal.Decimal // default 5
	MaxDailyLossUSD    decimal.Decimal
	MaxDrawdownPct     decimal.Decimal // e.g. 0.1 for 10%
}

// DefaultConfig returns conservative testnet-appropriate defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositionSizeUSD: decimal.NewFromInt(1000),
		MaxLeverage:        decimal.NewFromInt(5),
		MaxDailyLossUSD:    decimal.NewFromInt(100),
		MaxDrawdownPct:     decimal.NewFromFloat(0.1),
	}
}

// Manager implements the pre-trade gate and the PnL/drawdown circuit
// breaker. It takes no dependency on order types: callers pass plain
// decimals, so OrderManager can depend on risk without a cycle.
type Manager struct {
	cfg   Config
	clock clock.Clock
	log   *logger.Logger

	mu             sync.Mutex
	initialEquity  decimal.Decimal
	equityKnown    bool
	dailyPnL       decimal.Decimal
	lastResetDay   time.Time
	breakerTripped bool
}

// New constructs a Manager.
func New(cfg Config, clk clock.Clock) *Manager {
	return &Manager{
		cfg:          cfg,
		clock:        clk,
		log:          logger.Component("risk"),
		lastResetDay: clk.TodayUTC(),
	}
}

// CaptureInitialEquity records the first successful equity read, per
// RiskState's "initial_equity is captured on first successful equity read".
// Subsequent calls are no-ops.
func (m *Manager) CaptureInitialEquity(equityUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.equityKnown {
		return
	}
	m.initialEquity = equityUSD
	m.equityKnown = true
}

// ReplayClosedTrade feeds a same-day historical trade's PnL into daily_pnl,
// used on start-up to rehydrate RiskState from TradeStore.
func (m *Manager) ReplayClosedTrade(pnlUSD decimal.Decimal) {
	m.UpdateDailyPnL(pnlUSD)
}

// AllowEntry runs the three-check pre-trade gate against a proposed entry
// of sizeUSD, given the account's current free collateral. Checks run in
// order; the first failure is returned.
func (m *Manager) AllowEntry(sizeUSD, freeCollateralUSD decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeResetForNewDayLocked()

	if sizeUSD.GreaterThan(m.cfg.MaxPositionSizeUSD) {
		telemetry.RecordRiskDenial(string(DeniedPositionTooLarge))
		return &DenialError{Reason: DeniedPositionTooLarge}
	}

	requiredCollateral := sizeUSD.Div(m.cfg.MaxLeverage)
	if freeCollateralUSD.LessThan(requiredCollateral) {
		telemetry.RecordRiskDenial(string(DeniedInsufficientMargin))
		return &DenialError{Reason: DeniedInsufficientMargin}
	}

	if m.breakerTripped {
		telemetry.RecordRiskDenial(string(DeniedCircuitBroken))
		return &DenialError{Reason: DeniedCircuitBroken}
	}

	return nil
}

// UpdateDailyPnL is called by OrderManager on every closed trade. It folds
// delta into daily_pnl and re-evaluates the circuit breaker's daily-loss
// leg. Open PnL is deliberately excluded.
func (m *Manager) UpdateDailyPnL(delta decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetForNewDayLocked()
	m.dailyPnL = m.dailyPnL.Add(delta)
	if m.dailyPnL.Abs().GreaterThanOrEqual(m.cfg.MaxDailyLossUSD) {
		m.tripLocked()
	}
}

// EvaluateDrawdown re-checks the circuit breaker's drawdown leg against the
// latest equity snapshot. The Bot calls this once per tick using a freshly
// queried AccountSnapshot.
func (m *Manager) EvaluateDrawdown(currentEquityUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeResetForNewDayLocked()

	if m.dailyPnL.Abs().GreaterThanOrEqual(m.cfg.MaxDailyLossUSD) {
		m.tripLocked()
		return
	}
	if !m.equityKnown || !m.initialEquity.GreaterThan(decimal.Zero) {
		return
	}

	drawdown := m.initialEquity.Sub(currentEquityUSD).Div(m.initialEquity)
	if drawdown.GreaterThanOrEqual(m.cfg.MaxDrawdownPct) {
		m.tripLocked()
		return
	}
	if m.breakerTripped {
		m.untripLocked()
	}
}

func (m *Manager) tripLocked() {
	if !m.breakerTripped {
		m.breakerTripped = true
		telemetry.RecordCircuitBreakerTrip()
		m.log.Warn("circuit breaker tripped", "daily_pnl", m.dailyPnL.String())
	}
}

func (m *Manager) untripLocked() {
	m.breakerTripped = false
	m.log.Info("circuit breaker recovered")
}

// maybeResetForNewDayLocked resets daily_pnl at UTC midnight and un-trips
// the breaker if drawdown has recovered, per spec §4.4.
func (m *Manager) maybeResetForNewDayLocked() {
	today := m.clock.TodayUTC()
	if today.Equal(m.lastResetDay) {
		return
	}
	m.lastResetDay = today
	m.dailyPnL = decimal.Zero
	if m.breakerTripped {
		m.untripLocked()
	}
}

// IsBreakerTripped reports whether new entries are currently blocked.
func (m *Manager) IsBreakerTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakerTripped
}

// DailyPnL returns the current day's accumulated closed-trade PnL.
func (m *Manager) DailyPnL() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}
