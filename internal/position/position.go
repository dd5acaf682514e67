// Package position tracks the single open long a Bot instance may hold.
package position

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason distinguishes why a Position was closed.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitManualClose ExitReason = "manual_close"
	ExitShutdown    ExitReason = "shutdown"
)

// ErrAlreadyOpen is returned by Open when a Position already exists.
var ErrAlreadyOpen = errors.New("position: already open")

// ErrNoPosition is returned by Close/CheckExit-adjacent calls when none is held.
var ErrNoPosition = errors.New("position: none open")

// Position is an open long. Between Open and Close it is never mutated,
// per the PositionManager invariant.
type Position struct {
	Instrument string
	EntryPrice decimal.Decimal
	SizeBase   decimal.Decimal
	SizeUSD    decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	OpenedAt   time.Time
}

// Trade is a closed Position record, immutable once written.
type Trade struct {
	Instrument string
	EntryPrice decimal.Decimal
	SizeBase   decimal.Decimal
	SizeUSD    decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	OpenedAt   time.Time
	ExitPrice  decimal.Decimal
	ClosedAt   time.Time
	ExitReason ExitReason
	PnLUSD     decimal.Decimal
}

// Manager holds at most one Position for a Bot instance.
type Manager struct {
	mu  sync.Mutex
	pos *Position
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Open sets the held Position. Precondition: no Position is currently held.
func (m *Manager) Open(p Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos != nil {
		return ErrAlreadyOpen
	}
	cp := p
	m.pos = &cp
	return nil
}

// Current returns a read-only copy of the held Position, if any.
func (m *Manager) Current() (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return Position{}, false
	}
	return *m.pos, true
}

// CheckExit reports the exit reason triggered by price, if any. StopLoss is
// checked before TakeProfit so a price that happens to satisfy both (a
// degenerate configuration) exits as a loss, not a win.
func (m *Manager) CheckExit(price decimal.Decimal) (ExitReason, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return "", false
	}
	if price.LessThanOrEqual(m.pos.StopLoss) {
		return ExitStopLoss, true
	}
	if price.GreaterThanOrEqual(m.pos.TakeProfit) {
		return ExitTakeProfit, true
	}
	return "", false
}

// Close computes the Trade for the held Position at the given exit price
// and reason, then clears the field. Precondition: a Position is held.
func (m *Manager) Close(price decimal.Decimal, reason ExitReason, at time.Time) (Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return Trade{}, ErrNoPosition
	}
	p := *m.pos
	pnl := price.Sub(p.EntryPrice).Mul(p.SizeBase)
	trade := Trade{
		Instrument: p.Instrument,
		EntryPrice: p.EntryPrice,
		SizeBase:   p.SizeBase,
		SizeUSD:    p.SizeUSD,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		OpenedAt:   p.OpenedAt,
		ExitPrice:  price,
		ClosedAt:   at,
		ExitReason: reason,
		PnLUSD:     pnl,
	}
	m.pos = nil
	return trade, nil
}
