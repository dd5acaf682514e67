package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects whether a Manager invokes a VenueClient for fills or
// synthesises them locally. Behaviour is identical from the caller's point
// of view.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// OpenLongRequest is the candidate entry handed to Manager.OpenLong,
// assembled by the Bot from a strategy.Signal. Decoupled from the
// strategy package's types so order never imports strategy.
type OpenLongRequest struct {
	Instrument string
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	SizeUSD    decimal.Decimal
}

// OrderEvent identifies a lifecycle transition emitted to subscribers.
type OrderEvent string

const (
	OrderEventOpened OrderEvent = "opened"
	OrderEventClosed OrderEvent = "closed"
	OrderEventFailed OrderEvent = "failed"
)

// OrderUpdate is delivered to the onOrderUpdate callback.
type OrderUpdate struct {
	Event      OrderEvent
	Instrument string
	Timestamp  time.Time
	Err        error
}
