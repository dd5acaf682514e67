package exchanges

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Common errors.
var (
	ErrNotConnected     = errors.New("venue not connected")
	ErrOrderTimeout     = errors.New("order fill timed out")
	ErrPositionNotFound = errors.New("position not found at venue")
)

// Candle is a closed or currently-open OHLCV bar for one instrument.
type Candle struct {
	Symbol    string
	Timeframe string
	StartTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Trade is a single print from the venue's trade stream.
type Trade struct {
	Symbol string
	Price  decimal.Decimal
	Size   decimal.Decimal
	At     time.Time
}

// AccountSnapshot is the venue's account state as of the last query.
type AccountSnapshot struct {
	EquityUSD         decimal.Decimal
	FreeCollateralUSD decimal.Decimal
}

// Fill is the result of a market order that has reached a terminal state.
type Fill struct {
	ClientOrderID string
	FilledPrice   decimal.Decimal
	FilledSize    decimal.Decimal
}
