package backtesting

import (
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/shopspring/decimal"
)

// HistoricalData is a candle series for one instrument, oldest first.
type HistoricalData struct {
	Symbol  string
	Candles []exchanges.Candle
}

// Trade is a closed backtest position, long-only per BreakoutStrategy.
type Trade struct {
	ID         string
	Symbol     string
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	SizeBase   decimal.Decimal
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        decimal.Decimal
	PnLPercent decimal.Decimal
	Commission decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	ExitReason string // "stop_loss", "take_profit", "end_of_data"
}

// openPosition is the engine's in-flight long.
type openPosition struct {
	Symbol     string
	EntryPrice decimal.Decimal
	SizeBase   decimal.Decimal
	EntryTime  time.Time
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

// BacktestConfig parameterises one Engine run: capital, costs, and the same
// breakout-window sizing the live bot's MarketData uses.
type BacktestConfig struct {
	InitialCapital    decimal.Decimal
	CommissionRate    decimal.Decimal // e.g. 0.001 for 0.1%
	Slippage          decimal.Decimal // e.g. 0.0005 for 0.05%
	ResistancePeriods int
	VolumeLookback    int
}

// DefaultBacktestConfig mirrors config.Default()'s breakout-window sizing.
func DefaultBacktestConfig() *BacktestConfig {
	return &BacktestConfig{
		InitialCapital:    decimal.NewFromFloat(10000),
		CommissionRate:    decimal.NewFromFloat(0.001),
		Slippage:          decimal.NewFromFloat(0.0005),
		ResistancePeriods: 24,
		VolumeLookback:    24,
	}
}

// PerformanceMetrics summarises one Engine.Run.
type PerformanceMetrics struct {
	TotalReturn      decimal.Decimal
	TotalReturnPct   decimal.Decimal
	AnnualizedReturn decimal.Decimal

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal

	TotalProfit      decimal.Decimal
	TotalLoss        decimal.Decimal
	AverageProfitWin decimal.Decimal
	AverageLossLose  decimal.Decimal
	LargestWin       decimal.Decimal
	LargestLoss      decimal.Decimal
	ProfitFactor     decimal.Decimal

	MaxDrawdown    decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	SharpeRatio    decimal.Decimal

	AvgTradeDuration time.Duration
	TotalDuration    time.Duration

	// VWAP and ClosePriceSMA are diagnostic context for the run, not used
	// by the strategy itself: the volume-weighted average price and the
	// trailing simple moving average of closes over the whole series.
	VWAP          decimal.Decimal
	ClosePriceSMA decimal.Decimal

	Trades      []Trade
	EquityCurve []EquityPoint
}

// EquityPoint is one sample of the running equity curve.
type EquityPoint struct {
	Time   time.Time
	Equity decimal.Decimal
}
