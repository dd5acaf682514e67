package backtesting

import (
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func breakoutCandles(n int, base decimal.Decimal, vol decimal.Decimal, start time.Time) []exchanges.Candle {
	candles := make([]exchanges.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = exchanges.Candle{
			Symbol:    "ETH-USD",
			Timeframe: "5m",
			StartTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      base,
			High:      base,
			Low:       base,
			Close:     base,
			Volume:    vol,
		}
	}
	return candles
}

func TestRun_NoDataReturnsError(t *testing.T) {
	engine := NewEngine(DefaultBacktestConfig(), &HistoricalData{Symbol: "ETH-USD"})
	_, err := engine.Run(strategy.DefaultConfig())
	assert.Error(t, err)
}

func TestRun_OpensAndClosesOnBreakoutAndTakeProfit(t *testing.T) {
	cfg := DefaultBacktestConfig()
	cfg.ResistancePeriods = 10
	cfg.VolumeLookback = 10
	cfg.Slippage = decimal.Zero
	cfg.CommissionRate = decimal.Zero

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := breakoutCandles(10, decimal.NewFromInt(100), decimal.NewFromInt(1000), start)

	breakout := exchanges.Candle{
		Symbol: "ETH-USD", Timeframe: "5m",
		StartTime: start.Add(10 * 5 * time.Minute),
		Open:      decimal.NewFromInt(100), High: decimal.NewFromInt(101),
		Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(101),
		Volume: decimal.NewFromInt(2600),
	}
	candles = append(candles, breakout)

	takeProfit := exchanges.Candle{
		Symbol: "ETH-USD", Timeframe: "5m",
		StartTime: breakout.StartTime.Add(5 * time.Minute),
		Open:      decimal.NewFromInt(101), High: decimal.NewFromInt(130),
		Low: decimal.NewFromInt(101), Close: decimal.NewFromInt(130),
		Volume: decimal.NewFromInt(500),
	}
	candles = append(candles, takeProfit)

	data := &HistoricalData{Symbol: "ETH-USD", Candles: candles}
	engine := NewEngine(cfg, data)

	stratCfg := strategy.DefaultConfig()
	stratCfg.VolumeFactor = decimal.NewFromFloat(2.5)
	stratCfg.RiskRewardRatio = decimal.NewFromInt(3)
	stratCfg.StopOffsetPct = decimal.NewFromFloat(0.01)
	stratCfg.PositionSizeUSD = decimal.NewFromInt(500)

	metrics, err := engine.Run(stratCfg)
	require.NoError(t, err)
	require.Len(t, metrics.Trades, 1)
	assert.Equal(t, "take_profit", metrics.Trades[0].ExitReason)
	assert.True(t, metrics.Trades[0].PnL.IsPositive())
}

func TestCalculateMetrics_ProfitFactorInfiniteWithNoLosses(t *testing.T) {
	engine := NewEngine(DefaultBacktestConfig(), &HistoricalData{Symbol: "ETH-USD", Candles: []exchanges.Candle{{}}})
	engine.trades = []Trade{
		{PnL: decimal.NewFromInt(10), EntryTime: time.Now(), ExitTime: time.Now()},
	}
	metrics := engine.calculateMetrics()
	assert.True(t, metrics.ProfitFactor.GreaterThan(decimal.NewFromInt(1000)))
}

func TestCalculateMaxDrawdown_PeakToTrough(t *testing.T) {
	engine := NewEngine(DefaultBacktestConfig(), &HistoricalData{Symbol: "ETH-USD"})
	engine.equityCurve = []EquityPoint{
		{Equity: decimal.NewFromInt(10000)},
		{Equity: decimal.NewFromInt(11000)},
		{Equity: decimal.NewFromInt(9000)},
		{Equity: decimal.NewFromInt(9500)},
	}
	dd, ddPct := engine.calculateMaxDrawdown()
	assert.True(t, dd.Equal(decimal.NewFromInt(2000)))
	assert.True(t, ddPct.GreaterThan(decimal.Zero))
}
