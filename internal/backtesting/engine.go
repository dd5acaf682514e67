// Package backtesting replays BreakoutStrategy against a historical candle
// series to produce a performance report. Its metrics are computed by this
// package's own code, not by tradestore.Store.
package backtesting

import (
	"fmt"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/dougdotcon/dydx-breakout-bot/pkg/utils"
	"github.com/shopspring/decimal"
)

// Engine replays one instrument's candle history through a BreakoutStrategy,
// long-only, one position at a time — the same constraint position.Manager
// enforces live.
type Engine struct {
	config *BacktestConfig
	data   *HistoricalData
	strat  *strategy.BreakoutStrategy

	currentIndex int
	capital      decimal.Decimal
	position     *openPosition
	trades       []Trade
	equityCurve  []EquityPoint

	onTrade        func(*Trade)
	onEquityUpdate func(decimal.Decimal)
}

// NewEngine constructs an Engine over data, unstarted until Run.
func NewEngine(config *BacktestConfig, data *HistoricalData) *Engine {
	return &Engine{
		config:      config,
		data:        data,
		capital:     config.InitialCapital,
		trades:      make([]Trade, 0),
		equityCurve: make([]EquityPoint, 0),
	}
}

// SetOnTrade registers a callback fired after every closed trade.
func (e *Engine) SetOnTrade(callback func(*Trade)) {
	e.onTrade = callback
}

// SetOnEquityUpdate registers a callback fired after every equity sample.
func (e *Engine) SetOnEquityUpdate(callback func(decimal.Decimal)) {
	e.onEquityUpdate = callback
}

// Run replays the full candle series through stratCfg and returns the
// resulting PerformanceMetrics.
func (e *Engine) Run(stratCfg strategy.Config) (*PerformanceMetrics, error) {
	if len(e.data.Candles) == 0 {
		return nil, fmt.Errorf("backtesting: no historical data to run")
	}
	e.strat = strategy.New(stratCfg)

	for e.currentIndex = 0; e.currentIndex < len(e.data.Candles); e.currentIndex++ {
		candle := e.data.Candles[e.currentIndex]

		e.checkPositionExit(candle)

		if e.position == nil {
			view := e.viewAt(e.currentIndex)
			sig := e.strat.Evaluate(view)
			if sig.Kind == strategy.SignalEnterLong {
				e.openPosition(sig, candle)
			}
		}

		e.recordEquity(candle.StartTime)
	}

	if e.position != nil {
		e.closePosition(e.data.Candles[len(e.data.Candles)-1], "end_of_data")
	}

	return e.calculateMetrics(), nil
}

// viewAt builds the MarketView BreakoutStrategy would have seen after
// candle i closed: resistance and average volume are taken from the
// CLOSED candles strictly before i, mirroring MarketData.CurrentMarketView.
func (e *Engine) viewAt(i int) marketdata.MarketView {
	lookback := e.config.ResistancePeriods
	if e.config.VolumeLookback > lookback {
		lookback = e.config.VolumeLookback
	}
	start := i - lookback
	if start < 0 {
		start = 0
	}
	closed := e.data.Candles[start:i]

	resWindow := tailCandles(closed, e.config.ResistancePeriods)
	volWindow := tailCandles(closed, e.config.VolumeLookback)

	candle := e.data.Candles[i]
	return marketdata.MarketView{
		Instrument:      e.data.Symbol,
		LatestPrice:     candle.Close,
		ResistanceLevel: resistanceOf(resWindow),
		AverageVolume:   averageVolumeOf(volWindow),
		CurrentVolume:   candle.Volume,
		At:              candle.StartTime,
	}
}

func (e *Engine) openPosition(sig strategy.Signal, candle exchanges.Candle) {
	entryPrice := sig.EntryPrice.Mul(decimal.NewFromInt(1).Add(e.config.Slippage))
	sizeBase := sig.SizeUSD.Div(entryPrice)

	commission := entryPrice.Mul(sizeBase).Mul(e.config.CommissionRate)
	requiredCapital := entryPrice.Mul(sizeBase).Add(commission)
	if requiredCapital.GreaterThan(e.capital) {
		return
	}

	e.position = &openPosition{
		Symbol:     e.data.Symbol,
		EntryPrice: entryPrice,
		SizeBase:   sizeBase,
		EntryTime:  candle.StartTime,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	e.capital = e.capital.Sub(commission)
}

func (e *Engine) closePosition(candle exchanges.Candle, reason string) {
	if e.position == nil {
		return
	}
	exitPrice := candle.Close.Mul(decimal.NewFromInt(1).Sub(e.config.Slippage))

	pnl := exitPrice.Sub(e.position.EntryPrice).Mul(e.position.SizeBase)
	commission := exitPrice.Mul(e.position.SizeBase).Mul(e.config.CommissionRate)
	pnl = pnl.Sub(commission)

	notional := e.position.EntryPrice.Mul(e.position.SizeBase)
	var pnlPercent decimal.Decimal
	if !notional.IsZero() {
		pnlPercent = pnl.Div(notional).Mul(decimal.NewFromInt(100))
	}

	trade := Trade{
		ID:         fmt.Sprintf("%s-%d", e.position.Symbol, e.position.EntryTime.UnixNano()),
		Symbol:     e.position.Symbol,
		EntryPrice: e.position.EntryPrice,
		ExitPrice:  exitPrice,
		SizeBase:   e.position.SizeBase,
		EntryTime:  e.position.EntryTime,
		ExitTime:   candle.StartTime,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		Commission: commission.Mul(decimal.NewFromInt(2)),
		StopLoss:   e.position.StopLoss,
		TakeProfit: e.position.TakeProfit,
		ExitReason: reason,
	}

	e.trades = append(e.trades, trade)
	e.capital = e.capital.Add(pnl)

	if e.onTrade != nil {
		e.onTrade(&trade)
	}
	e.position = nil
}

// checkPositionExit mirrors position.Manager.CheckExit: stop-loss is
// checked against the candle's low before take-profit against its high, so
// a candle that spans both levels exits as a loss.
func (e *Engine) checkPositionExit(candle exchanges.Candle) {
	if e.position == nil {
		return
	}
	if candle.Low.LessThanOrEqual(e.position.StopLoss) {
		e.closePosition(candle, "stop_loss")
		return
	}
	if candle.High.GreaterThanOrEqual(e.position.TakeProfit) {
		e.closePosition(candle, "take_profit")
	}
}

func (e *Engine) recordEquity(at time.Time) {
	equity := e.capital
	if e.position != nil {
		candle := e.data.Candles[e.currentIndex]
		unrealized := candle.Close.Sub(e.position.EntryPrice).Mul(e.position.SizeBase)
		equity = equity.Add(unrealized)
	}

	e.equityCurve = append(e.equityCurve, EquityPoint{Time: at, Equity: equity})
	if e.onEquityUpdate != nil {
		e.onEquityUpdate(equity)
	}
}

func (e *Engine) calculateMetrics() *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		Trades:      e.trades,
		EquityCurve: e.equityCurve,
		TotalTrades: len(e.trades),
	}
	if len(e.trades) == 0 {
		return metrics
	}

	finalEquity := e.capital
	totalReturn := finalEquity.Sub(e.config.InitialCapital)
	metrics.TotalReturn = totalReturn
	if !e.config.InitialCapital.IsZero() {
		metrics.TotalReturnPct = totalReturn.Div(e.config.InitialCapital).Mul(decimal.NewFromInt(100))
	}

	var totalProfit, totalLoss, largestWin, largestLoss decimal.Decimal
	var totalDuration time.Duration

	for _, trade := range e.trades {
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		if trade.PnL.GreaterThan(decimal.Zero) {
			metrics.WinningTrades++
			totalProfit = totalProfit.Add(trade.PnL)
			if trade.PnL.GreaterThan(largestWin) {
				largestWin = trade.PnL
			}
		} else {
			metrics.LosingTrades++
			totalLoss = totalLoss.Add(trade.PnL.Abs())
			if trade.PnL.Abs().GreaterThan(largestLoss) {
				largestLoss = trade.PnL.Abs()
			}
		}
	}

	metrics.TotalProfit = totalProfit
	metrics.TotalLoss = totalLoss
	metrics.LargestWin = largestWin
	metrics.LargestLoss = largestLoss
	metrics.WinRate = decimal.NewFromInt(int64(metrics.WinningTrades)).Div(decimal.NewFromInt(int64(metrics.TotalTrades))).Mul(decimal.NewFromInt(100))
	metrics.AvgTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)

	if metrics.WinningTrades > 0 {
		metrics.AverageProfitWin = totalProfit.Div(decimal.NewFromInt(int64(metrics.WinningTrades)))
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLossLose = totalLoss.Div(decimal.NewFromInt(int64(metrics.LosingTrades)))
	}
	switch {
	case totalLoss.IsZero() && totalProfit.IsPositive():
		metrics.ProfitFactor = marketdata.PositiveInfinity()
	case !totalLoss.IsZero():
		metrics.ProfitFactor = totalProfit.Div(totalLoss)
	}

	metrics.MaxDrawdown, metrics.MaxDrawdownPct = e.calculateMaxDrawdown()

	returns := make([]decimal.Decimal, len(e.trades))
	for i, trade := range e.trades {
		returns[i] = trade.PnLPercent
	}
	if stddev := utils.StandardDeviation(returns); !stddev.IsZero() {
		mean := decimal.Zero
		for _, r := range returns {
			mean = mean.Add(r)
		}
		mean = mean.Div(decimal.NewFromInt(int64(len(returns))))
		metrics.SharpeRatio = mean.Div(stddev)
	}

	closes := make([]decimal.Decimal, len(e.data.Candles))
	volumes := make([]decimal.Decimal, len(e.data.Candles))
	for i, c := range e.data.Candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	metrics.VWAP = strategy.VWAP(closes, volumes)
	if smaWindow := strategy.SMA(closes, e.config.ResistancePeriods); len(smaWindow) > 0 {
		metrics.ClosePriceSMA = smaWindow[len(smaWindow)-1]
	}

	if len(e.data.Candles) > 0 {
		startTime := e.data.Candles[0].StartTime
		endTime := e.data.Candles[len(e.data.Candles)-1].StartTime
		years := endTime.Sub(startTime).Hours() / 24 / 365.25
		if years > 0 {
			metrics.AnnualizedReturn = metrics.TotalReturnPct.Div(decimal.NewFromFloat(years))
		}
		metrics.TotalDuration = endTime.Sub(startTime)
	}

	return metrics
}

// calculateMaxDrawdown is the same peak-to-trough walk tradestore.Store
// uses for its own max_drawdown metric, against the equity curve instead
// of a trade-PnL series.
func (e *Engine) calculateMaxDrawdown() (decimal.Decimal, decimal.Decimal) {
	var maxDrawdown, maxDrawdownPct decimal.Decimal
	peak := e.config.InitialCapital

	for _, point := range e.equityCurve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		drawdown := peak.Sub(point.Equity)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
			if !peak.IsZero() {
				maxDrawdownPct = drawdown.Div(peak).Mul(decimal.NewFromInt(100))
			}
		}
	}
	return maxDrawdown, maxDrawdownPct
}

func tailCandles(closed []exchanges.Candle, n int) []exchanges.Candle {
	if n <= 0 || len(closed) <= n {
		return closed
	}
	return closed[len(closed)-n:]
}

// resistanceOf and averageVolumeOf duplicate MarketData's unexported
// window functions: the backtest engine computes a MarketView from a
// fixed historical slice instead of a live CandleStore, so it cannot
// reuse MarketData itself, only its windowing rule.
func resistanceOf(closed []exchanges.Candle) decimal.Decimal {
	if len(closed) == 0 {
		return marketdata.PositiveInfinity()
	}
	highest := closed[0].High
	for _, c := range closed[1:] {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
	}
	return highest
}

func averageVolumeOf(closed []exchanges.Candle) decimal.Decimal {
	if len(closed) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range closed {
		sum = sum.Add(c.Volume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(closed))))
}
