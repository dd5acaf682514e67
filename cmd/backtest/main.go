// Command backtest replays BreakoutStrategy against historical candles.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/backtesting"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/shopspring/decimal"
)

var (
	dataFile       = flag.String("data", "", "path to a CSV file with historical candles (required unless -generate-sample)")
	symbol         = flag.String("symbol", "ETH-USD", "trading instrument")
	initialCapital = flag.Float64("capital", 10000, "initial capital for the backtest")
	commission     = flag.Float64("commission", 0.001, "commission rate, e.g. 0.001 for 0.1%")
	slippage       = flag.Float64("slippage", 0.0005, "slippage rate, e.g. 0.0005 for 0.05%")

	resistancePeriods = flag.Int("resistance-periods", 24, "closed-candle lookback for resistance")
	volumeLookback    = flag.Int("volume-lookback", 24, "closed-candle lookback for average volume")
	volumeFactor      = flag.Float64("volume-factor", 2.0, "breakout volume confirmation multiplier")
	riskReward        = flag.Float64("risk-reward", 3.0, "take-profit multiple of risk")
	stopOffsetPct     = flag.Float64("stop-offset-pct", 0.01, "stop-loss offset below resistance")
	positionSizeUSD   = flag.Float64("position-size", 100, "notional per entry in USD")

	verbose        = flag.Bool("verbose", false, "print a detailed trade log")
	generateSample = flag.Bool("generate-sample", false, "generate synthetic candles instead of loading a CSV")
	sampleCandles  = flag.Int("sample-candles", 1000, "number of synthetic candles to generate")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var data *backtesting.HistoricalData
	var err error

	loader := backtesting.NewDataLoader()

	if *generateSample {
		log.Println("generating synthetic candles...")
		data = loader.GenerateSampleData(*symbol, time.Now().Add(-24*time.Hour*30), *sampleCandles, 2500)
		log.Printf("generated %d candles\n", len(data.Candles))
	} else {
		if *dataFile == "" {
			return fmt.Errorf("either -data or -generate-sample is required")
		}
		log.Printf("loading candles from %s...\n", *dataFile)
		data, err = loader.LoadFromCSV(*dataFile, *symbol)
		if err != nil {
			return fmt.Errorf("failed to load data: %w", err)
		}
		log.Printf("loaded %d candles\n", len(data.Candles))
	}

	if len(data.Candles) == 0 {
		return fmt.Errorf("no data loaded")
	}

	startTime := data.Candles[0].StartTime
	endTime := data.Candles[len(data.Candles)-1].StartTime
	log.Printf("period: %s to %s (%s)\n",
		startTime.Format("2006-01-02"), endTime.Format("2006-01-02"),
		endTime.Sub(startTime).Round(time.Hour))

	btConfig := &backtesting.BacktestConfig{
		InitialCapital:    decimal.NewFromFloat(*initialCapital),
		CommissionRate:    decimal.NewFromFloat(*commission),
		Slippage:          decimal.NewFromFloat(*slippage),
		ResistancePeriods: *resistancePeriods,
		VolumeLookback:    *volumeLookback,
	}

	stratCfg := strategy.Config{
		VolumeFactor:    decimal.NewFromFloat(*volumeFactor),
		RiskRewardRatio: decimal.NewFromFloat(*riskReward),
		StopOffsetPct:   decimal.NewFromFloat(*stopOffsetPct),
		PositionSizeUSD: decimal.NewFromFloat(*positionSizeUSD),
	}

	log.Printf("resistance periods=%d volume lookback=%d volume factor=%.2f risk:reward=1:%.2f\n",
		*resistancePeriods, *volumeLookback, *volumeFactor, *riskReward)

	engine := backtesting.NewEngine(btConfig, data)

	tradeCount := 0
	engine.SetOnTrade(func(trade *backtesting.Trade) {
		tradeCount++
		if *verbose {
			result := "win"
			if trade.PnL.LessThan(decimal.Zero) {
				result = "loss"
			}
			log.Printf("[trade %d] entry=$%s exit=$%s pnl=$%s (%.2f%%) reason=%s result=%s\n",
				tradeCount, trade.EntryPrice.StringFixed(2), trade.ExitPrice.StringFixed(2),
				trade.PnL.StringFixed(2), trade.PnLPercent.InexactFloat64(), trade.ExitReason, result)
		}
	})

	log.Println("running backtest...")
	start := time.Now()
	metrics, err := engine.Run(stratCfg)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	log.Printf("completed in %s\n\n", time.Since(start).Round(time.Millisecond))

	reporter := backtesting.NewReporter()
	fmt.Println(reporter.GenerateReport(metrics))

	if *verbose && len(metrics.Trades) > 0 {
		fmt.Println(reporter.GenerateTradeLog(metrics))
	}

	return nil
}
