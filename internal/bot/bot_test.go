package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/candlestore"
	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/order"
	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/dougdotcon/dydx-breakout-bot/internal/risk"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/dougdotcon/dydx-breakout-bot/internal/tradestore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCandles(n int, high decimal.Decimal, vol decimal.Decimal, start time.Time) []exchanges.Candle {
	candles := make([]exchanges.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = exchanges.Candle{
			Symbol:    "ETH-USD",
			Timeframe: "5m",
			StartTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      high,
			High:      high,
			Low:       high,
			Close:     high,
			Volume:    vol,
		}
	}
	return candles
}

func newTestBot(t *testing.T, mode order.Mode) (*Bot, *exchanges.SimVenue, *clock.Mock, string) {
	t.Helper()
	dir := t.TempDir()
	clk := clock.NewMock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	venue := exchanges.NewSimVenue("sim", decimal.NewFromInt(10000))
	start := clk.Now().Add(-24 * 5 * time.Minute)
	venue.SeedCandles("ETH-USD", "5m", seedCandles(24, decimal.NewFromInt(100), decimal.NewFromInt(1000), start))

	md, err := marketdata.New(marketdata.Config{
		Instrument:        "ETH-USD",
		Timeframe:         candlestore.Timeframe5m,
		ResistancePeriods: 24,
		VolumeLookback:    24,
		StoreSize:         50,
		SnapshotInterval:  time.Hour,
	}, venue, clk)
	require.NoError(t, err)

	stratCfg := strategy.DefaultConfig()
	stratCfg.VolumeFactor = decimal.NewFromFloat(2.5)
	stratCfg.RiskRewardRatio = decimal.NewFromInt(3)
	stratCfg.StopOffsetPct = decimal.NewFromFloat(0.01)
	stratCfg.PositionSizeUSD = decimal.NewFromInt(500)
	strat := strategy.New(stratCfg)

	riskMgr := risk.New(risk.DefaultConfig(), clk)
	positions := position.New()

	tradesPath := filepath.Join(dir, "trades.jsonl")
	reportPath := filepath.Join(dir, "performance.json")
	store, err := tradestore.Open(tradesPath, reportPath)
	require.NoError(t, err)

	orders := order.NewManager(mode, venue, positions, riskMgr, store)

	cfg := DefaultConfig()
	cfg.Instrument = "ETH-USD"
	cfg.UpdateInterval = 10 * time.Millisecond
	cfg.StatePath = filepath.Join(dir, "bot_state.json")

	b := New(cfg, venue, md, strat, positions, orders, riskMgr, store, clk)
	return b, venue, clk, dir
}

// S1 — happy path breakout opens a position on the first tick.
func TestTick_S1_OpensPositionOnBreakout(t *testing.T) {
	b, venue, _, _ := newTestBot(t, order.ModeSimulation)
	ctx := context.Background()

	require.NoError(t, b.market.Start(ctx))
	venue.PushTrade(exchanges.Trade{Symbol: "ETH-USD", Price: decimal.NewFromInt(101), Size: decimal.NewFromInt(2600), At: time.Now()})
	time.Sleep(20 * time.Millisecond)

	b.tick(ctx)

	pos, ok := b.positions.Current()
	require.True(t, ok)
	assert.True(t, pos.EntryPrice.Equal(decimal.NewFromInt(101)))
}

// S5 — replayed same-day losses already exceed the limit at start-up.
func TestRun_S5_StartupCircuitBroken(t *testing.T) {
	b, _, clk, dir := newTestBot(t, order.ModeSimulation)

	// S5 runs with a 50 USD daily loss limit, which the -55 replayed below exceeds.
	riskCfg := risk.DefaultConfig()
	riskCfg.MaxDailyLossUSD = decimal.NewFromInt(50)
	b.risk = risk.New(riskCfg, clk)

	tradesPath := filepath.Join(dir, "trades.jsonl")
	store2, err := tradestore.Open(tradesPath, filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	now := clk.Now()
	require.NoError(t, store2.Append(position.Trade{Instrument: "ETH-USD", PnLUSD: decimal.NewFromInt(-20), ClosedAt: now, OpenedAt: now}))
	require.NoError(t, store2.Append(position.Trade{Instrument: "ETH-USD", PnLUSD: decimal.NewFromInt(-20), ClosedAt: now, OpenedAt: now}))
	require.NoError(t, store2.Append(position.Trade{Instrument: "ETH-USD", PnLUSD: decimal.NewFromInt(-15), ClosedAt: now, OpenedAt: now}))
	require.NoError(t, store2.Close())

	// Rebuild the bot pointed at the same trades file so start-up replays it.
	b.trades, err = tradestore.Open(tradesPath, filepath.Join(dir, "performance.json"))
	require.NoError(t, err)

	err = b.startup(context.Background())
	assert.ErrorIs(t, err, ErrStartupCircuitBroken)
}

func TestRehydratePosition_ReopensFromDisk(t *testing.T) {
	b, venue, _, dir := newTestBot(t, order.ModeSimulation)
	venue.Connect(context.Background())

	saved := position.Position{
		Instrument: "ETH-USD",
		EntryPrice: decimal.NewFromInt(100),
		SizeBase:   decimal.NewFromInt(5),
		SizeUSD:    decimal.NewFromInt(500),
		StopLoss:   decimal.NewFromInt(95),
		TakeProfit: decimal.NewFromInt(115),
		OpenedAt:   time.Now().UTC(),
	}
	require.NoError(t, saveState(filepath.Join(dir, "bot_state.json"), saved))

	require.NoError(t, b.rehydratePosition(context.Background()))

	pos, ok := b.positions.Current()
	require.True(t, ok)
	assert.True(t, pos.EntryPrice.Equal(decimal.NewFromInt(100)))

	_, err := os.Stat(filepath.Join(dir, "bot_state.json"))
	assert.True(t, os.IsNotExist(err), "bot_state.json should be consumed after successful rehydration")
}
