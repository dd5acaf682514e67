package tradestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrade(pnl int64, closedAt time.Time) position.Trade {
	return position.Trade{
		Instrument: "ETH-USD",
		EntryPrice: decimal.NewFromInt(100),
		SizeBase:   decimal.NewFromInt(1),
		SizeUSD:    decimal.NewFromInt(100),
		StopLoss:   decimal.NewFromInt(99),
		TakeProfit: decimal.NewFromInt(107),
		OpenedAt:   closedAt.Add(-time.Hour),
		ExitPrice:  decimal.NewFromInt(100).Add(decimal.NewFromInt(pnl)),
		ClosedAt:   closedAt,
		ExitReason: position.ExitTakeProfit,
		PnLUSD:     decimal.NewFromInt(pnl),
	}
}

func TestAppendAndLoadAll_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(newTrade(10, now)))
	require.NoError(t, store.Append(newTrade(-5, now.Add(time.Hour))))

	reopened, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer reopened.Close()

	loaded := reopened.LoadAll()
	require.Len(t, loaded, 2)
	assert.True(t, loaded[0].PnLUSD.Equal(decimal.NewFromInt(10)))
	assert.True(t, loaded[1].PnLUSD.Equal(decimal.NewFromInt(-5)))
}

func TestMetrics_WinRateAndProfitFactor(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(newTrade(20, now)))
	require.NoError(t, store.Append(newTrade(-10, now.Add(time.Hour))))
	require.NoError(t, store.Append(newTrade(30, now.Add(2*time.Hour))))

	m := store.Metrics()
	assert.Equal(t, 3, m.TotalTrades)
	assert.True(t, m.TotalPnL.Equal(decimal.NewFromInt(40)))
	assert.True(t, m.WinRate.Equal(decimal.NewFromInt(2).Div(decimal.NewFromInt(3))), "got %s", m.WinRate)
	assert.True(t, m.ProfitFactor.Equal(decimal.NewFromInt(5)), "got %s", m.ProfitFactor) // 50/10
}

func TestMetrics_ProfitFactorIsInfiniteWithNoLosses(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(newTrade(10, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	m := store.Metrics()
	assert.True(t, m.ProfitFactor.GreaterThan(decimal.NewFromInt(1000000)), "expected +Inf sentinel, got %s", m.ProfitFactor)
}

func TestMetrics_ZeroTradesAreAllZero(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer store.Close()

	m := store.Metrics()
	assert.Equal(t, 0, m.TotalTrades)
	assert.True(t, m.ProfitFactor.IsZero())
}

func TestMetrics_MaxDrawdownIsPeakToTrough(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "trades.jsonl"), filepath.Join(dir, "performance.json"))
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// cumulative: +100, +60 (peak 100, trough 60 => drawdown 40), +120 (new peak)
	require.NoError(t, store.Append(newTrade(100, now)))
	require.NoError(t, store.Append(newTrade(-40, now.Add(time.Hour))))
	require.NoError(t, store.Append(newTrade(60, now.Add(2*time.Hour))))

	m := store.Metrics()
	assert.True(t, m.MaxDrawdown.Equal(decimal.NewFromInt(40)), "got %s", m.MaxDrawdown)
}
