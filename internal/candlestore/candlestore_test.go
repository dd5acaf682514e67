package candlestore

import (
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStore(t *testing.T, maxLen int) *CandleStore {
	t.Helper()
	s, err := New("ETH-USD", Timeframe5m, maxLen)
	require.NoError(t, err)
	return s
}

func TestLoadSnapshot_RejectsTimeframeMismatch(t *testing.T) {
	s := mustStore(t, 100)
	err := s.LoadSnapshot([]exchanges.Candle{{Timeframe: "1m", StartTime: time.Unix(0, 0)}})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLoadSnapshot_RejectsNonMonotonic(t *testing.T) {
	s := mustStore(t, 100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.LoadSnapshot([]exchanges.Candle{
		{Timeframe: "5m", StartTime: base.Add(5 * time.Minute)},
		{Timeframe: "5m", StartTime: base},
	})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLoadSnapshot_TruncatesToMaxLen(t *testing.T) {
	s := mustStore(t, 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []exchanges.Candle{
		{Timeframe: "5m", StartTime: base, Close: decimal.NewFromInt(1)},
		{Timeframe: "5m", StartTime: base.Add(5 * time.Minute), Close: decimal.NewFromInt(2)},
		{Timeframe: "5m", StartTime: base.Add(10 * time.Minute), Close: decimal.NewFromInt(3)},
	}
	require.NoError(t, s.LoadSnapshot(candles))
	tail := s.Tail(10)
	// last candle loaded is treated as "open" and excluded from Tail.
	require.Len(t, tail, 1)
	assert.True(t, tail[0].Close.Equal(decimal.NewFromInt(2)))
}

func TestApplyTrade_ExtendsOpenCandle(t *testing.T) {
	s := mustStore(t, 100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(100), decimal.NewFromInt(1), base))
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(105), decimal.NewFromInt(2), base.Add(time.Minute)))
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(95), decimal.NewFromInt(1), base.Add(2*time.Minute)))

	open, ok := s.Latest()
	require.True(t, ok)
	assert.True(t, open.High.Equal(decimal.NewFromInt(105)))
	assert.True(t, open.Low.Equal(decimal.NewFromInt(95)))
	assert.True(t, open.Close.Equal(decimal.NewFromInt(95)))
	assert.True(t, open.Volume.Equal(decimal.NewFromInt(4)))
}

func TestApplyTrade_SealsAndRolls(t *testing.T) {
	s := mustStore(t, 100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(100), decimal.NewFromInt(1), base))
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(110), decimal.NewFromInt(1), base.Add(6*time.Minute)))

	tail := s.Tail(10)
	require.Len(t, tail, 1)
	assert.True(t, tail[0].Close.Equal(decimal.NewFromInt(100)))

	open, ok := s.Latest()
	require.True(t, ok)
	assert.True(t, open.Close.Equal(decimal.NewFromInt(110)))
}

func TestApplyTrade_DropsOutOfOrder(t *testing.T) {
	s := mustStore(t, 100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyTrade(decimal.NewFromInt(100), decimal.NewFromInt(1), base.Add(10*time.Minute)))
	err := s.ApplyTrade(decimal.NewFromInt(99), decimal.NewFromInt(1), base)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestTail_StrictlyTimeOrdered(t *testing.T) {
	s := mustStore(t, 100)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.ApplyTrade(decimal.NewFromInt(int64(i)), decimal.NewFromInt(1), base.Add(time.Duration(i)*6*time.Minute)))
	}
	tail := s.Tail(10)
	for i := 1; i < len(tail); i++ {
		assert.True(t, tail[i].StartTime.After(tail[i-1].StartTime))
	}
}
