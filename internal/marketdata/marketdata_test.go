package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/candlestore"
	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCandles(v *exchanges.SimVenue, instrument string, n int, high, volume int64) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]exchanges.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, exchanges.Candle{
			Symbol:    instrument,
			Timeframe: "5m",
			StartTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      decimal.NewFromInt(high),
			High:      decimal.NewFromInt(high),
			Low:       decimal.NewFromInt(high),
			Close:     decimal.NewFromInt(high),
			Volume:    decimal.NewFromInt(volume),
		})
	}
	v.SeedCandles(instrument, "5m", candles)
}

func TestCurrentMarketView_NotReadyBeforeSnapshot(t *testing.T) {
	v := exchanges.NewSimVenue("sim", decimal.NewFromInt(1000))
	md, err := New(Config{
		Instrument:        "ETH-USD",
		Timeframe:         candlestore.Timeframe5m,
		ResistancePeriods: 20,
		VolumeLookback:    20,
		StoreSize:         100,
	}, v, clock.NewMock(time.Now()))
	require.NoError(t, err)

	view := md.CurrentMarketView()
	assert.True(t, view.ResistanceLevel.Equal(PositiveInfinity()))
	assert.True(t, view.AverageVolume.IsZero())
}

func TestStart_SnapshotsAndComputesView(t *testing.T) {
	v := exchanges.NewSimVenue("sim", decimal.NewFromInt(1000))
	seedCandles(v, "ETH-USD", 25, 100, 1000)

	md, err := New(Config{
		Instrument:        "ETH-USD",
		Timeframe:         candlestore.Timeframe5m,
		ResistancePeriods: 20,
		VolumeLookback:    20,
		StoreSize:         100,
		SnapshotInterval:  time.Hour,
	}, v, clock.NewMock(time.Now()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, md.Start(ctx))

	view := md.CurrentMarketView()
	assert.True(t, view.ResistanceLevel.Equal(decimal.NewFromInt(100)))
	assert.True(t, view.AverageVolume.Equal(decimal.NewFromInt(1000)))
}
