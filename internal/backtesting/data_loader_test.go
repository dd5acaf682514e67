package backtesting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestLoadFromCSV_ParsesAndSortsCandles(t *testing.T) {
	loader := NewDataLoader()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "candles.csv")

	content := "timestamp,open,high,low,close,volume\n" +
		"1640995320,51000,52000,50000,51500,200\n" +
		"1640995200,50000,51000,49000,50500,100\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	data, err := loader.LoadFromCSV(csvPath, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, data.Candles, 2)

	assert.True(t, data.Candles[0].StartTime.Before(data.Candles[1].StartTime))
	assert.True(t, data.Candles[0].Open.Equal(decimal.NewFromInt(50000)))
}

func TestLoadFromCSV_SkipsMalformedRows(t *testing.T) {
	loader := NewDataLoader()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "candles.csv")

	content := "timestamp,open,high,low,close,volume\n" +
		"1640995200,50000,51000,49000,50500,100\n" +
		"not-a-number,bad,bad,bad,bad,bad\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(content), 0o644))

	data, err := loader.LoadFromCSV(csvPath, "BTC-USD")
	require.NoError(t, err)
	assert.Len(t, data.Candles, 1)
}

func TestGenerateSampleData_ProducesRequestedCount(t *testing.T) {
	loader := NewDataLoader()
	data := loader.GenerateSampleData("BTC-USD", mustParseTime(t, "2026-01-01T00:00:00Z"), 50, 50000)
	assert.Len(t, data.Candles, 50)
	assert.Equal(t, "BTC-USD", data.Symbol)
}
