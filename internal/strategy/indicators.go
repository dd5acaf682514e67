package strategy

import "github.com/shopspring/decimal"

// SMA calculates the Simple Moving Average over the full input window,
// returning one value for every window of length period ending at each
// index (same as the donor's rolling-window definition).
func SMA(prices []decimal.Decimal, period int) []decimal.Decimal {
	if period <= 0 || len(prices) < period {
		return []decimal.Decimal{}
	}

	result := make([]decimal.Decimal, len(prices)-period+1)
	for i := range result {
		sum := decimal.Zero
		for j := i; j < i+period; j++ {
			sum = sum.Add(prices[j])
		}
		result[i] = sum.Div(decimal.NewFromInt(int64(period)))
	}
	return result
}

// VWAP calculates the volume-weighted average price over the given prices
// and volumes, used only as a backtest-report diagnostic, not in the
// breakout signal rule itself.
func VWAP(prices, volumes []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 || len(prices) != len(volumes) {
		return decimal.Zero
	}

	totalPV := decimal.Zero
	totalVolume := decimal.Zero
	for i := range prices {
		totalPV = totalPV.Add(prices[i].Mul(volumes[i]))
		totalVolume = totalVolume.Add(volumes[i])
	}
	if totalVolume.IsZero() {
		return decimal.Zero
	}
	return totalPV.Div(totalVolume)
}
