package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStandardDeviation(t *testing.T) {
	tests := []struct {
		name     string
		values   []decimal.Decimal
		expected decimal.Decimal
	}{
		{"empty slice", []decimal.Decimal{}, decimal.Zero},
		{"single value", []decimal.Decimal{decimal.NewFromFloat(5)}, decimal.Zero},
		{"two same values", []decimal.Decimal{decimal.NewFromFloat(5), decimal.NewFromFloat(5)}, decimal.Zero},
		{"simple case", []decimal.Decimal{decimal.NewFromFloat(1), decimal.NewFromFloat(2), decimal.NewFromFloat(3)}, decimal.NewFromFloat(0.816496580927726)},
		{"larger spread", []decimal.Decimal{decimal.NewFromFloat(10), decimal.NewFromFloat(20), decimal.NewFromFloat(30)}, decimal.NewFromFloat(8.16496580927726)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StandardDeviation(tt.values)
			diff := result.Sub(tt.expected).Abs()
			if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
				t.Errorf("StandardDeviation(%v) = %v, want %v", tt.values, result, tt.expected)
			}
		})
	}
}

func BenchmarkStandardDeviation(b *testing.B) {
	values := make([]decimal.Decimal, 10000)
	for i := 0; i < 10000; i++ {
		values[i] = decimal.NewFromFloat(100 + float64(i)*0.1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		StandardDeviation(values)
	}
}
