package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSMA(t *testing.T) {
	prices := []decimal.Decimal{
		decimal.NewFromFloat(10),
		decimal.NewFromFloat(11),
		decimal.NewFromFloat(12),
		decimal.NewFromFloat(13),
		decimal.NewFromFloat(14),
	}

	result := SMA(prices, 3)
	if len(result) != 3 {
		t.Errorf("expected 3 SMA values, got %d", len(result))
	}

	expected := decimal.NewFromFloat(11)
	if !result[0].Equal(expected) {
		t.Errorf("expected first SMA %s, got %s", expected, result[0])
	}

	expected = decimal.NewFromFloat(12)
	if !result[1].Equal(expected) {
		t.Errorf("expected second SMA %s, got %s", expected, result[1])
	}

	shortPrices := []decimal.Decimal{decimal.NewFromFloat(10), decimal.NewFromFloat(11)}
	result = SMA(shortPrices, 3)
	if len(result) != 0 {
		t.Errorf("expected empty result for insufficient data, got %d values", len(result))
	}
}

func TestVWAP(t *testing.T) {
	prices := []decimal.Decimal{
		decimal.NewFromFloat(100),
		decimal.NewFromFloat(101),
		decimal.NewFromFloat(102),
	}

	volumes := []decimal.Decimal{
		decimal.NewFromFloat(10),
		decimal.NewFromFloat(20),
		decimal.NewFromFloat(30),
	}

	result := VWAP(prices, volumes)

	expected := decimal.NewFromFloat(101.33333333333333)
	if !result.Round(5).Equal(expected.Round(5)) {
		t.Errorf("expected VWAP %s, got %s", expected, result)
	}

	result = VWAP([]decimal.Decimal{}, []decimal.Decimal{})
	if !result.Equal(decimal.Zero) {
		t.Errorf("expected zero VWAP for empty data, got %s", result)
	}

	result = VWAP([]decimal.Decimal{decimal.NewFromFloat(100)}, []decimal.Decimal{})
	if !result.Equal(decimal.Zero) {
		t.Errorf("expected zero VWAP for mismatched lengths, got %s", result)
	}

	prices = []decimal.Decimal{decimal.NewFromFloat(100)}
	volumes = []decimal.Decimal{decimal.Zero}
	result = VWAP(prices, volumes)
	if !result.Equal(decimal.Zero) {
		t.Errorf("expected zero VWAP for zero volume, got %s", result)
	}
}
