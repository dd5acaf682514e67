// Package strategy derives entry signals from a MarketView.
package strategy

import (
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/shopspring/decimal"
)

// SignalKind distinguishes a no-op evaluation from a candidate entry.
type SignalKind string

const (
	SignalNone      SignalKind = "none"
	SignalEnterLong SignalKind = "enter_long"
)

// Signal is the output of one BreakoutStrategy.Evaluate call.
type Signal struct {
	Kind       SignalKind
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	SizeUSD    decimal.Decimal
	Reasoning  string
}

// Config parameterises the breakout-detection rule.
type Config struct {
	VolumeFactor    decimal.Decimal // default 1.5-2.5
	RiskRewardRatio decimal.Decimal // default 3.0
	StopOffsetPct   decimal.Decimal // default 0.01 (1%)
	PositionSizeUSD decimal.Decimal
}

// DefaultConfig returns the spec's documented default parameters.
func DefaultConfig() Config {
	return Config{
		VolumeFactor:    decimal.NewFromFloat(2.0),
		RiskRewardRatio: decimal.NewFromFloat(3.0),
		StopOffsetPct:   decimal.NewFromFloat(0.01),
		PositionSizeUSD: decimal.NewFromInt(100),
	}
}

// BreakoutStrategy detects a resistance breakout confirmed by abnormal
// volume and proposes an entry with a resistance-anchored stop and a
// risk-reward-derived take-profit.
type BreakoutStrategy struct {
	cfg Config
	log *logger.Logger
}

// New constructs a BreakoutStrategy.
func New(cfg Config) *BreakoutStrategy {
	return &BreakoutStrategy{cfg: cfg, log: logger.Component("strategy")}
}

// Evaluate applies the breakout rule to the given view. See spec §4.3:
// p > res AND vol >= volume_factor*avg AND avg > 0, with p <= stop_loss
// suppression and p == res never triggering.
func (s *BreakoutStrategy) Evaluate(view marketdata.MarketView) Signal {
	p := view.LatestPrice
	res := view.ResistanceLevel
	vol := view.CurrentVolume
	avg := view.AverageVolume

	if avg.IsZero() {
		return Signal{Kind: SignalNone, Reasoning: "average volume is zero, not enough history"}
	}
	if !p.GreaterThan(res) {
		return Signal{Kind: SignalNone, Reasoning: "price has not broken above resistance"}
	}
	if vol.LessThan(s.cfg.VolumeFactor.Mul(avg)) {
		return Signal{Kind: SignalNone, Reasoning: "current volume does not confirm the breakout"}
	}

	stopLoss := res.Mul(decimal.NewFromInt(1).Sub(s.cfg.StopOffsetPct))
	if p.LessThanOrEqual(stopLoss) {
		return Signal{Kind: SignalNone, Reasoning: "entry price at or below computed stop loss"}
	}

	risk := p.Sub(stopLoss)
	takeProfit := p.Add(s.cfg.RiskRewardRatio.Mul(risk))

	s.log.Symbol(view.Instrument).Info("breakout signal", "price", p, "resistance", res, "stop_loss", stopLoss, "take_profit", takeProfit)
	telemetry.RecordSignal("enter_long")

	return Signal{
		Kind:       SignalEnterLong,
		EntryPrice: p,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		SizeUSD:    s.cfg.PositionSizeUSD,
		Reasoning:  "price broke resistance with volume confirmation",
	}
}
