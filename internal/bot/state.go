package bot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/shopspring/decimal"
)

// persistedPosition is the on-disk shape of bot_state.json, used only for
// restart-with-open-position rehydration.
type persistedPosition struct {
	Instrument string          `json:"instrument"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	SizeBase   decimal.Decimal `json:"size_base"`
	SizeUSD    decimal.Decimal `json:"size_usd"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	OpenedAt   time.Time       `json:"opened_at"`
}

func loadState(path string) (position.Position, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return position.Position{}, false, nil
	}
	if err != nil {
		return position.Position{}, false, err
	}
	var p persistedPosition
	if err := json.Unmarshal(data, &p); err != nil {
		return position.Position{}, false, err
	}
	return position.Position{
		Instrument: p.Instrument,
		EntryPrice: p.EntryPrice,
		SizeBase:   p.SizeBase,
		SizeUSD:    p.SizeUSD,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		OpenedAt:   p.OpenedAt,
	}, true, nil
}

func saveState(path string, pos position.Position) error {
	p := persistedPosition{
		Instrument: pos.Instrument,
		EntryPrice: pos.EntryPrice,
		SizeBase:   pos.SizeBase,
		SizeUSD:    pos.SizeUSD,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		OpenedAt:   pos.OpenedAt,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func removeState(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
