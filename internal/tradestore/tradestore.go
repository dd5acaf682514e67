// Package tradestore persists closed trades as an append-only,
// newline-delimited record file and derives run-level performance metrics
// from them.
package tradestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/shopspring/decimal"
)

// Metrics summarises a TradeStore's recorded history.
type Metrics struct {
	TotalTrades  int             `json:"total_trades"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      decimal.Decimal `json:"win_rate"`
	AvgWin       decimal.Decimal `json:"avg_win"`
	AvgLoss      decimal.Decimal `json:"avg_loss"`
	ProfitFactor decimal.Decimal `json:"profit_factor"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`
}

// record is the on-disk shape of a Trade, one per line in trades.jsonl.
type record struct {
	Instrument string          `json:"instrument"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	SizeBase   decimal.Decimal `json:"size_base"`
	SizeUSD    decimal.Decimal `json:"size_usd"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	OpenedAt   string          `json:"opened_at"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	ClosedAt   string          `json:"closed_at"`
	ExitReason string          `json:"exit_reason"`
	PnLUSD     decimal.Decimal `json:"pnl_usd"`
}

func toRecord(t position.Trade) record {
	return record{
		Instrument: t.Instrument,
		EntryPrice: t.EntryPrice,
		SizeBase:   t.SizeBase,
		SizeUSD:    t.SizeUSD,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		OpenedAt:   t.OpenedAt.Format(timeLayout),
		ExitPrice:  t.ExitPrice,
		ClosedAt:   t.ClosedAt.Format(timeLayout),
		ExitReason: string(t.ExitReason),
		PnLUSD:     t.PnLUSD,
	}
}

func (r record) toTrade() (position.Trade, error) {
	opened, err := parseTime(r.OpenedAt)
	if err != nil {
		return position.Trade{}, err
	}
	closed, err := parseTime(r.ClosedAt)
	if err != nil {
		return position.Trade{}, err
	}
	return position.Trade{
		Instrument: r.Instrument,
		EntryPrice: r.EntryPrice,
		SizeBase:   r.SizeBase,
		SizeUSD:    r.SizeUSD,
		StopLoss:   r.StopLoss,
		TakeProfit: r.TakeProfit,
		OpenedAt:   opened,
		ExitPrice:  r.ExitPrice,
		ClosedAt:   closed,
		ExitReason: position.ExitReason(r.ExitReason),
		PnLUSD:     r.PnLUSD,
	}, nil
}

// Store is an append-only log of closed trades backed by a local file,
// plus a companion performance.json snapshot rewritten after every append.
type Store struct {
	mu         sync.Mutex
	tradesPath string
	reportPath string
	log        *logger.Logger
	file       *os.File
	trades     []position.Trade
}

// Open loads any existing trades from tradesPath (tolerating a truncated
// last record) and readies the file for O_APPEND writes.
func Open(tradesPath, reportPath string) (*Store, error) {
	existing, err := loadAll(tradesPath)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(tradesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tradestore: open %s: %w", tradesPath, err)
	}

	return &Store{
		tradesPath: tradesPath,
		reportPath: reportPath,
		log:        logger.Component("tradestore"),
		file:       f,
		trades:     existing,
	}, nil
}

// loadAll reads every well-formed line of path, silently dropping a
// truncated final record.
func loadAll(path string) ([]position.Trade, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tradestore: load %s: %w", path, err)
	}
	defer f.Close()

	var trades []position.Trade
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			// Truncated or corrupt last line: dropped silently, per spec.
			continue
		}
		trade, err := r.toTrade()
		if err != nil {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// LoadAll returns every trade currently recorded in memory, in append order.
func (s *Store) LoadAll() []position.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]position.Trade(nil), s.trades...)
}

// Append writes trade to the log (O_APPEND, flushed immediately) and
// rewrites the performance.json snapshot. A write failure is returned to
// the caller; OrderManager treats the position as closed regardless.
func (s *Store) Append(trade position.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(toRecord(trade))
	if err != nil {
		return fmt.Errorf("tradestore: marshal trade: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("tradestore: append: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("tradestore: flush: %w", err)
	}

	s.trades = append(s.trades, trade)

	metrics := computeMetrics(s.trades)
	if err := s.writeReportLocked(metrics); err != nil {
		s.log.WithError(err).Error("failed to write performance report")
	}
	return nil
}

// Metrics returns the current performance summary over all recorded trades.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeMetrics(s.trades)
}

func (s *Store) writeReportLocked(m Metrics) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.reportPath, data, 0o644)
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// computeMetrics derives win_rate, profit_factor, and peak-to-trough
// max_drawdown from the cumulative-PnL series of trades, in append order.
func computeMetrics(trades []position.Trade) Metrics {
	m := Metrics{
		TotalPnL:     decimal.Zero,
		WinRate:      decimal.Zero,
		AvgWin:       decimal.Zero,
		AvgLoss:      decimal.Zero,
		ProfitFactor: decimal.Zero,
		MaxDrawdown:  decimal.Zero,
	}
	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return m
	}

	var wins, losses int
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero

	cumulative := decimal.Zero
	peak := decimal.Zero
	maxDrawdown := decimal.Zero

	for _, t := range trades {
		m.TotalPnL = m.TotalPnL.Add(t.PnLUSD)

		switch {
		case t.PnLUSD.IsPositive():
			wins++
			grossProfit = grossProfit.Add(t.PnLUSD)
		case t.PnLUSD.IsNegative():
			losses++
			grossLoss = grossLoss.Add(t.PnLUSD.Abs())
		}

		cumulative = cumulative.Add(t.PnLUSD)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		drawdown := peak.Sub(cumulative)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}

	m.WinRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(m.TotalTrades)))
	if wins > 0 {
		m.AvgWin = grossProfit.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		m.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(losses))).Neg()
	}

	switch {
	case grossLoss.IsZero() && grossProfit.IsPositive():
		m.ProfitFactor = marketdata.PositiveInfinity()
	case grossLoss.IsZero():
		m.ProfitFactor = decimal.Zero
	default:
		m.ProfitFactor = grossProfit.Div(grossLoss)
	}

	m.MaxDrawdown = maxDrawdown
	return m
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
