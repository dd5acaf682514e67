// Package candlestore holds a bounded, time-ordered sequence of OHLCV
// candles for one (instrument, timeframe) pair.
package candlestore

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/shopspring/decimal"
)

// Timeframe is one of the closed set of candle granularities this system
// understands. Venue-specific resolution strings are translated at the
// VenueClient boundary, not here.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the wall-clock span of one bar at this timeframe, or an
// error if the timeframe is not one of the recognised values.
func (tf Timeframe) Duration() (time.Duration, error) {
	switch tf {
	case Timeframe1m:
		return time.Minute, nil
	case Timeframe5m:
		return 5 * time.Minute, nil
	case Timeframe15m:
		return 15 * time.Minute, nil
	case Timeframe30m:
		return 30 * time.Minute, nil
	case Timeframe1h:
		return time.Hour, nil
	case Timeframe4h:
		return 4 * time.Hour, nil
	case Timeframe1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("candlestore: unrecognised timeframe %q", tf)
	}
}

// ValidationError reports why a snapshot or trade application was rejected.
// It is logged and the offending datum is dropped; it is never fatal to the
// process.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "candlestore: " + e.Reason }

// CandleStore is a bounded ring of candles sorted by StartTime ascending,
// for exactly one (instrument, timeframe) pair. The last candle may be
// "open" — mutable until the next timeframe boundary closes it. Safe for
// concurrent use: the stream writer and the control-loop reader serialise
// through a single mutex.
type CandleStore struct {
	instrument string
	timeframe  Timeframe
	maxLen     int
	dur        time.Duration

	mu      sync.Mutex
	candles []exchanges.Candle // oldest first; last element may be open
}

// New returns an empty store bounded to maxLen candles.
func New(instrument string, timeframe Timeframe, maxLen int) (*CandleStore, error) {
	dur, err := timeframe.Duration()
	if err != nil {
		return nil, err
	}
	if maxLen <= 0 {
		maxLen = 200
	}
	return &CandleStore{
		instrument: instrument,
		timeframe:  timeframe,
		maxLen:     maxLen,
		dur:        dur,
	}, nil
}

// LoadSnapshot atomically replaces the stored candles. It rejects a
// snapshot whose timeframe does not match the store, or whose start times
// are not strictly increasing.
func (s *CandleStore) LoadSnapshot(candles []exchanges.Candle) error {
	for i, c := range candles {
		if c.Timeframe != string(s.timeframe) {
			return &ValidationError{Reason: fmt.Sprintf("snapshot candle %d has timeframe %q, store is %q", i, c.Timeframe, s.timeframe)}
		}
		if i > 0 && !candles[i].StartTime.After(candles[i-1].StartTime) {
			return &ValidationError{Reason: fmt.Sprintf("snapshot candle %d start_time %s is not strictly after candle %d's", i, candles[i].StartTime, i-1)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(candles) > s.maxLen {
		candles = candles[len(candles)-s.maxLen:]
	}
	s.candles = append([]exchanges.Candle(nil), candles...)
	return nil
}

// ApplyTrade folds a trade print into the currently open candle, sealing
// and rolling to a new bar if at falls beyond the open candle's window.
// Out-of-order trades (at before the open candle's start) are dropped.
func (s *CandleStore) ApplyTrade(price, size decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.candles) == 0 {
		s.candles = append(s.candles, s.newCandle(price, size, at))
		return nil
	}

	open := &s.candles[len(s.candles)-1]
	if at.Before(open.StartTime) {
		return &ValidationError{Reason: fmt.Sprintf("trade at %s precedes open candle start %s", at, open.StartTime)}
	}

	if at.Before(open.StartTime.Add(s.dur)) {
		if price.GreaterThan(open.High) {
			open.High = price
		}
		if price.LessThan(open.Low) {
			open.Low = price
		}
		open.Close = price
		open.Volume = open.Volume.Add(size)
		return nil
	}

	s.candles = append(s.candles, s.newCandle(price, size, at))
	if len(s.candles) > s.maxLen {
		s.candles = s.candles[len(s.candles)-s.maxLen:]
	}
	return nil
}

func (s *CandleStore) newCandle(price, size decimal.Decimal, at time.Time) exchanges.Candle {
	aligned := at.Truncate(s.dur)
	return exchanges.Candle{
		Symbol:    s.instrument,
		Timeframe: string(s.timeframe),
		StartTime: aligned,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    size,
	}
}

// Tail returns the last k closed candles (the open one, if any, is
// excluded), oldest first. Returns fewer than k if not enough history
// exists yet.
func (s *CandleStore) Tail(k int) []exchanges.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := s.candles
	if len(closed) > 0 {
		closed = closed[:len(closed)-1]
	}
	if k >= len(closed) {
		return append([]exchanges.Candle(nil), closed...)
	}
	return append([]exchanges.Candle(nil), closed[len(closed)-k:]...)
}

// Latest returns the currently open candle and whether one exists.
func (s *CandleStore) Latest() (exchanges.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candles) == 0 {
		return exchanges.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}
