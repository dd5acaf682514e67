// Package marketdata assembles a MarketView from a venue's trade stream
// and periodic REST snapshots, owning the CandleStore backing it.
package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/candlestore"
	"github.com/dougdotcon/dydx-breakout-bot/internal/circuitbreaker"
	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/shopspring/decimal"
)

// MarketView is a read-only snapshot of the instrument's current state.
// ResistanceLevel is +Inf and AverageVolume is zero until enough closed
// candles exist, which the strategy interprets as "not ready".
type MarketView struct {
	Instrument      string
	LatestPrice     decimal.Decimal
	ResistanceLevel decimal.Decimal
	AverageVolume   decimal.Decimal
	CurrentVolume   decimal.Decimal
	At              time.Time
}

// Config parameterises the lookback windows used to derive a MarketView.
type Config struct {
	Instrument           string
	Timeframe            candlestore.Timeframe
	ResistancePeriods    int
	VolumeLookback       int
	StoreSize            int
	SnapshotInterval     time.Duration
	ReconnectBackoffInit time.Duration
	ReconnectBackoffMax  time.Duration
	QueryTimeout         time.Duration
}

// ConnState is the trade-stream connection state reported by
// MarketData.ConnState.
type ConnState string

const (
	ConnStateConnected    ConnState = "connected"
	ConnStateReconnecting ConnState = "reconnecting"
)

// MarketData keeps a CandleStore fresh from a VenueClient's REST and stream
// surfaces and publishes point-in-time MarketView copies.
type MarketData struct {
	cfg   Config
	venue exchanges.VenueClient
	clock clock.Clock
	store *candlestore.CandleStore
	log   *logger.Logger
	cb    *circuitbreaker.CircuitBreaker

	mu          sync.Mutex
	latestPrice decimal.Decimal
	connState   ConnState
}

// New constructs a MarketData instance. It does not connect until Start is
// called.
func New(cfg Config, venue exchanges.VenueClient, clk clock.Clock) (*MarketData, error) {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 60 * time.Second
	}
	if cfg.ReconnectBackoffInit <= 0 {
		cfg.ReconnectBackoffInit = time.Second
	}
	if cfg.ReconnectBackoffMax <= 0 {
		cfg.ReconnectBackoffMax = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	store, err := candlestore.New(cfg.Instrument, cfg.Timeframe, cfg.StoreSize)
	if err != nil {
		return nil, err
	}
	return &MarketData{
		cfg:       cfg,
		venue:     venue,
		clock:     clk,
		store:     store,
		log:       logger.Component("marketdata").Symbol(cfg.Instrument),
		cb:        circuitbreaker.New("marketdata-snapshot", circuitbreaker.DefaultConfig()),
		connState: ConnStateReconnecting,
	}, nil
}

// Start performs the initial snapshot, then runs the stream and periodic
// snapshot loops until ctx is cancelled.
func (m *MarketData) Start(ctx context.Context) error {
	if err := m.snapshot(ctx); err != nil {
		return err
	}

	go m.snapshotLoop(ctx)
	go m.streamLoop(ctx)
	return nil
}

func (m *MarketData) snapshot(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	err := m.cb.Execute(sctx, func() error {
		candles, err := m.venue.GetCandles(sctx, m.cfg.Instrument, string(m.cfg.Timeframe), m.cfg.StoreSize)
		if err != nil {
			return err
		}
		return m.store.LoadSnapshot(candles)
	})
	if err != nil {
		m.log.WithError(err).Warn("snapshot failed, will retry on schedule")
		return err
	}
	if latest, ok := m.store.Latest(); ok {
		m.mu.Lock()
		m.latestPrice = latest.Close
		m.mu.Unlock()
	}
	return nil
}

func (m *MarketData) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.snapshot(ctx)
		}
	}
}

// streamLoop owns reconnection with exponential backoff, per the
// VenueClient contract ("reconnection responsibility on the caller").
func (m *MarketData) streamLoop(ctx context.Context) {
	backoff := m.cfg.ReconnectBackoffInit
	for {
		if ctx.Err() != nil {
			return
		}

		m.setConnState(ConnStateConnected)
		err := m.venue.SubscribeTrades(ctx, m.cfg.Instrument, m.onTrade)
		if ctx.Err() != nil {
			return
		}

		m.setConnState(ConnStateReconnecting)
		telemetry.RecordWebSocketReconnect(m.venue.Name())
		if err != nil {
			m.log.WithError(err).Warn("trade stream disconnected, reconnecting", "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > m.cfg.ReconnectBackoffMax {
			backoff = m.cfg.ReconnectBackoffMax
		}

		// Re-snapshot immediately on reconnect to close any gap. Trades
		// that arrive before this completes are dropped, not queued.
		if err := m.snapshot(ctx); err == nil {
			backoff = m.cfg.ReconnectBackoffInit
		}
	}
}

func (m *MarketData) onTrade(t exchanges.Trade) {
	if err := m.store.ApplyTrade(t.Price, t.Size, t.At); err != nil {
		m.log.WithError(err).Debug("dropped trade")
		return
	}
	m.mu.Lock()
	m.latestPrice = t.Price
	m.mu.Unlock()
}

func (m *MarketData) setConnState(s ConnState) {
	m.mu.Lock()
	m.connState = s
	m.mu.Unlock()
}

// ConnState reports the last-observed stream connection state.
func (m *MarketData) ConnState() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connState
}

// CurrentMarketView returns a point-in-time copy of the market state.
func (m *MarketData) CurrentMarketView() MarketView {
	lookback := m.cfg.ResistancePeriods
	if m.cfg.VolumeLookback > lookback {
		lookback = m.cfg.VolumeLookback
	}
	closed := m.store.Tail(lookback)

	m.mu.Lock()
	latestPrice := m.latestPrice
	m.mu.Unlock()

	var currentVolume decimal.Decimal
	if open, ok := m.store.Latest(); ok {
		currentVolume = open.Volume
	}

	resWindow := windowTail(closed, m.cfg.ResistancePeriods)
	volWindow := windowTail(closed, m.cfg.VolumeLookback)

	return MarketView{
		Instrument:      m.cfg.Instrument,
		LatestPrice:     latestPrice,
		ResistanceLevel: resistance(resWindow),
		AverageVolume:   averageVolume(volWindow),
		CurrentVolume:   currentVolume,
		At:              m.clock.Now(),
	}
}

func windowTail(closed []exchanges.Candle, n int) []exchanges.Candle {
	if n <= 0 || len(closed) <= n {
		return closed
	}
	return closed[len(closed)-n:]
}

// PositiveInfinity stands in for "+Inf" using shopspring/decimal, which has
// no native infinity: an implausibly large sentinel no real price will ever
// exceed, so BreakoutStrategy correctly treats "not enough history" as
// "not ready" rather than a spurious breakout.
func PositiveInfinity() decimal.Decimal {
	return decimal.New(1, 30)
}

func resistance(closed []exchanges.Candle) decimal.Decimal {
	if len(closed) == 0 {
		return PositiveInfinity()
	}
	highest := closed[0].High
	for _, c := range closed[1:] {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
	}
	return highest
}

func averageVolume(closed []exchanges.Candle) decimal.Decimal {
	if len(closed) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range closed {
		sum = sum.Add(c.Volume)
	}
	return sum.Div(decimal.NewFromInt(int64(len(closed))))
}
