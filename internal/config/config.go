// Package config defines the bot's runtime configuration as an explicit
// value type, per the enumerated options table: loaded from environment
// variables and overridable by CLI flags, never a loose dictionary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/candlestore"
	"github.com/shopspring/decimal"
)

// DydxCredentials holds the VenueClient's wallet and API connection
// details. Captured interactively by the `setup` CLI verb and otherwise
// read from the environment.
type DydxCredentials struct {
	Mnemonic         string
	SubAccountNumber int
	APIBaseURL       string
	WebSocketURL     string
}

// AppConfig is the full set of configuration recognised by the bot,
// matching the documented options table.
type AppConfig struct {
	Instrument          string
	Timeframe           candlestore.Timeframe
	VolumeFactor        decimal.Decimal
	ResistancePeriods   int
	VolumeLookback      int
	RiskRewardRatio     decimal.Decimal
	StopOffsetPct       decimal.Decimal
	PositionSizeUSD     decimal.Decimal
	MaxPositionSizeUSD  decimal.Decimal
	MaxDailyLossUSD     decimal.Decimal
	MaxDrawdownPct      decimal.Decimal
	MaxLeverage         decimal.Decimal
	UpdateInterval      time.Duration
	SimulationMode      bool
	InitialEquityUSD    decimal.Decimal
	TelemetryAddr       string
	TradesPath          string
	PerformancePath     string
	BotStatePath        string
	CloseOnShutdown     bool
	ShutdownGracePeriod time.Duration

	Dydx DydxCredentials
}

// Default returns the spec-documented defaults before environment
// overrides or CLI flags are applied.
func Default() AppConfig {
	return AppConfig{
		Instrument:          "ETH-USD",
		Timeframe:           candlestore.Timeframe5m,
		VolumeFactor:        decimal.NewFromFloat(2.0),
		ResistancePeriods:   24,
		VolumeLookback:      24,
		RiskRewardRatio:     decimal.NewFromFloat(3.0),
		StopOffsetPct:       decimal.NewFromFloat(0.01),
		PositionSizeUSD:     decimal.NewFromInt(100),
		MaxPositionSizeUSD:  decimal.NewFromInt(1000),
		MaxDailyLossUSD:     decimal.NewFromInt(100),
		MaxDrawdownPct:      decimal.NewFromFloat(0.1),
		MaxLeverage:         decimal.NewFromInt(5),
		UpdateInterval:      30 * time.Second,
		SimulationMode:      true,
		InitialEquityUSD:    decimal.NewFromInt(10000),
		TelemetryAddr:       ":9100",
		TradesPath:          "trades.jsonl",
		PerformancePath:     "performance.json",
		BotStatePath:        "bot_state.json",
		CloseOnShutdown:     true,
		ShutdownGracePeriod: 15 * time.Second,
		Dydx: DydxCredentials{
			APIBaseURL:   "https://indexer.v4testnet.dydx.exchange",
			WebSocketURL: "wss://indexer.v4testnet.dydx.exchange/v4/ws",
		},
	}
}

// LoadFromEnv starts from Default and overlays any recognised environment
// variables. CLI flags, applied by the caller afterward, take precedence
// over both.
func LoadFromEnv() (AppConfig, error) {
	cfg := Default()

	cfg.Instrument = getEnv("INSTRUMENT", cfg.Instrument)
	if tf := getEnv("TIMEFRAME", string(cfg.Timeframe)); tf != "" {
		cfg.Timeframe = candlestore.Timeframe(tf)
	}
	cfg.VolumeFactor = getEnvDecimal("VOLUME_FACTOR", cfg.VolumeFactor)
	cfg.ResistancePeriods = getEnvInt("RESISTANCE_PERIODS", cfg.ResistancePeriods)
	cfg.VolumeLookback = getEnvInt("VOLUME_LOOKBACK", cfg.VolumeLookback)
	cfg.RiskRewardRatio = getEnvDecimal("RISK_REWARD_RATIO", cfg.RiskRewardRatio)
	cfg.StopOffsetPct = getEnvDecimal("STOP_OFFSET_PCT", cfg.StopOffsetPct)
	cfg.PositionSizeUSD = getEnvDecimal("POSITION_SIZE_USD", cfg.PositionSizeUSD)
	cfg.MaxPositionSizeUSD = getEnvDecimal("MAX_POSITION_SIZE_USD", cfg.MaxPositionSizeUSD)
	cfg.MaxDailyLossUSD = getEnvDecimal("MAX_DAILY_LOSS_USD", cfg.MaxDailyLossUSD)
	cfg.MaxDrawdownPct = getEnvDecimal("MAX_DRAWDOWN_PCT", cfg.MaxDrawdownPct)
	cfg.MaxLeverage = getEnvDecimal("MAX_LEVERAGE", cfg.MaxLeverage)
	cfg.UpdateInterval = getEnvSeconds("UPDATE_INTERVAL_S", cfg.UpdateInterval)
	cfg.SimulationMode = getEnvBool("SIMULATION_MODE", cfg.SimulationMode)
	cfg.InitialEquityUSD = getEnvDecimal("INITIAL_EQUITY_USD", cfg.InitialEquityUSD)
	cfg.TelemetryAddr = getEnv("TELEMETRY_ADDR", cfg.TelemetryAddr)

	cfg.Dydx.Mnemonic = os.Getenv("DYDX_MNEMONIC")
	cfg.Dydx.SubAccountNumber = getEnvInt("DYDX_SUBACCOUNT_NUMBER", 0)
	cfg.Dydx.APIBaseURL = getEnv("DYDX_API_URL", cfg.Dydx.APIBaseURL)
	cfg.Dydx.WebSocketURL = getEnv("DYDX_WS_URL", cfg.Dydx.WebSocketURL)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the fields a misconfiguration would otherwise surface
// only once the control loop is already running. Exit code 1 at start-up,
// per spec §6.
func (c AppConfig) Validate() error {
	var missing []string

	if c.Instrument == "" {
		missing = append(missing, "INSTRUMENT")
	}
	if _, err := c.Timeframe.Duration(); err != nil {
		missing = append(missing, fmt.Sprintf("TIMEFRAME (%v)", err))
	}
	if !c.SimulationMode && c.Dydx.Mnemonic == "" {
		missing = append(missing, "DYDX_MNEMONIC (required in live mode)")
	}
	if c.UpdateInterval <= 0 {
		missing = append(missing, "UPDATE_INTERVAL_S must be positive")
	}

	if len(missing) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if parsed, err := strconv.Atoi(v); err == nil {
		return parsed
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if parsed, err := decimal.NewFromString(v); err == nil {
		return parsed
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if parsed, err := strconv.Atoi(v); err == nil {
		return time.Duration(parsed) * time.Second
	}
	return defaultValue
}
