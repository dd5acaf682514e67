package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadFromEnv_DefaultsAreValid(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected default config to validate, got error: %v", err)
	}
	if cfg.Instrument != "ETH-USD" {
		t.Errorf("expected default instrument ETH-USD, got %s", cfg.Instrument)
	}
	if !cfg.SimulationMode {
		t.Error("expected simulation_mode to default true")
	}
}

func TestLoadFromEnv_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("INSTRUMENT", "BTC-USD")
	t.Setenv("VOLUME_FACTOR", "3.5")
	t.Setenv("SIMULATION_MODE", "false")
	t.Setenv("DYDX_MNEMONIC", "test mnemonic words go here")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}
	if cfg.Instrument != "BTC-USD" {
		t.Errorf("expected instrument override, got %s", cfg.Instrument)
	}
	if !cfg.VolumeFactor.Equal(decimal.NewFromFloat(3.5)) {
		t.Errorf("expected volume factor override 3.5, got %s", cfg.VolumeFactor)
	}
	if cfg.SimulationMode {
		t.Error("expected simulation_mode false")
	}
}

func TestLoadFromEnv_FailsInLiveModeWithoutMnemonic(t *testing.T) {
	t.Setenv("SIMULATION_MODE", "false")
	t.Setenv("DYDX_MNEMONIC", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when live mode lacks a mnemonic")
	}
}

func TestLoadFromEnv_FailsOnBadTimeframe(t *testing.T) {
	t.Setenv("TIMEFRAME", "banana")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for an unrecognised timeframe")
	}
}
