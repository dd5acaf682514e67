package main

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/config"
	"github.com/dougdotcon/dydx-breakout-bot/internal/order"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newStartCmdForFlags() (*cobra.Command, *struct {
	instrument     string
	timeframe      string
	volumeFactor   float64
	resistancePds  int
	riskReward     float64
	positionSize   float64
	simulation     bool
	live           bool
	updateInterval int
}) {
	startFlags := &struct {
		instrument     string
		timeframe      string
		volumeFactor   float64
		resistancePds  int
		riskReward     float64
		positionSize   float64
		simulation     bool
		live           bool
		updateInterval int
	}{}
	cmd := &cobra.Command{Use: "start"}
	cmd.Flags().StringVar(&startFlags.instrument, "instrument", "", "")
	cmd.Flags().StringVar(&startFlags.timeframe, "timeframe", "", "")
	cmd.Flags().Float64Var(&startFlags.volumeFactor, "volume-factor", 0, "")
	cmd.Flags().IntVar(&startFlags.resistancePds, "resistance-periods", 0, "")
	cmd.Flags().Float64Var(&startFlags.riskReward, "risk-reward", 0, "")
	cmd.Flags().Float64Var(&startFlags.positionSize, "position-size", 0, "")
	cmd.Flags().BoolVar(&startFlags.simulation, "simulation", false, "")
	cmd.Flags().BoolVar(&startFlags.live, "live", false, "")
	cmd.Flags().IntVar(&startFlags.updateInterval, "update-interval", 0, "")
	return cmd, startFlags
}

func TestApplyStartFlags_UnsetFlagsLeaveDefaultsUntouched(t *testing.T) {
	cmd, _ := newStartCmdForFlags()
	cfg := config.Default()
	original := cfg

	applyStartFlags(&cfg, cmd, "", "", 0, 0, 0, 0, false, false, 0)

	if cfg != original {
		t.Fatalf("expected config unchanged when no flags were set, got %+v", cfg)
	}
}

func TestApplyStartFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd, startFlags := newStartCmdForFlags()
	if err := cmd.Flags().Set("instrument", "BTC-USD"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("risk-reward", "4.5"); err != nil {
		t.Fatal(err)
	}
	startFlags.instrument = "BTC-USD"
	startFlags.riskReward = 4.5

	cfg := config.Default()
	originalTimeframe := cfg.Timeframe
	originalPositionSize := cfg.PositionSizeUSD

	applyStartFlags(&cfg, cmd, startFlags.instrument, startFlags.timeframe,
		startFlags.volumeFactor, startFlags.resistancePds, startFlags.riskReward,
		startFlags.positionSize, startFlags.simulation, startFlags.live, startFlags.updateInterval)

	if cfg.Instrument != "BTC-USD" {
		t.Errorf("expected Instrument overridden to BTC-USD, got %s", cfg.Instrument)
	}
	if !cfg.RiskRewardRatio.Equal(decimal.NewFromFloat(4.5)) {
		t.Errorf("expected RiskRewardRatio overridden to 4.5, got %s", cfg.RiskRewardRatio)
	}
	if cfg.Timeframe != originalTimeframe {
		t.Errorf("expected Timeframe left at default %s, got %s", originalTimeframe, cfg.Timeframe)
	}
	if !cfg.PositionSizeUSD.Equal(originalPositionSize) {
		t.Errorf("expected PositionSizeUSD left at default %s, got %s", originalPositionSize, cfg.PositionSizeUSD)
	}
}

func TestApplyStartFlags_ResistancePeriodsAlsoSetsVolumeLookback(t *testing.T) {
	cmd, startFlags := newStartCmdForFlags()
	if err := cmd.Flags().Set("resistance-periods", "48"); err != nil {
		t.Fatal(err)
	}
	startFlags.resistancePds = 48

	cfg := config.Default()
	applyStartFlags(&cfg, cmd, "", "", 0, startFlags.resistancePds, 0, 0, false, false, 0)

	if cfg.ResistancePeriods != 48 || cfg.VolumeLookback != 48 {
		t.Errorf("expected ResistancePeriods and VolumeLookback both 48, got %d and %d",
			cfg.ResistancePeriods, cfg.VolumeLookback)
	}
}

func TestApplyStartFlags_LiveFlagInvertsSimulationMode(t *testing.T) {
	cmd, startFlags := newStartCmdForFlags()
	if err := cmd.Flags().Set("live", "true"); err != nil {
		t.Fatal(err)
	}
	startFlags.live = true

	cfg := config.Default()
	if !cfg.SimulationMode {
		t.Fatal("expected default config to start in simulation mode")
	}

	applyStartFlags(&cfg, cmd, "", "", 0, 0, 0, 0, startFlags.simulation, startFlags.live, 0)

	if cfg.SimulationMode {
		t.Error("expected --live to flip SimulationMode to false")
	}
}

func TestApplyStartFlags_UpdateIntervalConvertsSecondsToDuration(t *testing.T) {
	cmd, startFlags := newStartCmdForFlags()
	if err := cmd.Flags().Set("update-interval", "45"); err != nil {
		t.Fatal(err)
	}
	startFlags.updateInterval = 45

	cfg := config.Default()
	applyStartFlags(&cfg, cmd, "", "", 0, 0, 0, 0, false, false, startFlags.updateInterval)

	if cfg.UpdateInterval != 45*time.Second {
		t.Errorf("expected UpdateInterval 45s, got %s", cfg.UpdateInterval)
	}
}

func TestBuildVenue_SimulationModeReturnsSimVenue(t *testing.T) {
	cfg := config.Default()
	cfg.SimulationMode = true
	cfg.Instrument = "ETH-USD"

	venue, mode, err := buildVenue(cfg)
	if err != nil {
		t.Fatalf("buildVenue returned error: %v", err)
	}
	if mode != order.ModeSimulation {
		t.Errorf("expected simulation mode, got %v", mode)
	}
	if venue.Name() == "" {
		t.Error("expected non-empty venue name")
	}
}

func TestRunStatus_SimulationVenuePrintsAccountSnapshot(t *testing.T) {
	cfg := config.Default()
	cfg.SimulationMode = true
	cfg.Instrument = "ETH-USD"
	cfg.BotStatePath = "/nonexistent/bot_state.json"

	stdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	if err := runStatus(cfg); err != nil {
		t.Fatalf("runStatus returned error: %v", err)
	}

	_ = w.Close()
	os.Stdout = stdout
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	output := buf.String()

	if !bytes.Contains([]byte(output), []byte("equity_usd:")) {
		t.Errorf("expected output to contain equity_usd, got %q", output)
	}
	if !bytes.Contains([]byte(output), []byte("no open position recorded")) {
		t.Errorf("expected output to report no open position, got %q", output)
	}
}

func TestRunSetup_WritesEnvFileFromStdin(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	stdin := os.Stdin
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdin = r
	defer func() { os.Stdin = stdin }()

	go func() {
		_, _ = w.WriteString("word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12\n5\n")
		_ = w.Close()
	}()

	if err := runSetup(); err != nil {
		t.Fatalf("runSetup returned error: %v", err)
	}

	data, err := os.ReadFile(".env")
	if err != nil {
		t.Fatalf("expected .env to be written: %v", err)
	}
	contents := string(data)
	if !bytes.Contains([]byte(contents), []byte("DYDX_MNEMONIC=")) {
		t.Errorf("expected .env to contain DYDX_MNEMONIC, got %q", contents)
	}
	if !bytes.Contains([]byte(contents), []byte("DYDX_SUBACCOUNT_NUMBER=5")) {
		t.Errorf("expected .env to contain sub-account override, got %q", contents)
	}

	info, err := os.Stat(".env")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected .env mode 0600, got %v", info.Mode().Perm())
	}
}

func TestRunSetup_DefaultsSubAccountToZero(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	stdin := os.Stdin
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdin = r
	defer func() { os.Stdin = stdin }()

	go func() {
		_, _ = w.WriteString("word1 word2 word3 word4 word5 word6 word7 word8 word9 word10 word11 word12\n\n")
		_ = w.Close()
	}()

	if err := runSetup(); err != nil {
		t.Fatalf("runSetup returned error: %v", err)
	}

	data, err := os.ReadFile(".env")
	if err != nil {
		t.Fatalf("expected .env to be written: %v", err)
	}
	if !bytes.Contains(data, []byte("DYDX_SUBACCOUNT_NUMBER=0")) {
		t.Errorf("expected default sub-account 0, got %q", string(data))
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"hello\n":   "hello",
		"hello\r\n": "hello",
		"hello":     "hello",
		"":          "",
	}
	for input, expected := range cases {
		if got := trimNewline(input); got != expected {
			t.Errorf("trimNewline(%q) = %q, want %q", input, got, expected)
		}
	}
}
