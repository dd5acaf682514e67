// Command bot runs the dYdX breakout trading daemon.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dougdotcon/dydx-breakout-bot/internal/bot"
	"github.com/dougdotcon/dydx-breakout-bot/internal/candlestore"
	"github.com/dougdotcon/dydx-breakout-bot/internal/clock"
	"github.com/dougdotcon/dydx-breakout-bot/internal/config"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges"
	"github.com/dougdotcon/dydx-breakout-bot/internal/exchanges/dydx"
	"github.com/dougdotcon/dydx-breakout-bot/internal/logger"
	"github.com/dougdotcon/dydx-breakout-bot/internal/marketdata"
	"github.com/dougdotcon/dydx-breakout-bot/internal/order"
	"github.com/dougdotcon/dydx-breakout-bot/internal/position"
	"github.com/dougdotcon/dydx-breakout-bot/internal/risk"
	"github.com/dougdotcon/dydx-breakout-bot/internal/strategy"
	"github.com/dougdotcon/dydx-breakout-bot/internal/telemetry"
	"github.com/dougdotcon/dydx-breakout-bot/internal/tradestore"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const (
	exitOK               = 0
	exitConfigError      = 1
	exitVenueUnreachable = 2
	exitCircuitBroken    = 3
)

var log = logger.Component("cmd")

func main() {
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {
	var startFlags struct {
		instrument     string
		timeframe      string
		volumeFactor   float64
		resistancePds  int
		riskReward     float64
		positionSize   float64
		simulation     bool
		live           bool
		updateInterval int
	}

	root := &cobra.Command{
		Use:   "bot",
		Short: "dYdX v4 breakout trading daemon",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "run the trading control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return exitError{exitConfigError, err}
			}
			applyStartFlags(&cfg, cmd, startFlags.instrument, startFlags.timeframe,
				startFlags.volumeFactor, startFlags.resistancePds, startFlags.riskReward,
				startFlags.positionSize, startFlags.simulation, startFlags.live, startFlags.updateInterval)
			if err := cfg.Validate(); err != nil {
				return exitError{exitConfigError, err}
			}
			return runStart(cfg)
		},
	}
	startCmd.Flags().StringVar(&startFlags.instrument, "instrument", "", "market to trade, e.g. ETH-USD")
	startCmd.Flags().StringVar(&startFlags.timeframe, "timeframe", "", "candle granularity (1m,5m,15m,30m,1h,4h,1d)")
	startCmd.Flags().Float64Var(&startFlags.volumeFactor, "volume-factor", 0, "breakout volume confirmation multiplier")
	startCmd.Flags().IntVar(&startFlags.resistancePds, "resistance-periods", 0, "closed-candle lookback for resistance")
	startCmd.Flags().Float64Var(&startFlags.riskReward, "risk-reward", 0, "take-profit multiple of risk")
	startCmd.Flags().Float64Var(&startFlags.positionSize, "position-size", 0, "default notional per entry in USD")
	startCmd.Flags().BoolVar(&startFlags.simulation, "simulation", false, "run against an in-memory simulated venue")
	startCmd.Flags().BoolVar(&startFlags.live, "live", false, "submit real orders to dYdX testnet")
	startCmd.Flags().IntVar(&startFlags.updateInterval, "update-interval", 0, "control loop period in seconds")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "print account snapshot and any open position",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return exitError{exitConfigError, err}
			}
			return runStatus(cfg)
		},
	}

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "interactively capture dYdX testnet credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup()
		},
	}

	root.AddCommand(startCmd, statusCmd, setupCmd)

	if err := root.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.err)
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	return exitOK
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

func applyStartFlags(cfg *config.AppConfig, cmd *cobra.Command, instrument, timeframe string, volumeFactor float64, resistancePds int, riskReward, positionSize float64, simulation, live bool, updateInterval int) {
	if cmd.Flags().Changed("instrument") {
		cfg.Instrument = instrument
	}
	if cmd.Flags().Changed("timeframe") {
		cfg.Timeframe = candlestore.Timeframe(timeframe)
	}
	if cmd.Flags().Changed("volume-factor") {
		cfg.VolumeFactor = decimal.NewFromFloat(volumeFactor)
	}
	if cmd.Flags().Changed("resistance-periods") {
		cfg.ResistancePeriods = resistancePds
		cfg.VolumeLookback = resistancePds
	}
	if cmd.Flags().Changed("risk-reward") {
		cfg.RiskRewardRatio = decimal.NewFromFloat(riskReward)
	}
	if cmd.Flags().Changed("position-size") {
		cfg.PositionSizeUSD = decimal.NewFromFloat(positionSize)
	}
	if cmd.Flags().Changed("update-interval") {
		cfg.UpdateInterval = time.Duration(updateInterval) * time.Second
	}
	if cmd.Flags().Changed("simulation") {
		cfg.SimulationMode = simulation
	}
	if cmd.Flags().Changed("live") {
		cfg.SimulationMode = !live
	}
}

func buildVenue(cfg config.AppConfig) (exchanges.VenueClient, order.Mode, error) {
	if cfg.SimulationMode {
		return exchanges.NewSimVenue("sim-"+cfg.Instrument, cfg.InitialEquityUSD), order.ModeSimulation, nil
	}
	client, err := dydx.NewClient(cfg.Dydx.Mnemonic, cfg.Dydx.SubAccountNumber, cfg.Dydx.APIBaseURL, cfg.Dydx.WebSocketURL)
	if err != nil {
		return nil, order.ModeLive, err
	}
	return client, order.ModeLive, nil
}

func runStart(cfg config.AppConfig) error {
	venue, mode, err := buildVenue(cfg)
	if err != nil {
		return exitError{exitVenueUnreachable, fmt.Errorf("venue construction failed: %w", err)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := venue.Connect(ctx); err != nil {
		return exitError{exitVenueUnreachable, fmt.Errorf("venue connect failed: %w", err)}
	}

	clk := clock.New()
	md, err := marketdata.New(marketdata.Config{
		Instrument:        cfg.Instrument,
		Timeframe:         cfg.Timeframe,
		ResistancePeriods: cfg.ResistancePeriods,
		VolumeLookback:    cfg.VolumeLookback,
		StoreSize:         cfg.ResistancePeriods + cfg.VolumeLookback + 10,
	}, venue, clk)
	if err != nil {
		return exitError{exitConfigError, err}
	}

	stratCfg := strategy.Config{
		VolumeFactor:    cfg.VolumeFactor,
		RiskRewardRatio: cfg.RiskRewardRatio,
		StopOffsetPct:   cfg.StopOffsetPct,
		PositionSizeUSD: cfg.PositionSizeUSD,
	}
	strat := strategy.New(stratCfg)

	riskMgr := risk.New(risk.Config{
		MaxPositionSizeUSD: cfg.MaxPositionSizeUSD,
		MaxLeverage:        cfg.MaxLeverage,
		MaxDailyLossUSD:    cfg.MaxDailyLossUSD,
		MaxDrawdownPct:     cfg.MaxDrawdownPct,
	}, clk)

	positions := position.New()

	store, err := tradestore.Open(cfg.TradesPath, cfg.PerformancePath)
	if err != nil {
		return exitError{exitConfigError, err}
	}

	orders := order.NewManager(mode, venue, positions, riskMgr, store)

	botCfg := bot.DefaultConfig()
	botCfg.Instrument = cfg.Instrument
	botCfg.UpdateInterval = cfg.UpdateInterval
	botCfg.CloseOnShutdown = cfg.CloseOnShutdown
	botCfg.StatePath = cfg.BotStatePath

	b := bot.New(botCfg, venue, md, strat, positions, orders, riskMgr, store, clk)

	telemetrySrv := telemetry.NewServer(cfg.TelemetryAddr)
	if telemetrySrv != nil {
		telemetrySrv.SetReady(true)
		if err := telemetrySrv.Start(); err != nil {
			return exitError{exitConfigError, fmt.Errorf("telemetry server failed to start: %w", err)}
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := telemetrySrv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("telemetry server shutdown failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		if telemetrySrv != nil {
			telemetrySrv.SetReady(false)
		}
		cancel()
	}()

	err = b.Run(ctx)
	if errors.Is(err, bot.ErrStartupCircuitBroken) {
		return exitError{exitCircuitBroken, err}
	}
	if err != nil {
		return exitError{exitVenueUnreachable, err}
	}
	return nil
}

func runStatus(cfg config.AppConfig) error {
	venue, _, err := buildVenue(cfg)
	if err != nil {
		return exitError{exitVenueUnreachable, err}
	}
	ctx := context.Background()
	if err := venue.Connect(ctx); err != nil {
		return exitError{exitVenueUnreachable, err}
	}
	account, err := venue.GetAccount(ctx)
	if err != nil {
		return exitError{exitVenueUnreachable, err}
	}

	fmt.Printf("venue: %s\n", venue.Name())
	fmt.Printf("equity_usd: %s\n", account.EquityUSD.StringFixed(2))
	fmt.Printf("free_collateral_usd: %s\n", account.FreeCollateralUSD.StringFixed(2))

	if data, err := os.ReadFile(cfg.BotStatePath); err == nil {
		fmt.Printf("bot_state.json present (%d bytes): restart will attempt rehydration\n", len(data))
	} else {
		fmt.Println("no open position recorded in bot_state.json")
	}
	return nil
}

func runSetup() error {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("dYdX v4 testnet setup")
	fmt.Println("Enter your testnet wallet mnemonic (BIP39, 12 or 24 words).")
	fmt.Println("This is stored only in the DYDX_MNEMONIC environment variable for this session's .env file.")
	fmt.Print("mnemonic: ")
	mnemonic, err := reader.ReadString('\n')
	if err != nil {
		return exitError{exitConfigError, err}
	}

	fmt.Print("sub-account number [0]: ")
	subAccountLine, _ := reader.ReadString('\n')
	subAccount := "0"
	if trimmed := trimNewline(subAccountLine); trimmed != "" {
		subAccount = trimmed
	}

	envContents := fmt.Sprintf("DYDX_MNEMONIC=%q\nDYDX_SUBACCOUNT_NUMBER=%s\n", trimNewline(mnemonic), subAccount)
	if err := os.WriteFile(".env", []byte(envContents), 0o600); err != nil {
		return exitError{exitConfigError, fmt.Errorf("failed to write .env: %w", err)}
	}

	fmt.Println("credentials written to .env (chmod 600). Run `bot start --live` when ready.")
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
