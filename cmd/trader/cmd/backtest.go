package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rustyeddy/tradelab/backtest"
	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/config"
	"github.com/rustyeddy/tradelab/journal"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/strategies"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay candles through the simulated broker with a strategy",
	Long: `Backtest replays an OHLC candle CSV (time,symbol,open,high,low,close,volume)
tick by tick through the simulated broker and lets a strategy trade it.

Supported strategies:
  - noop: does nothing (baseline)
  - open-once: one market order on the first candle
  - bracket: pullback limit entry with an OCO take-profit / stop exit
  - ema-cross: EMA crossover, risk sized, trailing stop protected

Flags override the matching config values.

Example:
  trader backtest -c backtest.yaml --candles data/acme.csv --strategy ema-cross`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btCandles          string
	btTicks            string
	btSymbol           string
	btStrategy         string
	btJournal          string
	btDBPath           string
	btBalance          float64
	btLeverage         float64
	btExtremeOrder     string
	btStopOnMarginCall bool
	btProgress         bool
	btShowExecutions   bool
	btOrgFile          string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVar(&btCandles, "candles", "", "path to candle CSV")
	f.StringVar(&btTicks, "ticks", "", "path to tick CSV (time,symbol,price or time,symbol,bid,ask); replaces --candles")
	f.StringVar(&btSymbol, "symbol", "", "symbol to trade")
	f.StringVarP(&btStrategy, "strategy", "s", "", "strategy name ("+strings.Join(strategies.Names(), ", ")+")")
	f.StringVarP(&btJournal, "journal", "j", "", "journal type (sqlite, csv, memory, none)")
	f.StringVarP(&btDBPath, "db", "d", "", "path to SQLite journal DB")
	f.Float64VarP(&btBalance, "balance", "b", 0, "starting account balance")
	f.Float64Var(&btLeverage, "leverage", 0, "account leverage")
	f.StringVar(&btExtremeOrder, "extreme-order", "", "which candle extreme is replayed first (direction, nearest, high-first, low-first)")
	f.BoolVar(&btStopOnMarginCall, "stop-on-margin-call", true, "abort the run at the first margin call")
	f.BoolVar(&btProgress, "progress", true, "show a progress bar")
	f.BoolVar(&btShowExecutions, "executions", false, "print the execution table")
	f.StringVar(&btOrgFile, "org", "", "write an Org-mode run report to this file")
}

// applyBacktestFlags copies every flag the user set over the config.
func applyBacktestFlags(flags *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("candles", func() { cfg.Replay.Candles = btCandles })
	set("ticks", func() { cfg.Replay.Ticks = btTicks })
	set("symbol", func() { cfg.Replay.Symbol = btSymbol })
	set("strategy", func() { cfg.Strategy.Name = btStrategy })
	set("journal", func() { cfg.Journal.Type = btJournal })
	set("db", func() { cfg.Journal.DBPath = btDBPath })
	set("balance", func() { cfg.Account.Balance = btBalance })
	set("leverage", func() { cfg.Broker.Leverage = btLeverage })
	set("extreme-order", func() { cfg.Replay.ExtremeOrder = btExtremeOrder })
	set("org", func() { cfg.Journal.OrgFile = btOrgFile })
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.ExecutionsFile, jc.EquityFile)
	case "memory":
		return journal.NewMemory(), nil
	default:
		return journal.Discard{}, nil
	}
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// attachProgress hooks a progress bar to the runner; total -1 shows a
// spinner.
func attachProgress(r *backtest.Runner, total int) func() {
	if !btProgress {
		return func() {}
	}
	bar := newProgressBar(total)
	r.Progress = func(done, total int) { _ = bar.Add(1) }
	return func() {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	policy, err := pricing.ParseExtremeOrder(cfg.Replay.ExtremeOrder)
	if err != nil {
		return err
	}
	step, err := cfg.Replay.Step()
	if err != nil {
		return err
	}

	params, err := cfg.StrategyParams()
	if err != nil {
		return err
	}
	strat, err := strategies.ByName(cfg.Strategy.Name, params)
	if err != nil {
		return err
	}
	stratJSON, err := json.Marshal(cfg.Strategy)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	r := &backtest.Runner{
		Strategy:         strat,
		Journal:          j,
		Policy:           policy,
		Step:             step,
		Logger:           log.StandardLogger(),
		StopOnMarginCall: btStopOnMarginCall,
		Dataset:          cfg.Replay.Dataset(),
		Config:           stratJSON,
	}
	b, err := sim.NewBroker(cfg.BrokerSettings(), sim.WithMarginCall(r.OnMarginCall))
	if err != nil {
		return err
	}
	r.Broker = b

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.WithFields(log.Fields{
		"dataset":  cfg.Replay.Dataset(),
		"symbol":   cfg.Replay.Symbol,
		"strategy": strat.Name(),
		"journal":  cfg.Journal.Type,
	}).Info("running backtest")

	var (
		res    backtest.Result
		runErr error
	)
	if cfg.Replay.Ticks != "" {
		feed, err := pricing.OpenCSVTickFeed(cfg.Replay.Ticks, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		defer feed.Close()

		finish := attachProgress(r, -1)
		res, runErr = r.RunTicks(ctx, feed)
		finish()
	} else {
		candles, err := pricing.LoadCandlesCSV(cfg.Replay.Candles)
		if err != nil {
			return err
		}

		finish := attachProgress(r, len(candles))
		res, runErr = r.Run(ctx, candles)
		finish()
	}

	out := cmd.OutOrStdout()
	backtest.PrintResult(out, res)
	if btShowExecutions {
		backtest.PrintExecutions(out, b.Executions())
	}
	if cfg.Journal.OrgFile != "" {
		bt := res.Run(cfg.Replay.Dataset(), stratJSON, b.Now())
		if err := bt.WriteOrgFile(cfg.Journal.OrgFile); err != nil {
			log.WithError(err).WithField("path", cfg.Journal.OrgFile).Error("write org report")
		}
	}
	return runErr
}
