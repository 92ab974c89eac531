package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Backtest order matching and margin simulator",
	Long: `Trader replays OHLC candles through a simulated broker.

It provides tools for:
  - Market, limit, stop, stop-limit and trailing-stop orders
  - OCO groups, margin accounting and margin calls
  - Journaling executions and equity to SQLite or CSV
  - Comparing strategies over the same candle data`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)

		if cfgFile == "" {
			cfgFile = os.Getenv("TRADER_CONFIG")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $TRADER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded at startup")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
