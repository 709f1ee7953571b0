package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hfstrategy/pkg/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "hfstrategy",
	Short: "An event-driven trading strategy runtime",
	Long: `hfstrategy is an event-driven runtime for trading strategies.

It provides tools for:
  - Backtesting strategies against historical candle and trade data
  - Reconciling positions from exchange order events
  - Declarative bracket exits (stop / target / OCO)
  - Journaling executed orders and closed positions`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(os.Stderr, logLevel)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
