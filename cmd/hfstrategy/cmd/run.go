package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hfstrategy/bitfinex"
	"github.com/rustyeddy/hfstrategy/config"
	"github.com/rustyeddy/hfstrategy/journal"
	"github.com/rustyeddy/hfstrategy/pkg/logger"
	"github.com/rustyeddy/hfstrategy/strategy"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a strategy against the live exchange",
	Long: `Run connects to the authenticated exchange websocket and binds a
strategy to the live order stream. Positions opened here place real
orders.`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "hfstrategy.yaml", "path to config file")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Strategy.LogLevel)

	mode, err := cfg.Mode()
	if err != nil {
		return err
	}

	var j journal.Journal
	switch cfg.Journal.Type {
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.Dir)
	}
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	strat := strategy.New(strategy.Config{
		Symbol:  cfg.Strategy.Symbol,
		Mode:    mode,
		Journal: j,
	})

	client := bitfinex.New(bitfinex.Config{
		URL:       cfg.Exchange.WSURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
	})
	if err := client.Connect(cmd.Context()); err != nil {
		return err
	}
	defer client.Close()
	strat.BindOrderManager(client)

	fmt.Printf("running %s on %s, ctrl-c to stop\n", cfg.Strategy.Symbol, cfg.Exchange.WSURL)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-cmd.Context().Done():
	}

	return strat.CloseOpenPositions(cmd.Context())
}
