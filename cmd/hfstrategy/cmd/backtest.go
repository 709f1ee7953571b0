package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/hfstrategy/backtest"
	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/indicators"
	"github.com/rustyeddy/hfstrategy/journal"
	"github.com/rustyeddy/hfstrategy/market"
	"github.com/rustyeddy/hfstrategy/sim"
	"github.com/rustyeddy/hfstrategy/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run an EMA-cross backtest against historical candle data",
	Long: `Backtest replays historical candles (and optionally public trades)
through an EMA crossover strategy bound to the simulated order manager.

Example:
  hfstrategy backtest --candles data/btcusd-1m.csv --symbol tBTCUSD --fast 20 --slow 50`,
	RunE: runBacktest,
}

var (
	btCandlesPath string
	btTradesPath  string
	btDBPath      string
	btSymbol      string
	btTF          string
	btAmount      float64
	btFast        int
	btSlow        int
	btStopPct     float64
	btTargetPct   float64
	btCloseEnd    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btCandlesPath, "candles", "c", "", "path to candle CSV (mts,open,close,high,low,volume) (required)")
	backtestCmd.Flags().StringVarP(&btTradesPath, "trades", "t", "", "path to trade CSV (mts,price,amount)")
	backtestCmd.Flags().StringVarP(&btDBPath, "db", "d", "", "path to SQLite journal DB (no journal if unset)")
	backtestCmd.Flags().StringVarP(&btSymbol, "symbol", "s", "tBTCUSD", "trading symbol")
	backtestCmd.Flags().StringVar(&btTF, "tf", "1m", "candle timeframe")
	backtestCmd.Flags().Float64VarP(&btAmount, "amount", "a", 1, "position size")
	backtestCmd.Flags().IntVar(&btFast, "fast", 20, "fast EMA period")
	backtestCmd.Flags().IntVar(&btSlow, "slow", 50, "slow EMA period")
	backtestCmd.Flags().Float64Var(&btStopPct, "stop-pct", 0, "stop distance as percent of entry (0 = no stop)")
	backtestCmd.Flags().Float64Var(&btTargetPct, "target-pct", 0, "target distance as percent of entry (0 = no target)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close open positions at end of replay")

	backtestCmd.MarkFlagRequired("candles")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	candles, err := backtest.LoadCandles(btCandlesPath, btSymbol, btTF)
	if err != nil {
		return err
	}
	var trades []market.Trade
	if btTradesPath != "" {
		trades, err = backtest.LoadTrades(btTradesPath, btSymbol)
		if err != nil {
			return err
		}
	}

	var j journal.Journal
	if btDBPath != "" {
		sj, err := journal.NewSQLite(btDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sj.Close()
		j = sj
	}

	fast := indicators.NewEMA(btFast)
	slow := indicators.NewEMA(btSlow)

	strat := strategy.New(strategy.Config{
		Symbol:      btSymbol,
		Mode:        broker.Margin,
		Backtesting: true,
		Indicators:  []indicators.Indicator{fast, slow},
		Journal:     j,
	})
	strat.BindOrderManager(sim.NewOrderManager(nil))

	var prevAbove bool
	var seen bool
	onUpdate := func(ctx context.Context, u *market.PriceUpdate) error {
		if !u.IsCandle() || !fast.Ready() || !slow.Ready() {
			return nil
		}
		above := fast.Value() > slow.Value()
		defer func() { prevAbove, seen = above, true }()
		if !seen || above == prevAbove {
			return nil
		}

		if pos, ok := strat.GetPosition(btSymbol); ok {
			longPos := pos.Amount > 0
			if longPos == above {
				return nil
			}
			if err := strat.ClosePositionMarket(ctx, strategy.PositionParams{Symbol: btSymbol}); err != nil {
				return err
			}
		}

		params := strategy.PositionParams{
			Symbol: btSymbol,
			Amount: btAmount,
			Tag:    "ema-cross",
		}
		dir := 1.0
		if !above {
			dir = -1
		}
		if btStopPct > 0 {
			stop := u.Price * (1 - dir*btStopPct/100)
			params.Stop = &stop
		}
		if btTargetPct > 0 {
			target := u.Price * (1 + dir*btTargetPct/100)
			params.Target = &target
		}
		if above {
			return strat.OpenLongPositionMarket(ctx, params)
		}
		return strat.OpenShortPositionMarket(ctx, params)
	}
	strat.OnEnter(onUpdate)
	strat.OnUpdate(onUpdate)

	runner := backtest.Runner{
		Strategy: strat,
		Candles:  candles,
		Trades:   trades,
		Seed:     btSlow,
		CloseEnd: btCloseEnd,
	}
	res, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(res)
	return nil
}
