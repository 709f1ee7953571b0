package backtest

import (
	"context"
	"fmt"

	"github.com/rustyeddy/hfstrategy/market"
	"github.com/rustyeddy/hfstrategy/pkg/id"
	"github.com/rustyeddy/hfstrategy/strategy"
)

// Runner replays candles (and optionally trades) through a strategy. The
// first Seed candles warm the indicator set without dispatching handlers;
// after that, trades are delivered before the candle that covers them,
// ordered by timestamp.
type Runner struct {
	Strategy *strategy.Strategy
	Candles  []market.Candle
	Trades   []market.Trade

	Seed     int
	CloseEnd bool
}

// Result summarizes one backtest run. RunID is a fresh ULID so runs can be
// told apart in shared journals.
type Result struct {
	RunID     string
	Positions int
	Wins      int
	Losses    int

	NetPL  float64
	Fees   float64
	Volume float64
}

func (r Result) String() string {
	return fmt.Sprintf("run=%s positions=%d wins=%d losses=%d net_pl=%.2f fees=%.2f volume=%.2f",
		r.RunID, r.Positions, r.Wins, r.Losses, r.NetPL, r.Fees, r.Volume)
}

// Run replays the data set and returns the summary. The strategy must be
// configured with Backtesting and bound to a sim order manager before the
// run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: no strategy")
	}
	if r.Seed > len(r.Candles) {
		return Result{}, fmt.Errorf("backtest: seed window %d exceeds %d candles", r.Seed, len(r.Candles))
	}

	for i := 0; i < r.Seed; i++ {
		r.Strategy.ProcessSeedCandle(&r.Candles[i])
	}
	r.Strategy.SignalReady(ctx)

	ti := 0
	for ci := r.Seed; ci < len(r.Candles); ci++ {
		c := r.Candles[ci]
		for ti < len(r.Trades) && r.Trades[ti].MTS <= c.MTS {
			t := r.Trades[ti]
			r.Strategy.ProcessTrade(ctx, &t)
			ti++
		}
		r.Strategy.ProcessCandle(ctx, &c)
	}
	for ti < len(r.Trades) {
		t := r.Trades[ti]
		r.Strategy.ProcessTrade(ctx, &t)
		ti++
	}

	if r.CloseEnd {
		if err := r.Strategy.CloseOpenPositions(ctx); err != nil {
			return Result{}, err
		}
	}

	res := Result{RunID: id.New()}
	for _, p := range r.Strategy.ClosedPositions() {
		net := p.Summary().Net
		res.Positions++
		if net >= 0 {
			res.Wins++
		} else {
			res.Losses++
		}
		res.NetPL += net
		res.Fees += p.TotalFees
		res.Volume += p.Volume
	}
	return res, nil
}
