package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hfstrategy/market"
	"github.com/rustyeddy/hfstrategy/sim"
	"github.com/rustyeddy/hfstrategy/strategy"
)

func newBacktestStrategy() *strategy.Strategy {
	s := strategy.New(strategy.Config{
		Symbol:      "tBTCUSD",
		Backtesting: true,
	})
	s.BindOrderManager(sim.NewOrderManager(nil))
	return s
}

func candle(mts int64, price float64) market.Candle {
	return market.Candle{
		MTS:    mts,
		Open:   price,
		Close:  price,
		High:   price,
		Low:    price,
		Symbol: "tBTCUSD",
		TF:     "1m",
	}
}

func TestRunnerSeedWindowSkipsDispatch(t *testing.T) {
	s := newBacktestStrategy()

	var dispatched, ready int
	s.OnCandle(func(ctx context.Context, c *market.Candle) error {
		dispatched++
		return nil
	})
	s.OnReady(func(ctx context.Context) error {
		ready++
		return nil
	})

	r := Runner{
		Strategy: s,
		Candles: []market.Candle{
			candle(60_000, 100), candle(120_000, 101), candle(180_000, 102),
			candle(240_000, 103), candle(300_000, 104),
		},
		Seed: 2,
	}
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, dispatched)
	assert.Equal(t, 1, ready)
}

func TestRunnerSeedExceedsCandles(t *testing.T) {
	r := Runner{
		Strategy: newBacktestStrategy(),
		Candles:  []market.Candle{candle(60_000, 100)},
		Seed:     2,
	}
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerInterleavesTradesBeforeCandles(t *testing.T) {
	s := newBacktestStrategy()

	type step struct {
		kind market.UpdateType
		mts  int64
	}
	var seq []step
	s.OnPriceUpdate(func(ctx context.Context, u *market.PriceUpdate) error {
		seq = append(seq, step{u.Type, u.MTS})
		return nil
	})

	r := Runner{
		Strategy: s,
		Candles:  []market.Candle{candle(120_000, 100), candle(180_000, 101)},
		Trades: []market.Trade{
			{MTS: 130_000, Price: 100.5, Amount: 1, Symbol: "tBTCUSD"},
			{MTS: 150_000, Price: 100.7, Amount: -1, Symbol: "tBTCUSD"},
			{MTS: 190_000, Price: 101.2, Amount: 1, Symbol: "tBTCUSD"},
		},
	}
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	want := []step{
		{market.FromCandle, 120_000},
		{market.FromTrade, 130_000},
		{market.FromTrade, 150_000},
		{market.FromCandle, 180_000},
		{market.FromTrade, 190_000},
	}
	assert.Equal(t, want, seq)
}

func TestRunnerSummarizesClosedPositions(t *testing.T) {
	s := newBacktestStrategy()

	s.OnEnter(func(ctx context.Context, u *market.PriceUpdate) error {
		target := u.Price + 5
		return s.OpenLongPositionMarket(ctx, strategy.PositionParams{
			Amount: 1,
			Target: &target,
		})
	})

	r := Runner{
		Strategy: s,
		Candles: []market.Candle{
			candle(60_000, 100), candle(120_000, 103), candle(180_000, 106),
		},
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Positions)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 0, res.Losses)
	assert.Greater(t, res.NetPL, 0.0)
	assert.Greater(t, res.Fees, 0.0)
}

func TestRunnerCloseEnd(t *testing.T) {
	s := newBacktestStrategy()

	s.OnEnter(func(ctx context.Context, u *market.PriceUpdate) error {
		return s.OpenLongPositionMarket(ctx, strategy.PositionParams{Amount: 1})
	})

	r := Runner{
		Strategy: s,
		Candles:  []market.Candle{candle(60_000, 100), candle(120_000, 101)},
		CloseEnd: true,
	}
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, s.OpenPositions())
	assert.Equal(t, 1, res.Positions)
}
