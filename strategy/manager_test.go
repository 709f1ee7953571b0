package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/market"
	"github.com/rustyeddy/hfstrategy/sim"
)

func newSimStrategy(backtesting bool) (*Strategy, *sim.OrderManager) {
	s := New(Config{
		Symbol:      "tBTCUSD",
		Mode:        broker.Margin,
		Backtesting: backtesting,
	})
	om := sim.NewOrderManager(nil)
	s.BindOrderManager(om)
	return s, om
}

func feedCandle(s *Strategy, mts int64, price float64) {
	s.ProcessCandle(context.Background(), &market.Candle{
		MTS:    mts,
		Open:   price,
		Close:  price,
		High:   price,
		Low:    price,
		Symbol: "tBTCUSD",
		TF:     "1m",
	})
}

func TestOpenPositionMarket(t *testing.T) {
	s, om := newSimStrategy(false)
	ctx := context.Background()
	feedCandle(s, 1000, 100)

	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))

	pos, ok := s.GetPosition("tBTCUSD")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.Amount)
	assert.Equal(t, 100.0, pos.Price)
	assert.InDelta(t, 0.2, pos.TotalFees, 1e-9)
	assert.True(t, pos.IsOpen())

	last, ok := om.LastSent()
	require.True(t, ok)
	assert.Equal(t, "submit_trade", last.Func)
	assert.Equal(t, broker.KindMarket, last.Req.Type.Kind)
	assert.Equal(t, broker.Margin, last.Req.Type.Mode)
}

func TestOpenPositionLimit(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()

	require.NoError(t, s.OpenPositionLimit(ctx, PositionParams{Amount: 2, Price: 95}))

	pos, ok := s.GetPosition("tBTCUSD")
	require.True(t, ok)
	assert.Equal(t, 2.0, pos.Amount)
	assert.Equal(t, 95.0, pos.Price)
	// maker fee on a limit fill
	assert.InDelta(t, 0.19, pos.TotalFees, 1e-9)
}

func TestOpenPositionTwiceFails(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()
	feedCandle(s, 1000, 100)

	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))
	err := s.OpenPositionMarket(ctx, PositionParams{Amount: 1})
	assert.ErrorIs(t, err, ErrPositionExists)

	var perr *PositionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "tBTCUSD", perr.Symbol)
}

func TestMarketOrderWithoutPriceUpdate(t *testing.T) {
	s, _ := newSimStrategy(false)
	err := s.OpenPositionMarket(context.Background(), PositionParams{Amount: 1})
	assert.ErrorIs(t, err, ErrNoPriceUpdate)
}

func TestLongShortWrappersForceSign(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()
	feedCandle(s, 1000, 100)

	require.NoError(t, s.OpenShortPositionMarket(ctx, PositionParams{Amount: 1}))
	pos, _ := s.GetPosition("tBTCUSD")
	assert.Equal(t, -1.0, pos.Amount)

	require.NoError(t, s.ClosePositionMarket(ctx, PositionParams{}))
	require.NoError(t, s.OpenLongPositionMarket(ctx, PositionParams{Amount: -1}))
	pos, _ = s.GetPosition("tBTCUSD")
	assert.Equal(t, 1.0, pos.Amount)
}

func TestUpdatePositionMarket(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()

	var updates int
	s.OnPositionUpdate(func(ctx context.Context, p *Position) error {
		updates++
		return nil
	})

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))
	feedCandle(s, 2000, 110)
	require.NoError(t, s.UpdatePositionMarket(ctx, PositionParams{Amount: 1}))

	pos, _ := s.GetPosition("tBTCUSD")
	assert.Equal(t, 2.0, pos.Amount)
	assert.Equal(t, 105.0, pos.Price)
	assert.Equal(t, 1, updates)
}

func TestUpdateWithoutPositionFails(t *testing.T) {
	s, _ := newSimStrategy(false)
	feedCandle(s, 1000, 100)
	err := s.UpdatePositionMarket(context.Background(), PositionParams{Amount: 1})
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestUpdateToFlatArchivesPosition(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))
	feedCandle(s, 2000, 110)
	require.NoError(t, s.UpdatePositionMarket(ctx, PositionParams{Amount: -1}))

	_, ok := s.GetPosition("tBTCUSD")
	assert.False(t, ok)
	require.Len(t, s.ClosedPositions(), 1)
}

func TestClosePositionMarket(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()

	var closed int
	s.OnPositionClosed(func(ctx context.Context, p *Position) error {
		closed++
		return nil
	})

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))
	feedCandle(s, 2000, 110)
	require.NoError(t, s.ClosePositionMarket(ctx, PositionParams{}))

	_, ok := s.GetPosition("tBTCUSD")
	assert.False(t, ok)
	require.Len(t, s.ClosedPositions(), 1)

	p := s.ClosedPositions()[0]
	assert.False(t, p.IsOpen())
	assert.Equal(t, 0.0, p.Amount)
	assert.InDelta(t, 9.58, p.Summary().Net, 1e-9)
	assert.Equal(t, 1, closed)
}

func TestCloseWithoutPositionFails(t *testing.T) {
	s, _ := newSimStrategy(false)
	feedCandle(s, 1000, 100)
	err := s.ClosePositionMarket(context.Background(), PositionParams{})
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestCloseOpenPositions(t *testing.T) {
	s, _ := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))
	require.NoError(t, s.CloseOpenPositions(ctx))

	assert.Empty(t, s.OpenPositions())
	assert.Len(t, s.ClosedPositions(), 1)
}

func TestOrderEventModeMismatchIgnored(t *testing.T) {
	s, om := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))

	om.EmitOrder(broker.OrderClosed, broker.Order{
		ID:         999,
		Symbol:     "tBTCUSD",
		MTSUpdate:  5000,
		AmountOrig: -1,
		Price:      110,
		PriceAvg:   110,
		Status:     "EXECUTED",
		Type:       broker.MarketType(broker.Exchange),
	})

	pos, ok := s.GetPosition("tBTCUSD")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.Amount)
}

func TestExchangeFillFoldsIntoPosition(t *testing.T) {
	s, om := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))

	om.EmitOrder(broker.OrderUpdate, broker.Order{
		ID:         999,
		Symbol:     "tBTCUSD",
		MTSUpdate:  5000,
		AmountOrig: 1,
		Price:      120,
		PriceAvg:   120,
		Status:     "PARTIALLY FILLED",
		Type:       broker.LimitType(broker.Margin),
	})

	pos, ok := s.GetPosition("tBTCUSD")
	require.True(t, ok)
	assert.Equal(t, 2.0, pos.Amount)
	assert.Equal(t, 110.0, pos.Price)
}

func TestExchangeCloseFillArchivesPosition(t *testing.T) {
	s, om := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))

	om.EmitOrder(broker.OrderClosed, broker.Order{
		ID:         999,
		Symbol:     "tBTCUSD",
		MTSUpdate:  5000,
		AmountOrig: -1,
		Price:      110,
		PriceAvg:   110,
		Status:     "EXECUTED",
		Type:       broker.MarketType(broker.Margin),
	})

	_, ok := s.GetPosition("tBTCUSD")
	assert.False(t, ok)
	require.Len(t, s.ClosedPositions(), 1)
	assert.Equal(t, 10.0, s.ClosedPositions()[0].Summary().Realized)
}

func TestUnfilledAcknowledgementIgnored(t *testing.T) {
	s, om := newSimStrategy(false)
	ctx := context.Background()

	feedCandle(s, 1000, 100)
	require.NoError(t, s.OpenPositionMarket(ctx, PositionParams{Amount: 1}))

	om.EmitOrder(broker.OrderNew, broker.Order{
		ID:         999,
		Symbol:     "tBTCUSD",
		MTSUpdate:  5000,
		Amount:     -1,
		AmountOrig: -1, // nothing filled yet
		Price:      110,
		Status:     "ACTIVE",
		Type:       broker.LimitType(broker.Margin),
	})

	pos, ok := s.GetPosition("tBTCUSD")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.Amount)
}
