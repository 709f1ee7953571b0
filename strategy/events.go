package strategy

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/market"
)

// Handler signatures for the strategy event surface. Every handler runs on
// the single dispatch goroutine, so handlers may call back into the
// strategy but must not block on it from another goroutine.
type (
	PriceUpdateHandler func(ctx context.Context, u *market.PriceUpdate) error
	CandleHandler      func(ctx context.Context, c *market.Candle) error
	TradeHandler       func(ctx context.Context, t *market.Trade) error
	PositionHandler    func(ctx context.Context, p *Position) error
	OrderFillHandler   func(ctx context.Context, o *broker.Order) error
	ReadyHandler       func(ctx context.Context) error
	ErrorHandler       func(err error)
)

// subscriptions holds the registered handlers per event kind. It is owned
// by the Strategy and mutated only under the strategy mutex.
type subscriptions struct {
	enter       []PriceUpdateHandler
	update      []PriceUpdateHandler
	updateLong  []PriceUpdateHandler
	updateShort []PriceUpdateHandler
	priceUpdate []PriceUpdateHandler
	candle      []CandleHandler
	trade       []TradeHandler

	positionOpened []PositionHandler
	positionUpdate []PositionHandler
	positionClosed []PositionHandler
	stopReached    []PositionHandler
	targetReached  []PositionHandler
	orderFill      []OrderFillHandler
	ready          []ReadyHandler
	errors         []ErrorHandler
}

// OnEnter registers a handler invoked for the first price update of a
// symbol with no active position.
func (s *Strategy) OnEnter(h PriceUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.enter = append(s.subs.enter, h)
}

// OnUpdate registers a handler invoked for every price update while a
// position is active on the symbol.
func (s *Strategy) OnUpdate(h PriceUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.update = append(s.subs.update, h)
}

// OnUpdateLong registers a handler invoked for price updates while the
// active position is long; OnUpdateShort is its short counterpart.
func (s *Strategy) OnUpdateLong(h PriceUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.updateLong = append(s.subs.updateLong, h)
}

func (s *Strategy) OnUpdateShort(h PriceUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.updateShort = append(s.subs.updateShort, h)
}

// OnPriceUpdate registers a handler invoked for every price update,
// regardless of position state.
func (s *Strategy) OnPriceUpdate(h PriceUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.priceUpdate = append(s.subs.priceUpdate, h)
}

// OnCandle registers a handler invoked for every ingested candle.
func (s *Strategy) OnCandle(h CandleHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.candle = append(s.subs.candle, h)
}

// OnTrade registers a handler invoked for every ingested public trade.
func (s *Strategy) OnTrade(h TradeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.trade = append(s.subs.trade, h)
}

// OnPositionOpened fires after a position's opening order confirms.
func (s *Strategy) OnPositionOpened(h PositionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.positionOpened = append(s.subs.positionOpened, h)
}

// OnPositionUpdate fires after an update order folds into a position.
func (s *Strategy) OnPositionUpdate(h PositionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.positionUpdate = append(s.subs.positionUpdate, h)
}

// OnPositionClosed fires after a position goes flat and is archived.
func (s *Strategy) OnPositionClosed(h PositionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.positionClosed = append(s.subs.positionClosed, h)
}

// OnPositionStopReached fires when a position's declared stop price is
// crossed, whether by a local market exit or an exchange-side fill.
func (s *Strategy) OnPositionStopReached(h PositionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.stopReached = append(s.subs.stopReached, h)
}

// OnPositionTargetReached is the take-profit counterpart.
func (s *Strategy) OnPositionTargetReached(h PositionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.targetReached = append(s.subs.targetReached, h)
}

// OnOrderFill fires for every executed order the strategy attributes to
// one of its positions.
func (s *Strategy) OnOrderFill(h OrderFillHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.orderFill = append(s.subs.orderFill, h)
}

// OnReady fires once the seed window has been consumed and live dispatch
// begins.
func (s *Strategy) OnReady(h ReadyHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.ready = append(s.subs.ready, h)
}

// OnError registers a sink for handler errors. Errors never interrupt
// dispatch of the event that produced them.
func (s *Strategy) OnError(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.errors = append(s.subs.errors, h)
}

// gather runs each handler closure and collects their errors. Handlers for
// one event kind run concurrently; dispatch of the next event waits until
// all have returned.
func gather(fns []func() error) error {
	if len(fns) == 0 {
		return nil
	}
	var g errgroup.Group
	for _, fn := range fns {
		g.Go(fn)
	}
	return g.Wait()
}

func (s *Strategy) emitPriceHandlers(ctx context.Context, hs []PriceUpdateHandler, u *market.PriceUpdate) {
	fns := make([]func() error, 0, len(hs))
	for _, h := range hs {
		h := h
		fns = append(fns, func() error { return h(ctx, u) })
	}
	s.emitError(gather(fns))
}

func (s *Strategy) emitPositionHandlers(ctx context.Context, hs []PositionHandler, p *Position) {
	fns := make([]func() error, 0, len(hs))
	for _, h := range hs {
		h := h
		fns = append(fns, func() error { return h(ctx, p) })
	}
	s.emitError(gather(fns))
}

func (s *Strategy) emitOrderFill(ctx context.Context, hs []OrderFillHandler, o *broker.Order) {
	fns := make([]func() error, 0, len(hs))
	for _, h := range hs {
		h := h
		fns = append(fns, func() error { return h(ctx, o) })
	}
	s.emitError(gather(fns))
}

// emitError routes a handler error to every registered error sink, falling
// back to the log when none are registered.
func (s *Strategy) emitError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	sinks := make([]ErrorHandler, len(s.subs.errors))
	copy(sinks, s.subs.errors)
	s.mu.Unlock()

	if len(sinks) == 0 {
		s.log.Error("strategy handler error", "err", err)
		return
	}
	for _, sink := range sinks {
		sink(err)
	}
}
