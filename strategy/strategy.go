// Package strategy is the event-driven core: it mirrors exchange-side
// positions from order events, manages declarative bracket exits, and
// dispatches price updates to user handlers. The same code path runs
// against the simulator in backtests and the live exchange client.
package strategy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/indicators"
	"github.com/rustyeddy/hfstrategy/journal"
	"github.com/rustyeddy/hfstrategy/market"
)

// Config carries everything a Strategy needs up front. Symbol is the
// default symbol for the single-symbol operation surface; Mode decides
// which exchange wallet order events are accepted from.
type Config struct {
	Symbol      string
	Mode        broker.ExchangeMode
	Backtesting bool
	Indicators  []indicators.Indicator
	Journal     journal.Journal
	Logger      *slog.Logger
}

// Strategy owns the position registry, the indicator set and the handler
// subscriptions. All state is guarded by mu; the lock is never held while
// user handlers or the order manager run.
type Strategy struct {
	mu sync.Mutex

	symbol      string
	mode        broker.ExchangeMode
	backtesting bool
	ready       bool

	positions  map[string]*Position
	closed     []*Position
	lastUpdate map[string]*market.PriceUpdate
	indicators map[string]indicators.Indicator

	orders  broker.OrderManager
	journal journal.Journal
	subs    subscriptions
	log     *slog.Logger
}

func New(cfg Config) *Strategy {
	if cfg.Mode == 0 {
		cfg.Mode = broker.Margin
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Strategy{
		symbol:      cfg.Symbol,
		mode:        cfg.Mode,
		backtesting: cfg.Backtesting,
		ready:       true,
		positions:   make(map[string]*Position),
		lastUpdate:  make(map[string]*market.PriceUpdate),
		indicators:  make(map[string]indicators.Indicator),
		journal:     cfg.Journal,
		log:         cfg.Logger.With("symbol", cfg.Symbol),
	}
	for _, ind := range cfg.Indicators {
		s.indicators[ind.Name()] = ind
	}
	return s
}

// BindOrderManager attaches the execution backend and subscribes the
// strategy to its order event stream.
func (s *Strategy) BindOrderManager(om broker.OrderManager) {
	s.mu.Lock()
	s.orders = om
	s.mu.Unlock()
	om.SubscribeOrders(s.handleOrderEvent)
}

func (s *Strategy) handleOrderEvent(kind broker.OrderEventKind, o broker.Order) {
	ctx := context.Background()
	switch kind {
	case broker.OrderNew:
		s.processOrderNew(ctx, o)
	case broker.OrderUpdate:
		s.processOrderUpdate(ctx, o)
	case broker.OrderClosed:
		s.processOrderClosed(ctx, o)
	}
}

// Symbol returns the strategy's default symbol.
func (s *Strategy) Symbol() string { return s.symbol }

// Mode returns the exchange mode orders are submitted and accepted under.
func (s *Strategy) Mode() broker.ExchangeMode { return s.mode }

func (s *Strategy) IsBacktesting() bool { return s.backtesting }

// GetPosition returns the active position for symbol, if any.
func (s *Strategy) GetPosition(symbol string) (*Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// OpenPositions returns every currently active position.
func (s *Strategy) OpenPositions() []*Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// ClosedPositions returns the archive of closed positions, oldest first.
func (s *Strategy) ClosedPositions() []*Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Position, len(s.closed))
	copy(out, s.closed)
	return out
}

// LastPriceUpdate returns the most recent update seen for symbol.
func (s *Strategy) LastPriceUpdate(symbol string) (*market.PriceUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.lastUpdate[symbol]
	return u, ok
}

// ProcessCandle ingests a closed candle: the indicator set advances one
// step and a price update at the close is dispatched.
func (s *Strategy) ProcessCandle(ctx context.Context, c *market.Candle) {
	s.mu.Lock()
	for _, ind := range s.indicators {
		ind.Add(c.Close)
	}
	values := s.indicatorValues()
	candleSubs := make([]CandleHandler, len(s.subs.candle))
	copy(candleSubs, s.subs.candle)
	s.mu.Unlock()

	fns := make([]func() error, 0, len(candleSubs))
	for _, h := range candleSubs {
		h := h
		fns = append(fns, func() error { return h(ctx, c) })
	}
	s.emitError(gather(fns))

	s.processPriceUpdate(ctx, &market.PriceUpdate{
		Price:           c.Close,
		Symbol:          c.Symbol,
		MTS:             c.MTS,
		Type:            market.FromCandle,
		Candle:          c,
		IndicatorValues: values,
	})
}

// ProcessTrade ingests a matched public trade: indicators revise their
// current value in place and a price update at the trade price is
// dispatched.
func (s *Strategy) ProcessTrade(ctx context.Context, t *market.Trade) {
	s.mu.Lock()
	for _, ind := range s.indicators {
		ind.Update(t.Price)
	}
	values := s.indicatorValues()
	tradeSubs := make([]TradeHandler, len(s.subs.trade))
	copy(tradeSubs, s.subs.trade)
	s.mu.Unlock()

	fns := make([]func() error, 0, len(tradeSubs))
	for _, h := range tradeSubs {
		h := h
		fns = append(fns, func() error { return h(ctx, t) })
	}
	s.emitError(gather(fns))

	s.processPriceUpdate(ctx, &market.PriceUpdate{
		Price:           t.Price,
		Symbol:          t.Symbol,
		MTS:             t.MTS,
		Type:            market.FromTrade,
		Trade:           t,
		IndicatorValues: values,
	})
}

// ProcessSeedCandle warms the indicator set without dispatching handlers.
// The backtest runner feeds the seed window through here before signalling
// ready.
func (s *Strategy) ProcessSeedCandle(c *market.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ind := range s.indicators {
		ind.Add(c.Close)
	}
	s.lastUpdate[c.Symbol] = &market.PriceUpdate{
		Price:  c.Close,
		Symbol: c.Symbol,
		MTS:    c.MTS,
		Type:   market.FromCandle,
		Candle: c,
	}
}

// SignalReady emits the ready event once. Repeated calls are no-ops.
func (s *Strategy) SignalReady(ctx context.Context) {
	s.mu.Lock()
	if s.ready && len(s.subs.ready) == 0 {
		s.mu.Unlock()
		return
	}
	s.ready = true
	readySubs := make([]ReadyHandler, len(s.subs.ready))
	copy(readySubs, s.subs.ready)
	s.subs.ready = nil
	s.mu.Unlock()

	fns := make([]func() error, 0, len(readySubs))
	for _, h := range readySubs {
		h := h
		fns = append(fns, func() error { return h(ctx) })
	}
	s.emitError(gather(fns))
}

// Reset drops cached market state and rewinds the indicator set. Active
// positions survive a reset; the exchange still holds them.
func (s *Strategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = make(map[string]*market.PriceUpdate)
	for _, ind := range s.indicators {
		ind.Reset()
	}
}

// Indicator returns a registered indicator by name.
func (s *Strategy) Indicator(name string) (indicators.Indicator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indicators[name]
	return ind, ok
}

// indicatorValues snapshots every ready indicator. Callers hold mu.
func (s *Strategy) indicatorValues() map[string]float64 {
	values := make(map[string]float64, len(s.indicators))
	for name, ind := range s.indicators {
		if ind.Ready() {
			values[name] = ind.Value()
		}
	}
	return values
}

// processPriceUpdate is the dispatch heart: it records the update, marks
// the active position to the new price, fires any locally-triggered
// market exits, then routes the update to enter or update handlers.
func (s *Strategy) processPriceUpdate(ctx context.Context, u *market.PriceUpdate) {
	s.mu.Lock()
	s.lastUpdate[u.Symbol] = u

	pos, hasPos := s.positions[u.Symbol]
	var stopCross, targetCross bool
	var long bool
	if hasPos {
		pos.UpdateWithPrice(u.Price)
		long = pos.Amount > 0
		// Market exit legs live only here. In backtests limit legs have no
		// exchange order either, so the feed triggers those as well.
		if pos.HasReachedStop(u) && (pos.ExitOrder.IsStopMarket() || s.backtesting) {
			stopCross = true
		} else if pos.HasReachedTarget(u) && (pos.ExitOrder.IsTargetMarket() || s.backtesting) {
			targetCross = true
		}
	}

	var enterSubs, updateSubs, sideSubs, anySubs []PriceUpdateHandler
	var reachedSubs []PositionHandler
	if hasPos {
		updateSubs = make([]PriceUpdateHandler, len(s.subs.update))
		copy(updateSubs, s.subs.update)
		switch {
		case stopCross:
			reachedSubs = make([]PositionHandler, len(s.subs.stopReached))
			copy(reachedSubs, s.subs.stopReached)
		case targetCross:
			reachedSubs = make([]PositionHandler, len(s.subs.targetReached))
			copy(reachedSubs, s.subs.targetReached)
		case long:
			sideSubs = make([]PriceUpdateHandler, len(s.subs.updateLong))
			copy(sideSubs, s.subs.updateLong)
		default:
			sideSubs = make([]PriceUpdateHandler, len(s.subs.updateShort))
			copy(sideSubs, s.subs.updateShort)
		}
	} else {
		enterSubs = make([]PriceUpdateHandler, len(s.subs.enter))
		copy(enterSubs, s.subs.enter)
	}
	anySubs = make([]PriceUpdateHandler, len(s.subs.priceUpdate))
	copy(anySubs, s.subs.priceUpdate)
	s.mu.Unlock()

	s.emitPriceHandlers(ctx, anySubs, u)
	if !hasPos {
		s.emitPriceHandlers(ctx, enterSubs, u)
		return
	}
	s.emitPriceHandlers(ctx, updateSubs, u)

	if stopCross || targetCross {
		s.emitPositionHandlers(ctx, reachedSubs, pos)
		if err := s.ClosePositionMarket(ctx, PositionParams{
			Symbol:    u.Symbol,
			Price:     u.Price,
			MTSCreate: u.MTS,
		}); err != nil {
			s.emitError(err)
		}
		return
	}
	s.emitPriceHandlers(ctx, sideSubs, u)
}

// addPosition indexes a new position. Callers hold mu.
func (s *Strategy) addPosition(p *Position) {
	s.positions[p.Symbol] = p
}

// archivePosition moves a flat position from the active registry to the
// closed archive and journals it. Callers hold mu.
func (s *Strategy) archivePosition(p *Position) {
	p.Close()
	delete(s.positions, p.Symbol)
	s.closed = append(s.closed, p)
	if s.journal != nil {
		if err := s.journal.RecordPosition(journal.NewPositionRecord(
			p.Symbol, p.Tag, p.OpenedMTS, p.Price, p.Volume, p.TotalFees, p.Summary().Net,
		)); err != nil {
			s.log.Error("journal position", "err", err)
		}
	}
}
