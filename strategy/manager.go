package strategy

import (
	"context"
	"math"
	"time"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/journal"
)

// PositionParams carries the inputs of a position operation. Symbol falls
// back to the strategy default; Price is required for limit operations and
// ignored for market operations, which execute at the last seen price.
type PositionParams struct {
	Symbol    string
	Amount    float64
	Price     float64
	MTSCreate int64

	Stop       *float64
	Target     *float64
	StopType   ExitType
	TargetType ExitType
	Tag        string
}

func (s *Strategy) resolveSymbol(symbol string) string {
	if symbol == "" {
		return s.symbol
	}
	return symbol
}

// marketPrice resolves the execution price for a market operation from the
// last price update seen on the symbol.
func (s *Strategy) marketPrice(symbol string) (price float64, mts int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.lastUpdate[symbol]
	if !ok {
		return 0, 0, positionErr("market order", symbol, ErrNoPriceUpdate)
	}
	return u.Price, u.MTS, nil
}

func (s *Strategy) fillParams(kind broker.OrderKind, p *PositionParams) error {
	p.Symbol = s.resolveSymbol(p.Symbol)
	if kind == broker.KindMarket {
		price, mts, err := s.marketPrice(p.Symbol)
		if err != nil {
			return err
		}
		p.Price = price
		if p.MTSCreate == 0 {
			p.MTSCreate = mts
		}
	}
	if p.MTSCreate == 0 {
		p.MTSCreate = time.Now().UnixMilli()
	}
	return nil
}

// OpenPositionMarket opens a position at the last seen market price.
func (s *Strategy) OpenPositionMarket(ctx context.Context, p PositionParams) error {
	return s.openPositionWithOrder(ctx, broker.KindMarket, p)
}

// OpenPositionLimit opens a position with a limit entry at p.Price.
func (s *Strategy) OpenPositionLimit(ctx context.Context, p PositionParams) error {
	return s.openPositionWithOrder(ctx, broker.KindLimit, p)
}

// OpenLongPositionMarket opens a long position; the amount sign is forced
// positive. The short variants force it negative.
func (s *Strategy) OpenLongPositionMarket(ctx context.Context, p PositionParams) error {
	p.Amount = math.Abs(p.Amount)
	return s.OpenPositionMarket(ctx, p)
}

func (s *Strategy) OpenLongPositionLimit(ctx context.Context, p PositionParams) error {
	p.Amount = math.Abs(p.Amount)
	return s.OpenPositionLimit(ctx, p)
}

func (s *Strategy) OpenShortPositionMarket(ctx context.Context, p PositionParams) error {
	p.Amount = -math.Abs(p.Amount)
	return s.OpenPositionMarket(ctx, p)
}

func (s *Strategy) OpenShortPositionLimit(ctx context.Context, p PositionParams) error {
	p.Amount = -math.Abs(p.Amount)
	return s.OpenPositionLimit(ctx, p)
}

func (s *Strategy) openPositionWithOrder(ctx context.Context, kind broker.OrderKind, p PositionParams) error {
	if err := s.fillParams(kind, &p); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.positions[p.Symbol]; exists {
		s.mu.Unlock()
		return positionErr("open", p.Symbol, ErrPositionExists)
	}
	pos := NewPosition(p.Symbol, p.Stop, p.Target, p.Tag)
	pos.OpenedMTS = p.MTSCreate
	pos.ExitOrder = NewExitOrder(0, nil, nil, p.StopType, p.TargetType)
	s.addPosition(pos)
	s.mu.Unlock()

	err := s.orders.SubmitTrade(ctx, broker.TradeRequest{
		Symbol:    p.Symbol,
		Price:     p.Price,
		Amount:    p.Amount,
		MTSCreate: p.MTSCreate,
		Type:      broker.OrderType{Kind: kind, Mode: s.mode},
		Tag:       p.Tag,
	}, broker.Callbacks{
		OnConfirm: func(o *broker.Order) error {
			s.log.Debug("open order confirmed", "id", o.ID, "amount", o.AmountOrig)
			return nil
		},
		OnClose: func(o *broker.Order) error {
			return s.applyOpenFill(ctx, pos, o)
		},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.positions, p.Symbol)
		s.mu.Unlock()
		return positionErr("open", p.Symbol, err)
	}
	return nil
}

func (s *Strategy) applyOpenFill(ctx context.Context, pos *Position, o *broker.Order) error {
	s.mu.Lock()
	pos.ProcessOrderUpdate(*o)
	openedSubs := make([]PositionHandler, len(s.subs.positionOpened))
	copy(openedSubs, s.subs.positionOpened)
	s.mu.Unlock()

	s.journalOrder(o)
	s.log.Info("position opened", "symbol", pos.Symbol, "amount", pos.Amount, "price", pos.Price)
	s.emitFill(ctx, o)
	s.emitPositionHandlers(ctx, openedSubs, pos)

	if pos.Stop != nil || pos.Target != nil {
		desired := NewExitOrder(-pos.Amount, pos.Target, pos.Stop,
			pos.ExitOrder.StopType, pos.ExitOrder.TargetType)
		return s.setPositionExit(ctx, pos, desired)
	}
	return nil
}

// UpdatePositionMarket grows or reduces the active position at the last
// seen market price. A signed amount opposing the exposure reduces it.
func (s *Strategy) UpdatePositionMarket(ctx context.Context, p PositionParams) error {
	return s.updatePositionWithOrder(ctx, broker.KindMarket, p)
}

func (s *Strategy) UpdatePositionLimit(ctx context.Context, p PositionParams) error {
	return s.updatePositionWithOrder(ctx, broker.KindLimit, p)
}

// UpdateLongPosition buys into the active position at market; the short
// variant sells out of it.
func (s *Strategy) UpdateLongPosition(ctx context.Context, p PositionParams) error {
	p.Amount = math.Abs(p.Amount)
	return s.UpdatePositionMarket(ctx, p)
}

func (s *Strategy) UpdateShortPosition(ctx context.Context, p PositionParams) error {
	p.Amount = -math.Abs(p.Amount)
	return s.UpdatePositionMarket(ctx, p)
}

func (s *Strategy) updatePositionWithOrder(ctx context.Context, kind broker.OrderKind, p PositionParams) error {
	if err := s.fillParams(kind, &p); err != nil {
		return err
	}

	s.mu.Lock()
	pos, ok := s.positions[p.Symbol]
	s.mu.Unlock()
	if !ok {
		return positionErr("update", p.Symbol, ErrNoPosition)
	}

	err := s.orders.SubmitTrade(ctx, broker.TradeRequest{
		Symbol:    p.Symbol,
		Price:     p.Price,
		Amount:    p.Amount,
		MTSCreate: p.MTSCreate,
		Type:      broker.OrderType{Kind: kind, Mode: s.mode},
		Tag:       p.Tag,
	}, broker.Callbacks{
		OnClose: func(o *broker.Order) error {
			return s.applyUpdateFill(ctx, pos, o)
		},
	})
	if err != nil {
		return positionErr("update", p.Symbol, err)
	}
	return nil
}

func (s *Strategy) applyUpdateFill(ctx context.Context, pos *Position, o *broker.Order) error {
	s.mu.Lock()
	pos.ProcessOrderUpdate(*o)
	updateSubs := make([]PositionHandler, len(s.subs.positionUpdate))
	copy(updateSubs, s.subs.positionUpdate)
	flat := pos.Amount == 0
	s.mu.Unlock()

	s.journalOrder(o)
	s.emitFill(ctx, o)

	if flat {
		if err := s.removePositionExitOrder(ctx, pos); err != nil {
			s.emitError(err)
		}
		return s.finalizeClose(ctx, pos)
	}
	s.log.Info("position updated", "symbol", pos.Symbol, "amount", pos.Amount, "price", pos.Price)
	s.emitPositionHandlers(ctx, updateSubs, pos)
	return s.rearmExit(ctx, pos)
}

// ClosePositionMarket closes the active position at the last seen market
// price by submitting the opposite of its net amount.
func (s *Strategy) ClosePositionMarket(ctx context.Context, p PositionParams) error {
	return s.closePositionWithOrder(ctx, broker.KindMarket, p)
}

func (s *Strategy) ClosePositionLimit(ctx context.Context, p PositionParams) error {
	return s.closePositionWithOrder(ctx, broker.KindLimit, p)
}

func (s *Strategy) closePositionWithOrder(ctx context.Context, kind broker.OrderKind, p PositionParams) error {
	if err := s.fillParams(kind, &p); err != nil {
		return err
	}

	s.mu.Lock()
	pos, ok := s.positions[p.Symbol]
	s.mu.Unlock()
	if !ok {
		return positionErr("close", p.Symbol, ErrNoPosition)
	}

	// Tear down the exchange-side exit first so a resting bracket leg
	// cannot race the close fill.
	if err := s.removePositionExitOrder(ctx, pos); err != nil {
		return positionErr("close", p.Symbol, err)
	}

	err := s.orders.SubmitTrade(ctx, broker.TradeRequest{
		Symbol:    p.Symbol,
		Price:     p.Price,
		Amount:    -pos.Amount,
		MTSCreate: p.MTSCreate,
		Type:      broker.OrderType{Kind: kind, Mode: s.mode},
		Tag:       p.Tag,
	}, broker.Callbacks{
		OnClose: func(o *broker.Order) error {
			s.mu.Lock()
			pos.ProcessOrderUpdate(*o)
			s.mu.Unlock()
			s.journalOrder(o)
			s.emitFill(ctx, o)
			return s.finalizeClose(ctx, pos)
		},
	})
	if err != nil {
		return positionErr("close", p.Symbol, err)
	}
	return nil
}

// CloseOpenPositions closes every active position at market. The first
// error stops the sweep.
func (s *Strategy) CloseOpenPositions(ctx context.Context) error {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	for _, sym := range symbols {
		if err := s.ClosePositionMarket(ctx, PositionParams{Symbol: sym}); err != nil {
			return err
		}
	}
	return nil
}

// finalizeClose archives a flat position and emits position_closed. Safe
// to call twice; the second call finds the position already archived.
func (s *Strategy) finalizeClose(ctx context.Context, pos *Position) error {
	s.mu.Lock()
	if current, ok := s.positions[pos.Symbol]; !ok || current != pos {
		s.mu.Unlock()
		return nil
	}
	s.archivePosition(pos)
	closedSubs := make([]PositionHandler, len(s.subs.positionClosed))
	copy(closedSubs, s.subs.positionClosed)
	s.mu.Unlock()

	summary := pos.Summary()
	s.log.Info("position closed", "symbol", pos.Symbol, "net_pl", summary.Net,
		"fees", pos.TotalFees, "volume", pos.Volume)
	s.emitPositionHandlers(ctx, closedSubs, pos)
	return nil
}

// applyOrderChange folds an order_new or order_update event into the
// position it belongs to. Pure acknowledgements (nothing filled) do not
// touch the exit; fills that change exposure re-arm it to the new amount.
func (s *Strategy) applyOrderChange(ctx context.Context, o broker.Order) {
	if o.Type.Mode != s.mode {
		return
	}

	s.mu.Lock()
	pos, ok := s.positions[o.Symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	prevAmount := pos.Amount
	pos.ProcessOrderUpdate(o)
	changed := pos.Amount != prevAmount
	flat := pos.Amount == 0
	updateSubs := make([]PositionHandler, len(s.subs.positionUpdate))
	copy(updateSubs, s.subs.positionUpdate)
	s.mu.Unlock()

	if !changed {
		return
	}
	s.journalOrder(&o)
	s.emitFill(ctx, &o)
	if flat {
		if err := s.removePositionExitOrder(ctx, pos); err != nil {
			s.emitError(err)
		}
		if err := s.finalizeClose(ctx, pos); err != nil {
			s.emitError(err)
		}
		return
	}
	s.emitPositionHandlers(ctx, updateSubs, pos)
	if err := s.rearmExit(ctx, pos); err != nil {
		s.emitError(err)
	}
}

func (s *Strategy) processOrderNew(ctx context.Context, o broker.Order) {
	s.applyOrderChange(ctx, o)
}

func (s *Strategy) processOrderUpdate(ctx context.Context, o broker.Order) {
	s.applyOrderChange(ctx, o)
}

// processOrderClosed handles terminal order events pushed by the exchange,
// most importantly bracket exit legs filling server-side. Stop/target
// reached-ness is judged against the state before the fill is folded in,
// since folding the closing fill flattens the amount the checks depend on.
func (s *Strategy) processOrderClosed(ctx context.Context, o broker.Order) {
	if o.Type.Mode != s.mode {
		return
	}

	s.mu.Lock()
	pos, ok := s.positions[o.Symbol]
	if !ok {
		s.mu.Unlock()
		return
	}

	wasLong := pos.Amount > 0
	var stopHit, targetHit bool
	if exit := pos.ExitOrder; exit != nil && exit.Order != nil && exit.Order.GID == o.GID {
		if exit.Stop != nil {
			stopHit = (wasLong && o.Price <= *exit.Stop) || (!wasLong && o.Price >= *exit.Stop)
		}
		if exit.Target != nil && !stopHit {
			targetHit = (wasLong && o.Price >= *exit.Target) || (!wasLong && o.Price <= *exit.Target)
		}
		// The sibling leg died with the group; drop the local reference so
		// teardown does not try to cancel it again.
		pos.ExitOrder = NewExitOrder(0, nil, nil, exit.StopType, exit.TargetType)
		pos.PendingExitOrder = nil
	}

	prevAmount := pos.Amount
	pos.ProcessOrderUpdate(o)
	changed := pos.Amount != prevAmount
	flat := pos.Amount == 0
	updateSubs := make([]PositionHandler, len(s.subs.positionUpdate))
	copy(updateSubs, s.subs.positionUpdate)
	var reachedSubs []PositionHandler
	if stopHit {
		reachedSubs = make([]PositionHandler, len(s.subs.stopReached))
		copy(reachedSubs, s.subs.stopReached)
	} else if targetHit {
		reachedSubs = make([]PositionHandler, len(s.subs.targetReached))
		copy(reachedSubs, s.subs.targetReached)
	}
	s.mu.Unlock()

	// A fill already folded through a submission callback redelivers here
	// with no effect; skip it entirely.
	if !changed {
		return
	}
	if stopHit {
		s.log.Info("stop hit", "symbol", o.Symbol, "price", o.Price)
	} else if targetHit {
		s.log.Info("target hit", "symbol", o.Symbol, "price", o.Price)
	}
	if len(reachedSubs) > 0 {
		s.emitPositionHandlers(ctx, reachedSubs, pos)
	}

	s.journalOrder(&o)
	s.emitFill(ctx, &o)
	if flat {
		if err := s.finalizeClose(ctx, pos); err != nil {
			s.emitError(err)
		}
		return
	}
	s.emitPositionHandlers(ctx, updateSubs, pos)
	if err := s.rearmExit(ctx, pos); err != nil {
		s.emitError(err)
	}
}

func (s *Strategy) emitFill(ctx context.Context, o *broker.Order) {
	s.mu.Lock()
	fillSubs := make([]OrderFillHandler, len(s.subs.orderFill))
	copy(fillSubs, s.subs.orderFill)
	s.mu.Unlock()
	s.emitOrderFill(ctx, fillSubs, o)
}

func (s *Strategy) journalOrder(o *broker.Order) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordOrder(journal.NewOrderRecord(
		o.ID, o.GID, o.Symbol, o.Type.String(), o.Status, o.MTSUpdate,
		o.Filled(), o.PriceAvg, o.Fee, o.Tag,
	)); err != nil {
		s.log.Error("journal order", "err", err)
	}
}
