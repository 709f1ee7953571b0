package strategy

import (
	"context"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/pkg/id"
)

// SetPositionExit declares the desired exit for the active position on
// symbol. The strategy diffs it against the current exit and reconciles:
// an identical declaration is a no-op, anything else cancels the existing
// exchange-side bracket (by group) and resubmits. A zero Amount defaults
// to the full opposite of the position.
func (s *Strategy) SetPositionExit(ctx context.Context, symbol string, exit *ExitOrder) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if ok && exit.Amount == 0 {
		exit.Amount = -pos.Amount
	}
	s.mu.Unlock()
	if !ok {
		return positionErr("set exit", symbol, ErrNoPosition)
	}
	return s.setPositionExit(ctx, pos, exit)
}

// SetPositionStop declares (or moves) the stop leg, preserving the target.
func (s *Strategy) SetPositionStop(ctx context.Context, symbol string, stop float64, stopType ExitType) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	var desired *ExitOrder
	if ok {
		cur := pos.ExitOrder
		desired = NewExitOrder(-pos.Amount, cur.Target, &stop, stopType, cur.TargetType)
	}
	s.mu.Unlock()
	if !ok {
		return positionErr("set stop", symbol, ErrNoPosition)
	}
	return s.setPositionExit(ctx, pos, desired)
}

// SetPositionTarget declares (or moves) the target leg, preserving the
// stop.
func (s *Strategy) SetPositionTarget(ctx context.Context, symbol string, target float64, targetType ExitType) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	var desired *ExitOrder
	if ok {
		cur := pos.ExitOrder
		desired = NewExitOrder(-pos.Amount, &target, cur.Stop, cur.StopType, targetType)
	}
	s.mu.Unlock()
	if !ok {
		return positionErr("set target", symbol, ErrNoPosition)
	}
	return s.setPositionExit(ctx, pos, desired)
}

// RemovePositionStop drops the stop leg, keeping any target.
func (s *Strategy) RemovePositionStop(ctx context.Context, symbol string) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	var desired *ExitOrder
	if ok {
		cur := pos.ExitOrder
		desired = NewExitOrder(-pos.Amount, cur.Target, nil, cur.StopType, cur.TargetType)
	}
	s.mu.Unlock()
	if !ok {
		return positionErr("remove stop", symbol, ErrNoPosition)
	}
	return s.setPositionExit(ctx, pos, desired)
}

// RemovePositionTarget drops the target leg, keeping any stop.
func (s *Strategy) RemovePositionTarget(ctx context.Context, symbol string) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	var desired *ExitOrder
	if ok {
		cur := pos.ExitOrder
		desired = NewExitOrder(-pos.Amount, nil, cur.Stop, cur.StopType, cur.TargetType)
	}
	s.mu.Unlock()
	if !ok {
		return positionErr("remove target", symbol, ErrNoPosition)
	}
	return s.setPositionExit(ctx, pos, desired)
}

// RemovePositionExit tears down the exit entirely: both legs and any
// exchange-side bracket.
func (s *Strategy) RemovePositionExit(ctx context.Context, symbol string) error {
	symbol = s.resolveSymbol(symbol)
	s.mu.Lock()
	pos, ok := s.positions[symbol]
	s.mu.Unlock()
	if !ok {
		return positionErr("remove exit", symbol, ErrNoPosition)
	}
	return s.removePositionExitOrder(ctx, pos)
}

// rearmExit resizes the declared exit to cover the position's current
// amount, preserving legs and types. Called after every fill that changes
// exposure.
func (s *Strategy) rearmExit(ctx context.Context, pos *Position) error {
	s.mu.Lock()
	exit := pos.ExitOrder
	if exit == nil || (exit.Stop == nil && exit.Target == nil) {
		s.mu.Unlock()
		return nil
	}
	desired := NewExitOrder(-pos.Amount, exit.Target, exit.Stop, exit.StopType, exit.TargetType)
	s.mu.Unlock()
	return s.setPositionExit(ctx, pos, desired)
}

func (s *Strategy) setPositionExit(ctx context.Context, pos *Position, desired *ExitOrder) error {
	s.mu.Lock()
	if pos.PendingExitOrder != nil && desired.Equal(pos.PendingExitOrder) {
		s.mu.Unlock()
		return nil
	}
	if pos.ExitOrder != nil && desired.Equal(pos.ExitOrder) {
		s.mu.Unlock()
		return nil
	}
	pos.Stop = desired.Stop
	pos.Target = desired.Target

	var cancelGID int64
	if pos.ExitOrder != nil && pos.ExitOrder.Order != nil {
		cancelGID = pos.ExitOrder.Order.GID
	}
	backtesting := s.backtesting
	s.mu.Unlock()

	// Backtests never hold exchange-side brackets; every exit leg is
	// triggered locally off the price feed.
	if backtesting {
		s.mu.Lock()
		pos.ExitOrder = desired
		pos.PendingExitOrder = nil
		s.mu.Unlock()
		return nil
	}

	if cancelGID != 0 {
		return s.orders.CancelOrderGroup(ctx, cancelGID, func() error {
			return s.createExitOrder(ctx, pos, desired)
		})
	}
	return s.createExitOrder(ctx, pos, desired)
}

// createExitOrder submits the exchange-side leg(s) of an exit. Pure-market
// exits hold no exchange order and activate immediately; limit legs go
// pending until the exchange confirms. Both limit legs together submit as
// one OCO order under a fresh group id.
func (s *Strategy) createExitOrder(ctx context.Context, pos *Position, desired *ExitOrder) error {
	if !desired.IsStopLimit() && !desired.IsTargetLimit() {
		s.mu.Lock()
		pos.ExitOrder = desired
		pos.PendingExitOrder = nil
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	pos.PendingExitOrder = desired
	mts := int64(0)
	if u, ok := s.lastUpdate[pos.Symbol]; ok {
		mts = u.MTS
	}
	s.mu.Unlock()

	gid := id.Next()
	req := broker.TradeRequest{
		Symbol:    pos.Symbol,
		Amount:    desired.Amount,
		MTSCreate: mts,
		GID:       gid,
		Tag:       "exit",
	}
	switch {
	case desired.IsTargetLimit() && desired.IsStopLimit():
		req.Type = broker.LimitType(s.mode)
		req.Price = *desired.Target
		req.OCO = true
		req.OCOStopPrice = *desired.Stop
	case desired.IsTargetLimit():
		req.Type = broker.LimitType(s.mode)
		req.Price = *desired.Target
	default:
		req.Type = broker.StopLimitType(s.mode)
		req.Price = *desired.Stop
		req.AuxLimitPrice = *desired.Stop
	}

	s.log.Debug("submitting exit order", "symbol", pos.Symbol, "gid", gid,
		"stop", fmtPtr(desired.Stop), "target", fmtPtr(desired.Target))

	return s.orders.SubmitTrade(ctx, req, broker.Callbacks{
		OnConfirm: func(o *broker.Order) error {
			s.mu.Lock()
			desired.Order = o
			pos.ExitOrder = desired
			pos.PendingExitOrder = nil
			s.mu.Unlock()
			return nil
		},
	})
}

// removePositionExitOrder clears the exit legs and cancels any
// exchange-side bracket by its group id.
func (s *Strategy) removePositionExitOrder(ctx context.Context, pos *Position) error {
	s.mu.Lock()
	exit := pos.ExitOrder
	var gid int64
	var stopType, targetType ExitType
	if exit != nil {
		stopType, targetType = exit.StopType, exit.TargetType
		if exit.Order != nil {
			gid = exit.Order.GID
		}
	}
	pos.Stop = nil
	pos.Target = nil
	backtesting := s.backtesting
	s.mu.Unlock()

	clearExit := func() error {
		s.mu.Lock()
		pos.ExitOrder = NewExitOrder(0, nil, nil, stopType, targetType)
		pos.PendingExitOrder = nil
		s.mu.Unlock()
		return nil
	}
	if gid == 0 || backtesting {
		return clearExit()
	}
	return s.orders.CancelOrderGroup(ctx, gid, clearExit)
}
