package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/market"
)

// ExitType selects how an exit leg executes: MARKET exits are triggered
// locally off the price feed, LIMIT exits live exchange-side.
type ExitType uint8

const (
	ExitMarket ExitType = iota + 1
	ExitLimit
)

func (t ExitType) String() string {
	if t == ExitLimit {
		return "LIMIT"
	}
	return "MARKET"
}

// ExitOrder describes the desired bracket exit for one position: stop and
// target prices (nil means no leg), per-leg exit types, and the amount
// (opposite sign of the exposure it unwinds). Order references the
// exchange-side bracket once confirmed.
type ExitOrder struct {
	Amount     float64
	Stop       *float64
	Target     *float64
	StopType   ExitType
	TargetType ExitType

	Order *broker.Order
}

// NewExitOrder normalizes zero exit types to MARKET, matching the default
// a freshly opened position carries.
func NewExitOrder(amount float64, target, stop *float64, stopType, targetType ExitType) *ExitOrder {
	if stopType == 0 {
		stopType = ExitMarket
	}
	if targetType == 0 {
		targetType = ExitMarket
	}
	return &ExitOrder{
		Amount:     amount,
		Stop:       stop,
		Target:     target,
		StopType:   stopType,
		TargetType: targetType,
	}
}

func (e *ExitOrder) IsTargetLimit() bool  { return e.Target != nil && e.TargetType == ExitLimit }
func (e *ExitOrder) IsTargetMarket() bool { return e.Target != nil && e.TargetType == ExitMarket }
func (e *ExitOrder) IsStopLimit() bool    { return e.Stop != nil && e.StopType == ExitLimit }
func (e *ExitOrder) IsStopMarket() bool   { return e.Stop != nil && e.StopType == ExitMarket }

// Equal reports whether both exits declare the same stop/target/types and
// amount. The exchange order reference is not part of the comparison.
func (e *ExitOrder) Equal(other *ExitOrder) bool {
	if other == nil {
		return false
	}
	return floatPtrEqual(e.Stop, other.Stop) &&
		floatPtrEqual(e.Target, other.Target) &&
		e.StopType == other.StopType &&
		e.TargetType == other.TargetType &&
		e.Amount == other.Amount
}

func (e *ExitOrder) String() string {
	return fmt.Sprintf("ExitOrder <amount=%v stop=%s target=%s stop_type=%s target_type=%s>",
		e.Amount, fmtPtr(e.Stop), fmtPtr(e.Target), e.StopType, e.TargetType)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *float64) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%v", *p)
}

// ProfitLossSummary breaks a position's P&L into its components.
type ProfitLossSummary struct {
	Realized    float64
	Current     float64
	CurrentPerc float64
	Gross       float64
	Net         float64
}

// Position is the authoritative local mirror of one symbol's net exposure.
// It owns the last-seen snapshot of every order that touched it, the
// realized-P&L ledger, and the bracket exit. All aggregate fields are
// derived by folding over the stored orders; nothing is tracked as deltas.
type Position struct {
	Symbol    string
	Stop      *float64
	Target    *float64
	Tag       string
	OpenedMTS int64

	Amount float64 // signed net filled size; zero means flat
	Price  float64 // volume-weighted average entry of the held amount

	ProfitLoss     float64
	ProfitLossPerc float64
	NetProfitLoss  float64
	TotalFees      float64
	Volume         float64

	ExitOrder        *ExitOrder
	PendingExitOrder *ExitOrder

	orderIDs     []int64
	orders       map[int64]broker.Order
	realized     map[int64]float64
	lastRealized float64

	open bool
}

func NewPosition(symbol string, stop, target *float64, tag string) *Position {
	return &Position{
		Symbol:    symbol,
		Stop:      stop,
		Target:    target,
		Tag:       tag,
		OpenedMTS: time.Now().UnixMilli(),
		ExitOrder: NewExitOrder(0, nil, nil, 0, 0),
		orders:    make(map[int64]broker.Order),
		realized:  make(map[int64]float64),
		open:      true,
	}
}

// ProcessOrderUpdate folds an order event into the position. Ingestion is
// idempotent: a snapshot whose MTSUpdate is not newer than the stored copy
// for the same id is dropped. A newer snapshot replaces the stored one in
// place, preserving the locally-set tag and its slot in the fold order.
func (p *Position) ProcessOrderUpdate(o broker.Order) {
	if old, ok := p.orders[o.ID]; ok {
		if o.MTSUpdate <= old.MTSUpdate {
			return
		}
		o.Tag = old.Tag
		p.orders[o.ID] = o
	} else {
		p.orderIDs = append(p.orderIDs, o.ID)
		p.orders[o.ID] = o
	}
	p.recalculate()
	p.UpdateWithPrice(o.Price)
}

// recalculate rebuilds amount, weighted entry, fees, volume and the
// realized-P&L ledger by folding the stored orders in insertion order.
// A fill whose sign opposes the running exposure books realized P&L
// against the weighted entry before that fill.
func (p *Position) recalculate() {
	var priceAvg, posAmount, posNV, totalFees, volume float64

	for _, oid := range p.orderIDs {
		o := p.orders[oid]
		oAmount := o.Filled()
		orderNV := oAmount * o.PriceAvg
		totalFees += o.Fee
		volume += math.Abs(orderNV)

		if posAmount == 0 {
			priceAvg = 0
		}
		if (oAmount < 0 && posAmount > 0) || (oAmount > 0 && posAmount < 0) {
			realized := (priceAvg - o.Price) * oAmount
			p.realized[oid] = realized
			p.lastRealized = realized
		}

		posAmount += oAmount
		posNV += orderNV
		if posAmount != 0 {
			priceAvg = posNV / posAmount
		}
	}

	p.Price = priceAvg
	p.Amount = posAmount
	p.TotalFees = totalFees
	p.Volume = volume
}

// UpdateWithPrice refreshes the unrealized figures against a new mark.
func (p *Position) UpdateWithPrice(price float64) {
	if p.Amount > 0 {
		p.ProfitLoss = (price - p.Price) * math.Abs(p.Amount)
	} else {
		p.ProfitLoss = (p.Price - price) * math.Abs(p.Amount)
	}
	p.ProfitLossPerc = percentageChange(p.Price, price)
	p.NetProfitLoss = p.ProfitLoss - p.TotalFees
}

func percentageChange(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// HasReachedStop reports whether the update's price crossed the declared
// stop, direction-aware by position sign.
func (p *Position) HasReachedStop(u *market.PriceUpdate) bool {
	if p.ExitOrder == nil || p.ExitOrder.Stop == nil {
		return false
	}
	stop := *p.ExitOrder.Stop
	if p.Amount > 0 && u.Price <= stop {
		return true
	}
	if p.Amount < 0 && u.Price >= stop {
		return true
	}
	return false
}

// HasReachedTarget reports whether the update's price crossed the declared
// target, direction-aware by position sign.
func (p *Position) HasReachedTarget(u *market.PriceUpdate) bool {
	if p.ExitOrder == nil || p.ExitOrder.Target == nil {
		return false
	}
	target := *p.ExitOrder.Target
	if p.Amount > 0 && u.Price >= target {
		return true
	}
	if p.Amount < 0 && u.Price <= target {
		return true
	}
	return false
}

// Orders returns the stored order snapshots in insertion order.
func (p *Position) Orders() []broker.Order {
	out := make([]broker.Order, 0, len(p.orderIDs))
	for _, oid := range p.orderIDs {
		out = append(out, p.orders[oid])
	}
	return out
}

// EntryOrder returns the first order folded into the position, or nil.
func (p *Position) EntryOrder() *broker.Order {
	if len(p.orderIDs) == 0 {
		return nil
	}
	o := p.orders[p.orderIDs[0]]
	return &o
}

// RealizedProfitLoss returns a copy of the realized-P&L ledger keyed by
// the order id that booked each entry.
func (p *Position) RealizedProfitLoss() map[int64]float64 {
	out := make(map[int64]float64, len(p.realized))
	for k, v := range p.realized {
		out[k] = v
	}
	return out
}

// Summary returns the realized/unrealized P&L breakdown. Realized is the
// most recently booked ledger entry.
func (p *Position) Summary() ProfitLossSummary {
	return ProfitLossSummary{
		Realized:    p.lastRealized,
		Current:     p.ProfitLoss,
		CurrentPerc: p.ProfitLossPerc,
		Gross:       p.lastRealized + p.ProfitLoss,
		Net:         p.lastRealized + p.ProfitLoss - p.TotalFees,
	}
}

// Close marks the position closed. Closing is driven by fill events, never
// set directly by strategy authors.
func (p *Position) Close() { p.open = false }

func (p *Position) IsOpen() bool { return p.open }

func (p *Position) String() string {
	s := fmt.Sprintf("Position <%q x %v @ %v P&L=%v", p.Symbol, p.Amount, p.Price, p.ProfitLoss)
	if p.Stop != nil {
		s += fmt.Sprintf(" stop=%v", *p.Stop)
	}
	if p.Target != nil {
		s += fmt.Sprintf(" target=%v", *p.Target)
	}
	if p.Tag != "" {
		s += " tag=" + p.Tag
	}
	return s + fmt.Sprintf(" orders=%d is_open=%v>", len(p.orders), p.open)
}
