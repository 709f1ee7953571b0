// Package broker defines the order model and the OrderManager contract the
// strategy core submits trades through. Two implementations exist: sim
// (deterministic synchronous fills) and bitfinex (live websocket exchange).
package broker

import "context"

// OrderKind is the execution style of an order.
type OrderKind uint8

const (
	KindMarket OrderKind = iota + 1
	KindLimit
	KindStopLimit
)

// ExchangeMode selects which wallet the exchange trades against. Order
// events carry it; events whose mode doesn't match the strategy's
// configured mode are ignored.
type ExchangeMode uint8

const (
	Margin ExchangeMode = iota + 1
	Exchange
)

func (m ExchangeMode) String() string {
	switch m {
	case Margin:
		return "MARGIN"
	case Exchange:
		return "EXCHANGE"
	}
	return "UNKNOWN"
}

// OrderType is the kind/mode pair the exchange understands, e.g.
// {KindLimit, Exchange} renders as "EXCHANGE LIMIT" on the wire.
type OrderType struct {
	Kind OrderKind
	Mode ExchangeMode
}

func (t OrderType) String() string {
	var kind string
	switch t.Kind {
	case KindMarket:
		kind = "MARKET"
	case KindLimit:
		kind = "LIMIT"
	case KindStopLimit:
		kind = "STOP LIMIT"
	default:
		kind = "UNKNOWN"
	}
	if t.Mode == Exchange {
		return "EXCHANGE " + kind
	}
	return kind
}

// MarketType returns the market order type for the given mode. Limit and
// StopLimit helpers follow the same shape.
func MarketType(mode ExchangeMode) OrderType    { return OrderType{Kind: KindMarket, Mode: mode} }
func LimitType(mode ExchangeMode) OrderType     { return OrderType{Kind: KindLimit, Mode: mode} }
func StopLimitType(mode ExchangeMode) OrderType { return OrderType{Kind: KindStopLimit, Mode: mode} }

// Order is an immutable-per-event snapshot of exchange-side order state.
// Amount is the signed remaining size; AmountOrig the submitted size.
type Order struct {
	ID        int64
	GID       int64
	Symbol    string
	MTSCreate int64
	MTSUpdate int64

	Amount     float64
	AmountOrig float64

	Type     OrderType
	Status   string
	Price    float64
	PriceAvg float64
	Fee      float64

	// Tag is local bookkeeping, preserved across snapshot replacement.
	Tag string
}

// Filled returns the signed amount executed so far.
func (o Order) Filled() float64 {
	return o.AmountOrig - o.Amount
}

// TradeRequest carries every parameter of a trade submission. OCO requests
// attach a stop leg at OCOStopPrice to the (limit) order, sharing GID so
// both legs cancel together.
type TradeRequest struct {
	Symbol    string
	Price     float64
	Amount    float64
	MTSCreate int64
	Type      OrderType

	Tag           string
	GID           int64
	OCO           bool
	OCOStopPrice  float64
	AuxLimitPrice float64
}

// Callbacks deliver submission results. OnConfirm fires when the exchange
// acknowledges the order, OnClose when it is fully executed or cancelled.
// Either may be nil.
type Callbacks struct {
	OnConfirm func(*Order) error
	OnClose   func(*Order) error
}

// OrderEventKind tags the order event stream.
type OrderEventKind uint8

const (
	OrderNew OrderEventKind = iota + 1
	OrderUpdate
	OrderClosed
)

func (k OrderEventKind) String() string {
	switch k {
	case OrderNew:
		return "order_new"
	case OrderUpdate:
		return "order_update"
	case OrderClosed:
		return "order_closed"
	}
	return "unknown"
}

// OrderHandler receives every exchange-side order state change, including
// fills fabricated by the simulator.
type OrderHandler func(kind OrderEventKind, o Order)

// OrderManager abstracts trade submission against a live exchange or a
// simulator. Results come back through callbacks and the order event
// stream, never as direct return values.
type OrderManager interface {
	SubmitTrade(ctx context.Context, req TradeRequest, cb Callbacks) error
	CancelOrderGroup(ctx context.Context, gid int64, onConfirm func() error) error
	CancelActiveOrder(ctx context.Context, orderID int64, onConfirm func() error) error

	// SubscribeOrders registers a handler for order_new/order_update/
	// order_closed events. Handlers are invoked from a single goroutine in
	// emission order.
	SubscribeOrders(h OrderHandler)
}
