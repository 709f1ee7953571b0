// Package sim provides a deterministic OrderManager: every submission fills
// completely and synchronously at the requested price, with a flat
// maker/taker fee. Backtests and the strategy test-suite run against it so
// the live and simulated code paths stay identical.
package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/pkg/id"
)

const (
	DefaultMakerFee = 0.001
	DefaultTakerFee = 0.002
)

// SentRequest records one call made against the manager, for assertions.
type SentRequest struct {
	MTS  int64
	Func string
	Req  broker.TradeRequest
	GID  int64
}

// OrderManager implements broker.OrderManager with synchronous fills.
type OrderManager struct {
	mu   sync.Mutex
	subs []broker.OrderHandler
	sent []SentRequest

	MakerFee float64
	TakerFee float64

	log *slog.Logger
}

var _ broker.OrderManager = (*OrderManager)(nil)

func NewOrderManager(log *slog.Logger) *OrderManager {
	if log == nil {
		log = slog.Default()
	}
	return &OrderManager{
		MakerFee: DefaultMakerFee,
		TakerFee: DefaultTakerFee,
		log:      log,
	}
}

func (m *OrderManager) SubscribeOrders(h broker.OrderHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, h)
}

// SubmitTrade fabricates a fully executed order for the request and drives
// the callbacks, then emits order_closed exactly as a real exchange would
// after execution. Submissions without an OnClose callback (bracket exit
// legs) are acknowledged but never "execute", mirroring a resting order.
func (m *OrderManager) SubmitTrade(ctx context.Context, req broker.TradeRequest, cb broker.Callbacks) error {
	m.record("submit_trade", req, req.GID)
	m.log.Debug("sim submit", "symbol", req.Symbol, "price", req.Price,
		"amount", req.Amount, "type", req.Type.String())

	order := m.fill(req)

	if cb.OnConfirm != nil {
		if err := cb.OnConfirm(&order); err != nil {
			return err
		}
	}
	if cb.OnClose != nil {
		if err := cb.OnClose(&order); err != nil {
			return err
		}
		m.emit(broker.OrderClosed, order)
	}
	return nil
}

func (m *OrderManager) CancelOrderGroup(ctx context.Context, gid int64, onConfirm func() error) error {
	m.record("cancel_order_group", broker.TradeRequest{}, gid)
	m.log.Debug("sim cancel group", "gid", gid)
	if onConfirm != nil {
		return onConfirm()
	}
	return nil
}

func (m *OrderManager) CancelActiveOrder(ctx context.Context, orderID int64, onConfirm func() error) error {
	m.record("cancel_active_order", broker.TradeRequest{}, orderID)
	if onConfirm != nil {
		return onConfirm()
	}
	return nil
}

// EmitOrder injects an order event into the stream, as if the exchange had
// pushed it. Tests use this to simulate partial fills and out-of-order
// updates.
func (m *OrderManager) EmitOrder(kind broker.OrderEventKind, o broker.Order) {
	m.emit(kind, o)
}

func (m *OrderManager) fill(req broker.TradeRequest) broker.Order {
	rate := m.MakerFee
	if req.Type.Kind == broker.KindMarket {
		rate = m.TakerFee
	}
	return broker.Order{
		ID:         id.Next(),
		GID:        req.GID,
		Symbol:     req.Symbol,
		MTSCreate:  req.MTSCreate,
		MTSUpdate:  req.MTSCreate,
		Amount:     0,
		AmountOrig: req.Amount,
		Type:       req.Type,
		Status:     "EXECUTED",
		Price:      req.Price,
		PriceAvg:   req.Price,
		Fee:        math.Abs(req.Amount*req.Price) * rate,
		Tag:        req.Tag,
	}
}

func (m *OrderManager) emit(kind broker.OrderEventKind, o broker.Order) {
	m.mu.Lock()
	subs := make([]broker.OrderHandler, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, h := range subs {
		h(kind, o)
	}
}

func (m *OrderManager) record(fn string, req broker.TradeRequest, gid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentRequest{
		MTS:  time.Now().UnixMilli(),
		Func: fn,
		Req:  req,
		GID:  gid,
	})
}

// SentRequests returns a copy of everything submitted so far.
func (m *OrderManager) SentRequests() []SentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentRequest, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSent returns the most recent request and whether one exists.
func (m *OrderManager) LastSent() (SentRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentRequest{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func (m *OrderManager) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
