// Package bitfinex implements the live order manager over the Bitfinex v2
// authenticated websocket. Order results arrive asynchronously on the
// socket; the client routes them to the submission callbacks by client
// order id and republishes them on the order event stream.
package bitfinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/hfstrategy/broker"
	"github.com/rustyeddy/hfstrategy/pkg/id"
)

const DefaultURL = "wss://api.bitfinex.com/ws/2"

// Config carries the connection parameters for one authenticated session.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	Logger    *slog.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// Client implements broker.OrderManager against the live exchange.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    []broker.OrderHandler
	pending map[int64]broker.Callbacks // keyed by client order id

	sendCh chan []byte
	done   chan struct{}

	log *slog.Logger
}

var _ broker.OrderManager = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 20 * time.Second
	}
	return &Client{
		cfg:     cfg,
		pending: make(map[int64]broker.Callbacks),
		sendCh:  make(chan []byte, 256),
		done:    make(chan struct{}),
		log:     cfg.Logger.With("component", "bitfinex"),
	}
}

// Connect dials the websocket, authenticates and starts the read/write
// pumps. It returns once the dial and auth message are on the wire; auth
// success arrives asynchronously.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	auth, err := c.authPayload()
	if err != nil {
		conn.Close()
		return err
	}

	go c.readPump()
	go c.writePump()

	c.sendCh <- auth
	c.log.Info("connected", "url", c.cfg.URL)
	return nil
}

func (c *Client) Close() error {
	close(c.done)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) authPayload() ([]byte, error) {
	nonce := strconv.FormatInt(time.Now().UnixNano()/1000, 10)
	payload := "AUTH" + nonce
	mac := hmac.New(sha512.New384, []byte(c.cfg.APISecret))
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))

	return json.Marshal(map[string]interface{}{
		"event":       "auth",
		"apiKey":      c.cfg.APIKey,
		"authSig":     sig,
		"authNonce":   nonce,
		"authPayload": payload,
	})
}

func (c *Client) SubscribeOrders(h broker.OrderHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, h)
}

// SubmitTrade sends an "on" (new order) input. The confirmation and the
// eventual close come back on the socket and are routed through cb by the
// client order id.
func (c *Client) SubmitTrade(ctx context.Context, req broker.TradeRequest, cb broker.Callbacks) error {
	cid := id.Next()

	order := map[string]interface{}{
		"cid":    cid,
		"type":   req.Type.String(),
		"symbol": req.Symbol,
		"amount": formatFloat(req.Amount),
	}
	if req.Type.Kind != broker.KindMarket {
		order["price"] = formatFloat(req.Price)
	}
	if req.GID != 0 {
		order["gid"] = req.GID
	}
	if req.Type.Kind == broker.KindStopLimit && req.AuxLimitPrice != 0 {
		order["price_aux_limit"] = formatFloat(req.AuxLimitPrice)
	}
	if req.OCO {
		order["flags"] = flagOCO
		order["price_oco_stop"] = formatFloat(req.OCOStopPrice)
	}

	msg, err := json.Marshal([]interface{}{0, "on", nil, order})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.pending[cid] = cb
	c.mu.Unlock()

	return c.send(ctx, msg)
}

const flagOCO = 16384

// CancelOrderGroup sends an "oc_multi" input for the group. The exchange
// does not acknowledge cancels individually, so onConfirm runs as soon as
// the input is on the wire.
func (c *Client) CancelOrderGroup(ctx context.Context, gid int64, onConfirm func() error) error {
	msg, err := json.Marshal([]interface{}{0, "oc_multi", nil, map[string]interface{}{
		"gid": []int64{gid},
	}})
	if err != nil {
		return err
	}
	if err := c.send(ctx, msg); err != nil {
		return err
	}
	if onConfirm != nil {
		return onConfirm()
	}
	return nil
}

func (c *Client) CancelActiveOrder(ctx context.Context, orderID int64, onConfirm func() error) error {
	msg, err := json.Marshal([]interface{}{0, "oc", nil, map[string]interface{}{
		"id": orderID,
	}})
	if err != nil {
		return err
	}
	if err := c.send(ctx, msg); err != nil {
		return err
	}
	if onConfirm != nil {
		return onConfirm()
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg []byte) error {
	select {
	case c.sendCh <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Error("write", "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Error("read", "err", err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg []byte) {
	if len(msg) > 0 && msg[0] == '{' {
		var ev struct {
			Event  string `json:"event"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(msg, &ev); err == nil && ev.Event == "auth" {
			c.log.Info("auth", "status", ev.Status)
		}
		return
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame) < 3 {
		return
	}
	var kind string
	if err := json.Unmarshal(frame[1], &kind); err != nil {
		return
	}

	switch kind {
	case "on", "ou", "oc":
		order, cid, err := parseOrder(frame[2])
		if err != nil {
			c.log.Warn("parse order", "err", err)
			return
		}
		c.routeOrder(kind, order, cid)
	case "hb":
	}
}

func (c *Client) routeOrder(kind string, o broker.Order, cid int64) {
	c.mu.Lock()
	cb, hasPending := c.pending[cid]
	subs := make([]broker.OrderHandler, len(c.subs))
	copy(subs, c.subs)
	terminal := kind == "oc"
	if terminal {
		delete(c.pending, cid)
	}
	c.mu.Unlock()

	switch kind {
	case "on":
		if hasPending && cb.OnConfirm != nil {
			if err := cb.OnConfirm(&o); err != nil {
				c.log.Error("on confirm", "id", o.ID, "err", err)
			}
		}
		for _, h := range subs {
			h(broker.OrderNew, o)
		}
	case "ou":
		for _, h := range subs {
			h(broker.OrderUpdate, o)
		}
	case "oc":
		if hasPending && cb.OnClose != nil && strings.HasPrefix(o.Status, "EXECUTED") {
			if err := cb.OnClose(&o); err != nil {
				c.log.Error("on close", "id", o.ID, "err", err)
			}
		}
		for _, h := range subs {
			h(broker.OrderClosed, o)
		}
	}
}

// parseOrder decodes the Bitfinex order array:
// [ID, GID, CID, SYMBOL, MTS_CREATE, MTS_UPDATE, AMOUNT, AMOUNT_ORIG,
//  TYPE, TYPE_PREV, _, _, FLAGS, STATUS, _, _, PRICE, PRICE_AVG, ...]
// TODO: fold per-fill fees from "tu" trade events into the order; the
// order array itself does not carry fees.
func parseOrder(raw json.RawMessage) (broker.Order, int64, error) {
	var a []interface{}
	if err := json.Unmarshal(raw, &a); err != nil {
		return broker.Order{}, 0, err
	}
	if len(a) < 18 {
		return broker.Order{}, 0, fmt.Errorf("order array: want 18 fields, got %d", len(a))
	}

	o := broker.Order{
		ID:         intAt(a, 0),
		GID:        intAt(a, 1),
		Symbol:     strAt(a, 3),
		MTSCreate:  intAt(a, 4),
		MTSUpdate:  intAt(a, 5),
		Amount:     floatAt(a, 6),
		AmountOrig: floatAt(a, 7),
		Status:     strAt(a, 13),
		Price:      floatAt(a, 16),
		PriceAvg:   floatAt(a, 17),
	}
	typ, err := parseOrderType(strAt(a, 8))
	if err != nil {
		return broker.Order{}, 0, err
	}
	o.Type = typ
	return o, intAt(a, 2), nil
}

// parseOrderType maps the wire type string back to the kind/mode pair.
func parseOrderType(s string) (broker.OrderType, error) {
	mode := broker.Margin
	kind := s
	if rest, ok := strings.CutPrefix(s, "EXCHANGE "); ok {
		mode = broker.Exchange
		kind = rest
	}
	switch kind {
	case "MARKET":
		return broker.OrderType{Kind: broker.KindMarket, Mode: mode}, nil
	case "LIMIT":
		return broker.OrderType{Kind: broker.KindLimit, Mode: mode}, nil
	case "STOP LIMIT":
		return broker.OrderType{Kind: broker.KindStopLimit, Mode: mode}, nil
	}
	return broker.OrderType{}, fmt.Errorf("order type %q", s)
}

func floatAt(a []interface{}, i int) float64 {
	if f, ok := a[i].(float64); ok {
		return f
	}
	return 0
}

func intAt(a []interface{}, i int) int64 {
	return int64(floatAt(a, i))
}

func strAt(a []interface{}, i int) string {
	if s, ok := a[i].(string); ok {
		return s
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
