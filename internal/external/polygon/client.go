package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

const (
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 2 * time.Minute

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// quoteState accumulates streamed trades and quotes for one symbol over the
// session. NetFlow is built by the tick rule: trades at or above the ask add,
// trades at or below the bid subtract.
type quoteState struct {
	Last      float64
	Open      float64
	High      float64
	Low       float64
	PrevClose float64
	Bid       float64
	Ask       float64
	Volume    int64
	Value     float64
	NetFlow   float64
	UpdatedAt time.Time
}

// Client is the Tier-1 depth feed: a streaming websocket client that keeps
// per-symbol session state, plus a REST reference endpoint for instrument
// metadata.
// ⭐ SSOT: the Polygon connection lives in this client only.
type Client struct {
	cfg    config.PolygonConfig
	logger *logger.Logger
	rest   *httputil.Client

	conn   *websocket.Conn
	connMu sync.RWMutex

	quotes   map[string]*quoteState // key: bare symbol
	quotesMu sync.RWMutex

	subscribed map[string]bool
	subMu      sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClient creates a Tier-1 client.
func NewClient(cfg config.PolygonConfig, log *logger.Logger, rest *httputil.Client) *Client {
	return &Client{
		cfg:        cfg,
		logger:     log,
		rest:       rest,
		quotes:     make(map[string]*quoteState),
		subscribed: make(map[string]bool),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Tier identifies this provider in selection logs.
func (c *Client) Tier() contracts.Tier {
	return contracts.Tier1
}

// Start connects the stream and launches the read and ping loops.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Starting Polygon depth stream")

	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the stream.
func (c *Client) Stop() {
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	<-c.doneCh
}

// Subscribe registers symbols on the stream. Safe to call repeatedly; only
// new symbols are sent.
func (c *Client) Subscribe(symbols []string) error {
	c.subMu.Lock()
	fresh := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !c.subscribed[s] {
			c.subscribed[s] = true
			fresh = append(fresh, s)
		}
	}
	c.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}

	return c.send(subscribeMessage(fresh))
}

// Quote returns the latest streamed sample for an instrument. A symbol with
// no state, or state older than the configured staleness bound, is reported
// as unavailable so the chain falls through to Tier-2.
func (c *Client) Quote(ctx context.Context, inst contracts.Instrument, asOf time.Time) (contracts.Sample, error) {
	c.quotesMu.RLock()
	state, ok := c.quotes[inst.Symbol]
	c.quotesMu.RUnlock()

	if !ok {
		return contracts.Sample{}, fmt.Errorf("polygon: no stream state for %s: %w", inst.Symbol, contracts.ErrUnavailable)
	}
	if asOf.Sub(state.UpdatedAt) > c.cfg.MaxStaleness {
		return contracts.Sample{}, fmt.Errorf("polygon: stale quote for %s (age %s): %w",
			inst.Symbol, asOf.Sub(state.UpdatedAt), contracts.ErrUnavailable)
	}

	return contracts.Sample{
		InstrumentID: inst.ID(),
		Last:         state.Last,
		Open:         state.Open,
		High:         state.High,
		Low:          state.Low,
		PrevClose:    state.PrevClose,
		Bid:          state.Bid,
		Ask:          state.Ask,
		Volume:       state.Volume,
		Value:        state.Value,
		NetFlow:      state.NetFlow,
		Timestamp:    state.UpdatedAt,
	}, nil
}

// ResetSession clears accumulated session state. Called at session start.
func (c *Client) ResetSession() {
	c.quotesMu.Lock()
	c.quotes = make(map[string]*quoteState)
	c.quotesMu.Unlock()
}

// connect establishes the websocket connection and authenticates.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	auth := map[string]string{"action": "auth", "params": c.cfg.APIKey}
	if err := c.writeJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("auth failed: %w", err)
	}

	c.logger.Info("Connected to Polygon stream")
	return nil
}

// readLoop consumes stream messages until stopped, reconnecting with backoff
// on failure.
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	delay := reconnectDelay

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}

			c.logger.WithError(err).Warn("Polygon stream read failed, reconnecting")
			time.Sleep(delay)
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}

			if err := c.reconnect(ctx); err != nil {
				c.logger.WithError(err).Error("Polygon reconnect failed")
			}
			continue
		}

		delay = reconnectDelay
		c.handleMessage(data)
	}
}

// reconnect re-establishes the stream and re-subscribes known symbols.
func (c *Client) reconnect(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.subMu.Lock()
	symbols := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		symbols = append(symbols, s)
	}
	c.subMu.Unlock()

	if len(symbols) == 0 {
		return nil
	}
	return c.send(subscribeMessage(symbols))
}

// pingLoop keeps the connection alive.
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.WithError(err).Debug("Polygon ping failed")
			}
		}
	}
}

// streamEvent is one element of a Polygon stream frame. Trades ("T") carry
// price/size plus bid/ask at trade time; quotes ("Q") carry the book top.
type streamEvent struct {
	Event     string  `json:"ev"`
	Symbol    string  `json:"sym"`
	Price     float64 `json:"p"`
	Size      int64   `json:"s"`
	BidPrice  float64 `json:"bp"`
	AskPrice  float64 `json:"ap"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	PrevClose float64 `json:"pc"`
	TimeMs    int64   `json:"t"`
}

// handleMessage applies one stream frame to per-symbol state.
func (c *Client) handleMessage(data []byte) {
	var events []streamEvent
	if err := json.Unmarshal(data, &events); err != nil {
		c.logger.WithError(err).Debug("Malformed Polygon frame dropped")
		return
	}

	c.quotesMu.Lock()
	defer c.quotesMu.Unlock()

	for _, ev := range events {
		if ev.Symbol == "" {
			continue
		}

		state, ok := c.quotes[ev.Symbol]
		if !ok {
			state = &quoteState{}
			c.quotes[ev.Symbol] = state
		}

		ts := time.UnixMilli(ev.TimeMs)

		switch ev.Event {
		case "T": // trade
			state.Last = ev.Price
			state.Volume += ev.Size
			value := ev.Price * float64(ev.Size)
			state.Value += value
			state.NetFlow += tickRuleFlow(ev.Price, state.Bid, state.Ask, value)
			if state.High == 0 || ev.Price > state.High {
				state.High = ev.Price
			}
			if state.Low == 0 || ev.Price < state.Low {
				state.Low = ev.Price
			}
			if state.Open == 0 {
				state.Open = ev.Price
			}
			state.UpdatedAt = ts
		case "Q": // book top
			state.Bid = ev.BidPrice
			state.Ask = ev.AskPrice
			state.UpdatedAt = ts
		case "AM": // minute aggregate, used for open/prev close backfill
			if state.Open == 0 {
				state.Open = ev.Open
			}
			if ev.PrevClose > 0 {
				state.PrevClose = ev.PrevClose
			}
			state.UpdatedAt = ts
		}
	}
}

// tickRuleFlow signs a trade's value by where it printed relative to the
// book: at or above the ask is buyer-initiated, at or below the bid is
// seller-initiated, inside the spread contributes nothing.
func tickRuleFlow(price, bid, ask, value float64) float64 {
	if ask > 0 && price >= ask {
		return value
	}
	if bid > 0 && price <= bid {
		return -value
	}
	return 0
}

func subscribeMessage(symbols []string) map[string]interface{} {
	params := ""
	for i, s := range symbols {
		if i > 0 {
			params += ","
		}
		params += "T." + s + ",Q." + s + ",AM." + s
	}
	return map[string]interface{}{"action": "subscribe", "params": params}
}

func (c *Client) send(msg map[string]interface{}) error {
	return c.writeJSONLocked(msg)
}

func (c *Client) writeJSONLocked(msg interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.writeJSON(msg)
}

// writeJSON writes a message; caller must hold connMu.
func (c *Client) writeJSON(msg interface{}) error {
	if c.conn == nil {
		return fmt.Errorf("polygon: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
