// Package kraken is a client for the Kraken spot WebSocket v2 public feed:
// the book and ticker channels.
package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/metrics"
)

const (
	// DefaultURL is the public v2 endpoint.
	DefaultURL = "wss://ws.kraken.com/v2"

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod is how often a keep-alive ping is sent.
	pingPeriod = 30 * time.Second

	handshakeTimeout = 15 * time.Second
)

// BookHandler is called for every decoded book snapshot or update.
type BookHandler func(domain.Booked)

// TickerHandler is called for every decoded ticker entry.
type TickerHandler func(domain.TickerState)

// WarningHandler is called for rejected requests, status changes and
// undecodable messages.
type WarningHandler func(string)

// WSClient is a WebSocket client for the book and ticker channels. It does not
// reconnect: a read timeout or transport failure ends Listen with an error.
type WSClient struct {
	wsURL       string
	depth       int
	readTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	reqID   int64
	symbols map[string]struct{}

	stamps bookClock

	bookHandlers    []BookHandler
	tickerHandlers  []TickerHandler
	warningHandlers []WarningHandler
	handlerMu       sync.RWMutex

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSClient creates a client for wsURL subscribing to books of the given
// depth. Listen fails if no message arrives within readTimeout.
func NewWSClient(wsURL string, depth int, readTimeout time.Duration) *WSClient {
	return &WSClient{
		wsURL:       wsURL,
		depth:       depth,
		readTimeout: readTimeout,
		now:         time.Now,
		symbols:     make(map[string]struct{}),
		stamps:      bookClock{last: make(map[string]time.Time)},
		done:        make(chan struct{}),
	}
}

// Connect dials the endpoint and sends subscriptions for every symbol
// requested before the connection existed.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return fmt.Errorf("kraken/ws: connect: %w", domain.ErrWSDisconnect)
	default:
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("kraken/ws: connect: %w", err)
	}
	w.conn = conn

	if len(w.symbols) > 0 {
		pending := make([]string, 0, len(w.symbols))
		for s := range w.symbols {
			pending = append(pending, s)
		}
		if err := w.sendSubscription("subscribe", pending); err != nil {
			return fmt.Errorf("kraken/ws: restore subscriptions: %w", err)
		}
	}
	return nil
}

// Subscribe requests book and ticker data for symbols. Before Connect the
// symbols are only recorded.
func (w *WSClient) Subscribe(ctx context.Context, symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range symbols {
		w.symbols[s] = struct{}{}
	}
	if w.conn == nil {
		return nil
	}
	if err := w.sendSubscription("subscribe", symbols); err != nil {
		return fmt.Errorf("kraken/ws: subscribe %v: %w", symbols, err)
	}
	return nil
}

// Unsubscribe stops book and ticker data for symbols.
func (w *WSClient) Unsubscribe(ctx context.Context, symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range symbols {
		delete(w.symbols, s)
		w.stamps.forget(s)
	}
	if w.conn == nil {
		return nil
	}
	if err := w.sendSubscription("unsubscribe", symbols); err != nil {
		return fmt.Errorf("kraken/ws: unsubscribe %v: %w", symbols, err)
	}
	return nil
}

// Listen reads and dispatches messages until ctx is cancelled, the client is
// closed, or the connection fails. It returns nil on cancellation, an error
// wrapping domain.ErrFeedTimeout when nothing arrives within the read timeout,
// and an error wrapping domain.ErrWSDisconnect on any other read failure.
func (w *WSClient) Listen(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("kraken/ws: listen: not connected: %w", domain.ErrWSDisconnect)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-stop:
		}
	}()
	go w.pingLoop(stop)

	for {
		if w.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(w.readTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return fmt.Errorf("kraken/ws: no message for %s: %w", w.readTimeout, domain.ErrFeedTimeout)
			}
			return fmt.Errorf("kraken/ws: read: %w: %v", domain.ErrWSDisconnect, err)
		}
		w.handleMessage(raw)
	}
}

// Close shuts down the connection. It is safe to call more than once.
func (w *WSClient) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.conn == nil {
			return
		}
		_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		err = w.conn.Close()
	})
	return err
}

// OnBook registers a handler for book snapshots and updates.
func (w *WSClient) OnBook(handler BookHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, handler)
}

// OnTicker registers a handler for ticker entries.
func (w *WSClient) OnTicker(handler TickerHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tickerHandlers = append(w.tickerHandlers, handler)
}

// OnWarning registers a handler for non-fatal feed problems.
func (w *WSClient) OnWarning(handler WarningHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.warningHandlers = append(w.warningHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscription sends method for the book and ticker channels. Caller must
// hold w.mu.
func (w *WSClient) sendSubscription(method string, symbols []string) error {
	snapshot := true
	book := Params{Channel: "book", Symbol: symbols, Depth: w.depth}
	ticker := Params{Channel: "ticker", Symbol: symbols}
	if method == "subscribe" {
		book.Snapshot = &snapshot
		ticker.Snapshot = &snapshot
	}
	for _, p := range []Params{book, ticker} {
		w.reqID++
		if err := w.send(Request{Method: method, Params: p, ReqID: w.reqID}); err != nil {
			return fmt.Errorf("%s %s: %w", method, p.Channel, err)
		}
	}
	return nil
}

// send writes a JSON request. Caller must hold w.mu.
func (w *WSClient) send(req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			var err error
			if w.conn != nil {
				_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
				err = w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (w *WSClient) handleMessage(raw []byte) {
	msg, err := Decode(raw, w.now())
	if err != nil {
		w.emitWarning(err.Error())
		return
	}
	if msg.Channel != "" {
		metrics.FeedMessagesTotal.WithLabelValues(msg.Channel).Inc()
	}

	w.handlerMu.RLock()
	books, tickers := w.bookHandlers, w.tickerHandlers
	w.handlerMu.RUnlock()

	for _, b := range msg.Books {
		b.Timestamp = w.stamps.stamp(b.Symbol, b.Timestamp)
		for _, h := range books {
			h(b)
		}
	}
	for _, t := range msg.Tickers {
		for _, h := range tickers {
			h(t)
		}
	}
	for _, warning := range msg.Warnings {
		w.emitWarning(warning)
	}
}

func (w *WSClient) emitWarning(message string) {
	w.handlerMu.RLock()
	handlers := w.warningHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(message)
	}
}

// bookClock keeps the book timestamps of each symbol from going backwards.
// A snapshot stamped with the local clock may run ahead of the exchange
// timestamps of the updates that follow it; those updates are moved up to the
// snapshot's time so they still apply on top of it.
type bookClock struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// stamp returns ts, or the latest timestamp seen for symbol when ts is older.
// Unparseable timestamps pass through unchanged.
func (c *bookClock) stamp(symbol, ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[symbol]; ok && t.Before(last) {
		return last.UTC().Format(time.RFC3339Nano)
	}
	c.last[symbol] = t
	return ts
}

func (c *bookClock) forget(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, symbol)
}
