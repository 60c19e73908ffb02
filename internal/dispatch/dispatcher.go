package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bookviz/internal/book"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/metrics"
)

// ErrQuit is returned by Run after a Quit action so the caller can shut the
// rest of the application down.
var ErrQuit = errors.New("dispatch: quit requested")

// Feed is the upstream market-data subscription port.
type Feed interface {
	Subscribe(ctx context.Context, symbol string) error
	Unsubscribe(ctx context.Context, symbol string) error
}

// Renderer turns a history copy into a frame.
type Renderer interface {
	Render(ctx context.Context, symbol string, h *book.History) (domain.Frame, error)
}

// State receives every presentation-facing change.
type State interface {
	SetCurrent(symbol string)
	Forget(symbol string)
	SetTicker(t domain.TickerState)
	SetFrame(f domain.Frame)
	AddWarning(w domain.Warning)
}

// history is the slice of *book.History the loop needs.
type history interface {
	Update(b domain.Booked) (*book.Eviction, error)
	ExtractWindow(t0, t1 int64) *book.History
}

// Config controls queue sizing and history retention.
type Config struct {
	BufferSize      int
	Retention       int64 // seconds
	TriggerOnUpdate bool
}

// Dispatcher owns the per-symbol histories and ticker slots. Only the Run
// goroutine mutates them; pipelines run on deep copies.
type Dispatcher struct {
	cfg      Config
	queue    chan Action
	feed     Feed
	renderer Renderer
	state    State
	logger   *slog.Logger
	now      func() time.Time

	newHistory func(retention int64) history
	histories  map[string]history
	tickers    map[string]*domain.TickerState

	mu         sync.RWMutex
	subscribed map[string]struct{}
	inflight   map[string]int

	wg sync.WaitGroup
}

// New creates a Dispatcher. Run must be called to start processing.
func New(cfg Config, feed Feed, renderer Renderer, state State, logger *slog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	return &Dispatcher{
		cfg:        cfg,
		queue:      make(chan Action, cfg.BufferSize),
		feed:       feed,
		renderer:   renderer,
		state:      state,
		logger:     logger.With(slog.String("component", "dispatcher")),
		now:        time.Now,
		newHistory: func(retention int64) history { return book.NewHistory(retention) },
		histories:  make(map[string]history),
		tickers:    make(map[string]*domain.TickerState),
		subscribed: make(map[string]struct{}),
		inflight:   make(map[string]int),
	}
}

// Send enqueues a, blocking while the queue is full.
func (d *Dispatcher) Send(ctx context.Context, a Action) error {
	select {
	case d.queue <- a:
		metrics.QueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: send %s: %w", a.kind(), ctx.Err())
	}
}

// TrySend enqueues a without blocking and returns domain.ErrQueueFull when
// there is no room.
func (d *Dispatcher) TrySend(a Action) error {
	select {
	case d.queue <- a:
		metrics.QueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		metrics.QueueRejectedTotal.Inc()
		return fmt.Errorf("dispatch: send %s: %w", a.kind(), domain.ErrQueueFull)
	}
}

// Symbols returns the subscribed symbols in sorted order. Safe for concurrent
// use.
func (d *Dispatcher) Symbols() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.subscribed))
	for s := range d.subscribed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subscribed reports whether symbol is tracked. Safe for concurrent use.
func (d *Dispatcher) Subscribed(symbol string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.subscribed[symbol]
	return ok
}

// Run processes actions until Quit, ctx cancellation, or a fatal error. It
// waits for background pipeline runs before returning. Cancellation returns
// nil, Quit returns ErrQuit, and a book consistency failure is returned
// wrapping domain.ErrConsistency.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting", slog.Int("buffer_size", cap(d.queue)))
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return nil
		case a := <-d.queue:
			metrics.QueueDepth.Set(float64(len(d.queue)))
			quit, err := d.handle(ctx, a)
			if err != nil {
				d.logger.Error("dispatcher stopped with error", slog.String("error", err.Error()))
				return err
			}
			if quit {
				d.logger.Info("dispatcher quit")
				return ErrQuit
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, a Action) (bool, error) {
	switch a := a.(type) {
	case Subscribe:
		d.subscribe(ctx, a.Symbol)
	case Unsubscribe:
		d.unsubscribe(ctx, a.Symbol)
	case UpdateBook:
		return false, d.updateBook(ctx, a.Booked)
	case UpdateTicker:
		d.updateTicker(a.Ticker)
	case RunPipeline:
		d.runPipeline(ctx, a.Symbol)
	case Warn:
		d.warn(a.Symbol, a.Message)
	case Inform:
		d.logger.Info(a.Message)
	case Quit:
		return true, nil
	default:
		d.logger.Warn("unknown action", slog.String("type", fmt.Sprintf("%T", a)))
	}
	return false, nil
}

// subscribe starts tracking symbol. A symbol that is already tracked keeps its
// history: the feed sends no new snapshot, so a fresh history would take the
// next delta as the whole book.
func (d *Dispatcher) subscribe(ctx context.Context, symbol string) {
	if _, ok := d.histories[symbol]; ok {
		d.state.SetCurrent(symbol)
		d.logger.Debug("already subscribed", slog.String("symbol", symbol))
		return
	}

	// Feed events are queued behind this action, so the history exists
	// before the snapshot is handled.
	if err := d.feed.Subscribe(ctx, symbol); err != nil {
		d.warn(symbol, fmt.Sprintf("subscribe %s: %v", symbol, err))
		return
	}

	d.histories[symbol] = d.newHistory(d.cfg.Retention)
	d.tickers[symbol] = nil
	d.mu.Lock()
	d.subscribed[symbol] = struct{}{}
	d.mu.Unlock()
	d.state.SetCurrent(symbol)
	d.logger.Info("subscribed", slog.String("symbol", symbol))
}

func (d *Dispatcher) unsubscribe(ctx context.Context, symbol string) {
	if err := d.feed.Unsubscribe(ctx, symbol); err != nil {
		d.warn(symbol, fmt.Sprintf("unsubscribe %s: %v", symbol, err))
	}

	delete(d.histories, symbol)
	delete(d.tickers, symbol)
	d.mu.Lock()
	delete(d.subscribed, symbol)
	d.mu.Unlock()
	d.state.Forget(symbol)
	d.logger.Info("unsubscribed", slog.String("symbol", symbol))
}

func (d *Dispatcher) updateBook(ctx context.Context, b domain.Booked) error {
	h, ok := d.histories[b.Symbol]
	if !ok {
		metrics.BookUpdatesTotal.WithLabelValues(b.Symbol, "unknown_symbol").Inc()
		d.warn(b.Symbol, fmt.Sprintf("book update for %s: %v", b.Symbol, domain.ErrUnknownSymbol))
		return nil
	}

	ev, err := h.Update(b)
	switch {
	case errors.Is(err, domain.ErrParse):
		metrics.BookUpdatesTotal.WithLabelValues(b.Symbol, "parse_error").Inc()
		d.warn(b.Symbol, err.Error())
		return nil
	case err != nil:
		metrics.BookUpdatesTotal.WithLabelValues(b.Symbol, "consistency_error").Inc()
		return fmt.Errorf("dispatch: update book %s: %w", b.Symbol, err)
	}
	metrics.BookUpdatesTotal.WithLabelValues(b.Symbol, "ok").Inc()
	if ev != nil {
		metrics.BookEvictionsTotal.WithLabelValues(b.Symbol).Inc()
	}

	if d.cfg.TriggerOnUpdate {
		if d.running(b.Symbol) {
			metrics.PipelineSkippedTotal.WithLabelValues(b.Symbol).Inc()
			return nil
		}
		d.spawn(ctx, b.Symbol, h)
	}
	return nil
}

func (d *Dispatcher) updateTicker(t domain.TickerState) {
	if _, ok := d.tickers[t.Symbol]; !ok {
		d.warn(t.Symbol, fmt.Sprintf("ticker update for %s: %v", t.Symbol, domain.ErrUnknownSymbol))
		return
	}
	d.tickers[t.Symbol] = &t
	metrics.TickerUpdatesTotal.WithLabelValues(t.Symbol).Inc()
	d.state.SetTicker(t)
}

func (d *Dispatcher) runPipeline(ctx context.Context, symbol string) {
	h, ok := d.histories[symbol]
	if !ok {
		d.logger.Debug("pipeline requested for unknown symbol", slog.String("symbol", symbol))
		return
	}
	d.spawn(ctx, symbol, h)
}

// spawn renders a deep copy of h in the background. Overlapping runs for the
// same symbol are allowed; whichever finishes last wins.
func (d *Dispatcher) spawn(ctx context.Context, symbol string, h history) {
	snapshot := h.ExtractWindow(0, math.MaxInt64)

	d.mu.Lock()
	d.inflight[symbol]++
	d.mu.Unlock()
	metrics.PipelinesInFlight.Inc()
	d.wg.Add(1)

	go func() {
		defer func() {
			d.mu.Lock()
			if d.inflight[symbol]--; d.inflight[symbol] <= 0 {
				delete(d.inflight, symbol)
			}
			d.mu.Unlock()
			metrics.PipelinesInFlight.Dec()
			d.wg.Done()
		}()

		frame, err := d.renderer.Render(ctx, symbol, snapshot)
		if err != nil {
			d.logger.Debug("pipeline run abandoned",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			return
		}
		if !d.Subscribed(symbol) {
			return
		}
		d.state.SetFrame(frame)
	}()
}

func (d *Dispatcher) running(symbol string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.inflight[symbol] > 0
}

func (d *Dispatcher) warn(symbol, message string) {
	metrics.WarningsTotal.Inc()
	d.logger.Warn(message, slog.String("symbol", symbol))
	d.state.AddWarning(domain.Warning{Symbol: symbol, Message: message, At: d.now().UTC()})
}
