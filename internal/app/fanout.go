package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/metrics"
	"github.com/alanyoungcy/bookviz/internal/notify"
	"github.com/alanyoungcy/bookviz/internal/render"
)

const deliverTimeout = 5 * time.Second

// TickerSink receives ticker updates.
type TickerSink interface {
	PublishTicker(ctx context.Context, t domain.TickerState) error
}

// WarningSink receives warnings.
type WarningSink interface {
	PublishWarning(ctx context.Context, w domain.Warning) error
}

type sink struct {
	name     string
	frames   domain.FrameSink
	tickers  TickerSink
	warnings WarningSink
}

// event holds exactly one of its fields.
type event struct {
	frame   *domain.Frame
	ticker  *domain.TickerState
	warning *domain.Warning
}

// Fanout decouples render state listeners from slow external sinks. Listener
// callbacks only enqueue; a single worker delivers. When the buffer is full
// the event is dropped and counted.
type Fanout struct {
	events chan event
	sinks  []sink
	logger *slog.Logger
}

func NewFanout(buffer int, logger *slog.Logger) *Fanout {
	return &Fanout{
		events: make(chan event, buffer),
		logger: logger.With(slog.String("component", "fanout")),
	}
}

// Add registers s under name. s receives whichever of frames, tickers and
// warnings it has a Publish method for.
func (f *Fanout) Add(name string, s any) {
	sk := sink{name: name}
	sk.frames, _ = s.(domain.FrameSink)
	sk.tickers, _ = s.(TickerSink)
	sk.warnings, _ = s.(WarningSink)
	if sk.frames == nil && sk.tickers == nil && sk.warnings == nil {
		f.logger.Warn("sink publishes nothing", slog.String("sink", name))
		return
	}
	f.sinks = append(f.sinks, sk)
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Attach subscribes the fanout to st.
func (f *Fanout) Attach(st *render.State) {
	st.OnFrame(func(fr domain.Frame) { f.enqueue(event{frame: &fr}) })
	st.OnTicker(func(t domain.TickerState) { f.enqueue(event{ticker: &t}) })
	st.OnWarning(func(w domain.Warning) { f.enqueue(event{warning: &w}) })
}

func (f *Fanout) enqueue(ev event) {
	select {
	case f.events <- ev:
	default:
		metrics.FanoutErrorsTotal.WithLabelValues("queue").Inc()
	}
}

// Run delivers events until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context) error {
	f.logger.Info("fanout starting", slog.Int("sinks", len(f.sinks)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.events:
			f.deliver(ctx, ev)
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, ev event) {
	for _, s := range f.sinks {
		var err error
		dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		switch {
		case ev.frame != nil && s.frames != nil:
			err = s.frames.PublishFrame(dctx, *ev.frame)
		case ev.ticker != nil && s.tickers != nil:
			err = s.tickers.PublishTicker(dctx, *ev.ticker)
		case ev.warning != nil && s.warnings != nil:
			err = s.warnings.PublishWarning(dctx, *ev.warning)
		}
		cancel()
		if err != nil {
			metrics.FanoutErrorsTotal.WithLabelValues(s.name).Inc()
			f.logger.Warn("delivery failed",
				slog.String("sink", s.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// alertSink forwards warnings to the operator notifier.
type alertSink struct {
	n *notify.Notifier
}

func (a alertSink) PublishWarning(ctx context.Context, w domain.Warning) error {
	return a.n.Notify(ctx, notify.Alert{
		Event:   notify.EventWarning,
		Symbol:  w.Symbol,
		Title:   "warning",
		Message: w.Message,
	})
}
