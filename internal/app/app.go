// Package app wires the feed, dispatcher, pipeline, fan-out sinks and HTTP
// server together and supervises them under one errgroup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookviz/internal/config"
	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/feed"
	"github.com/alanyoungcy/bookviz/internal/metrics"
	"github.com/alanyoungcy/bookviz/internal/notify"
	"github.com/alanyoungcy/bookviz/internal/pipeline"
	"github.com/alanyoungcy/bookviz/internal/render"
	"github.com/alanyoungcy/bookviz/internal/server"
	"github.com/alanyoungcy/bookviz/internal/server/handler"
	"github.com/alanyoungcy/bookviz/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier *notify.Notifier
	closers  []func()
}

const alertTimeout = 10 * time.Second

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// actionSink breaks the construction cycle between the feed, which sends
// actions, and the dispatcher, which drives the feed's subscriptions.
type actionSink struct {
	d *dispatch.Dispatcher
}

func (s *actionSink) Send(ctx context.Context, a dispatch.Action) error {
	return s.d.Send(ctx, a)
}

// Run wires all components and blocks until ctx is cancelled or one of them
// fails. A failure cancels the others and is returned after they stop.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg
	a.logger.InfoContext(ctx, "starting application",
		slog.Any("symbols", cfg.Symbols),
		slog.String("log_level", cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.notifier = deps.Notifier

	reg := metrics.Init(a.logger)
	if deps.Redis != nil {
		err := metrics.RegisterRedisPool(reg, func() (uint32, uint32) {
			s := deps.Redis.PoolStats()
			return s.TotalConns, s.IdleConns
		})
		if err != nil {
			a.logger.Warn("redis pool metrics unavailable", slog.String("error", err.Error()))
		}
	}
	state := render.NewState(cfg.Dispatch.WarningCapacity)
	pipe := pipeline.New(pipeline.NewPlanner(pipeline.GridConfig{
		VisualWindow: cfg.Render.VisualWindowSeconds,
		TimeCells:    cfg.Render.TimeCells,
		PriceCells:   cfg.Render.PriceCells,
	}), a.logger)

	sink := &actionSink{}
	kraken := feed.NewKrakenFeed(feed.KrakenConfig{
		URL:         cfg.Feed.URL,
		Depth:       cfg.Feed.Depth,
		ReadTimeout: cfg.Feed.ReadTimeout.Duration,
	}, sink, a.logger)
	d := dispatch.New(dispatch.Config{
		BufferSize:      cfg.Dispatch.BufferSize,
		Retention:       cfg.Book.RetentionSeconds,
		TriggerOnUpdate: cfg.Render.TriggerOnUpdate,
	}, kraken, pipe, state, a.logger)
	sink.d = d

	fan := NewFanout(cfg.Dispatch.FanoutBuffer, a.logger)
	if deps.Publisher != nil {
		fan.Add("redis", deps.Publisher)
	}
	if deps.Producer != nil {
		fan.Add("kafka", deps.Producer)
	}
	if deps.Notifier.Enabled() {
		fan.Add("notify", alertSink{n: deps.Notifier})
	}

	var hub *ws.Hub
	if cfg.Server.Enabled {
		hub = ws.NewHub(func() any { return state.Status() }, a.logger)
		fan.Add("ws", hub)
	}
	fan.Attach(state)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error { return fan.Run(gctx) })

	g.Go(func() error {
		err := kraken.Run(gctx)
		if err != nil {
			a.alert(notify.EventFeed, "feed stopped", err)
		}
		return err
	})

	g.Go(func() error {
		for _, symbol := range cfg.Symbols {
			if err := d.Send(gctx, dispatch.Subscribe{Symbol: symbol}); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		return nil
	})

	if interval := cfg.Render.Interval.Duration; interval > 0 {
		sched := pipeline.NewScheduler(interval, d.Symbols, func(_ context.Context, symbol string) error {
			return d.TrySend(dispatch.RunPipeline{Symbol: symbol})
		}, a.logger)
		g.Go(func() error { return sched.Run(gctx) })
	}

	if hub != nil {
		srv := a.newServer(deps, state, d, hub, metrics.Handler(reg))
		g.Go(func() error { return hub.Run(gctx) })
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := stopErr(g.Wait()); err != nil {
		a.alert(notify.EventFatal, "bookviz stopped", err)
		return err
	}
	return nil
}

// stopErr filters the errors that end a run cleanly: cancellation and a quit
// requested through the dispatcher. Returning dispatch.ErrQuit from the
// dispatcher goroutine is what cancels the other components.
func stopErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, dispatch.ErrQuit) {
		return nil
	}
	return err
}

func (a *App) newServer(deps *Dependencies, state *render.State, d *dispatch.Dispatcher, hub *ws.Hub, metricsHandler http.Handler) *server.Server {
	checks := map[string]handler.Check{}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}

	var warnings handler.WarningLog
	if deps.Publisher != nil {
		warnings = deps.Publisher
	}

	h := server.Handlers{
		Health:   handler.NewHealthHandler(checks, a.logger),
		Status:   handler.NewStatusHandler(state, d),
		Frames:   handler.NewFrameHandler(state, deps.TickerCache, a.logger),
		Warnings: handler.NewWarningHandler(state, warnings, a.logger),
		Pipeline: handler.NewPipelineHandler(d, d, a.logger),
		Hub:      hub,
		Metrics:  metricsHandler,
	}
	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		Limiter:     deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, h, a.logger)
}

// alert notifies operators. It runs on its own context so it still works
// while the application context is being cancelled.
func (a *App) alert(event, title string, err error) {
	a.logger.Error(title, slog.String("error", err.Error()))
	if a.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	_ = a.notifier.Notify(ctx, notify.Alert{Event: event, Title: title, Message: err.Error()})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
