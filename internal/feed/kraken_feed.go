// Package feed connects upstream market data to the dispatcher.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/platform/kraken"
)

// ActionSender accepts dispatcher actions.
type ActionSender interface {
	Send(ctx context.Context, a dispatch.Action) error
}

// KrakenConfig configures the Kraken connection.
type KrakenConfig struct {
	URL         string
	Depth       int
	ReadTimeout time.Duration
}

// KrakenFeed forwards Kraken book and ticker events to the dispatcher and
// serves as the dispatcher's subscription port. It does not reconnect.
type KrakenFeed struct {
	client *kraken.WSClient
	sink   ActionSender
	logger *slog.Logger
}

// NewKrakenFeed creates a feed. Run must be called to connect.
func NewKrakenFeed(cfg KrakenConfig, sink ActionSender, logger *slog.Logger) *KrakenFeed {
	return &KrakenFeed{
		client: kraken.NewWSClient(cfg.URL, cfg.Depth, cfg.ReadTimeout),
		sink:   sink,
		logger: logger.With(slog.String("component", "kraken_feed")),
	}
}

// Subscribe requests book and ticker data for symbol.
func (f *KrakenFeed) Subscribe(ctx context.Context, symbol string) error {
	return f.client.Subscribe(ctx, []string{symbol})
}

// Unsubscribe stops book and ticker data for symbol.
func (f *KrakenFeed) Unsubscribe(ctx context.Context, symbol string) error {
	return f.client.Unsubscribe(ctx, []string{symbol})
}

// Run connects and forwards events until ctx is cancelled (nil) or the
// connection fails or times out (error).
func (f *KrakenFeed) Run(ctx context.Context) error {
	f.client.OnBook(func(b domain.Booked) {
		f.forward(ctx, dispatch.UpdateBook{Booked: b})
	})
	f.client.OnTicker(func(t domain.TickerState) {
		f.forward(ctx, dispatch.UpdateTicker{Ticker: t})
	})
	f.client.OnWarning(func(msg string) {
		f.forward(ctx, dispatch.Warn{Message: msg})
	})

	if err := f.client.Connect(ctx); err != nil {
		return fmt.Errorf("feed: kraken: %w", err)
	}
	defer f.client.Close()
	f.logger.Info("kraken feed connected")

	if err := f.client.Listen(ctx); err != nil {
		f.logger.Error("kraken feed stopped", slog.String("error", err.Error()))
		return fmt.Errorf("feed: kraken: %w", err)
	}
	f.logger.Info("kraken feed stopped")
	return nil
}

func (f *KrakenFeed) forward(ctx context.Context, a dispatch.Action) {
	if err := f.sink.Send(ctx, a); err != nil && ctx.Err() == nil {
		f.logger.Warn("forward to dispatcher failed", slog.String("error", err.Error()))
	}
}
