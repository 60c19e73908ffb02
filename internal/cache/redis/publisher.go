package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// Publisher pushes presentation events to Redis: frames and tickers on
// per-symbol channels, tickers into the hash cache, warnings onto a stream.
type Publisher struct {
	bus     domain.SignalBus
	tickers domain.TickerCache
}

// NewPublisher creates a Publisher.
func NewPublisher(bus domain.SignalBus, tickers domain.TickerCache) *Publisher {
	return &Publisher{bus: bus, tickers: tickers}
}

// PublishFrame publishes f as JSON on FrameChannel(f.Symbol).
func (p *Publisher) PublishFrame(ctx context.Context, f domain.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("redis: marshal frame %s: %w", f.Symbol, err)
	}
	return p.bus.Publish(ctx, FrameChannel(f.Symbol), data)
}

// PublishTicker caches t and publishes it on TickerChannel(t.Symbol).
func (p *Publisher) PublishTicker(ctx context.Context, t domain.TickerState) error {
	if err := p.tickers.SetTicker(ctx, t); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: marshal ticker %s: %w", t.Symbol, err)
	}
	return p.bus.Publish(ctx, TickerChannel(t.Symbol), data)
}

// PublishWarning appends w to WarningStream.
func (p *Publisher) PublishWarning(ctx context.Context, w domain.Warning) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("redis: marshal warning: %w", err)
	}
	return p.bus.StreamAppend(ctx, WarningStream, data)
}

// Warnings reads up to count logged warnings after lastID.
func (p *Publisher) Warnings(ctx context.Context, lastID string, count int) ([]domain.Warning, string, error) {
	msgs, err := p.bus.StreamRead(ctx, WarningStream, lastID, count)
	if err != nil {
		return nil, lastID, err
	}
	out := make([]domain.Warning, 0, len(msgs))
	next := lastID
	for _, m := range msgs {
		var w domain.Warning
		if err := json.Unmarshal(m.Payload, &w); err != nil {
			continue
		}
		out = append(out, w)
		next = m.ID
	}
	return out, next, nil
}

var _ domain.FrameSink = (*Publisher)(nil)
