package domain

import (
	"context"
	"time"
)

// TickerCache keeps the latest ticker per symbol outside the process.
type TickerCache interface {
	SetTicker(ctx context.Context, t TickerState) error
	GetTicker(ctx context.Context, symbol string) (TickerState, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and bounded streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter admits calls per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// FrameSink receives every completed frame. Implementations must not retain
// the frame's slices beyond the call.
type FrameSink interface {
	PublishFrame(ctx context.Context, f Frame) error
}
