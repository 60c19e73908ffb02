package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishFrameKeysBySymbol(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{writer: w}

	f := domain.Frame{RunID: "abc", Symbol: "ETH/USD"}
	if err := p.PublishFrame(context.Background(), f); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "ETH/USD" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var got domain.Frame
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("value: %v", err)
	}
	if got.RunID != "abc" {
		t.Errorf("run id = %q", got.RunID)
	}
}

func TestPublishFrameWrapsWriteError(t *testing.T) {
	broker := errors.New("leader not available")
	p := &Producer{writer: &captureWriter{err: broker}}

	err := p.PublishFrame(context.Background(), domain.Frame{Symbol: "BTC/USD"})
	if !errors.Is(err, broker) {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
}

func TestClose(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{writer: w}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("close: err=%v closed=%v", err, w.closed)
	}
}
