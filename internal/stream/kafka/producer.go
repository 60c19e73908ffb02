// Package kafka ships rendered frames to a Kafka topic, keyed by symbol so
// every frame of one instrument lands on the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// writer is the subset of *kafka.Writer the Producer uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Send(ctx context.Context, key []byte, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// PublishFrame writes f as JSON with the symbol as message key.
func (p *Producer) PublishFrame(ctx context.Context, f domain.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("kafka: marshal frame %s: %w", f.Symbol, err)
	}
	if err := p.Send(ctx, []byte(f.Symbol), data); err != nil {
		return fmt.Errorf("kafka: publish frame %s: %w", f.Symbol, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

var _ domain.FrameSink = (*Producer)(nil)
