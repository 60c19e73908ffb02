package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler periodically requests a pipeline run for every subscribed
// symbol. It does not run pipelines itself; Request usually enqueues a
// RunPipeline action on the dispatcher.
type Scheduler struct {
	interval time.Duration
	symbols  func() []string
	request  func(ctx context.Context, symbol string) error
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler ticking every interval.
func NewScheduler(
	interval time.Duration,
	symbols func() []string,
	request func(ctx context.Context, symbol string) error,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		interval: interval,
		symbols:  symbols,
		request:  request,
		logger:   logger.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until ctx is cancelled. A failed request is logged and the loop
// continues. Run returns nil on clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("render scheduler starting", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("render scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, symbol := range s.symbols() {
		err := s.request(ctx, symbol)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		default:
			s.logger.Warn("pipeline request failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}
