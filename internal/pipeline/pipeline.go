// Package pipeline turns a book history into renderable splats: it plans the
// grid, runs the depth, volume and heatmap estimators against it, and
// schedules periodic runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bookviz/internal/book"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/metrics"
	"github.com/alanyoungcy/bookviz/internal/splat"
)

// Pipeline computes one grid and the three splats aligned to it. It never
// mutates the history it is given.
type Pipeline struct {
	planner *Planner
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(planner *Planner, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		planner: planner,
		logger:  logger.With(slog.String("component", "pipeline")),
	}
}

// Run plans the grid and computes depth, volumes and blocks concurrently. A
// stage that has not started when ctx is done is skipped, and ctx's error is
// returned in place of the splats.
func (p *Pipeline) Run(ctx context.Context, h *book.History) (domain.SplattedDepth, domain.SplattedVolumes, domain.SplattedBlocks, error) {
	grid := p.planner.Grid(h)

	var (
		depth   domain.SplattedDepth
		volumes domain.SplattedVolumes
		blocks  domain.SplattedBlocks
	)
	g, gctx := errgroup.WithContext(ctx)
	stage := func(fn func()) func() error {
		return func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		}
	}
	g.Go(stage(func() { depth = Depth(grid, h) }))
	g.Go(stage(func() { volumes = Volumes(grid, h) }))
	g.Go(stage(func() { blocks = Blocks(grid, h) }))
	if err := g.Wait(); err != nil {
		return domain.SplattedDepth{}, domain.SplattedVolumes{}, domain.SplattedBlocks{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.SplattedDepth{}, domain.SplattedVolumes{}, domain.SplattedBlocks{}, err
	}
	return depth, volumes, blocks, nil
}

// Render wraps Run into a Frame for symbol and records run metrics. A run
// abandoned because ctx is done returns an error wrapping ctx's error.
func (p *Pipeline) Render(ctx context.Context, symbol string, h *book.History) (domain.Frame, error) {
	runID := uuid.NewString()
	start := time.Now()
	depth, volumes, blocks, err := p.Run(ctx, h)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("pipeline: render %s: %w", symbol, err)
	}
	elapsed := time.Since(start)

	metrics.PipelineRunsTotal.WithLabelValues(symbol).Inc()
	metrics.PipelineDurationSeconds.WithLabelValues(symbol).Observe(elapsed.Seconds())
	p.logger.Debug("pipeline run complete",
		slog.String("run_id", runID),
		slog.String("symbol", symbol),
		slog.Duration("duration", elapsed),
	)

	return domain.Frame{
		RunID:      runID,
		Symbol:     symbol,
		RenderedAt: start.UTC(),
		Duration:   elapsed,
		Grid:       blocks.Grid,
		Depth:      depth,
		Volumes:    volumes,
		Blocks:     blocks,
	}, nil
}

// Depth splats the latest ladder of each side over the price axis and nets
// ask density minus bid density.
func Depth(grid domain.RenderGrid, h *book.History) domain.SplattedDepth {
	out := domain.SplattedDepth{PriceRange: grid.PriceRange}
	if grid.PriceRange.Degenerate() {
		out.Volumes = splat.Splat1D(grid.PriceRange, grid.PriceCells, nil)
		return out
	}

	asks, bids := h.Latest()
	askDensity := splat.Splat1D(grid.PriceRange, grid.PriceCells, ladderSamples(asks.Ladder))
	bidDensity := splat.Splat1D(grid.PriceRange, grid.PriceCells, ladderSamples(bids.Ladder))
	out.Volumes = net1D(askDensity, bidDensity)
	return out
}

// Volumes splats each side's integrated quantity over the time axis. The two
// series are kept apart.
func Volumes(grid domain.RenderGrid, h *book.History) domain.SplattedVolumes {
	t0, t1 := timeBounds(grid)
	asks, bids := h.IntegrateWindow(t0, t1)
	return domain.SplattedVolumes{
		TimeRange:  grid.TimeRange,
		AskVolumes: splat.Splat1D(grid.TimeRange, grid.TimeCells, seriesSamples(asks)),
		BidVolumes: splat.Splat1D(grid.TimeRange, grid.TimeCells, seriesSamples(bids)),
	}
}

// Blocks splats every (time, price, quantity) triple of the visible window
// per side onto the plane and nets ask density minus bid density. It works on
// an extracted copy so the source history is only read-locked for the copy.
func Blocks(grid domain.RenderGrid, h *book.History) domain.SplattedBlocks {
	out := domain.SplattedBlocks{Grid: grid}
	if grid.TimeRange.Degenerate() || grid.PriceRange.Degenerate() {
		out.Volumes = splat.Splat2D(grid.TimeRange, grid.PriceRange, grid.TimeCells, grid.PriceCells, nil)
		return out
	}

	t0, t1 := timeBounds(grid)
	window := h.ExtractWindow(t0, t1)
	askDensity := splat.Splat2D(grid.TimeRange, grid.PriceRange, grid.TimeCells, grid.PriceCells,
		planeSamples(window, domain.SideAsks, t0, t1))
	bidDensity := splat.Splat2D(grid.TimeRange, grid.PriceRange, grid.TimeCells, grid.PriceCells,
		planeSamples(window, domain.SideBids, t0, t1))
	for i := range askDensity {
		askDensity[i] = net1D(askDensity[i], bidDensity[i])
	}
	out.Volumes = askDensity
	return out
}

func timeBounds(grid domain.RenderGrid) (int64, int64) {
	return int64(grid.TimeRange.Low), int64(grid.TimeRange.High)
}

func ladderSamples(l *book.Ladder) []splat.Sample {
	out := make([]splat.Sample, 0, l.Len())
	l.Ascend(func(lvl domain.Level) bool {
		out = append(out, splat.Sample{Position: lvl.Price, Weight: lvl.Quantity})
		return true
	})
	return out
}

func seriesSamples(series []book.TimeValue) []splat.Sample {
	out := make([]splat.Sample, 0, len(series))
	for _, tv := range series {
		out = append(out, splat.Sample{Position: float64(tv.Time), Weight: tv.Value})
	}
	return out
}

func planeSamples(h *book.History, side domain.Side, t0, t1 int64) []splat.Sample2D {
	var out []splat.Sample2D
	h.Walk(side, t0, t1, func(s book.Snapshot) bool {
		x := float64(s.Time)
		s.Ladder.Ascend(func(lvl domain.Level) bool {
			out = append(out, splat.Sample2D{X: x, Y: lvl.Price, Weight: lvl.Quantity})
			return true
		})
		return true
	})
	return out
}

// net1D subtracts b from a in place and returns a.
func net1D(a, b []float64) []float64 {
	for i := range a {
		a[i] -= b[i]
	}
	return a
}
