package pipeline

import (
	"math"
	"time"

	"github.com/alanyoungcy/bookviz/internal/book"
	"github.com/alanyoungcy/bookviz/internal/domain"
)

// GridConfig holds the render resolution and visible time span.
type GridConfig struct {
	VisualWindow int64 // seconds
	TimeCells    int
	PriceCells   int
}

// Planner derives the RenderGrid for one pipeline run.
type Planner struct {
	cfg GridConfig
	now func() time.Time
}

// NewPlanner creates a Planner using the wall clock.
func NewPlanner(cfg GridConfig) *Planner {
	return &Planner{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock consulted when the history is empty.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// Config returns the planner's configuration.
func (p *Planner) Config() GridConfig { return p.cfg }

// Grid computes the time range ending at the most recent snapshot of either
// side (or now, if the history is empty) and the price range spanning the
// lowest bid to the highest ask seen in that time range. A side with no
// snapshots in range contributes 0 to its price bound.
func (p *Planner) Grid(h *book.History) domain.RenderGrid {
	latest, ok := latestTime(h)
	if !ok {
		latest = p.now().Unix()
	}
	t0, t1 := latest-p.cfg.VisualWindow, latest

	low, lowOK := math.Inf(1), false
	h.Walk(domain.SideBids, t0, t1, func(s book.Snapshot) bool {
		if lvl, ok := s.Ladder.First(); ok {
			low, lowOK = math.Min(low, lvl.Price), true
		}
		return true
	})
	high, highOK := math.Inf(-1), false
	h.Walk(domain.SideAsks, t0, t1, func(s book.Snapshot) bool {
		if lvl, ok := s.Ladder.Last(); ok {
			high, highOK = math.Max(high, lvl.Price), true
		}
		return true
	})
	if !lowOK {
		low = 0
	}
	if !highOK {
		high = 0
	}

	return domain.RenderGrid{
		TimeRange:  domain.Range{Low: float64(t0), High: float64(t1)},
		TimeCells:  p.cfg.TimeCells,
		PriceRange: domain.Range{Low: low, High: high},
		PriceCells: p.cfg.PriceCells,
	}
}

func latestTime(h *book.History) (int64, bool) {
	_, askNewest, askOK := h.Bounds(domain.SideAsks)
	_, bidNewest, bidOK := h.Bounds(domain.SideBids)
	switch {
	case askOK && bidOK:
		return max(askNewest, bidNewest), true
	case askOK:
		return askNewest, true
	case bidOK:
		return bidNewest, true
	default:
		return 0, false
	}
}
