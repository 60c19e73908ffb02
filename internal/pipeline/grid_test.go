package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/bookviz/internal/book"
	"github.com/alanyoungcy/bookviz/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stamp(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func mustUpdate(t *testing.T, h *book.History, sec int64, bids, asks []domain.Level) {
	t.Helper()
	if _, err := h.Update(domain.Booked{Symbol: "BTC/USD", Timestamp: stamp(sec), Bids: bids, Asks: asks}); err != nil {
		t.Fatalf("update at %d: %v", sec, err)
	}
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestGridEmptyHistoryUsesClock(t *testing.T) {
	p := NewPlanner(GridConfig{VisualWindow: 180, TimeCells: 370, PriceCells: 200}).WithClock(fixedClock(1000))
	g := p.Grid(book.NewHistory(300))

	want := domain.RenderGrid{
		TimeRange:  domain.Range{Low: 820, High: 1000},
		TimeCells:  370,
		PriceRange: domain.Range{Low: 0, High: 0},
		PriceCells: 200,
	}
	if g != want {
		t.Fatalf("grid = %+v, want %+v", g, want)
	}
}

func TestGridSpansLowestBidToHighestAsk(t *testing.T) {
	h := book.NewHistory(300)
	for sec := int64(100); sec <= 110; sec++ {
		mustUpdate(t, h, sec,
			[]domain.Level{{Price: 1, Quantity: 2}, {Price: 3, Quantity: 4}},
			[]domain.Level{{Price: 5, Quantity: 6}, {Price: 7, Quantity: 8}})
	}

	p := NewPlanner(GridConfig{VisualWindow: 180, TimeCells: 10, PriceCells: 20}).WithClock(fixedClock(99999))
	g := p.Grid(h)

	if g.TimeRange != (domain.Range{Low: -70, High: 110}) {
		t.Errorf("time range = %+v, want (-70, 110)", g.TimeRange)
	}
	if g.PriceRange != (domain.Range{Low: 1, High: 7}) {
		t.Errorf("price range = %+v, want (1, 7)", g.PriceRange)
	}
	if g.TimeCells != 10 || g.PriceCells != 20 {
		t.Errorf("cells = %d/%d, want 10/20", g.TimeCells, g.PriceCells)
	}
}

func TestGridIgnoresSnapshotsOutsideWindow(t *testing.T) {
	h := book.NewHistory(1000)
	mustUpdate(t, h, 0,
		[]domain.Level{{Price: 0.5, Quantity: 1}, {Price: 3, Quantity: 1}},
		[]domain.Level{{Price: 10, Quantity: 1}, {Price: 20, Quantity: 1}})
	mustUpdate(t, h, 200,
		[]domain.Level{{Price: 0.5, Quantity: 0}},
		[]domain.Level{{Price: 20, Quantity: 0}})

	g := NewPlanner(GridConfig{VisualWindow: 100, TimeCells: 10, PriceCells: 10}).Grid(h)
	if g.PriceRange != (domain.Range{Low: 3, High: 10}) {
		t.Fatalf("price range = %+v, want (3, 10)", g.PriceRange)
	}
}

func TestGridOneSidedHistory(t *testing.T) {
	h := book.NewHistory(300)
	mustUpdate(t, h, 50, []domain.Level{{Price: 4, Quantity: 1}}, nil)

	g := NewPlanner(GridConfig{VisualWindow: 60, TimeCells: 10, PriceCells: 10}).Grid(h)
	if g.PriceRange != (domain.Range{Low: 4, High: 0}) {
		t.Errorf("price range = %+v, want (4, 0)", g.PriceRange)
	}
	if g.TimeRange != (domain.Range{Low: -10, High: 50}) {
		t.Errorf("time range = %+v, want (-10, 50)", g.TimeRange)
	}
}
