package book

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// Snapshot is a ladder captured at an epoch second.
type Snapshot struct {
	Time   int64
	Ladder *Ladder
}

// TimeValue is one point of an aggregated time series.
type TimeValue struct {
	Time  int64
	Value float64
}

// Eviction carries the oldest snapshot of each side removed by an update.
type Eviction struct {
	Asks Snapshot
	Bids Snapshot
}

// historySide is the time-ordered snapshot log for one half of the book.
type historySide struct {
	mu        sync.RWMutex
	snapshots []Snapshot // ascending by Time, unique Time
}

// put inserts s, overwriting any snapshot at the same second. Caller holds mu.
func (hs *historySide) put(s Snapshot) {
	i := sort.Search(len(hs.snapshots), func(i int) bool { return hs.snapshots[i].Time >= s.Time })
	if i < len(hs.snapshots) && hs.snapshots[i].Time == s.Time {
		hs.snapshots[i] = s
		return
	}
	hs.snapshots = slices.Insert(hs.snapshots, i, s)
}

// insert applies deltas on top of the most recent snapshot and stores the
// result at ts. The first insert takes the payload as the initial snapshot.
// When the retained span then exceeds window, exactly the oldest snapshot is
// removed and returned. Caller holds mu for writing.
func (hs *historySide) insert(window, ts int64, deltas []domain.Level) (Snapshot, bool) {
	if len(hs.snapshots) == 0 {
		hs.snapshots = append(hs.snapshots, Snapshot{Time: ts, Ladder: NewLadder(deltas)})
		return Snapshot{}, false
	}

	next := hs.snapshots[len(hs.snapshots)-1].Ladder.Clone()
	next.ApplyDeltas(deltas)
	hs.put(Snapshot{Time: ts, Ladder: next})

	oldest := hs.snapshots[0].Time
	newest := hs.snapshots[len(hs.snapshots)-1].Time
	if span(oldest, newest) <= window {
		return Snapshot{}, false
	}
	evicted := hs.snapshots[0]
	hs.snapshots = slices.Delete(hs.snapshots, 0, 1)
	return evicted, true
}

// latest returns a copy of the newest snapshot or the empty sentinel.
// Caller holds mu for reading.
func (hs *historySide) latest() Snapshot {
	if len(hs.snapshots) == 0 {
		return Snapshot{Time: 0, Ladder: &Ladder{}}
	}
	s := hs.snapshots[len(hs.snapshots)-1]
	return Snapshot{Time: s.Time, Ladder: s.Ladder.Clone()}
}

// window returns the index range of snapshots with t0 <= Time <= t1.
// Caller holds mu for reading.
func (hs *historySide) window(t0, t1 int64) (int, int) {
	lo := sort.Search(len(hs.snapshots), func(i int) bool { return hs.snapshots[i].Time >= t0 })
	hi := sort.Search(len(hs.snapshots), func(i int) bool { return hs.snapshots[i].Time > t1 })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (hs *historySide) integrate(t0, t1 int64) []TimeValue {
	lo, hi := hs.window(t0, t1)
	out := make([]TimeValue, 0, hi-lo)
	for _, s := range hs.snapshots[lo:hi] {
		out = append(out, TimeValue{Time: s.Time, Value: s.Ladder.Total()})
	}
	return out
}

func (hs *historySide) extract(t0, t1 int64) []Snapshot {
	lo, hi := hs.window(t0, t1)
	out := make([]Snapshot, 0, hi-lo)
	for _, s := range hs.snapshots[lo:hi] {
		out = append(out, Snapshot{Time: s.Time, Ladder: s.Ladder.Clone()})
	}
	return out
}

// History is the bounded-time snapshot cache of both sides of one
// instrument's book.
type History struct {
	window int64
	asks   historySide
	bids   historySide
}

// NewHistory creates an empty history retaining windowSeconds of snapshots.
func NewHistory(windowSeconds int64) *History {
	return &History{window: windowSeconds}
}

// Window returns the retention window in seconds.
func (h *History) Window() int64 { return h.window }

// ParseTimestamp converts an RFC 3339 timestamp into epoch seconds.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("book: parse timestamp %q: %w: %v", s, domain.ErrParse, err)
	}
	return t.Unix(), nil
}

// Update applies one book message to both sides. An unparseable timestamp
// leaves the cache untouched and returns an error wrapping domain.ErrParse.
// When the retained span overflows the window the oldest snapshot of each side
// is evicted and returned; an eviction on only one side returns an error
// wrapping domain.ErrConsistency.
func (h *History) Update(b domain.Booked) (*Eviction, error) {
	ts, err := ParseTimestamp(b.Timestamp)
	if err != nil {
		return nil, err
	}

	h.asks.mu.Lock()
	defer h.asks.mu.Unlock()
	h.bids.mu.Lock()
	defer h.bids.mu.Unlock()

	askEvicted, askOK := h.asks.insert(h.window, ts, b.Asks)
	bidEvicted, bidOK := h.bids.insert(h.window, ts, b.Bids)

	switch {
	case askOK && bidOK:
		return &Eviction{Asks: askEvicted, Bids: bidEvicted}, nil
	case askOK:
		return nil, fmt.Errorf("book: update at %d: removed asks entry %d but not bids: %w",
			ts, askEvicted.Time, domain.ErrConsistency)
	case bidOK:
		return nil, fmt.Errorf("book: update at %d: removed bids entry %d but not asks: %w",
			ts, bidEvicted.Time, domain.ErrConsistency)
	default:
		return nil, nil
	}
}

// Latest returns a copy of the newest snapshot of each side. A side without
// data yields a snapshot at time 0 with an empty ladder.
func (h *History) Latest() (asks, bids Snapshot) {
	h.asks.mu.RLock()
	defer h.asks.mu.RUnlock()
	h.bids.mu.RLock()
	defer h.bids.mu.RUnlock()

	return h.asks.latest(), h.bids.latest()
}

// IntegrateWindow sums every resting quantity of each snapshot whose time is
// within [t0, t1], per side, ordered by time.
func (h *History) IntegrateWindow(t0, t1 int64) (asks, bids []TimeValue) {
	h.asks.mu.RLock()
	defer h.asks.mu.RUnlock()
	h.bids.mu.RLock()
	defer h.bids.mu.RUnlock()

	return h.asks.integrate(t0, t1), h.bids.integrate(t0, t1)
}

// ExtractWindow returns an independent deep copy holding only the snapshots
// within [t0, t1]. The copy retains |t1 - t0| seconds.
func (h *History) ExtractWindow(t0, t1 int64) *History {
	h.asks.mu.RLock()
	defer h.asks.mu.RUnlock()
	h.bids.mu.RLock()
	defer h.bids.mu.RUnlock()

	out := NewHistory(span(t0, t1))
	out.asks.snapshots = h.asks.extract(t0, t1)
	out.bids.snapshots = h.bids.extract(t0, t1)
	return out
}

// Walk calls fn for each snapshot of side within [t0, t1] in time order
// while holding that side's read lock. fn must not call back into h for
// writing and must not retain the ladder.
func (h *History) Walk(side domain.Side, t0, t1 int64, fn func(Snapshot) bool) {
	hs := h.side(side)
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	lo, hi := hs.window(t0, t1)
	for _, s := range hs.snapshots[lo:hi] {
		if !fn(s) {
			return
		}
	}
}

// Len returns the number of snapshots held per side.
func (h *History) Len() (asks, bids int) {
	h.asks.mu.RLock()
	defer h.asks.mu.RUnlock()
	h.bids.mu.RLock()
	defer h.bids.mu.RUnlock()

	return len(h.asks.snapshots), len(h.bids.snapshots)
}

// Bounds returns the oldest and newest snapshot time of side.
func (h *History) Bounds(side domain.Side) (oldest, newest int64, ok bool) {
	hs := h.side(side)
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	if len(hs.snapshots) == 0 {
		return 0, 0, false
	}
	return hs.snapshots[0].Time, hs.snapshots[len(hs.snapshots)-1].Time, true
}

func (h *History) side(s domain.Side) *historySide {
	if s == domain.SideAsks {
		return &h.asks
	}
	return &h.bids
}

// span returns |b - a|, saturating at math.MaxInt64.
func span(a, b int64) int64 {
	if a > b {
		a, b = b, a
	}
	d := b - a
	if d < 0 {
		return math.MaxInt64
	}
	return d
}
