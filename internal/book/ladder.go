// Package book holds the bounded-time order-book cache: a price ladder per
// side per instant, and a per-instrument history of ladder snapshots with
// windowed eviction and range queries.
//
// A History is owned by a single writer (the dispatcher). Readers may run
// concurrently from other goroutines; each side is guarded by its own
// RWMutex and operations touching both sides lock asks before bids.
package book

import (
	"slices"
	"sort"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// Ladder is one side's price -> quantity map at one instant, ordered by
// ascending price. It never holds a zero quantity.
type Ladder struct {
	levels []domain.Level
}

// NewLadder builds a ladder from an unordered payload. Later entries for the
// same price win and zero quantities are dropped.
func NewLadder(levels []domain.Level) *Ladder {
	l := &Ladder{levels: make([]domain.Level, 0, len(levels))}
	l.ApplyDeltas(levels)
	return l
}

func (l *Ladder) search(price float64) (int, bool) {
	i := sort.Search(len(l.levels), func(i int) bool { return l.levels[i].Price >= price })
	return i, i < len(l.levels) && l.levels[i].Price == price
}

// ApplyDelta removes price when quantity is zero (no-op if absent) and
// upserts it otherwise.
func (l *Ladder) ApplyDelta(price, quantity float64) {
	i, found := l.search(price)
	switch {
	case quantity == 0 && found:
		l.levels = slices.Delete(l.levels, i, i+1)
	case quantity == 0:
	case found:
		l.levels[i].Quantity = quantity
	default:
		l.levels = slices.Insert(l.levels, i, domain.Level{Price: price, Quantity: quantity})
	}
}

// ApplyDeltas applies a batch sequentially.
func (l *Ladder) ApplyDeltas(deltas []domain.Level) {
	for _, d := range deltas {
		l.ApplyDelta(d.Price, d.Quantity)
	}
}

// Len returns the number of resting price levels.
func (l *Ladder) Len() int { return len(l.levels) }

// Get returns the quantity resting at price.
func (l *Ladder) Get(price float64) (float64, bool) {
	i, found := l.search(price)
	if !found {
		return 0, false
	}
	return l.levels[i].Quantity, true
}

// First returns the lowest-priced level.
func (l *Ladder) First() (domain.Level, bool) {
	if len(l.levels) == 0 {
		return domain.Level{}, false
	}
	return l.levels[0], true
}

// Last returns the highest-priced level.
func (l *Ladder) Last() (domain.Level, bool) {
	if len(l.levels) == 0 {
		return domain.Level{}, false
	}
	return l.levels[len(l.levels)-1], true
}

// Total sums every resting quantity.
func (l *Ladder) Total() float64 {
	var sum float64
	for _, lvl := range l.levels {
		sum += lvl.Quantity
	}
	return sum
}

// Ascend calls fn for each level in ascending price order until fn returns
// false.
func (l *Ladder) Ascend(fn func(domain.Level) bool) {
	for _, lvl := range l.levels {
		if !fn(lvl) {
			return
		}
	}
}

// Levels returns a copy of the levels in ascending price order.
func (l *Ladder) Levels() []domain.Level {
	return slices.Clone(l.levels)
}

// Clone returns an independent copy.
func (l *Ladder) Clone() *Ladder {
	return &Ladder{levels: slices.Clone(l.levels)}
}
