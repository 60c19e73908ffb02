package book

import (
	"testing"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

func TestLadderZeroDeltaRemovesExistingPrice(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 1, Quantity: 2}, {Price: 3, Quantity: 4}})
	l.ApplyDelta(3, 0)

	if _, ok := l.Get(3); ok {
		t.Fatal("price 3 still present after zero delta")
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 level, got %d", l.Len())
	}
}

func TestLadderZeroDeltaOnAbsentPriceIsNoop(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 1, Quantity: 2}})
	l.ApplyDelta(5, 0)
	if l.Len() != 1 {
		t.Fatalf("expected 1 level, got %d", l.Len())
	}
}

func TestLadderKeepsAscendingOrder(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 7, Quantity: 1}, {Price: 3, Quantity: 1}, {Price: 5, Quantity: 1}})
	l.ApplyDelta(4, 2)
	l.ApplyDelta(9, 2)

	want := []float64{3, 4, 5, 7, 9}
	got := l.Levels()
	if len(got) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(got))
	}
	for i, p := range want {
		if got[i].Price != p {
			t.Fatalf("level %d: expected price %v, got %v", i, p, got[i].Price)
		}
	}

	first, _ := l.First()
	last, _ := l.Last()
	if first.Price != 3 || last.Price != 9 {
		t.Fatalf("unexpected bounds first=%v last=%v", first.Price, last.Price)
	}
}

func TestLadderUpsertReplacesQuantity(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 2, Quantity: 1}})
	l.ApplyDelta(2, 8)
	q, ok := l.Get(2)
	if !ok || q != 8 {
		t.Fatalf("expected quantity 8, got %v (present=%v)", q, ok)
	}
	if l.Total() != 8 {
		t.Fatalf("expected total 8, got %v", l.Total())
	}
}

func TestNewLadderDropsZeroQuantities(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 1, Quantity: 0}, {Price: 2, Quantity: 3}})
	if l.Len() != 1 {
		t.Fatalf("expected zero-quantity level to be dropped, got %d levels", l.Len())
	}
}

func TestLadderCloneIsIndependent(t *testing.T) {
	l := NewLadder([]domain.Level{{Price: 1, Quantity: 1}})
	c := l.Clone()
	c.ApplyDelta(1, 0)
	c.ApplyDelta(2, 5)

	if q, ok := l.Get(1); !ok || q != 1 {
		t.Fatal("mutating the clone changed the original")
	}
	if _, ok := l.Get(2); ok {
		t.Fatal("insert into the clone leaked into the original")
	}
}

func TestEmptyLadderBounds(t *testing.T) {
	l := &Ladder{}
	if _, ok := l.First(); ok {
		t.Error("expected no first level on empty ladder")
	}
	if _, ok := l.Last(); ok {
		t.Error("expected no last level on empty ladder")
	}
	if l.Total() != 0 {
		t.Error("expected zero total on empty ladder")
	}
}
