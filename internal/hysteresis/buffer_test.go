package hysteresis

import (
	"math"
	"testing"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(3)
	for _, s := range []float64{1, 2, 3, 4, 5} {
		b.Push(s)
		if b.Len() > b.Cap() {
			t.Fatalf("Len() = %d exceeds Cap() = %d", b.Len(), b.Cap())
		}
	}

	want := []float64{3, 4, 5}
	got := b.Values()
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBufferKeepsLastCapacityValues(t *testing.T) {
	const capacity = 27
	b := NewBuffer(capacity)
	for m := 1; m <= 100; m++ {
		b.Push(float64(m))
		if m < capacity {
			continue
		}
		if b.Len() != capacity {
			t.Fatalf("after %d pushes Len() = %d, want %d", m, b.Len(), capacity)
		}
		vals := b.Values()
		for i, v := range vals {
			if want := float64(m - capacity + 1 + i); v != want {
				t.Fatalf("after %d pushes Values()[%d] = %v, want %v", m, i, v, want)
			}
		}
	}
}

func TestBufferMeans(t *testing.T) {
	b := NewBuffer(4)
	b.Push(1)
	b.Push(2)

	if got := b.Mean(); got != 1.5 {
		t.Errorf("Mean() partial = %v, want 1.5", got)
	}
	if got := b.MeanTail(10); got != 1.5 {
		t.Errorf("MeanTail(10) = %v, want 1.5 (clamped to Len)", got)
	}

	b.Push(3)
	b.Push(4)
	b.Push(10) // evicts 1

	if got := b.Mean(); got != 4.75 {
		t.Errorf("Mean() = %v, want 4.75", got)
	}
	if got := b.MeanTail(2); got != 7 {
		t.Errorf("MeanTail(2) = %v, want 7", got)
	}
	if got := b.MeanTail(1); got != 10 {
		t.Errorf("MeanTail(1) = %v, want 10", got)
	}
}

func TestBufferEmptyMeanIsNaN(t *testing.T) {
	b := NewBuffer(3)
	if !math.IsNaN(b.Mean()) {
		t.Error("Mean() of empty buffer should be NaN")
	}
	b.Push(1)
	if !math.IsNaN(b.MeanTail(0)) {
		t.Error("MeanTail(0) should be NaN")
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(2)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", b.Len())
	}
	b.Push(7)
	if vals := b.Values(); len(vals) != 1 || vals[0] != 7 {
		t.Errorf("Values() after Reset+Push = %v, want [7]", vals)
	}
}

func TestBufferMinimumCapacity(t *testing.T) {
	b := NewBuffer(0)
	if b.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", b.Cap())
	}
	b.Push(1)
	b.Push(2)
	if vals := b.Values(); len(vals) != 1 || vals[0] != 2 {
		t.Errorf("Values() = %v, want [2]", vals)
	}
}
