package hysteresis

import "math"

// Buffer is a fixed-capacity ring of the most recent scores.
// It has a single owner and is not safe for concurrent use.
type Buffer struct {
	data  []float64
	head  int // index of the oldest element
	count int
}

// NewBuffer creates a buffer holding at most capacity scores (minimum 1).
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends a score, evicting the oldest one when full.
func (b *Buffer) Push(score float64) {
	if b.count < len(b.data) {
		b.data[(b.head+b.count)%len(b.data)] = score
		b.count++
		return
	}
	b.data[b.head] = score
	b.head = (b.head + 1) % len(b.data)
}

// Len returns the number of stored scores.
func (b *Buffer) Len() int { return b.count }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Mean returns the arithmetic mean of every stored score.
// An empty buffer yields NaN, which never satisfies a threshold comparison.
func (b *Buffer) Mean() float64 {
	return b.MeanTail(b.count)
}

// MeanTail returns the mean of the last min(k, Len()) scores, NaN if that is zero.
func (b *Buffer) MeanTail(k int) float64 {
	n := min(k, b.count)
	if n <= 0 {
		return math.NaN()
	}
	var sum float64
	for i := b.count - n; i < b.count; i++ {
		sum += b.at(i)
	}
	return sum / float64(n)
}

// Values returns the stored scores from oldest to newest.
func (b *Buffer) Values() []float64 {
	out := make([]float64, b.count)
	for i := range out {
		out[i] = b.at(i)
	}
	return out
}

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
}

// at returns the i-th element counted from the oldest.
func (b *Buffer) at(i int) float64 {
	return b.data[(b.head+i)%len(b.data)]
}
