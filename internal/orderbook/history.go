package orderbook

import "github.com/alanyoungcy/polywatch/internal/domain"

// DefaultHistorySize is the number of mid samples a book retains.
const DefaultHistorySize = 60

// History is a fixed-capacity FIFO of mid-price samples. The oldest sample is
// evicted once capacity is reached. History is not safe for concurrent use;
// Book guards it with its own lock.
type History struct {
	buf   []domain.Sample
	start int
	n     int
}

// NewHistory creates a History holding at most capacity samples. A
// non-positive capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]domain.Sample, capacity)}
}

// Append adds s, evicting the oldest sample when full.
func (h *History) Append(s domain.Sample) {
	idx := (h.start + h.n) % len(h.buf)
	h.buf[idx] = s
	if h.n < len(h.buf) {
		h.n++
		return
	}
	h.start = (h.start + 1) % len(h.buf)
}

// Snapshot returns the samples oldest first. The slice is a copy.
func (h *History) Snapshot() []domain.Sample {
	out := make([]domain.Sample, h.n)
	for i := range h.n {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of retained samples.
func (h *History) Len() int { return h.n }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }
