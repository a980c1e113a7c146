package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// Transition is emitted when a pair's arbitrage window opens or closes.
type Transition struct {
	Opened bool
	Window domain.ArbWindow
}

// WindowTracker turns a stream of PairAnalytics into open/close transitions.
// A window opens on the first flagged evaluation and closes on the first
// evaluation that is not flagged (or flips direction, which closes the old
// window and opens a new one).
type WindowTracker struct {
	mu    sync.Mutex
	ids   map[string][2]string // label -> up, down ids
	open  map[string]*domain.ArbWindow
	newID func() string
}

// NewWindowTracker returns a tracker for the given pairs.
func NewWindowTracker(pairs []domain.MarketPair) *WindowTracker {
	ids := make(map[string][2]string, len(pairs))
	for _, p := range pairs {
		ids[p.Label] = [2]string{p.Up.ID, p.Down.ID}
	}
	return &WindowTracker{
		ids:   ids,
		open:  make(map[string]*domain.ArbWindow),
		newID: func() string { return uuid.NewString() },
	}
}

// Observe feeds one evaluation and returns the resulting transitions.
func (t *WindowTracker) Observe(pa PairAnalytics) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Transition
	cur := t.open[pa.Label]
	if cur != nil {
		if pa.ArbWindow && pa.Direction == cur.Direction {
			if math.Abs(pa.Edge) > math.Abs(cur.PeakEdge) {
				cur.PeakEdge = pa.Edge
			}
			return nil
		}
		edge := pa.Edge
		if !pa.HasDown {
			edge = math.NaN()
		}
		out = append(out, Transition{Window: t.closeLocked(pa.Label, edge, pa.ComputedAt)})
	}
	if pa.ArbWindow {
		ids := t.ids[pa.Label]
		w := &domain.ArbWindow{
			ID:        t.newID(),
			Label:     pa.Label,
			UpID:      ids[0],
			DownID:    ids[1],
			Direction: pa.Direction,
			OpenEdge:  pa.Edge,
			PeakEdge:  pa.Edge,
			OpenedAt:  pa.ComputedAt,
		}
		t.open[pa.Label] = w
		out = append(out, Transition{Opened: true, Window: *w})
	}
	return out
}

// CloseAll closes every open window, for shutdown.
func (t *WindowTracker) CloseAll(at time.Time) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, 0, len(t.open))
	for label, w := range t.open {
		out = append(out, Transition{Window: t.closeLocked(label, w.PeakEdge, at)})
	}
	return out
}

// Open returns copies of the currently open windows.
func (t *WindowTracker) Open() []domain.ArbWindow {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ArbWindow, 0, len(t.open))
	for _, w := range t.open {
		out = append(out, *w)
	}
	return out
}

func (t *WindowTracker) closeLocked(label string, edge float64, at time.Time) domain.ArbWindow {
	w := t.open[label]
	delete(t.open, label)
	if !math.IsNaN(edge) {
		w.CloseEdge, w.HasCloseEdge = edge, true
	}
	w.ClosedAt = at
	return *w
}
