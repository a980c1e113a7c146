package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

func newTestTracker() *WindowTracker {
	tr := NewWindowTracker([]domain.MarketPair{domain.NewMarketPair("btc", "u", "d")})
	n := 0
	tr.newID = func() string { n++; return fmt.Sprintf("w%d", n) }
	return tr
}

func eval(edge float64, at time.Time) PairAnalytics {
	pa := PairAnalytics{Label: "btc", HasDown: true, Edge: edge, ComputedAt: at}
	if edge >= 0.01 || edge <= -0.01 {
		pa.ArbWindow = true
		pa.Direction = DirectionOf(edge)
	}
	return pa
}

func TestWindowTrackerOpenPeakClose(t *testing.T) {
	tr := newTestTracker()
	t0 := time.Unix(100, 0)

	if got := tr.Observe(eval(0.002, t0)); len(got) != 0 {
		t.Fatalf("unexpected transitions %+v", got)
	}
	got := tr.Observe(eval(0.015, t0.Add(time.Second)))
	if len(got) != 1 || !got[0].Opened || got[0].Window.ID != "w1" || got[0].Window.UpID != "u" {
		t.Fatalf("open = %+v", got)
	}
	if got := tr.Observe(eval(0.03, t0.Add(2*time.Second))); len(got) != 0 {
		t.Fatalf("still open, got %+v", got)
	}
	got = tr.Observe(eval(0.001, t0.Add(3*time.Second)))
	if len(got) != 1 || got[0].Opened {
		t.Fatalf("close = %+v", got)
	}
	w := got[0].Window
	if w.PeakEdge != 0.03 || w.CloseEdge != 0.001 || !w.HasCloseEdge || w.Duration(time.Time{}) != 2*time.Second {
		t.Fatalf("closed window = %+v", w)
	}
	if len(tr.Open()) != 0 {
		t.Fatal("window still tracked as open")
	}
}

func TestWindowTrackerDirectionFlip(t *testing.T) {
	tr := newTestTracker()
	t0 := time.Unix(100, 0)
	tr.Observe(eval(0.02, t0))
	got := tr.Observe(eval(-0.02, t0.Add(time.Second)))
	if len(got) != 2 || got[0].Opened || !got[1].Opened {
		t.Fatalf("transitions = %+v", got)
	}
	if got[1].Window.Direction != domain.ArbOverpriced {
		t.Fatalf("new direction = %q", got[1].Window.Direction)
	}
}

func TestWindowTrackerCloseAll(t *testing.T) {
	tr := newTestTracker()
	tr.Observe(eval(0.02, time.Unix(1, 0)))
	got := tr.CloseAll(time.Unix(5, 0))
	if len(got) != 1 || got[0].Window.Open() {
		t.Fatalf("close all = %+v", got)
	}
}

func TestWindowTrackerCloseWithoutDownMid(t *testing.T) {
	tr := newTestTracker()
	t0 := time.Unix(100, 0)
	tr.Observe(eval(0.02, t0))

	got := tr.Observe(PairAnalytics{Label: "btc", UpMid: 0.5, ComputedAt: t0.Add(time.Second)})
	if len(got) != 1 || got[0].Opened {
		t.Fatalf("transitions = %+v", got)
	}
	w := got[0].Window
	if w.HasCloseEdge || w.CloseEdge != 0 {
		t.Fatalf("close edge recorded without a DOWN mid: %+v", w)
	}
	if w.PeakEdge != 0.02 || w.Open() {
		t.Fatalf("closed window = %+v", w)
	}
}
