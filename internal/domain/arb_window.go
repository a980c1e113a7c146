package domain

import "time"

// ArbDirection says which way the pair's implied total deviates from 1.
type ArbDirection string

const (
	// ArbUnderpriced: UP+DOWN mids sum below 1.
	ArbUnderpriced ArbDirection = "underpriced"
	// ArbOverpriced: UP+DOWN mids sum above 1.
	ArbOverpriced ArbDirection = "overpriced"
)

// ArbWindow is one contiguous period during which a pair's edge stayed at or
// beyond the alert threshold. CloseEdge is zero unless HasCloseEdge is true;
// a window that closes while the DOWN mid is undefined has no close edge.
type ArbWindow struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	UpID      string       `json:"up_id"`
	DownID    string       `json:"down_id"`
	Direction ArbDirection `json:"direction"`
	OpenEdge  float64      `json:"open_edge"`
	PeakEdge  float64      `json:"peak_edge"`
	CloseEdge float64      `json:"close_edge"`
	// HasCloseEdge reports whether CloseEdge was observed.
	HasCloseEdge bool      `json:"has_close_edge"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at,omitempty"`
}

// Open reports whether the window has not closed yet.
func (w ArbWindow) Open() bool { return w.ClosedAt.IsZero() }

// Duration is the window length, measured to now when still open.
func (w ArbWindow) Duration(now time.Time) time.Duration {
	if w.Open() {
		return now.Sub(w.OpenedAt)
	}
	return w.ClosedAt.Sub(w.OpenedAt)
}
