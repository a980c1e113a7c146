package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/polywatch/internal/feed"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode      string
	startedAt time.Time
	feed      FeedStatus
	snapshots Snapshots
}

// NewHealthHandler creates a HealthHandler. feed may be nil in modes that
// do not run a feed.
func NewHealthHandler(mode string, fs FeedStatus, snaps Snapshots) *HealthHandler {
	return &HealthHandler{mode: mode, startedAt: time.Now(), feed: fs, snapshots: snaps}
}

type healthResponse struct {
	Status        string       `json:"status"`
	Mode          string       `json:"mode"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Feed          *feed.Status `json:"feed,omitempty"`
	LastTick      *time.Time   `json:"last_tick,omitempty"`
	Timestamp     string       `json:"timestamp"`
}

// HealthCheck reports "ok" while the feed is connected and "degraded"
// otherwise. It always answers 200 so load balancers can tell a live
// process from a dead one.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Mode:          h.mode,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.feed != nil {
		st := h.feed.Status()
		resp.Feed = &st
		if !st.Connected {
			resp.Status = "degraded"
		}
	}
	if h.snapshots != nil {
		if u, ok := h.snapshots.Latest(); ok {
			resp.LastTick = &u.At
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
