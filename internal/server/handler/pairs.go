package handler

import (
	"net/http"

	"github.com/alanyoungcy/polywatch/internal/feed"
)

// PairHandler serves the latest pair analytics.
type PairHandler struct {
	snapshots Snapshots
}

// NewPairHandler creates a PairHandler.
func NewPairHandler(snaps Snapshots) *PairHandler {
	return &PairHandler{snapshots: snaps}
}

type listPairsResponse struct {
	Seq   uint64            `json:"seq"`
	Pairs []feed.PairUpdate `json:"pairs"`
}

// ListPairs returns every pair as of the last publish tick.
// GET /api/pairs
func (h *PairHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	u, ok := h.snapshots.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	pairs := make([]feed.PairUpdate, len(u.Pairs))
	for i, pu := range u.Pairs {
		pairs[i] = withoutHistory(pu)
	}
	writeJSON(w, http.StatusOK, listPairsResponse{Seq: u.Seq, Pairs: pairs})
}

// GetPair returns one pair including both mid-price histories.
// GET /api/pairs/{label}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	label := r.PathValue("label")
	u, ok := h.snapshots.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	for _, pu := range u.Pairs {
		if pu.Pair.Label == label {
			writeJSON(w, http.StatusOK, pu)
			return
		}
	}
	writeError(w, http.StatusNotFound, "pair not found")
}

func withoutHistory(pu feed.PairUpdate) feed.PairUpdate {
	pu.UpHistory, pu.DownHistory = nil, nil
	return pu
}
