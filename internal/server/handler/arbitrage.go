package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// ArbHandler serves arbitrage window endpoints.
type ArbHandler struct {
	snapshots Snapshots
	history   WindowHistory // optional; ListRecent returns 501 without it
	logger    *slog.Logger
}

// NewArbHandler creates an ArbHandler.
func NewArbHandler(snaps Snapshots, history WindowHistory, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{snapshots: snaps, history: history, logger: logger}
}

type windowsResponse struct {
	Windows []domain.ArbWindow `json:"windows"`
}

// ListOpen returns the windows open right now.
// GET /api/arbitrage/open
func (h *ArbHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	windows := h.snapshots.OpenWindows()
	if windows == nil {
		windows = []domain.ArbWindow{}
	}
	writeJSON(w, http.StatusOK, windowsResponse{Windows: windows})
}

// ListRecent returns recorded windows, newest first.
// GET /api/arbitrage/recent?label=btc&limit=20
func (h *ArbHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "window history requires postgres")
		return
	}
	label := r.URL.Query().Get("label")
	windows, err := h.history.ListRecent(r.Context(), label, queryInt(r, "limit", 20, 200))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list windows failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list windows")
		return
	}
	if windows == nil {
		windows = []domain.ArbWindow{}
	}
	writeJSON(w, http.StatusOK, windowsResponse{Windows: windows})
}
