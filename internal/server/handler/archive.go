package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// ArchiveHandler browses the tick archive in object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler rooted at prefix.
func NewArchiveHandler(reader domain.BlobReader, prefix string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, prefix: prefix, logger: logger}
}

// List returns archive objects under the prefix, optionally narrowed by a
// date path such as "2026/01/02".
// GET /api/archives?day=2026/01/02
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := h.prefix + "/"
	if day := r.URL.Query().Get("day"); day != "" {
		prefix += day
	}
	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to list archives")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": infos})
}

// Get streams one archive object.
// GET /api/archives/{path...}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	body, err := h.reader.Get(r.Context(), r.PathValue("path"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		writeError(w, http.StatusBadGateway, "failed to read archive")
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("error", err.Error()),
		)
	}
}
