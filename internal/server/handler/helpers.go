// Package handler serves the read-only JSON API over the watcher's books,
// pair analytics and arbitrage windows.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
	"github.com/alanyoungcy/polywatch/internal/orderbook"
)

// Books gives access to the live books and configured pairs.
type Books interface {
	Pairs() []domain.MarketPair
	Pair(label string) (domain.MarketPair, bool)
	Book(id string) (*orderbook.Book, bool)
}

// Snapshots exposes the publisher's latest evaluation.
type Snapshots interface {
	Latest() (feed.Update, bool)
	OpenWindows() []domain.ArbWindow
}

// FeedStatus reports the connection state.
type FeedStatus interface {
	Status() feed.Status
}

// WindowHistory lists recorded arbitrage windows.
type WindowHistory interface {
	ListRecent(ctx context.Context, label string, limit int) ([]domain.ArbWindow, error)
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	n := def
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > max {
		n = max
	}
	return n
}
