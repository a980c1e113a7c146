package handler

import (
	"net/http"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/orderbook"
)

const maxLevels = 100

// BookHandler serves live order book reads straight from the books.
type BookHandler struct {
	books           Books
	imbalanceLevels int
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books Books, imbalanceLevels int) *BookHandler {
	if imbalanceLevels <= 0 {
		imbalanceLevels = orderbook.DefaultImbalanceLevels
	}
	return &BookHandler{books: books, imbalanceLevels: imbalanceLevels}
}

// GetBook returns the top levels of one book.
// GET /api/books/{id}?levels=10
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := h.books.Book(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown instrument")
		return
	}
	writeJSON(w, http.StatusOK, book.View(queryInt(r, "levels", 10, maxLevels), h.imbalanceLevels))
}

type historyResponse struct {
	Instrument domain.Instrument `json:"instrument"`
	Samples    []domain.Sample   `json:"samples"`
}

// GetHistory returns the book's recent mid-price samples, oldest first.
// GET /api/books/{id}/history
func (h *BookHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	book, ok := h.books.Book(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown instrument")
		return
	}
	samples := book.History()
	if samples == nil {
		samples = []domain.Sample{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Instrument: book.Instrument(), Samples: samples})
}

// ListMarkets returns the configured pairs.
// GET /api/markets
func (h *BookHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": h.books.Pairs()})
}
