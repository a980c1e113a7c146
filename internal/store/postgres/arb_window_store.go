package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// ArbWindowStore implements domain.ArbWindowStore.
type ArbWindowStore struct {
	pool *pgxpool.Pool
}

// NewArbWindowStore creates an ArbWindowStore backed by the given pool.
func NewArbWindowStore(pool *pgxpool.Pool) *ArbWindowStore {
	return &ArbWindowStore{pool: pool}
}

const arbWindowCols = `id, label, up_id, down_id, direction,
	open_edge, peak_edge, close_edge, opened_at, closed_at`

// Open records a newly opened window. Re-opening an existing id is a no-op.
func (s *ArbWindowStore) Open(ctx context.Context, w domain.ArbWindow) error {
	const query = `
		INSERT INTO arb_windows (
			id, label, up_id, down_id, direction,
			open_edge, peak_edge, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.Label, w.UpID, w.DownID, string(w.Direction),
		w.OpenEdge, w.PeakEdge, w.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: open arb window %s: %w", w.ID, err)
	}
	return nil
}

// Close stamps the close edge, peak and duration of a window. close_edge is
// left NULL when the window has no close edge. It returns
// domain.ErrNotFound when the window was never opened.
func (s *ArbWindowStore) Close(ctx context.Context, w domain.ArbWindow) error {
	const query = `
		UPDATE arb_windows SET
			peak_edge   = $2,
			close_edge  = $3,
			closed_at   = $4,
			duration_ms = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		w.ID, w.PeakEdge, closeEdgeArg(w), w.ClosedAt,
		w.Duration(w.ClosedAt).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: close arb window %s: %w", w.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns windows newest first, optionally for one label.
func (s *ArbWindowStore) ListRecent(ctx context.Context, label string, limit int) ([]domain.ArbWindow, error) {
	query, args := listRecentQuery(label, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arb windows: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbWindow
	for rows.Next() {
		var (
			w         domain.ArbWindow
			direction string
			closeEdge *float64
			closedAt  *time.Time
		)
		if err := rows.Scan(
			&w.ID, &w.Label, &w.UpID, &w.DownID, &direction,
			&w.OpenEdge, &w.PeakEdge, &closeEdge, &w.OpenedAt, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan arb window: %w", err)
		}
		w.Direction = domain.ArbDirection(direction)
		if closeEdge != nil {
			w.CloseEdge, w.HasCloseEdge = *closeEdge, true
		}
		if closedAt != nil {
			w.ClosedAt = *closedAt
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list arb windows rows: %w", err)
	}
	return out, nil
}

func closeEdgeArg(w domain.ArbWindow) *float64 {
	if !w.HasCloseEdge {
		return nil
	}
	return &w.CloseEdge
}

func listRecentQuery(label string, limit int) (string, []any) {
	query := `SELECT ` + arbWindowCols + ` FROM arb_windows`
	var args []any
	if label != "" {
		args = append(args, label)
		query += fmt.Sprintf(" WHERE label = $%d", len(args))
	}
	query += " ORDER BY opened_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

var _ domain.ArbWindowStore = (*ArbWindowStore)(nil)
