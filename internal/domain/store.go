package domain

import "context"

// ArbWindowStore persists detected arbitrage windows.
type ArbWindowStore interface {
	Open(ctx context.Context, w ArbWindow) error
	Close(ctx context.Context, w ArbWindow) error
	ListRecent(ctx context.Context, label string, limit int) ([]ArbWindow, error)
}
