// Package orderbook keeps the live limit order book of a single instrument,
// rebuilt from feed snapshots and incremental level changes.
package orderbook

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// DefaultImbalanceLevels is the number of top levels per side used for
// order-flow imbalance.
const DefaultImbalanceLevels = 5

// Book is a price->size ladder per side. Stored sizes are always positive; a
// zero size in an update removes the level.
//
// A Book has exactly one writer (the feed loop). Readers on other goroutines
// see a consistent state because every accessor copies under the read lock.
type Book struct {
	inst domain.Instrument
	now  func() time.Time

	mu      sync.RWMutex
	bids    map[float64]float64
	asks    map[float64]float64
	history *History
	updated time.Time
}

// Option configures a Book.
type Option func(*Book)

// WithHistorySize overrides DefaultHistorySize.
func WithHistorySize(n int) Option {
	return func(b *Book) { b.history = NewHistory(n) }
}

// WithClock overrides the time source used to stamp samples.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// New returns an empty book for inst.
func New(inst domain.Instrument, opts ...Option) *Book {
	b := &Book{
		inst:    inst,
		now:     time.Now,
		bids:    make(map[float64]float64),
		asks:    make(map[float64]float64),
		history: NewHistory(DefaultHistorySize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Instrument returns the instrument the book tracks.
func (b *Book) Instrument() domain.Instrument { return b.inst }

// ApplySnapshot replaces both sides wholesale. Levels with non-positive size
// are not stored.
func (b *Book) ApplySnapshot(bids, asks []domain.PriceLevel) {
	nb := make(map[float64]float64, len(bids))
	for _, l := range bids {
		if l.Size > 0 {
			nb[l.Price] = l.Size
		}
	}
	na := make(map[float64]float64, len(asks))
	for _, l := range asks {
		if l.Size > 0 {
			na[l.Price] = l.Size
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids, b.asks = nb, na
	b.touch()
}

// ApplyDelta upserts or removes individual levels. Removing an absent level is
// a no-op, so re-applying the same changes leaves the book unchanged.
func (b *Book) ApplyDelta(changes []domain.LevelChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range changes {
		side := b.bids
		if c.Side == domain.SideAsk {
			side = b.asks
		}
		if c.Size <= 0 {
			delete(side, c.Price)
			continue
		}
		side[c.Price] = c.Size
	}
	b.touch()
}

// touch stamps the update and records a mid sample when one is defined.
// Caller holds b.mu.
func (b *Book) touch() {
	now := b.now()
	b.updated = now
	if mid, ok := b.midLocked(); ok {
		b.history.Append(domain.Sample{Time: now, Mid: mid})
	}
}

// BestBid returns the highest bid price.
func (b *Book) BestBid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bestOf(b.bids, true)
}

// BestAsk returns the lowest ask price.
func (b *Book) BestAsk() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return bestOf(b.asks, false)
}

// Mid returns (bestBid+bestAsk)/2. When either side is empty it returns NaN
// and false.
func (b *Book) Mid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.midLocked()
}

// Spread returns bestAsk-bestBid, which is negative on a crossed book. When
// either side is empty it returns NaN and false.
func (b *Book) Spread() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, okB := bestOf(b.bids, true)
	ask, okA := bestOf(b.asks, false)
	if !okB || !okA {
		return math.NaN(), false
	}
	return ask - bid, true
}

// Imbalance compares resting volume in the best levels per side:
// (bidVol-askVol)/(bidVol+askVol), in [-1, 1], 0 when both are empty.
// levels <= 0 uses DefaultImbalanceLevels.
func (b *Book) Imbalance(levels int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return imbalance(sortedLevels(b.bids, true), sortedLevels(b.asks, false), levels)
}

// Depth returns up to levels entries per side, best first. levels <= 0
// returns the full ladder.
func (b *Book) Depth(levels int) (bids, asks []domain.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return truncate(sortedLevels(b.bids, true), levels), truncate(sortedLevels(b.asks, false), levels)
}

// History returns the retained mid samples, oldest first.
func (b *Book) History() []domain.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.history.Snapshot()
}

// Levels returns the number of resting levels per side.
func (b *Book) Levels() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids), len(b.asks)
}

// UpdatedAt returns the time of the last applied event.
func (b *Book) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}

// View copies the whole book state under a single read lock. depth limits
// the ladder copied per side (<= 0 means all); imbalance always uses
// imbalanceLevels.
func (b *Book) View(depth, imbalanceLevels int) domain.BookView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids := sortedLevels(b.bids, true)
	asks := sortedLevels(b.asks, false)
	v := domain.BookView{
		Instrument: b.inst,
		Bids:       truncate(bids, depth),
		Asks:       truncate(asks, depth),
		Imbalance:  imbalance(bids, asks, imbalanceLevels),
		BidLevels:  len(bids),
		AskLevels:  len(asks),
		UpdatedAt:  b.updated,
	}
	if len(bids) > 0 {
		v.BestBid, v.HasBid = bids[0].Price, true
	}
	if len(asks) > 0 {
		v.BestAsk, v.HasAsk = asks[0].Price, true
	}
	if v.HasBid && v.HasAsk {
		v.HasMid = true
		v.Mid = (v.BestBid + v.BestAsk) / 2
		v.Spread = v.BestAsk - v.BestBid
	}
	return v
}

func (b *Book) midLocked() (float64, bool) {
	bid, okB := bestOf(b.bids, true)
	ask, okA := bestOf(b.asks, false)
	if !okB || !okA {
		return math.NaN(), false
	}
	return (bid + ask) / 2, true
}

func bestOf(side map[float64]float64, highest bool) (float64, bool) {
	if len(side) == 0 {
		return 0, false
	}
	first := true
	var best float64
	for p := range side {
		if first || (highest && p > best) || (!highest && p < best) {
			best = p
			first = false
		}
	}
	return best, true
}

// sortedLevels orders bids descending and asks ascending.
func sortedLevels(side map[float64]float64, desc bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(side))
	for p, s := range side {
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	slices.SortFunc(out, func(a, b domain.PriceLevel) int {
		if desc {
			a, b = b, a
		}
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return 0
	})
	return out
}

func truncate(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if n > 0 && len(levels) > n {
		return levels[:n]
	}
	return levels
}

func imbalance(bids, asks []domain.PriceLevel, levels int) float64 {
	if levels <= 0 {
		levels = DefaultImbalanceLevels
	}
	var bv, av float64
	for _, l := range truncate(bids, levels) {
		bv += l.Size
	}
	for _, l := range truncate(asks, levels) {
		av += l.Size
	}
	if bv+av == 0 {
		return 0
	}
	return (bv - av) / (bv + av)
}
