// Package pipeline holds the publisher sinks that carry watcher state out of
// the process: the Redis mirror, the S3 tick archive and arbitrage alerts.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
)

// Channel and stream names, relative to the cache's key prefix.
const (
	PairChannelPrefix = "ch:pair:"
	ArbWindowStream   = "stream:arb_windows"
)

// CacheSink mirrors each update into a QuoteCache, publishes every pair on
// its own channel and appends arbitrage window transitions to a stream.
type CacheSink struct {
	cache  domain.QuoteCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewCacheSink returns a CacheSink. Either dependency may be nil.
func NewCacheSink(cache domain.QuoteCache, bus domain.SignalBus, logger *slog.Logger) *CacheSink {
	return &CacheSink{
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "cache_sink")),
	}
}

// Name implements feed.Sink.
func (s *CacheSink) Name() string { return "redis" }

// windowEvent is the stream payload for one transition.
type windowEvent struct {
	Event  string           `json:"event"`
	Window domain.ArbWindow `json:"window"`
}

// Publish implements feed.Sink.
func (s *CacheSink) Publish(ctx context.Context, u feed.Update) error {
	var errs []error

	if s.cache != nil {
		quotes, bbos := Quotes(u)
		if err := s.cache.SetQuotes(ctx, quotes, bbos); err != nil {
			errs = append(errs, err)
		}
	}

	if s.bus != nil {
		for _, pu := range u.Pairs {
			if !pu.Available {
				continue
			}
			payload, err := json.Marshal(pu)
			if err != nil {
				errs = append(errs, fmt.Errorf("pipeline: marshal pair %s: %w", pu.Pair.Label, err))
				continue
			}
			if err := s.bus.Publish(ctx, PairChannelPrefix+pu.Pair.Label, payload); err != nil {
				errs = append(errs, err)
			}
		}
		for _, tr := range u.Transitions {
			ev := windowEvent{Event: "closed", Window: tr.Window}
			if tr.Opened {
				ev.Event = "opened"
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				errs = append(errs, fmt.Errorf("pipeline: marshal window %s: %w", tr.Window.ID, err))
				continue
			}
			if err := s.bus.StreamAppend(ctx, ArbWindowStream, payload); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Quotes flattens an update into cache records. Pairs without analytics are
// skipped; BBOs are written for every instrument.
func Quotes(u feed.Update) ([]domain.PairQuote, []domain.BBO) {
	quotes := make([]domain.PairQuote, 0, len(u.Pairs))
	bbos := make([]domain.BBO, 0, 2*len(u.Pairs))

	for _, pu := range u.Pairs {
		bbos = append(bbos, bboOf(pu.Up, u), bboOf(pu.Down, u))
		if !pu.Available {
			continue
		}
		a := pu.Analytics
		quotes = append(quotes, domain.PairQuote{
			Label:     pu.Pair.Label,
			UpID:      pu.Pair.Up.ID,
			DownID:    pu.Pair.Down.ID,
			UpMid:     a.UpMid,
			DownMid:   a.DownMid,
			HasDown:   a.HasDown,
			Edge:      a.Edge,
			Imbalance: a.Imbalance,
			ArbWindow: a.ArbWindow,
			Direction: a.Direction,
			UpdatedAt: a.ComputedAt,
		})
	}
	return quotes, bbos
}

func bboOf(v domain.BookView, u feed.Update) domain.BBO {
	at := v.UpdatedAt
	if at.IsZero() {
		at = u.At
	}
	return domain.BBO{
		AssetID:   v.Instrument.ID,
		Bid:       v.BestBid,
		Ask:       v.BestAsk,
		HasBid:    v.HasBid,
		HasAsk:    v.HasAsk,
		UpdatedAt: at,
	}
}

var _ feed.Sink = (*CacheSink)(nil)
