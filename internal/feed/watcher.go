// Package feed runs the market channel: it applies decoded events to the
// books it owns, reconnects sessions on failure and publishes throttled
// analytics to sinks.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/metrics"
	"github.com/alanyoungcy/polywatch/internal/orderbook"
	"github.com/alanyoungcy/polywatch/internal/platform/polymarket"
)

// Result reports what happened to one event or frame-level issue. Err is nil
// on success and otherwise wraps a domain sentinel.
type Result struct {
	AssetID string
	Kind    string
	Applied bool
	Skipped int
	Err     error
}

// Watcher owns one Book per subscribed instrument and is their only writer.
type Watcher struct {
	pairs   []domain.MarketPair
	byLabel map[string]domain.MarketPair
	books   map[string]*orderbook.Book
	ids     []string
	decoder *polymarket.Decoder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// WatcherConfig configures the books a Watcher creates.
type WatcherConfig struct {
	HistorySize int
}

// NewWatcher creates empty books for every instrument in pairs. Labels and
// instrument ids must be unique.
func NewWatcher(pairs []domain.MarketPair, cfg WatcherConfig, m *metrics.Metrics, logger *slog.Logger) (*Watcher, error) {
	if len(pairs) == 0 {
		return nil, errors.New("feed: at least one market pair is required")
	}
	w := &Watcher{
		byLabel: make(map[string]domain.MarketPair, len(pairs)),
		books:   make(map[string]*orderbook.Book, 2*len(pairs)),
		metrics: m,
		logger:  logger.With(slog.String("component", "feed_watcher")),
	}
	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("feed: %w", err)
		}
		if _, dup := w.byLabel[p.Label]; dup {
			return nil, fmt.Errorf("feed: duplicate pair label %q", p.Label)
		}
		w.byLabel[p.Label] = p
		for _, inst := range []domain.Instrument{p.Up, p.Down} {
			if _, dup := w.books[inst.ID]; dup {
				return nil, fmt.Errorf("feed: instrument %s subscribed twice", inst.ID)
			}
			w.books[inst.ID] = orderbook.New(inst, orderbook.WithHistorySize(cfg.HistorySize))
			w.ids = append(w.ids, inst.ID)
		}
		w.pairs = append(w.pairs, p)
	}
	w.decoder = polymarket.NewDecoder(w.ids)
	return w, nil
}

// InstrumentIDs returns every subscribed id, UP before DOWN per pair.
func (w *Watcher) InstrumentIDs() []string {
	out := make([]string, len(w.ids))
	copy(out, w.ids)
	return out
}

// Pairs returns the configured pairs.
func (w *Watcher) Pairs() []domain.MarketPair {
	out := make([]domain.MarketPair, len(w.pairs))
	copy(out, w.pairs)
	return out
}

// Pair looks a pair up by label.
func (w *Watcher) Pair(label string) (domain.MarketPair, bool) {
	p, ok := w.byLabel[label]
	return p, ok
}

// Book returns the book of an instrument. Callers must only read it.
func (w *Watcher) Book(id string) (*orderbook.Book, bool) {
	b, ok := w.books[id]
	return b, ok
}

// Consume applies frames until the channel closes (nil) or ctx ends.
func (w *Watcher) Consume(ctx context.Context, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-frames:
			if !ok {
				return nil
			}
			w.HandleFrame(raw)
		}
	}
}

// HandleFrame decodes and applies one frame. A bad frame or event never
// stops processing; it only shows up as a Result with Err set.
func (w *Watcher) HandleFrame(raw []byte) []Result {
	w.metrics.Frame()
	batch := w.decoder.Decode(raw)

	results := make([]Result, 0, len(batch.Issues)+len(batch.Events))
	for _, issue := range batch.Issues {
		w.metrics.Issue(Reason(issue))
		w.logger.Debug("frame issue", slog.String("error", issue.Error()))
		results = append(results, Result{Kind: "frame", Err: issue})
	}
	for _, ev := range batch.Events {
		r := w.Apply(ev)
		if r.Err != nil {
			w.metrics.Event(metricKind(r.Kind), Reason(r.Err))
			w.logger.Debug("event ignored",
				slog.String("asset_id", r.AssetID),
				slog.String("kind", r.Kind),
				slog.String("error", r.Err.Error()),
			)
		} else {
			w.metrics.Event(metricKind(r.Kind), "applied")
		}
		results = append(results, r)
	}
	return results
}

// Apply routes one event to its book.
func (w *Watcher) Apply(ev domain.Event) Result {
	r := Result{AssetID: ev.AssetID()}
	switch ev := ev.(type) {
	case domain.SnapshotEvent:
		r.Kind, r.Skipped = "book", ev.Skipped
		book, ok := w.books[ev.Asset]
		if !ok {
			r.Err = fmt.Errorf("feed: asset %q: %w", ev.Asset, domain.ErrUnknownInstrument)
			return r
		}
		book.ApplySnapshot(ev.Bids, ev.Asks)
		bids, asks := book.Levels()
		w.metrics.Levels(ev.Asset, bids, asks)

	case domain.DeltaEvent:
		r.Kind, r.Skipped = "price_change", ev.Skipped
		book, ok := w.books[ev.Asset]
		if !ok {
			r.Err = fmt.Errorf("feed: asset %q: %w", ev.Asset, domain.ErrUnknownInstrument)
			return r
		}
		book.ApplyDelta(ev.Changes)
		bids, asks := book.Levels()
		w.metrics.Levels(ev.Asset, bids, asks)

	case domain.UnsupportedEvent:
		r.Kind = ev.Type
		r.Err = fmt.Errorf("feed: event %q: %w", ev.Type, domain.ErrUnsupportedEvent)
		return r

	default:
		r.Kind = fmt.Sprintf("%T", ev)
		r.Err = fmt.Errorf("feed: %w", domain.ErrUnsupportedEvent)
		return r
	}
	r.Applied = true
	return r
}

// Reason maps a recoverable error to a short metrics label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrUnknownInstrument):
		return "unknown_instrument"
	case errors.Is(err, domain.ErrData):
		return "data"
	case errors.Is(err, domain.ErrUnsupportedEvent):
		return "unsupported"
	case errors.Is(err, domain.ErrConnection):
		return "connection"
	}
	return "other"
}

// metricKind bounds the label set; event types come from the server.
func metricKind(kind string) string {
	switch kind {
	case "book", "price_change":
		return kind
	}
	return "other"
}
