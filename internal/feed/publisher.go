package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polywatch/internal/analytics"
	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/metrics"
)

// MinInterval is the fastest rate at which analytics are published.
const MinInterval = 250 * time.Millisecond

// PairUpdate is the published state of one pair.
type PairUpdate struct {
	Pair        domain.MarketPair       `json:"pair"`
	Available   bool                    `json:"available"`
	Analytics   analytics.PairAnalytics `json:"analytics"`
	Up          domain.BookView         `json:"up"`
	Down        domain.BookView         `json:"down"`
	UpHistory   []domain.Sample         `json:"up_history,omitempty"`
	DownHistory []domain.Sample         `json:"down_history,omitempty"`
}

// Update is everything published on one tick.
type Update struct {
	Seq         uint64                 `json:"seq"`
	At          time.Time              `json:"at"`
	Pairs       []PairUpdate           `json:"pairs"`
	Transitions []analytics.Transition `json:"-"`
	Final       bool                   `json:"-"`
}

// Sink receives updates. Publish is called from a single goroutine.
type Sink interface {
	Name() string
	Publish(ctx context.Context, u Update) error
}

// PublisherConfig controls the publishing loop.
type PublisherConfig struct {
	Interval        time.Duration
	Depth           int
	ImbalanceLevels int
	ArbThreshold    float64
}

// Publisher polls the watcher's books at a bounded rate, evaluates every
// pair and fans the result out to sinks. Each book is read once per tick
// through View, and analytics are derived from those views, so a
// published update never mixes two book states. Reads never block the
// feed for longer than a book copy.
type Publisher struct {
	watcher  *Watcher
	analyzer *analytics.Analyzer
	tracker  *analytics.WindowTracker
	sinks    []Sink
	cfg      PublisherConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	seq    uint64
	latest Update
}

// NewPublisher builds a Publisher. Intervals below MinInterval are raised
// to it.
func NewPublisher(w *Watcher, cfg PublisherConfig, sinks []Sink, m *metrics.Metrics, logger *slog.Logger) *Publisher {
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	return &Publisher{
		watcher:  w,
		analyzer: analytics.NewAnalyzer(cfg.ArbThreshold, cfg.ImbalanceLevels),
		tracker:  analytics.NewWindowTracker(w.Pairs()),
		sinks:    sinks,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With(slog.String("component", "feed_publisher")),
		now:      time.Now,
	}
}

// AddSink registers a sink. It must be called before Run.
func (p *Publisher) AddSink(s Sink) { p.sinks = append(p.sinks, s) }

// Run publishes on every tick until ctx ends, then closes any open
// arbitrage windows and publishes one final update.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush(ctx)
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick builds one update, records it as latest and pushes it to every sink.
func (p *Publisher) Tick(ctx context.Context) Update {
	u := p.build()
	p.publish(ctx, u)
	return u
}

// Latest returns the most recent update, if any.
func (p *Publisher) Latest() (Update, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.seq > 0
}

// OpenWindows returns the arbitrage windows currently open.
func (p *Publisher) OpenWindows() []domain.ArbWindow { return p.tracker.Open() }

func (p *Publisher) build() Update {
	pairs := p.watcher.Pairs()
	u := Update{At: p.now(), Pairs: make([]PairUpdate, 0, len(pairs))}

	for _, pair := range pairs {
		up, _ := p.watcher.Book(pair.Up.ID)
		down, _ := p.watcher.Book(pair.Down.ID)

		pu := PairUpdate{
			Pair:        pair,
			Up:          up.View(p.cfg.Depth, p.cfg.ImbalanceLevels),
			Down:        down.View(p.cfg.Depth, p.cfg.ImbalanceLevels),
			UpHistory:   up.History(),
			DownHistory: down.History(),
		}
		pu.Analytics, pu.Available = p.analyzer.EvaluateViews(pair.Label, pu.Up, pu.Down)
		if pu.Available {
			for _, tr := range p.tracker.Observe(pu.Analytics) {
				if tr.Opened {
					p.metrics.ArbWindow(pair.Label, string(tr.Window.Direction))
				}
				u.Transitions = append(u.Transitions, tr)
			}
			if pu.Analytics.HasDown {
				p.metrics.Edge(pair.Label, pu.Analytics.Edge)
			}
		}
		u.Pairs = append(u.Pairs, pu)
	}

	p.mu.Lock()
	p.seq++
	u.Seq = p.seq
	p.latest = u
	p.mu.Unlock()
	return u
}

func (p *Publisher) publish(ctx context.Context, u Update) {
	for _, s := range p.sinks {
		if err := s.Publish(ctx, u); err != nil {
			p.metrics.SinkError(s.Name())
			p.logger.Warn("sink publish failed",
				slog.String("sink", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// flush publishes a final update with every open window closed, on a
// context detached from the cancelled one.
func (p *Publisher) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	u := p.build()
	u.Transitions = append(u.Transitions, p.tracker.CloseAll(u.At)...)
	u.Final = true
	p.publish(fctx, u)
}
