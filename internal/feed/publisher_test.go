package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/metrics"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
	return s.err
}

func (s *recordingSink) all() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

func bookFrame(asset, bid, ask string) []byte {
	return []byte(`{"event_type":"book","asset_id":"` + asset + `","bids":[{"price":"` + bid + `","size":"10"}],"asks":[{"price":"` + ask + `","size":"10"}]}`)
}

func TestPublisherTickEvaluatesPairs(t *testing.T) {
	w := newTestWatcher(t)
	sink := &recordingSink{}
	p := NewPublisher(w, PublisherConfig{ArbThreshold: 0.01}, []Sink{sink}, metrics.New(), quietLogger())

	if _, ok := p.Latest(); ok {
		t.Fatal("latest before first tick")
	}

	u := p.Tick(context.Background())
	if len(u.Pairs) != 1 || u.Pairs[0].Available {
		t.Fatalf("empty books should be unavailable: %+v", u.Pairs)
	}

	w.HandleFrame(bookFrame("up", "0.51", "0.53"))
	w.HandleFrame(bookFrame("down", "0.49", "0.51"))
	u = p.Tick(context.Background())

	pu := u.Pairs[0]
	if !pu.Available || !pu.Analytics.HasDown || !pu.Analytics.ArbWindow {
		t.Fatalf("analytics = %+v", pu.Analytics)
	}
	if len(u.Transitions) != 1 || !u.Transitions[0].Opened {
		t.Fatalf("transitions = %+v", u.Transitions)
	}
	if len(pu.UpHistory) != 1 || !pu.Up.HasMid {
		t.Fatalf("up view = %+v history = %v", pu.Up, pu.UpHistory)
	}
	if latest, ok := p.Latest(); !ok || latest.Seq != 2 {
		t.Fatalf("latest seq = %d", latest.Seq)
	}
	if got := len(sink.all()); got != 2 {
		t.Fatalf("sink saw %d updates", got)
	}
}

func TestPublisherFlushClosesWindows(t *testing.T) {
	w := newTestWatcher(t)
	sink := &recordingSink{}
	p := NewPublisher(w, PublisherConfig{Interval: time.Hour}, []Sink{sink}, nil, quietLogger())
	w.HandleFrame(bookFrame("up", "0.51", "0.53"))
	w.HandleFrame(bookFrame("down", "0.49", "0.51"))
	p.Tick(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}

	all := sink.all()
	final := all[len(all)-1]
	if !final.Final || len(final.Transitions) != 1 || final.Transitions[0].Opened {
		t.Fatalf("final update = %+v", final)
	}
	if len(p.OpenWindows()) != 0 {
		t.Fatal("windows still open after flush")
	}
}

func TestPublisherSinkErrorDoesNotStopOthers(t *testing.T) {
	w := newTestWatcher(t)
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	p := NewPublisher(w, PublisherConfig{}, []Sink{failing}, metrics.New(), quietLogger())
	p.AddSink(ok)
	p.Tick(context.Background())
	if len(ok.all()) != 1 {
		t.Fatal("second sink skipped after first failed")
	}
}

func TestPublisherIntervalFloor(t *testing.T) {
	p := NewPublisher(newTestWatcher(t), PublisherConfig{Interval: time.Millisecond}, nil, nil, quietLogger())
	if p.cfg.Interval != MinInterval {
		t.Fatalf("interval = %v", p.cfg.Interval)
	}
}

func TestPublisherAnalyticsMatchPublishedViews(t *testing.T) {
	w := newTestWatcher(t)
	p := NewPublisher(w, PublisherConfig{ImbalanceLevels: 5}, nil, nil, quietLogger())
	w.HandleFrame([]byte(`{"event_type":"book","asset_id":"up","bids":[{"price":"0.40","size":"30"}],"asks":[{"price":"0.44","size":"10"}]}`))
	w.HandleFrame([]byte(`{"event_type":"book","asset_id":"down","bids":[{"price":"0.55","size":"5"}]}`))

	pu := p.Tick(context.Background()).Pairs[0]
	if !pu.Available {
		t.Fatalf("analytics = %+v", pu.Analytics)
	}
	if pu.Analytics.UpMid != pu.Up.Mid || pu.Analytics.UpSpread != pu.Up.Spread {
		t.Fatalf("analytics up %v/%v, view %v/%v", pu.Analytics.UpMid, pu.Analytics.UpSpread, pu.Up.Mid, pu.Up.Spread)
	}
	if pu.Analytics.Imbalance != pu.Up.Imbalance || pu.Up.Imbalance != 0.5 {
		t.Fatalf("imbalance analytics %v view %v", pu.Analytics.Imbalance, pu.Up.Imbalance)
	}
	if pu.Analytics.HasDown || pu.Down.HasMid {
		t.Fatalf("one-sided DOWN book: analytics %+v view %+v", pu.Analytics, pu.Down)
	}
}
