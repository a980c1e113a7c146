package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testPair() domain.MarketPair {
	return domain.NewMarketPair("btc", "up", "down")
}

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher([]domain.MarketPair{testPair()}, WatcherConfig{}, metrics.New(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcherScenario(t *testing.T) {
	w := newTestWatcher(t)
	w.HandleFrame([]byte(`{"event_type":"book","asset_id":"up",
		"bids":[{"price":"100","size":"5"},{"price":"99","size":"3"}],
		"asks":[{"price":"101","size":"4"}]}`))

	book, _ := w.Book("up")
	if mid, ok := book.Mid(); !ok || mid != 100.5 {
		t.Fatalf("mid = %v,%v", mid, ok)
	}

	res := w.HandleFrame([]byte(`{"event_type":"price_change","asset_id":"up","changes":[{"side":"BUY","price":"100","size":"0"}]}`))
	if len(res) != 1 || !res[0].Applied || res[0].Err != nil {
		t.Fatalf("results = %+v", res)
	}
	if bid, _ := book.BestBid(); bid != 99 {
		t.Fatalf("best bid = %v, want 99", bid)
	}
}

func TestWatcherMalformedFrameBetweenValidFrames(t *testing.T) {
	w := newTestWatcher(t)
	frames := make(chan []byte, 3)
	frames <- []byte(`{"event_type":"book","asset_id":"up","bids":[{"price":"0.4","size":"1"}],"asks":[{"price":"0.6","size":"1"}]}`)
	frames <- []byte(`{"event_type":"book","asset_id":`)
	frames <- []byte(`[{"event_type":"book","asset_id":"down","bids":[["2","0.25"]],"asks":[["2","0.75"]]}]`)
	close(frames)

	if err := w.Consume(context.Background(), frames); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	up, _ := w.Book("up")
	down, _ := w.Book("down")
	if _, ok := up.Mid(); !ok {
		t.Fatal("first frame lost")
	}
	if mid, ok := down.Mid(); !ok || mid != 0.5 {
		t.Fatalf("third frame lost: mid = %v,%v", mid, ok)
	}
}

func TestWatcherMistypedSideStillAppliesOtherSide(t *testing.T) {
	w := newTestWatcher(t)
	w.HandleFrame([]byte(`{"event_type":"book","asset_id":"up","bids":[{"price":"0.48","size":"1"}],"asks":[{"price":"0.52","size":"1"}]}`))

	res := w.HandleFrame([]byte(`{"event_type":"book","asset_id":"up","bids":"oops","asks":[{"price":"0.6","size":"3"}]}`))
	var data, applied int
	for _, r := range res {
		switch {
		case errors.Is(r.Err, domain.ErrData):
			data++
		case errors.Is(r.Err, domain.ErrDecode):
			t.Fatalf("valid JSON reported as undecodable: %v", r.Err)
		case r.Applied:
			applied++
		}
	}
	if data != 1 || applied != 1 {
		t.Fatalf("results = %+v", res)
	}

	book, _ := w.Book("up")
	if ask, ok := book.BestAsk(); !ok || ask != 0.6 {
		t.Fatalf("best ask = %v,%v, want 0.6", ask, ok)
	}
	if _, ok := book.BestBid(); ok {
		t.Fatal("malformed bids should replace the side with nothing")
	}
}

func TestWatcherResults(t *testing.T) {
	w := newTestWatcher(t)
	res := w.HandleFrame([]byte(`[
		{"event_type":"tick_size_change","asset_id":"up"},
		{"event_type":"book","asset_id":"elsewhere","bids":[],"asks":[]},
		{"event_type":"book","asset_id":"down","bids":[{"price":"x","size":"1"}],"asks":[]}]`))

	var unsupported, unknown, data, applied int
	for _, r := range res {
		switch {
		case errors.Is(r.Err, domain.ErrUnsupportedEvent):
			unsupported++
		case errors.Is(r.Err, domain.ErrUnknownInstrument):
			unknown++
		case errors.Is(r.Err, domain.ErrData):
			data++
		case r.Applied:
			applied++
		}
	}
	if unsupported != 1 || unknown != 1 || data != 1 || applied != 1 {
		t.Fatalf("results = %+v", res)
	}
	if res := w.HandleFrame([]byte("not json")); len(res) != 1 || !errors.Is(res[0].Err, domain.ErrDecode) {
		t.Fatalf("decode results = %+v", res)
	}
}

func TestNewWatcherRejectsBadPairs(t *testing.T) {
	tests := []struct {
		name  string
		pairs []domain.MarketPair
	}{
		{"empty", nil},
		{"missing id", []domain.MarketPair{domain.NewMarketPair("a", "", "d")}},
		{"duplicate label", []domain.MarketPair{domain.NewMarketPair("a", "1", "2"), domain.NewMarketPair("a", "3", "4")}},
		{"shared instrument", []domain.MarketPair{domain.NewMarketPair("a", "1", "2"), domain.NewMarketPair("b", "2", "3")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWatcher(tt.pairs, WatcherConfig{}, nil, quietLogger()); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestWatcherConsumeStopsOnCancel(t *testing.T) {
	w := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Consume(ctx, make(chan []byte)) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not return")
	}
}

func TestReason(t *testing.T) {
	if got := Reason(&domain.ConnectionError{Op: "read", Err: io.EOF}); got != "connection" {
		t.Fatalf("reason = %q", got)
	}
	if got := Reason(nil); got != "ok" {
		t.Fatalf("reason = %q", got)
	}
}
