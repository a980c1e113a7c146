package orderbook

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

func testBook(opts ...Option) *Book {
	return New(domain.Instrument{ID: "tok-up", Label: "BTC UP", Outcome: domain.OutcomeUp}, opts...)
}

func lv(price, size float64) domain.PriceLevel { return domain.PriceLevel{Price: price, Size: size} }

func TestSnapshotThenDeltaScenario(t *testing.T) {
	b := testBook()
	b.ApplySnapshot([]domain.PriceLevel{lv(100, 5), lv(99, 3)}, []domain.PriceLevel{lv(101, 4)})

	if bid, ok := b.BestBid(); !ok || bid != 100 {
		t.Fatalf("best bid = %v,%v, want 100", bid, ok)
	}
	if ask, ok := b.BestAsk(); !ok || ask != 101 {
		t.Fatalf("best ask = %v,%v, want 101", ask, ok)
	}
	if mid, ok := b.Mid(); !ok || mid != 100.5 {
		t.Fatalf("mid = %v,%v, want 100.5", mid, ok)
	}
	if spread, ok := b.Spread(); !ok || spread != 1 {
		t.Fatalf("spread = %v,%v, want 1", spread, ok)
	}

	b.ApplyDelta([]domain.LevelChange{{Side: domain.SideBid, Price: 100, Size: 0}})
	if bid, _ := b.BestBid(); bid != 99 {
		t.Fatalf("best bid after removal = %v, want 99", bid)
	}
}

func TestSnapshotBestPricesAreExtremes(t *testing.T) {
	tests := []struct {
		name    string
		bids    []domain.PriceLevel
		asks    []domain.PriceLevel
		wantBid float64
		wantAsk float64
	}{
		{"unsorted", []domain.PriceLevel{lv(0.40, 1), lv(0.45, 2), lv(0.41, 3)}, []domain.PriceLevel{lv(0.60, 1), lv(0.55, 1), lv(0.58, 1)}, 0.45, 0.55},
		{"single", []domain.PriceLevel{lv(0.1, 10)}, []domain.PriceLevel{lv(0.9, 10)}, 0.1, 0.9},
		{"zero size ignored", []domain.PriceLevel{lv(0.5, 0), lv(0.49, 1)}, []domain.PriceLevel{lv(0.51, 0), lv(0.52, 1)}, 0.49, 0.52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBook()
			b.ApplySnapshot(tt.bids, tt.asks)
			if got, _ := b.BestBid(); got != tt.wantBid {
				t.Errorf("best bid = %v, want %v", got, tt.wantBid)
			}
			if got, _ := b.BestAsk(); got != tt.wantAsk {
				t.Errorf("best ask = %v, want %v", got, tt.wantAsk)
			}
		})
	}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	b := testBook()
	b.ApplySnapshot([]domain.PriceLevel{lv(0.40, 1), lv(0.39, 1)}, []domain.PriceLevel{lv(0.60, 1)})
	b.ApplySnapshot([]domain.PriceLevel{lv(0.30, 2)}, nil)

	bids, asks := b.Depth(0)
	if len(bids) != 1 || bids[0] != lv(0.30, 2) {
		t.Fatalf("bids = %v, want only 0.30", bids)
	}
	if len(asks) != 0 {
		t.Fatalf("asks = %v, want empty", asks)
	}
}

func TestDeltaRemovalIsIdempotent(t *testing.T) {
	b := testBook()
	b.ApplySnapshot([]domain.PriceLevel{lv(0.40, 1), lv(0.39, 1)}, []domain.PriceLevel{lv(0.60, 1)})

	remove := []domain.LevelChange{{Side: domain.SideBid, Price: 0.40, Size: 0}}
	b.ApplyDelta(remove)
	b.ApplyDelta(remove)

	bids, _ := b.Depth(0)
	if len(bids) != 1 || bids[0].Price != 0.39 {
		t.Fatalf("bids = %v, want only 0.39", bids)
	}

	// Removing a price that never existed is a no-op.
	b.ApplyDelta([]domain.LevelChange{{Side: domain.SideAsk, Price: 0.77, Size: 0}})
	if _, asks := b.Depth(0); len(asks) != 1 {
		t.Fatalf("asks = %v, want unchanged", asks)
	}
}

func TestDeltaUpsertOverwrites(t *testing.T) {
	b := testBook()
	change := []domain.LevelChange{
		{Side: domain.SideAsk, Price: 0.60, Size: 3},
		{Side: domain.SideAsk, Price: 0.60, Size: 7},
	}
	b.ApplyDelta(change)
	b.ApplyDelta(change)
	_, asks := b.Depth(0)
	if len(asks) != 1 || asks[0].Size != 7 {
		t.Fatalf("asks = %v, want one level of size 7", asks)
	}
}

func TestMidUndefinedWhenSideEmpty(t *testing.T) {
	b := testBook()
	if mid, ok := b.Mid(); ok || !math.IsNaN(mid) {
		t.Fatalf("empty book mid = %v,%v, want NaN,false", mid, ok)
	}

	b.ApplySnapshot([]domain.PriceLevel{lv(0.4, 1)}, nil)
	if mid, ok := b.Mid(); ok || !math.IsNaN(mid) {
		t.Fatalf("bid-only mid = %v,%v, want NaN,false", mid, ok)
	}
	if _, ok := b.Spread(); ok {
		t.Fatal("bid-only spread should be undefined")
	}
	if n := len(b.History()); n != 0 {
		t.Fatalf("history len = %d, want 0 while mid undefined", n)
	}
}

func TestCrossedBookSpreadIsNegative(t *testing.T) {
	b := testBook()
	b.ApplySnapshot([]domain.PriceLevel{lv(0.55, 1)}, []domain.PriceLevel{lv(0.50, 1)})
	spread, ok := b.Spread()
	if !ok || math.Abs(spread+0.05) > 1e-12 {
		t.Fatalf("spread = %v,%v, want -0.05", spread, ok)
	}
}

func TestImbalance(t *testing.T) {
	tests := []struct {
		name   string
		bids   []domain.PriceLevel
		asks   []domain.PriceLevel
		levels int
		want   float64
	}{
		{"empty", nil, nil, 5, 0},
		{"balanced", []domain.PriceLevel{lv(0.4, 10)}, []domain.PriceLevel{lv(0.6, 10)}, 5, 0},
		{"bid heavy", []domain.PriceLevel{lv(0.4, 30)}, []domain.PriceLevel{lv(0.6, 10)}, 5, 0.5},
		{"asks only", nil, []domain.PriceLevel{lv(0.6, 10)}, 5, -1},
		{"top levels only", []domain.PriceLevel{lv(0.4, 1), lv(0.3, 100)}, []domain.PriceLevel{lv(0.6, 1), lv(0.7, 1)}, 1, 0},
		{"default levels", []domain.PriceLevel{lv(0.4, 3)}, []domain.PriceLevel{lv(0.6, 1)}, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBook()
			b.ApplySnapshot(tt.bids, tt.asks)
			if got := b.Imbalance(tt.levels); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("imbalance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepthOrdering(t *testing.T) {
	b := testBook()
	b.ApplySnapshot(
		[]domain.PriceLevel{lv(0.38, 1), lv(0.40, 1), lv(0.39, 1)},
		[]domain.PriceLevel{lv(0.62, 1), lv(0.60, 1), lv(0.61, 1)},
	)
	bids, asks := b.Depth(2)
	if len(bids) != 2 || bids[0].Price != 0.40 || bids[1].Price != 0.39 {
		t.Fatalf("bids = %v", bids)
	}
	if len(asks) != 2 || asks[0].Price != 0.60 || asks[1].Price != 0.61 {
		t.Fatalf("asks = %v", asks)
	}
}

func TestApplyRecordsHistory(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := testBook(WithClock(func() time.Time { return clock }), WithHistorySize(3))

	b.ApplySnapshot([]domain.PriceLevel{lv(0.40, 1)}, []domain.PriceLevel{lv(0.60, 1)})
	b.ApplyDelta([]domain.LevelChange{{Side: domain.SideBid, Price: 0.50, Size: 1}})

	h := b.History()
	if len(h) != 2 {
		t.Fatalf("history len = %d, want 2", len(h))
	}
	if h[0].Mid != 0.5 || math.Abs(h[1].Mid-0.55) > 1e-12 || !h[1].Time.Equal(clock) {
		t.Fatalf("history = %+v", h)
	}
}

func TestViewIsConsistentCopy(t *testing.T) {
	b := testBook()
	b.ApplySnapshot([]domain.PriceLevel{lv(0.40, 2)}, []domain.PriceLevel{lv(0.60, 2)})
	v := b.View(0, 5)
	v.Bids[0].Size = 99

	if bids, _ := b.Depth(0); bids[0].Size != 2 {
		t.Fatal("mutating a view changed the book")
	}
	if !v.HasMid || v.Mid != 0.5 || math.Abs(v.Spread-0.2) > 1e-12 {
		t.Fatalf("view = %+v", v)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	b := testBook()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := b.View(5, 5)
				if v.HasMid && v.Mid != (v.BestBid+v.BestAsk)/2 {
					t.Error("inconsistent view")
					return
				}
				_ = b.History()
			}
		}()
	}
	for i := range 500 {
		p := 0.30 + float64(i%10)/100
		b.ApplyDelta([]domain.LevelChange{
			{Side: domain.SideBid, Price: p, Size: float64(i%3) + 1},
			{Side: domain.SideAsk, Price: p + 0.2, Size: float64(i % 2)},
		})
	}
	close(stop)
	wg.Wait()
}
