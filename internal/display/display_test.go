package display

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/analytics"
	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
)

func TestBar(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{1.7, "████"},
		{-0.2, "░░░░"},
	}
	for _, tt := range tests {
		if got := Bar(tt.value, 4, '█'); got != tt.want {
			t.Errorf("Bar(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestLabels(t *testing.T) {
	sentiment := map[float64]string{
		0.70: "STRONGLY UP",
		0.60: "UP",
		0.50: "NEUTRAL",
		0.40: "DOWN",
		0.20: "STRONGLY DOWN",
	}
	for mid, want := range sentiment {
		if got := SentimentLabel(mid); got != want {
			t.Errorf("SentimentLabel(%v) = %q, want %q", mid, got, want)
		}
	}
	imbalance := map[float64]string{
		0.5:  "BUY PRESSURE",
		0.0:  "BALANCED",
		-0.5: "SELL PRESSURE",
	}
	for imb, want := range imbalance {
		if got := ImbalanceLabel(imb); got != want {
			t.Errorf("ImbalanceLabel(%v) = %q, want %q", imb, got, want)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 10, 4); len(got) != 1 || got[0] != "[building history...]" {
		t.Fatalf("empty history = %v", got)
	}

	now := time.Now()
	samples := []domain.Sample{
		{Time: now, Mid: 0.40},
		{Time: now.Add(time.Second), Mid: 0.50},
		{Time: now.Add(2 * time.Second), Mid: 0.60},
	}
	lines := Sparkline(samples, 3, 4)
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	// Highest sample lands in the top row, lowest in the bottom.
	if []rune(lines[0])[2] != '·' {
		t.Errorf("top row = %q", lines[0])
	}
	if []rune(lines[3])[0] != '·' {
		t.Errorf("bottom row = %q", lines[3])
	}
	if !strings.HasPrefix(lines[4], "0.400") || !strings.HasSuffix(lines[4], "0.600") {
		t.Errorf("axis = %q", lines[4])
	}
}

func TestDashboardRender(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, Config{Title: "BTC 15m"})

	pair := domain.NewMarketPair("btc-15m", "up", "down")
	u := feed.Update{
		At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Pairs: []feed.PairUpdate{
			{Pair: domain.NewMarketPair("eth-15m", "a", "b")},
			{
				Pair:      pair,
				Available: true,
				Analytics: analytics.PairAnalytics{
					Label: "btc-15m", ProbUp: 0.7, ProbDown: 0.3,
					Imbalance: 0.4, HasDown: true,
					Implied: 0.97, Edge: -0.03, ArbWindow: true,
					Direction: domain.ArbUnderpriced,
				},
				Up: domain.BookView{
					Bids:    []domain.PriceLevel{{Price: 0.69, Size: 1500}},
					Asks:    []domain.PriceLevel{{Price: 0.71, Size: 20}, {Price: 0.72, Size: 30}},
					BestBid: 0.69, BestAsk: 0.71, HasBid: true, HasAsk: true,
					Mid: 0.70, Spread: 0.02, HasMid: true,
				},
				Down: domain.BookView{BestBid: 0.26, HasBid: true},
			},
		},
	}
	if err := d.Publish(context.Background(), u); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"BTC 15m",
		"[waiting for data...]",
		"STRONGLY UP",
		"BUY PRESSURE",
		"ARB WINDOW (underpriced)",
		"1,500.00 USDC",
		"bid=0.6900  ask=0.7100  mid=0.7000",
		"ask=  --",
		"[building history...]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.HasPrefix(out, clearScreen) {
		t.Error("screen cleared without Clear")
	}
	if strings.Index(out, "ASK  0.7200") > strings.Index(out, "ASK  0.7100") {
		t.Error("asks not rendered worst first")
	}
}

func TestDashboardClear(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf, Config{Clear: true})
	if err := d.Publish(context.Background(), feed.Update{Final: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), clearScreen) || !strings.Contains(buf.String(), "Stopped.") {
		t.Errorf("output = %q", buf.String())
	}
}
