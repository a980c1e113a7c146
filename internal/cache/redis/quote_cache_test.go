package redis

import (
	"testing"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

func toStrings(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v.(string)
	}
	return out
}

func TestQuoteFieldsRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 123)
	q := domain.PairQuote{
		Label:     "btc",
		UpID:      "u",
		DownID:    "d",
		UpMid:     0.52,
		DownMid:   0.5,
		HasDown:   true,
		Edge:      -0.02,
		Imbalance: 0.25,
		ArbWindow: true,
		Direction: domain.ArbOverpriced,
		UpdatedAt: at,
	}
	got, err := parseQuote("btc", toStrings(quoteFields(q)))
	if err != nil {
		t.Fatalf("parseQuote: %v", err)
	}
	if got != q {
		t.Fatalf("got %+v, want %+v", got, q)
	}
}

func TestBBOFieldsOmitEmptySides(t *testing.T) {
	b := domain.BBO{AssetID: "a", Bid: 0.4, HasBid: true, UpdatedAt: time.Unix(5, 0)}
	fields := bboFields(b)
	if _, ok := fields["ask"]; ok {
		t.Fatal("empty ask side should not be written")
	}
	got, err := parseBBO("a", toStrings(fields))
	if err != nil {
		t.Fatalf("parseBBO: %v", err)
	}
	if !got.HasBid || got.HasAsk || got.Bid != 0.4 || !got.UpdatedAt.Equal(b.UpdatedAt) {
		t.Fatalf("got %+v", got)
	}
}

func TestParseQuoteRejectsGarbage(t *testing.T) {
	if _, err := parseQuote("x", map[string]string{"edge": "abc"}); err == nil {
		t.Fatal("expected error for non-numeric edge")
	}
	if _, err := parseBBO("x", map[string]string{"ts": "soon"}); err == nil {
		t.Fatal("expected error for bad ts")
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"polywatch", []string{"pair", "btc"}, "polywatch:pair:btc"},
		{"", []string{"book", "1", "bbo"}, "book:1:bbo"},
	}
	for _, tt := range tests {
		if got := joinKey(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("joinKey(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestHasPattern(t *testing.T) {
	if !hasPattern("polywatch:ch:pair:*") || hasPattern("polywatch:ch:pair:btc") {
		t.Fatal("hasPattern misclassified channel")
	}
}
