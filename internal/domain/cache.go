package domain

import (
	"context"
	"time"
)

// PairQuote is the cached summary of one pair at a publish tick.
type PairQuote struct {
	Label     string       `json:"label"`
	UpID      string       `json:"up_id"`
	DownID    string       `json:"down_id"`
	UpMid     float64      `json:"up_mid"`
	DownMid   float64      `json:"down_mid"`
	HasDown   bool         `json:"has_down"`
	Edge      float64      `json:"edge"`
	Imbalance float64      `json:"imbalance"`
	ArbWindow bool         `json:"arb_window"`
	Direction ArbDirection `json:"direction,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BBO is the best bid and offer of one instrument.
type BBO struct {
	AssetID   string    `json:"asset_id"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	HasBid    bool      `json:"has_bid"`
	HasAsk    bool      `json:"has_ask"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteCache stores the latest pair quotes and BBOs for other processes.
type QuoteCache interface {
	SetQuotes(ctx context.Context, quotes []PairQuote, bbos []BBO) error
	GetPairQuote(ctx context.Context, label string) (PairQuote, error)
	GetBBO(ctx context.Context, assetID string) (BBO, error)
}

// SignalBus publishes payloads to named channels and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
