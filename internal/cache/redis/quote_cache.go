package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// QuoteCache implements domain.QuoteCache with one hash per pair and per
// instrument.
//
// Key schema (under the client prefix):
//
//	pair:{label}      - up_id, down_id, up_mid, down_mid, has_down, edge,
//	                    imbalance, arb, direction, ts
//	book:{assetID}:bbo - bid, ask, ts (bid/ask omitted when that side is empty)
type QuoteCache struct {
	c *Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{c: c}
}

func (qc *QuoteCache) pairKey(label string) string { return qc.c.Key("pair", label) }
func (qc *QuoteCache) bboKey(assetID string) string {
	return qc.c.Key("book", assetID, "bbo")
}

// SetQuotes writes every quote and BBO in one pipeline. BBO hashes are
// replaced so a side that emptied does not linger.
func (qc *QuoteCache) SetQuotes(ctx context.Context, quotes []domain.PairQuote, bbos []domain.BBO) error {
	if len(quotes) == 0 && len(bbos) == 0 {
		return nil
	}

	pipe := qc.c.rdb.TxPipeline()
	for _, q := range quotes {
		key := qc.pairKey(q.Label)
		pipe.HSet(ctx, key, quoteFields(q))
		if qc.c.ttl > 0 {
			pipe.Expire(ctx, key, qc.c.ttl)
		}
	}
	for _, b := range bbos {
		key := qc.bboKey(b.AssetID)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, bboFields(b))
		if qc.c.ttl > 0 {
			pipe.Expire(ctx, key, qc.c.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes: %w", err)
	}
	return nil
}

// GetPairQuote reads one pair quote. It returns domain.ErrNotFound when the
// key does not exist.
func (qc *QuoteCache) GetPairQuote(ctx context.Context, label string) (domain.PairQuote, error) {
	vals, err := qc.c.rdb.HGetAll(ctx, qc.pairKey(label)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.PairQuote{}, fmt.Errorf("redis: get pair %s: %w", label, err)
	}
	if len(vals) == 0 {
		return domain.PairQuote{}, domain.ErrNotFound
	}
	q, err := parseQuote(label, vals)
	if err != nil {
		return domain.PairQuote{}, fmt.Errorf("redis: parse pair %s: %w", label, err)
	}
	return q, nil
}

// GetBBO reads one instrument's BBO. It returns domain.ErrNotFound when the
// key does not exist.
func (qc *QuoteCache) GetBBO(ctx context.Context, assetID string) (domain.BBO, error) {
	vals, err := qc.c.rdb.HGetAll(ctx, qc.bboKey(assetID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.BBO{}, fmt.Errorf("redis: get bbo %s: %w", assetID, err)
	}
	if len(vals) == 0 {
		return domain.BBO{}, domain.ErrNotFound
	}
	b, err := parseBBO(assetID, vals)
	if err != nil {
		return domain.BBO{}, fmt.Errorf("redis: parse bbo %s: %w", assetID, err)
	}
	return b, nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func quoteFields(q domain.PairQuote) map[string]interface{} {
	return map[string]interface{}{
		"up_id":     q.UpID,
		"down_id":   q.DownID,
		"up_mid":    formatFloat(q.UpMid),
		"down_mid":  formatFloat(q.DownMid),
		"has_down":  strconv.FormatBool(q.HasDown),
		"edge":      formatFloat(q.Edge),
		"imbalance": formatFloat(q.Imbalance),
		"arb":       strconv.FormatBool(q.ArbWindow),
		"direction": string(q.Direction),
		"ts":        strconv.FormatInt(q.UpdatedAt.UnixNano(), 10),
	}
}

func parseQuote(label string, vals map[string]string) (domain.PairQuote, error) {
	q := domain.PairQuote{
		Label:     label,
		UpID:      vals["up_id"],
		DownID:    vals["down_id"],
		Direction: domain.ArbDirection(vals["direction"]),
	}
	var err error
	if q.UpMid, err = parseFloatField(vals, "up_mid"); err != nil {
		return q, err
	}
	if q.DownMid, err = parseFloatField(vals, "down_mid"); err != nil {
		return q, err
	}
	if q.Edge, err = parseFloatField(vals, "edge"); err != nil {
		return q, err
	}
	if q.Imbalance, err = parseFloatField(vals, "imbalance"); err != nil {
		return q, err
	}
	q.HasDown, _ = strconv.ParseBool(vals["has_down"])
	q.ArbWindow, _ = strconv.ParseBool(vals["arb"])
	if q.UpdatedAt, err = parseTS(vals); err != nil {
		return q, err
	}
	return q, nil
}

func bboFields(b domain.BBO) map[string]interface{} {
	fields := map[string]interface{}{
		"ts": strconv.FormatInt(b.UpdatedAt.UnixNano(), 10),
	}
	if b.HasBid {
		fields["bid"] = formatFloat(b.Bid)
	}
	if b.HasAsk {
		fields["ask"] = formatFloat(b.Ask)
	}
	return fields
}

func parseBBO(assetID string, vals map[string]string) (domain.BBO, error) {
	b := domain.BBO{AssetID: assetID}
	var err error
	if _, ok := vals["bid"]; ok {
		if b.Bid, err = parseFloatField(vals, "bid"); err != nil {
			return b, err
		}
		b.HasBid = true
	}
	if _, ok := vals["ask"]; ok {
		if b.Ask, err = parseFloatField(vals, "ask"); err != nil {
			return b, err
		}
		b.HasAsk = true
	}
	if b.UpdatedAt, err = parseTS(vals); err != nil {
		return b, err
	}
	return b, nil
}

func parseFloatField(vals map[string]string, field string) (float64, error) {
	s, ok := vals[field]
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return f, nil
}

func parseTS(vals map[string]string) (time.Time, error) {
	s, ok := vals["ts"]
	if !ok {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("field ts: %w", err)
	}
	return time.Unix(0, n), nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
