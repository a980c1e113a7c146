package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

const (
	eventBook        = "book"
	eventPriceChange = "price_change"
)

// Batch is the outcome of decoding one frame. Issues holds the recoverable
// problems met along the way; each wraps one of domain.ErrDecode,
// domain.ErrUnknownInstrument or domain.ErrData.
type Batch struct {
	Events []domain.Event
	Issues []error
}

// Decoder turns market channel frames into domain events for a fixed set of
// subscribed instruments.
type Decoder struct {
	subscribed map[string]struct{}
}

// NewDecoder returns a Decoder that only emits book events for assetIDs. A
// nil or empty list accepts every asset.
func NewDecoder(assetIDs []string) *Decoder {
	d := &Decoder{}
	if len(assetIDs) > 0 {
		d.subscribed = make(map[string]struct{}, len(assetIDs))
		for _, id := range assetIDs {
			d.subscribed[id] = struct{}{}
		}
	}
	return d
}

func (d *Decoder) known(assetID string) bool {
	if d.subscribed == nil {
		return true
	}
	_, ok := d.subscribed[assetID]
	return ok
}

// Decode parses one raw frame. A frame may hold a single event object or an
// array of them. Invalid JSON yields no events and a single ErrDecode issue.
func (d *Decoder) Decode(raw []byte) Batch {
	var b Batch
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == pongFrame {
		return b
	}

	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			b.Issues = append(b.Issues, fmt.Errorf("polymarket/decode: %w: %v", domain.ErrDecode, err))
			return b
		}
	} else {
		if !json.Valid(raw) {
			b.Issues = append(b.Issues, fmt.Errorf("polymarket/decode: %w: %q", domain.ErrDecode, truncateRaw(raw)))
			return b
		}
		items = []json.RawMessage{raw}
	}

	for _, item := range items {
		d.decodeEvent(item, &b)
	}
	return b
}

func (d *Decoder) decodeEvent(raw json.RawMessage, b *Batch) {
	var ev wsEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		b.Issues = append(b.Issues, fmt.Errorf("polymarket/decode: event is not an object: %v: %w", err, domain.ErrData))
		return
	}
	asset := ev.AssetID

	switch ev.kind() {
	case eventBook:
		if !d.known(asset) {
			b.Issues = append(b.Issues, unknownAsset(asset))
			return
		}
		snap := domain.SnapshotEvent{
			Asset:     asset,
			Hash:      ev.Hash,
			Timestamp: parseTimestamp(ev.Timestamp),
		}
		// A malformed side reads as empty; the other side still applies.
		bids, err := levelList(ev.Bids, ev.Buys)
		if err != nil {
			b.Issues = append(b.Issues, listIssue(asset, "bids", err))
		}
		asks, err := levelList(ev.Asks, ev.Sells)
		if err != nil {
			b.Issues = append(b.Issues, listIssue(asset, "asks", err))
		}

		var firstErr error
		snap.Bids, snap.Skipped, firstErr = parseLevels(bids)
		var skipped int
		snap.Asks, skipped, err = parseLevels(asks)
		snap.Skipped += skipped
		if firstErr == nil {
			firstErr = err
		}
		if snap.Skipped > 0 {
			b.Issues = append(b.Issues, dataIssue(asset, snap.Skipped, firstErr))
		}
		b.Events = append(b.Events, snap)

	case eventPriceChange:
		changes, err := levelList(ev.Changes, ev.PriceChanges)
		if err != nil {
			b.Issues = append(b.Issues, listIssue(asset, "changes", err))
		}
		d.decodeChanges(asset, parseTimestamp(ev.Timestamp), changes, b)

	default:
		b.Events = append(b.Events, domain.UnsupportedEvent{Asset: asset, Type: ev.kind()})
	}
}

// decodeChanges emits one DeltaEvent per asset, in order of first
// appearance. A change without its own asset_id belongs to the envelope's.
func (d *Decoder) decodeChanges(envelopeAsset string, ts time.Time, changes []json.RawMessage, b *Batch) {
	type group struct {
		delta    domain.DeltaEvent
		firstErr error
	}
	var order []string
	groups := make(map[string]*group)

	for _, raw := range changes {
		var c wsChange
		cerr := json.Unmarshal(raw, &c)
		asset := envelopeAsset
		if cerr == nil && c.AssetID != "" {
			asset = string(c.AssetID)
		}
		g, ok := groups[asset]
		if !ok {
			g = &group{delta: domain.DeltaEvent{Asset: asset, Timestamp: ts}}
			groups[asset] = g
			order = append(order, asset)
		}
		lc, err := toLevelChange(c, cerr)
		if err != nil {
			g.delta.Skipped++
			if g.firstErr == nil {
				g.firstErr = err
			}
			continue
		}
		g.delta.Changes = append(g.delta.Changes, lc)
	}

	if len(order) == 0 && !d.known(envelopeAsset) {
		b.Issues = append(b.Issues, unknownAsset(envelopeAsset))
		return
	}
	if len(order) == 0 {
		b.Events = append(b.Events, domain.DeltaEvent{Asset: envelopeAsset, Timestamp: ts})
		return
	}
	for _, asset := range order {
		g := groups[asset]
		if !d.known(asset) {
			b.Issues = append(b.Issues, unknownAsset(asset))
			continue
		}
		if g.delta.Skipped > 0 {
			b.Issues = append(b.Issues, dataIssue(asset, g.delta.Skipped, g.firstErr))
		}
		b.Events = append(b.Events, g.delta)
	}
}

func toLevelChange(c wsChange, decodeErr error) (domain.LevelChange, error) {
	if decodeErr != nil {
		return domain.LevelChange{}, decodeErr
	}
	side, err := parseSide(c.Side)
	if err != nil {
		return domain.LevelChange{}, err
	}
	price, err := parseNumber(c.Price)
	if err != nil {
		return domain.LevelChange{}, fmt.Errorf("price: %w", err)
	}
	if price <= 0 {
		return domain.LevelChange{}, fmt.Errorf("price %v is not positive", price)
	}
	size, err := parseNumber(c.Size)
	if err != nil {
		return domain.LevelChange{}, fmt.Errorf("size: %w", err)
	}
	if size < 0 {
		return domain.LevelChange{}, fmt.Errorf("size %v is negative", size)
	}
	return domain.LevelChange{Side: side, Price: price, Size: size}, nil
}

func parseSide(s string) (domain.BookSide, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "BID", "BIDS":
		return domain.SideBid, nil
	case "SELL", "ASK", "ASKS":
		return domain.SideAsk, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

func parseLevels(raw []json.RawMessage) ([]domain.PriceLevel, int, error) {
	out := make([]domain.PriceLevel, 0, len(raw))
	var skipped int
	var firstErr error
	for _, l := range raw {
		price, size, err := parseLevel(l)
		if err != nil {
			skipped++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out, skipped, firstErr
}

// parseTimestamp reads the feed's millisecond epoch string. Unparseable
// values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func unknownAsset(asset string) error {
	return fmt.Errorf("polymarket/decode: asset %q: %w", asset, domain.ErrUnknownInstrument)
}

func listIssue(asset, field string, cause error) error {
	return fmt.Errorf("polymarket/decode: asset %q: %s: %v: %w", asset, field, cause, domain.ErrData)
}

func dataIssue(asset string, skipped int, cause error) error {
	return fmt.Errorf("polymarket/decode: asset %q: %d level(s) skipped (%v): %w", asset, skipped, cause, domain.ErrData)
}
