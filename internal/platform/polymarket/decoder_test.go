package polymarket

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

func TestDecodeBookObjectLevels(t *testing.T) {
	d := NewDecoder([]string{"up"})
	b := d.Decode([]byte(`{"event_type":"book","asset_id":"up","timestamp":"1700000000000",
		"bids":[{"price":"0.48","size":"100"},{"price":0.47,"size":5}],
		"asks":[{"price":"0.52","size":"30"}]}`))

	if len(b.Issues) != 0 {
		t.Fatalf("issues = %v", b.Issues)
	}
	if len(b.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(b.Events))
	}
	snap, ok := b.Events[0].(domain.SnapshotEvent)
	if !ok {
		t.Fatalf("event type %T", b.Events[0])
	}
	if len(snap.Bids) != 2 || snap.Bids[0] != (domain.PriceLevel{Price: 0.48, Size: 100}) {
		t.Fatalf("bids = %v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 0.52 {
		t.Fatalf("asks = %v", snap.Asks)
	}
	if snap.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("timestamp = %v", snap.Timestamp)
	}
}

func TestDecodeBookArrayLevelsAndAliases(t *testing.T) {
	d := NewDecoder([]string{"up"})
	b := d.Decode([]byte(`{"event_type":"book","asset_id":"up","buys":[["10","0.40"]],"sells":[[4, 0.60]]}`))

	snap := b.Events[0].(domain.SnapshotEvent)
	if snap.Bids[0] != (domain.PriceLevel{Price: 0.40, Size: 10}) {
		t.Fatalf("bid = %+v, want [size, price] order normalized", snap.Bids[0])
	}
	if snap.Asks[0] != (domain.PriceLevel{Price: 0.60, Size: 4}) {
		t.Fatalf("ask = %+v", snap.Asks[0])
	}
}

func TestDecodeSkipsBadLevels(t *testing.T) {
	d := NewDecoder(nil)
	b := d.Decode([]byte(`{"event_type":"book","asset_id":"up",
		"bids":[{"price":"abc","size":"1"},{"price":"0.4","size":"2"},{"size":"3"}],
		"asks":[{"price":"0.6","size":"NaN"},{"price":"-1","size":"1"},{"price":"0.61","size":"1"}]}`))

	snap := b.Events[0].(domain.SnapshotEvent)
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 || snap.Skipped != 4 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrData) {
		t.Fatalf("issues = %v, want one ErrData", b.Issues)
	}
}

func TestDecodeMistypedFieldsAreDataIssues(t *testing.T) {
	d := NewDecoder([]string{"up"})

	b := d.Decode([]byte(`{"event_type":"book","asset_id":"up","hash":7,"bids":"oops","asks":[{"price":"0.6","size":"3"}]}`))
	if len(b.Events) != 1 {
		t.Fatalf("events = %+v, want the snapshot kept", b.Events)
	}
	snap := b.Events[0].(domain.SnapshotEvent)
	if len(snap.Bids) != 0 || len(snap.Asks) != 1 || snap.Asks[0] != (domain.PriceLevel{Price: 0.6, Size: 3}) {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrData) || errors.Is(b.Issues[0], domain.ErrDecode) {
		t.Fatalf("issues = %v, want one ErrData", b.Issues)
	}

	// A mistyped alias falls through to the next one.
	b = d.Decode([]byte(`{"event_type":"book","asset_id":"up","bids":{},"buys":[["1","0.4"]],"asks":[]}`))
	if snap := b.Events[0].(domain.SnapshotEvent); len(snap.Bids) != 1 || len(b.Issues) != 0 {
		t.Fatalf("snapshot = %+v issues = %v", snap, b.Issues)
	}

	b = d.Decode([]byte(`{"event_type":"price_change","asset_id":"up","changes":{}}`))
	if len(b.Events) != 1 || len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrData) {
		t.Fatalf("price_change: events = %+v issues = %v", b.Events, b.Issues)
	}
	if delta := b.Events[0].(domain.DeltaEvent); len(delta.Changes) != 0 || delta.Asset != "up" {
		t.Fatalf("delta = %+v", delta)
	}

	b = d.Decode([]byte(`[42, {"event_type":"book","asset_id":"up","bids":[],"asks":[]}]`))
	if len(b.Events) != 1 || len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrData) {
		t.Fatalf("non-object event: events = %+v issues = %v", b.Events, b.Issues)
	}
}

func TestDecodePriceChange(t *testing.T) {
	d := NewDecoder([]string{"up", "down"})
	b := d.Decode([]byte(`{"event_type":"price_change","asset_id":"up","changes":[
		{"side":"BUY","price":"0.48","size":"0"},
		{"side":"SELL","price":"0.53","size":"12"},
		{"side":"HOLD","price":"0.50","size":"1"}]}`))

	delta, ok := b.Events[0].(domain.DeltaEvent)
	if !ok {
		t.Fatalf("event type %T", b.Events[0])
	}
	want := []domain.LevelChange{
		{Side: domain.SideBid, Price: 0.48, Size: 0},
		{Side: domain.SideAsk, Price: 0.53, Size: 12},
	}
	if len(delta.Changes) != 2 || delta.Changes[0] != want[0] || delta.Changes[1] != want[1] {
		t.Fatalf("changes = %+v", delta.Changes)
	}
	if delta.Skipped != 1 || len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrData) {
		t.Fatalf("skipped = %d issues = %v", delta.Skipped, b.Issues)
	}
}

func TestDecodePriceChangesPerAsset(t *testing.T) {
	d := NewDecoder([]string{"up", "down"})
	b := d.Decode([]byte(`{"event_type":"price_change","market":"0xabc","price_changes":[
		{"asset_id":"up","side":"BUY","price":"0.5","size":"1"},
		{"asset_id":"down","side":"SELL","price":"0.5","size":"2"},
		{"asset_id":"other","side":"SELL","price":"0.5","size":"2"},
		{"asset_id":"up","side":"SELL","price":"0.6","size":"3"}]}`))

	if len(b.Events) != 2 {
		t.Fatalf("events = %+v", b.Events)
	}
	if up := b.Events[0].(domain.DeltaEvent); up.Asset != "up" || len(up.Changes) != 2 {
		t.Fatalf("up delta = %+v", up)
	}
	if down := b.Events[1].(domain.DeltaEvent); down.Asset != "down" || len(down.Changes) != 1 {
		t.Fatalf("down delta = %+v", down)
	}
	if len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrUnknownInstrument) {
		t.Fatalf("issues = %v", b.Issues)
	}
}

func TestDecodeArrayFrame(t *testing.T) {
	d := NewDecoder([]string{"up"})
	b := d.Decode([]byte(`[
		{"event_type":"book","asset_id":"up","bids":[],"asks":[]},
		{"event_type":"last_trade_price","asset_id":"up","price":"0.5"},
		{"event_type":"book","asset_id":"stranger","bids":[],"asks":[]}]`))

	if len(b.Events) != 2 {
		t.Fatalf("events = %+v", b.Events)
	}
	if _, ok := b.Events[0].(domain.SnapshotEvent); !ok {
		t.Fatalf("first event %T", b.Events[0])
	}
	u, ok := b.Events[1].(domain.UnsupportedEvent)
	if !ok || u.Type != "last_trade_price" {
		t.Fatalf("second event = %#v", b.Events[1])
	}
	if len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrUnknownInstrument) {
		t.Fatalf("issues = %v", b.Issues)
	}
}

func TestDecodeInvalidAndHeartbeat(t *testing.T) {
	d := NewDecoder(nil)
	for _, raw := range []string{`{"event_type":`, `[1,2`, `not json`} {
		b := d.Decode([]byte(raw))
		if len(b.Events) != 0 || len(b.Issues) != 1 || !errors.Is(b.Issues[0], domain.ErrDecode) {
			t.Errorf("Decode(%q) = %+v", raw, b)
		}
	}
	if b := d.Decode([]byte("PONG")); len(b.Events) != 0 || len(b.Issues) != 0 {
		t.Errorf("PONG decoded to %+v", b)
	}
}

func TestJSONListAcceptsEncodedString(t *testing.T) {
	var m APIMarket
	raw := `{"outcomes":"[\"Up\",\"Down\"]","clobTokenIds":["1",2],"outcomeTokenIds":"garbage"}`
	if err := jsonUnmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[1] != "Down" {
		t.Fatalf("outcomes = %v", m.Outcomes)
	}
	if len(m.ClobTokenIDs) != 2 || m.ClobTokenIDs[1] != "2" {
		t.Fatalf("tokens = %v", m.ClobTokenIDs)
	}
	if len(m.OutcomeTokenIDs) != 0 {
		t.Fatalf("outcome token ids = %v", m.OutcomeTokenIDs)
	}
}
