package polymarket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString accepts a JSON string or number. Token ids have been seen as
// both.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// jsonList decodes a list of ids or labels. Gamma sometimes sends these
// lists as a JSON-encoded string; anything that is not a list decodes to an
// empty list.
type jsonList []string

func (l *jsonList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			*l = nil
			return nil
		}
		data = []byte(inner)
	}
	var items []flexString
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it)
	}
	*l = out
	return nil
}

// --------------------------------------------------------------------------
// Market channel DTOs
// --------------------------------------------------------------------------

// subscribeRequest is sent once right after the socket opens.
type subscribeRequest struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// wsEvent is the union of every event shape on the market channel. Fields
// are read one by one so a mistyped field does not discard the event: text
// fields that are not strings or numbers read as empty, and level lists stay
// raw until levelList checks them.
type wsEvent struct {
	EventType    string
	MsgType      string
	AssetID      string
	Market       string
	Hash         string
	Timestamp    string
	Bids         json.RawMessage
	Asks         json.RawMessage
	Buys         json.RawMessage
	Sells        json.RawMessage
	Changes      json.RawMessage
	PriceChanges json.RawMessage
}

// UnmarshalJSON fails only when data is not a JSON object.
func (e *wsEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("event is null")
	}
	*e = wsEvent{
		EventType:    textField(fields["event_type"]),
		MsgType:      textField(fields["msg_type"]),
		AssetID:      textField(fields["asset_id"]),
		Market:       textField(fields["market"]),
		Hash:         textField(fields["hash"]),
		Timestamp:    textField(fields["timestamp"]),
		Bids:         fields["bids"],
		Asks:         fields["asks"],
		Buys:         fields["buys"],
		Sells:        fields["sells"],
		Changes:      fields["changes"],
		PriceChanges: fields["price_changes"],
	}
	return nil
}

func textField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return string(s)
}

// levelList returns the first non-empty list among fields, which are
// aliases of one another (bids/buys). Absent and null fields are empty. A
// field holding anything other than a list yields an error, and the next
// alias is still tried.
func levelList(fields ...json.RawMessage) ([]json.RawMessage, error) {
	var firstErr error
	for _, raw := range fields {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var items []json.RawMessage
		if raw[0] != '[' || json.Unmarshal(raw, &items) != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("expected a list, got %q", truncateRaw(raw))
			}
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, firstErr
}

func (e *wsEvent) kind() string {
	if e.EventType != "" {
		return e.EventType
	}
	return e.MsgType
}

// wsChange is one entry of a price_change event. Newer feed variants carry
// the asset id on each change instead of the envelope.
type wsChange struct {
	AssetID flexString      `json:"asset_id"`
	Side    string          `json:"side"`
	Price   json.RawMessage `json:"price"`
	Size    json.RawMessage `json:"size"`
}

var errMissingField = errors.New("missing field")

// parseNumber reads a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errMissingField
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}

// parseLevel accepts {"price":p,"size":s} or [size, price].
func parseLevel(raw json.RawMessage) (price, size float64, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, 0, errMissingField
	}
	switch raw[0] {
	case '{':
		var obj struct {
			Price json.RawMessage `json:"price"`
			Size  json.RawMessage `json:"size"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, 0, err
		}
		if price, err = parseNumber(obj.Price); err != nil {
			return 0, 0, fmt.Errorf("price: %w", err)
		}
		if size, err = parseNumber(obj.Size); err != nil {
			return 0, 0, fmt.Errorf("size: %w", err)
		}
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return 0, 0, err
		}
		if len(pair) < 2 {
			return 0, 0, fmt.Errorf("level has %d elements", len(pair))
		}
		if size, err = parseNumber(pair[0]); err != nil {
			return 0, 0, fmt.Errorf("size: %w", err)
		}
		if price, err = parseNumber(pair[1]); err != nil {
			return 0, 0, fmt.Errorf("price: %w", err)
		}
	default:
		return 0, 0, fmt.Errorf("unsupported level encoding %q", truncateRaw(raw))
	}
	if price <= 0 {
		return 0, 0, fmt.Errorf("price %v is not positive", price)
	}
	if size < 0 {
		return 0, 0, fmt.Errorf("size %v is negative", size)
	}
	return price, size, nil
}

func truncateRaw(raw []byte) string {
	const limit = 32
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  flexBool    `json:"closed"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	ConditionID     string   `json:"conditionId"`
	Slug            string   `json:"slug"`
	Active          flexBool `json:"active"`
	Closed          flexBool `json:"closed"`
	EndDate         string   `json:"endDate"`
	Outcomes        jsonList `json:"outcomes"`        // e.g. ["Up","Down"] or ["Yes","No"]
	OutcomeTokenIDs jsonList `json:"outcomeTokenIds"` // sometimes present, aligned with Outcomes
	ClobTokenIDs    jsonList `json:"clobTokenIds"`
}
