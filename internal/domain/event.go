package domain

import "time"

// Event is one decoded feed event. The concrete type is one of
// SnapshotEvent, DeltaEvent or UnsupportedEvent; callers switch on it.
type Event interface {
	AssetID() string
	event()
}

// SnapshotEvent replaces the whole book of an instrument.
type SnapshotEvent struct {
	Asset     string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Hash      string
	Timestamp time.Time
	// Skipped counts levels dropped because of bad fields.
	Skipped int
}

// DeltaEvent carries incremental level changes for one instrument.
type DeltaEvent struct {
	Asset     string
	Changes   []LevelChange
	Timestamp time.Time
	Skipped   int
}

// UnsupportedEvent is any event type the book does not consume.
type UnsupportedEvent struct {
	Asset string
	Type  string
}

func (e SnapshotEvent) AssetID() string    { return e.Asset }
func (e DeltaEvent) AssetID() string       { return e.Asset }
func (e UnsupportedEvent) AssetID() string { return e.Asset }

func (SnapshotEvent) event()    {}
func (DeltaEvent) event()       {}
func (UnsupportedEvent) event() {}
