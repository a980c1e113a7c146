package domain

import "time"

// BookSide selects the bid or ask ladder of a book.
type BookSide int

const (
	SideBid BookSide = iota
	SideAsk
)

func (s BookSide) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// LevelChange is one incremental update. Size 0 removes the level.
type LevelChange struct {
	Side  BookSide
	Price float64
	Size  float64
}

// Sample is one mid-price observation kept in a book's history.
type Sample struct {
	Time time.Time `json:"time"`
	Mid  float64   `json:"mid"`
}

// BookView is an immutable copy of a book's state at one instant.
// Mid and Spread are zero unless HasMid is true.
type BookView struct {
	Instrument Instrument   `json:"instrument"`
	Bids       []PriceLevel `json:"bids"` // best first
	Asks       []PriceLevel `json:"asks"` // best first
	BestBid    float64      `json:"best_bid"`
	BestAsk    float64      `json:"best_ask"`
	HasBid     bool         `json:"has_bid"`
	HasAsk     bool         `json:"has_ask"`
	Mid        float64      `json:"mid"`
	Spread     float64      `json:"spread"`
	HasMid     bool         `json:"has_mid"`
	Imbalance  float64      `json:"imbalance"`
	BidLevels  int          `json:"bid_levels"`
	AskLevels  int          `json:"ask_levels"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
