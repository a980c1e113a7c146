package domain

import "fmt"

// Outcome identifies which side of a binary market an instrument pays on.
type Outcome string

const (
	OutcomeUp   Outcome = "UP"
	OutcomeDown Outcome = "DOWN"
)

// Instrument is one tradable outcome token. ID is opaque to the core.
type Instrument struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Outcome Outcome `json:"outcome"`
}

// MarketPair links the two complementary instruments of one binary market.
// Exchanges that label outcomes Yes/No are mapped Yes=UP, No=DOWN.
type MarketPair struct {
	Label    string     `json:"label"`
	Question string     `json:"question,omitempty"`
	Slug     string     `json:"slug,omitempty"`
	Up       Instrument `json:"up"`
	Down     Instrument `json:"down"`
}

// NewMarketPair builds a pair from the two token ids.
func NewMarketPair(label, upID, downID string) MarketPair {
	return MarketPair{
		Label: label,
		Up:    Instrument{ID: upID, Label: label + " UP", Outcome: OutcomeUp},
		Down:  Instrument{ID: downID, Label: label + " DOWN", Outcome: OutcomeDown},
	}
}

// InstrumentIDs returns the UP then DOWN token ids.
func (p MarketPair) InstrumentIDs() []string {
	return []string{p.Up.ID, p.Down.ID}
}

// Validate checks that both ids are set and distinct.
func (p MarketPair) Validate() error {
	switch {
	case p.Up.ID == "" || p.Down.ID == "":
		return fmt.Errorf("pair %q: both instrument ids are required", p.Label)
	case p.Up.ID == p.Down.ID:
		return fmt.Errorf("pair %q: up and down instrument ids must differ", p.Label)
	}
	return nil
}
