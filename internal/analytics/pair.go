// Package analytics derives cross-instrument signals from the UP and DOWN
// books of a binary market: implied probability, arbitrage edge and
// order-flow imbalance.
//
// Outcome labels Yes/No are assumed to mean UP/DOWN. That mapping is not
// checked against the market question.
package analytics

import (
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

const (
	// DefaultArbThreshold is the minimum |edge| that flags an arbitrage window.
	DefaultArbThreshold = 0.01
	// DefaultImbalanceLevels is K in the top-K imbalance.
	DefaultImbalanceLevels = 5
)

// Quoter is the read side of an order book.
type Quoter interface {
	Mid() (float64, bool)
	Spread() (float64, bool)
	Imbalance(levels int) float64
}

// Pair links the UP and DOWN books of one market.
type Pair struct {
	Label string
	Up    Quoter
	Down  Quoter
}

// ArbitrageEdge returns 1-(mid(UP)+mid(DOWN)). It is undefined unless both
// mids are.
func (p Pair) ArbitrageEdge() (float64, bool) {
	up, ok := p.Up.Mid()
	if !ok {
		return math.NaN(), false
	}
	down, ok := p.Down.Mid()
	if !ok {
		return math.NaN(), false
	}
	return Edge(up, down), true
}

// ViewQuoter serves a Quoter from a single BookView, so every figure
// comes from the same instant. Imbalance returns the view's own value
// regardless of the levels asked for.
type ViewQuoter struct {
	View domain.BookView
}

func (q ViewQuoter) Mid() (float64, bool)    { return q.View.Mid, q.View.HasMid }
func (q ViewQuoter) Spread() (float64, bool) { return q.View.Spread, q.View.HasMid }
func (q ViewQuoter) Imbalance(int) float64   { return q.View.Imbalance }

// PairAnalytics is one evaluation of a pair. Fields after HasDown are zero
// unless HasDown is true.
type PairAnalytics struct {
	Label      string              `json:"label"`
	ProbUp     float64             `json:"prob_up"`
	ProbDown   float64             `json:"prob_down"`
	UpMid      float64             `json:"up_mid"`
	UpSpread   float64             `json:"up_spread"`
	Imbalance  float64             `json:"imbalance"`
	HasDown    bool                `json:"has_down"`
	DownMid    float64             `json:"down_mid"`
	DownSpread float64             `json:"down_spread"`
	Implied    float64             `json:"implied_total"`
	Edge       float64             `json:"edge"`
	ArbWindow  bool                `json:"arb_window"`
	Direction  domain.ArbDirection `json:"direction,omitempty"`
	ComputedAt time.Time           `json:"computed_at"`
}

// Analyzer evaluates pairs with a fixed threshold and imbalance depth.
type Analyzer struct {
	threshold decimal.Decimal
	levels    int
	now       func() time.Time
}

// NewAnalyzer returns an Analyzer. Non-positive arguments fall back to
// DefaultArbThreshold and DefaultImbalanceLevels.
func NewAnalyzer(threshold float64, levels int) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultArbThreshold
	}
	if levels <= 0 {
		levels = DefaultImbalanceLevels
	}
	return &Analyzer{
		threshold: decimal.NewFromFloat(threshold),
		levels:    levels,
		now:       time.Now,
	}
}

// Threshold returns the configured arbitrage threshold.
func (a *Analyzer) Threshold() float64 { return a.threshold.InexactFloat64() }

// Evaluate computes analytics for p. The result is unavailable (false) while
// the UP mid is undefined.
func (a *Analyzer) Evaluate(p Pair) (PairAnalytics, bool) {
	upMid, ok := p.Up.Mid()
	if !ok {
		return PairAnalytics{Label: p.Label}, false
	}
	upSpread, _ := p.Up.Spread()

	out := PairAnalytics{
		Label:      p.Label,
		ProbUp:     upMid,
		ProbDown:   decimal.NewFromInt(1).Sub(decimal.NewFromFloat(upMid)).InexactFloat64(),
		UpMid:      upMid,
		UpSpread:   upSpread,
		Imbalance:  p.Up.Imbalance(a.levels),
		ComputedAt: a.now(),
	}

	downMid, ok := p.Down.Mid()
	if !ok {
		return out, true
	}
	out.HasDown = true
	out.DownMid = downMid
	out.DownSpread, _ = p.Down.Spread()

	implied := decimal.NewFromFloat(upMid).Add(decimal.NewFromFloat(downMid))
	edge := decimal.NewFromInt(1).Sub(implied)
	out.Implied = implied.InexactFloat64()
	out.Edge = edge.InexactFloat64()
	if edge.Abs().GreaterThanOrEqual(a.threshold) {
		out.ArbWindow = true
		out.Direction = DirectionOf(out.Edge)
	}
	return out, true
}

// EvaluateViews is Evaluate over two book views taken by the caller.
func (a *Analyzer) EvaluateViews(label string, up, down domain.BookView) (PairAnalytics, bool) {
	return a.Evaluate(Pair{Label: label, Up: ViewQuoter{View: up}, Down: ViewQuoter{View: down}})
}

// LogValue renders the analytics compactly for slog.
func (pa PairAnalytics) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("label", pa.Label),
		slog.Float64("prob_up", pa.ProbUp),
		slog.Float64("imbalance", pa.Imbalance),
	}
	if pa.HasDown {
		attrs = append(attrs,
			slog.Float64("edge", pa.Edge),
			slog.Bool("arb_window", pa.ArbWindow),
		)
	}
	return slog.GroupValue(attrs...)
}

// Edge returns 1-(upMid+downMid) computed in decimal so that threshold
// comparisons at the boundary are exact.
func Edge(upMid, downMid float64) float64 {
	sum := decimal.NewFromFloat(upMid).Add(decimal.NewFromFloat(downMid))
	return decimal.NewFromInt(1).Sub(sum).InexactFloat64()
}

// DirectionOf classifies a non-zero edge.
func DirectionOf(edge float64) domain.ArbDirection {
	if edge > 0 {
		return domain.ArbUnderpriced
	}
	return domain.ArbOverpriced
}
