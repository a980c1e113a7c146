package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// Bar renders value in [0,1] as a fixed-width bar. Out-of-range values are
// clamped.
func Bar(value float64, width int, fill rune) string {
	if math.IsNaN(value) {
		value = 0
	}
	value = math.Max(0, math.Min(1, value))
	filled := int(math.Round(value * float64(width)))
	return strings.Repeat(string(fill), filled) + strings.Repeat("░", width-filled)
}

// SentimentLabel classifies an UP probability.
func SentimentLabel(mid float64) string {
	switch {
	case mid > 0.65:
		return "STRONGLY UP"
	case mid > 0.55:
		return "UP"
	case mid > 0.45:
		return "NEUTRAL"
	case mid > 0.35:
		return "DOWN"
	default:
		return "STRONGLY DOWN"
	}
}

// ImbalanceLabel classifies top-of-book order flow.
func ImbalanceLabel(imb float64) string {
	switch {
	case imb > 0.3:
		return "BUY PRESSURE"
	case imb < -0.3:
		return "SELL PRESSURE"
	default:
		return "BALANCED"
	}
}

// Sparkline plots mids on a rows x width grid followed by a low/high axis
// line. Fewer than two samples yield a placeholder.
func Sparkline(samples []domain.Sample, width, rows int) []string {
	if len(samples) < 2 {
		return []string{"[building history...]"}
	}
	lo, hi := samples[0].Mid, samples[0].Mid
	for _, s := range samples[1:] {
		lo = math.Min(lo, s.Mid)
		hi = math.Max(hi, s.Mid)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 0.001
	}

	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	step := max(1, len(samples)/width)
	for i := 0; i < width; i++ {
		idx := min(i*step, len(samples)-1)
		row := rows - 1 - int((samples[idx].Mid-lo)/rng*float64(rows-1))
		grid[row][i] = '·'
	}

	lines := make([]string, 0, rows+1)
	for _, r := range grid {
		lines = append(lines, string(r))
	}
	lines = append(lines, fmt.Sprintf("%.3f%s%.3f", lo, strings.Repeat(" ", max(1, width-10)), hi))
	return lines
}
