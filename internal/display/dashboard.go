// Package display renders the live pair dashboard to a terminal.
package display

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alanyoungcy/polywatch/internal/analytics"
	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
)

const (
	clearScreen = "\033[H\033[2J"
	ruleWidth   = 60
)

// Config controls the dashboard layout.
type Config struct {
	Title       string
	DepthLevels int
	ChartWidth  int
	ChartRows   int
	// Clear redraws in place; disable when output is not a terminal.
	Clear bool
}

func (c Config) withDefaults() Config {
	if c.Title == "" {
		c.Title = "Polymarket Up/Down Live Feed"
	}
	if c.DepthLevels <= 0 {
		c.DepthLevels = 3
	}
	if c.ChartWidth <= 0 {
		c.ChartWidth = 30
	}
	if c.ChartRows <= 0 {
		c.ChartRows = 4
	}
	return c
}

// Dashboard is a feed.Sink that redraws the screen on every update.
type Dashboard struct {
	out     io.Writer
	cfg     Config
	printer *message.Printer
}

// New returns a Dashboard writing to out.
func New(out io.Writer, cfg Config) *Dashboard {
	return &Dashboard{
		out:     out,
		cfg:     cfg.withDefaults(),
		printer: message.NewPrinter(language.English),
	}
}

// Name implements feed.Sink.
func (d *Dashboard) Name() string { return "terminal" }

// Publish implements feed.Sink.
func (d *Dashboard) Publish(_ context.Context, u feed.Update) error {
	frame := d.Render(u)
	if d.cfg.Clear {
		frame = clearScreen + frame
	}
	_, err := io.WriteString(d.out, frame)
	return err
}

// Render draws one full frame.
func (d *Dashboard) Render(u feed.Update) string {
	var b strings.Builder
	rule := strings.Repeat("─", ruleWidth)

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  %s%s%s\n", d.cfg.Title,
		strings.Repeat(" ", max(2, ruleWidth-10-len(d.cfg.Title))), u.At.Local().Format(time.TimeOnly))
	fmt.Fprintln(&b, rule)

	for _, pu := range u.Pairs {
		title := pu.Pair.Question
		if title == "" {
			title = pu.Pair.Label
		}
		fmt.Fprintf(&b, "\n  %s\n  %s\n", title, strings.Repeat("─", ruleWidth-4))
		d.renderPair(&b, pu)
	}
	if u.Final {
		fmt.Fprintf(&b, "\n%s\n  Stopped.\n", rule)
	} else {
		fmt.Fprintf(&b, "\n%s\n  Press Ctrl+C to exit\n", rule)
	}
	return b.String()
}

func (d *Dashboard) renderPair(b *strings.Builder, pu feed.PairUpdate) {
	if !pu.Available {
		fmt.Fprintln(b, "  [waiting for data...]")
		return
	}
	a := pu.Analytics

	fmt.Fprintf(b, "\n  UP   %s %5.1f%%  %s\n", Bar(a.ProbUp, 24, '█'), a.ProbUp*100, SentimentLabel(a.ProbUp))
	fmt.Fprintf(b, "  DOWN %s %5.1f%%\n", Bar(a.ProbDown, 24, '█'), a.ProbDown*100)

	fmt.Fprintf(b, "\n  YES token │ %s\n", quoteLine(pu.Up))
	if a.HasDown {
		fmt.Fprintf(b, "  NO  token │ %s\n", quoteLine(pu.Down))
		fmt.Fprintf(b, "  YES+NO    │ %.4f  edge=%+.3f  %s\n", a.Implied, a.Edge, edgeLabel(a))
	}

	fmt.Fprintf(b, "\n  Order flow: %s  (%+.2f)\n", ImbalanceLabel(a.Imbalance), a.Imbalance)
	fmt.Fprintf(b, "  %s|%s\n", Bar(math.Max(0, a.Imbalance), 12, '▶'), Bar(math.Max(0, -a.Imbalance), 12, '◀'))

	fmt.Fprintf(b, "\n  ── YES Order Book (top %d) ──\n", d.cfg.DepthLevels)
	asks := top(pu.Up.Asks, d.cfg.DepthLevels)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(b, "     ASK  %.4f  %10s USDC\n", asks[i].Price, d.printer.Sprintf("%.2f", asks[i].Size))
	}
	fmt.Fprintf(b, "     %s\n", strings.Repeat("─", 30))
	for _, l := range top(pu.Up.Bids, d.cfg.DepthLevels) {
		fmt.Fprintf(b, "     BID  %.4f  %10s USDC\n", l.Price, d.printer.Sprintf("%.2f", l.Size))
	}

	fmt.Fprintln(b, "\n  Mid price history (YES token):")
	for _, line := range Sparkline(pu.UpHistory, d.cfg.ChartWidth, d.cfg.ChartRows) {
		fmt.Fprintf(b, "  %s\n", line)
	}
}

func edgeLabel(a analytics.PairAnalytics) string {
	if a.ArbWindow {
		return fmt.Sprintf("ARB WINDOW (%s)", a.Direction)
	}
	return "Fair"
}

func quoteLine(v domain.BookView) string {
	return fmt.Sprintf("bid=%s  ask=%s  mid=%s  spread=%s",
		maybe(v.BestBid, v.HasBid), maybe(v.BestAsk, v.HasAsk),
		maybe(v.Mid, v.HasMid), maybe(v.Spread, v.HasMid))
}

func maybe(f float64, ok bool) string {
	if !ok {
		return "  --  "
	}
	return fmt.Sprintf("%.4f", f)
}

func top(levels []domain.PriceLevel, n int) []domain.PriceLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}

var _ feed.Sink = (*Dashboard)(nil)
