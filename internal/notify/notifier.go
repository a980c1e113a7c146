// Package notify pushes arbitrage-window and feed-health alerts to chat
// channels (Telegram, Discord). Alerts are filtered by event type so
// operators receive only what they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polywatch/internal/domain"
)

// Event types accepted in the notify.events filter.
const (
	EventArbOpen  = "arb_window_open"
	EventArbClose = "arb_window_close"
	EventFeedDown = "feed_down"
)

// Level tints a message on channels that support it.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelAlert
)

// Message is one alert.
type Message struct {
	Title string
	Body  string
	Level Level
}

// Sender delivers messages over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Notifier fans messages out to every sender whose event passes the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Allows reports whether event passes the filter.
func (n *Notifier) Allows(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// Notify delivers msg when event passes the filter. Every sender is tried;
// failures are joined.
func (n *Notifier) Notify(ctx context.Context, event string, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	return errors.Join(errs...)
}

// WindowOpened alerts that a pair crossed the edge threshold.
func (n *Notifier) WindowOpened(ctx context.Context, w domain.ArbWindow) error {
	return n.Notify(ctx, EventArbOpen, Message{
		Title: fmt.Sprintf("ARB WINDOW %s", w.Label),
		Body: fmt.Sprintf("%s: UP+DOWN mids %s 1 by %.2f%%\nedge %+.4f at %s",
			w.Direction, directionVerb(w.Direction), abs(w.OpenEdge)*100,
			w.OpenEdge, w.OpenedAt.UTC().Format(time.RFC3339)),
		Level: LevelAlert,
	})
}

// WindowClosed reports how a window ended.
func (n *Notifier) WindowClosed(ctx context.Context, w domain.ArbWindow) error {
	return n.Notify(ctx, EventArbClose, Message{
		Title: fmt.Sprintf("Window closed %s", w.Label),
		Body: fmt.Sprintf("%s window lasted %s\nopen %+.4f  peak %+.4f  close %s",
			w.Direction, w.Duration(w.ClosedAt).Round(time.Millisecond),
			w.OpenEdge, w.PeakEdge, closeEdgeText(w)),
		Level: LevelInfo,
	})
}

// FeedDown reports that the market feed dropped.
func (n *Notifier) FeedDown(ctx context.Context, cause error) error {
	return n.Notify(ctx, EventFeedDown, Message{
		Title: "Feed disconnected",
		Body:  cause.Error(),
		Level: LevelWarn,
	})
}

func directionVerb(d domain.ArbDirection) string {
	if d == domain.ArbOverpriced {
		return "exceed"
	}
	return "fall short of"
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func closeEdgeText(w domain.ArbWindow) string {
	if !w.HasCloseEdge {
		return "n/a"
	}
	return fmt.Sprintf("%+.4f", w.CloseEdge)
}
