package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
)

// Alerter is told about window transitions.
type Alerter interface {
	WindowOpened(ctx context.Context, w domain.ArbWindow) error
	WindowClosed(ctx context.Context, w domain.ArbWindow) error
}

// AlertSink logs every arbitrage window transition, records it in the store
// and forwards it to the alerter. Store and alerter are optional.
type AlertSink struct {
	store   domain.ArbWindowStore
	alerter Alerter
	logger  *slog.Logger
}

// NewAlertSink returns an AlertSink.
func NewAlertSink(store domain.ArbWindowStore, alerter Alerter, logger *slog.Logger) *AlertSink {
	return &AlertSink{
		store:   store,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "alerts")),
	}
}

// Name implements feed.Sink.
func (s *AlertSink) Name() string { return "alerts" }

// Publish implements feed.Sink.
func (s *AlertSink) Publish(ctx context.Context, u feed.Update) error {
	var errs []error
	for _, tr := range u.Transitions {
		w := tr.Window
		if tr.Opened {
			s.logger.Info("arb window opened",
				slog.String("label", w.Label),
				slog.String("direction", string(w.Direction)),
				slog.Float64("edge", w.OpenEdge),
			)
			if s.store != nil {
				errs = append(errs, s.store.Open(ctx, w))
			}
			if s.alerter != nil {
				errs = append(errs, s.alerter.WindowOpened(ctx, w))
			}
			continue
		}

		s.logger.Info("arb window closed",
			slog.String("label", w.Label),
			slog.String("direction", string(w.Direction)),
			slog.Float64("peak_edge", w.PeakEdge),
			slog.Duration("duration", w.Duration(w.ClosedAt)),
		)
		if s.store != nil {
			errs = append(errs, s.store.Close(ctx, w))
		}
		if s.alerter != nil {
			errs = append(errs, s.alerter.WindowClosed(ctx, w))
		}
	}
	return errors.Join(errs...)
}

var _ feed.Sink = (*AlertSink)(nil)
