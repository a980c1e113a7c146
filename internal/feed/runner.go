package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alanyoungcy/polywatch/internal/metrics"
	"github.com/alanyoungcy/polywatch/internal/platform/polymarket"
)

// Source is one live session as seen by the Runner.
type Source interface {
	ID() string
	Frames() <-chan []byte
	Err() error
	Close() error
}

// DialFunc opens a session subscribed to ids.
type DialFunc func(ctx context.Context, ids []string) (Source, error)

// PolymarketDialer adapts polymarket.Dial to a DialFunc.
func PolymarketDialer(cfg polymarket.SessionConfig, logger *slog.Logger) DialFunc {
	return func(ctx context.Context, ids []string) (Source, error) {
		s, err := polymarket.Dial(ctx, cfg, ids, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// RunnerConfig is the reconnect policy. Sessions never reconnect on their
// own; the Runner decides.
type RunnerConfig struct {
	Reconnect      bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnDisconnect, if set, is called after every session that ends with
	// an error other than cancellation.
	OnDisconnect func(ctx context.Context, err error)
}

// Status is a point-in-time view of the feed connection.
type Status struct {
	Connected  bool      `json:"connected"`
	SessionID  string    `json:"session_id,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Sessions   int       `json:"sessions"`
	LastError  string    `json:"last_error,omitempty"`
	LastDownAt time.Time `json:"last_down_at,omitempty"`
}

// Runner drives sessions into a Watcher and reconnects after connection
// errors when configured to.
type Runner struct {
	watcher *Watcher
	dial    DialFunc
	cfg     RunnerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewRunner returns a Runner for w.
func NewRunner(w *Watcher, dial DialFunc, cfg RunnerConfig, m *metrics.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		watcher: w,
		dial:    dial,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With(slog.String("component", "feed_runner")),
	}
}

// Run blocks until ctx is cancelled, or until the first connection error
// when reconnects are disabled. Books survive reconnects; the server resends
// a snapshot for every asset on subscribe.
func (r *Runner) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	if r.cfg.InitialBackoff > 0 {
		bo.InitialInterval = r.cfg.InitialBackoff
	}
	if r.cfg.MaxBackoff > 0 {
		bo.MaxInterval = r.cfg.MaxBackoff
	}

	for {
		connected, err := r.runSession(ctx)
		if ctx.Err() != nil {
			r.setDown(nil)
			return ctx.Err()
		}
		r.setDown(err)
		if r.cfg.OnDisconnect != nil {
			r.cfg.OnDisconnect(ctx, err)
		}
		if !r.cfg.Reconnect {
			return err
		}
		if connected {
			bo.Reset()
		}
		sleep := bo.NextBackOff()
		r.metrics.Reconnect()
		r.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("backoff", sleep),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// runSession runs one session to completion. connected reports whether the
// dial succeeded.
func (r *Runner) runSession(ctx context.Context) (connected bool, err error) {
	src, err := r.dial(ctx, r.watcher.InstrumentIDs())
	if err != nil {
		return false, err
	}
	defer src.Close()
	r.setUp(src.ID())
	r.metrics.Session()
	r.logger.Info("feed session started", slog.String("session", src.ID()))

	if err := r.watcher.Consume(ctx, src.Frames()); err != nil {
		return true, err
	}
	if err := src.Err(); err != nil {
		return true, err
	}
	return true, errors.New("feed: session closed by peer")
}

// Status returns the current connection status.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) setUp(id string) {
	r.mu.Lock()
	r.status.Connected = true
	r.status.SessionID = id
	r.status.Since = time.Now()
	r.status.Sessions++
	r.mu.Unlock()
}

func (r *Runner) setDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Connected = false
	r.status.SessionID = ""
	if err != nil {
		r.status.LastError = err.Error()
		r.status.LastDownAt = time.Now()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
