package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polywatch/internal/display"
	"github.com/alanyoungcy/polywatch/internal/feed"
	"github.com/alanyoungcy/polywatch/internal/pipeline"
	"github.com/alanyoungcy/polywatch/internal/server"
	"github.com/alanyoungcy/polywatch/internal/server/handler"
	"github.com/alanyoungcy/polywatch/internal/server/ws"
)

// MonitorMode renders the live dashboard to the terminal.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode", slog.Int("pairs", len(deps.Pairs)))
	return a.run(ctx, deps, true, false)
}

// ServerMode serves the HTTP API and WebSocket stream without a dashboard.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Int("port", a.cfg.Server.Port),
	)
	return a.run(ctx, deps, false, true)
}

// FullMode runs the dashboard and the server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode", slog.Int("pairs", len(deps.Pairs)))
	return a.run(ctx, deps, true, true)
}

// run registers the sinks for the enabled backends and starts the feed,
// the publisher and, when asked, the HTTP server.
func (a *App) run(ctx context.Context, deps *Dependencies, withDisplay, withServer bool) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range a.sinks(deps) {
		deps.Publisher.AddSink(s)
	}

	var hub *ws.Hub
	if withServer {
		hub = ws.NewHub(deps.Publisher.Latest, a.cfg.Server.CORSOrigins, a.logger)
		deps.Publisher.AddSink(hub)
		g.Go(func() error {
			return hub.Run(ctx)
		})

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, a.handlers(deps), hub, a.logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	if withDisplay {
		deps.Publisher.AddSink(display.New(a.out, display.Config{
			Clear: a.isTTY,
		}))
	}

	g.Go(func() error {
		return deps.Runner.Run(ctx)
	})
	g.Go(func() error {
		return deps.Publisher.Run(ctx)
	})

	return g.Wait()
}

// sinks returns the publisher sinks backed by optional infrastructure.
// Window transitions are always logged.
func (a *App) sinks(deps *Dependencies) []feed.Sink {
	var out []feed.Sink

	if deps.QuoteCache != nil && deps.SignalBus != nil {
		out = append(out, pipeline.NewCacheSink(deps.QuoteCache, deps.SignalBus, a.logger))
	}
	if deps.BlobWriter != nil {
		out = append(out, pipeline.NewArchiver(deps.BlobWriter,
			a.cfg.Archive.Prefix, a.cfg.Archive.Interval.Duration, a.logger))
	}

	var alerter pipeline.Alerter
	if deps.Notifier.Enabled() {
		alerter = deps.Notifier
	}
	out = append(out, pipeline.NewAlertSink(deps.WindowStore, alerter, a.logger))
	return out
}

func (a *App) handlers(deps *Dependencies) server.Handlers {
	var history handler.WindowHistory
	if deps.WindowStore != nil {
		history = deps.WindowStore
	}

	h := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode, deps.Runner, deps.Publisher),
		Pairs:   handler.NewPairHandler(deps.Publisher),
		Books:   handler.NewBookHandler(deps.Watcher, a.cfg.Feed.ImbalanceLevels),
		Arb:     handler.NewArbHandler(deps.Publisher, history, a.logger),
		Metrics: deps.Metrics.Handler(),
	}
	if deps.BlobReader != nil {
		h.Archive = handler.NewArchiveHandler(deps.BlobReader, a.cfg.Archive.Prefix, a.logger)
	}
	return h
}
