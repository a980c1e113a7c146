// Command polywatch streams Polymarket UP/DOWN order books, derives pair
// analytics and shows them on a terminal dashboard, an HTTP/WebSocket API or
// both, depending on the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/alanyoungcy/polywatch/internal/app"
	"github.com/alanyoungcy/polywatch/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	market := flag.String("market", "", "event URL or slug to watch instead of the configured markets")
	mode := flag.String("mode", "", "override the configured mode (monitor, server, full)")
	flag.Parse()

	logger := newLogger(os.Stdout, "info")
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *market != "" {
		cfg.Markets = []config.MarketConfig{{Slug: *market}}
		cfg.Discover.Enabled = false
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger = newLogger(logWriter(cfg, os.Stdout, os.Stderr), cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("polywatch starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			application.Close()
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("polywatch stopped")
}

// logWriter keeps stdout for the dashboard in every mode that draws one.
func logWriter(cfg *config.Config, stdout, stderr io.Writer) io.Writer {
	if cfg.IsMode("server") {
		return stdout
	}
	return stderr
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
