package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polywatch/internal/blob/s3"
	"github.com/alanyoungcy/polywatch/internal/cache/redis"
	"github.com/alanyoungcy/polywatch/internal/config"
	"github.com/alanyoungcy/polywatch/internal/domain"
	"github.com/alanyoungcy/polywatch/internal/feed"
	"github.com/alanyoungcy/polywatch/internal/metrics"
	"github.com/alanyoungcy/polywatch/internal/notify"
	"github.com/alanyoungcy/polywatch/internal/platform/polymarket"
	"github.com/alanyoungcy/polywatch/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Infrastructure fields are
// nil when the matching section is disabled.
type Dependencies struct {
	Metrics   *metrics.Metrics
	Pairs     []domain.MarketPair
	Watcher   *feed.Watcher
	Runner    *feed.Runner
	Publisher *feed.Publisher

	// PostgreSQL
	WindowStore domain.ArbWindowStore

	// Redis
	QuoteCache domain.QuoteCache
	SignalBus  domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier
}

// Wire resolves the watched markets and constructs the feed together with
// every enabled backend. The returned cleanup releases them in reverse
// order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- Markets ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	pairs, err := resolvePairs(ctx, cfg, gamma, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Pairs = pairs

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.WindowStore = postgres.NewArbWindowStore(pgClient.Pool())
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			TTL:        cfg.Redis.TTL.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Feed ---
	watcher, err := feed.NewWatcher(pairs, feed.WatcherConfig{
		HistorySize: cfg.Feed.HistorySize,
	}, deps.Metrics, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Watcher = watcher

	dial := feed.PolymarketDialer(polymarket.SessionConfig{
		URL:              cfg.Polymarket.WsURL,
		PingInterval:     cfg.Polymarket.PingInterval.Duration,
		HandshakeTimeout: cfg.Polymarket.HandshakeTimeout.Duration,
	}, logger)
	deps.Runner = feed.NewRunner(watcher, dial, feed.RunnerConfig{
		Reconnect:      cfg.Feed.Reconnect,
		InitialBackoff: cfg.Feed.ReconnectInitial.Duration,
		MaxBackoff:     cfg.Feed.ReconnectMax.Duration,
		OnDisconnect:   feedDownHook(deps.Notifier, logger),
	}, deps.Metrics, logger)

	deps.Publisher = feed.NewPublisher(watcher, feed.PublisherConfig{
		Interval:        cfg.Feed.RenderInterval.Duration,
		Depth:           cfg.Feed.Depth,
		ImbalanceLevels: cfg.Feed.ImbalanceLevels,
		ArbThreshold:    cfg.Feed.ArbThreshold,
	}, nil, deps.Metrics, logger)

	return deps, cleanup, nil
}

// feedDownHook forwards dropped sessions to the notifier.
func feedDownHook(n *notify.Notifier, logger *slog.Logger) func(context.Context, error) {
	if !n.Enabled() {
		return nil
	}
	return func(ctx context.Context, cause error) {
		if err := n.FeedDown(ctx, cause); err != nil {
			logger.WarnContext(ctx, "feed down notification failed", slog.String("error", err.Error()))
		}
	}
}
