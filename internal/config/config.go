// Package config defines the top-level configuration for the watcher and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYWATCH_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Feed       FeedConfig       `toml:"feed"`
	Markets    []MarketConfig   `toml:"markets"`
	Discover   DiscoverConfig   `toml:"discover"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the feed and discovery endpoints.
type PolymarketConfig struct {
	WsURL            string   `toml:"ws_url"`
	GammaHost        string   `toml:"gamma_host"`
	PingInterval     duration `toml:"ping_interval"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
}

// FeedConfig tunes book keeping, analytics and the reconnect policy.
type FeedConfig struct {
	RenderInterval   duration `toml:"render_interval"`
	HistorySize      int      `toml:"history_size"`
	ImbalanceLevels  int      `toml:"imbalance_levels"`
	Depth            int      `toml:"depth"`
	ArbThreshold     float64  `toml:"arb_threshold"`
	Reconnect        bool     `toml:"reconnect"`
	ReconnectInitial duration `toml:"reconnect_initial"`
	ReconnectMax     duration `toml:"reconnect_max"`
}

// MarketConfig names one pair to watch, either by token ids or by an event
// slug/URL resolved through Gamma at startup.
type MarketConfig struct {
	Label     string `toml:"label"`
	UpToken   string `toml:"up_token"`
	DownToken string `toml:"down_token"`
	Slug      string `toml:"slug"`
}

// Resolved reports whether both token ids are already known.
func (m MarketConfig) Resolved() bool { return m.UpToken != "" && m.DownToken != "" }

// DiscoverConfig adds every active Up/Down market under a tag at startup.
type DiscoverConfig struct {
	Enabled bool   `toml:"enabled"`
	TagSlug string `toml:"tag_slug"`
	Limit   int    `toml:"limit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the arbitrage
// window log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	TTL        duration `toml:"ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls how often mid-price history is written to S3.
type ArchiveConfig struct {
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// ServerConfig holds HTTP/WebSocket API server settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "10s", "250ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so that BurntSushi/toml can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			WsURL:            "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			GammaHost:        "https://gamma-api.polymarket.com",
			PingInterval:     duration{10 * time.Second},
			HandshakeTimeout: duration{15 * time.Second},
		},
		Feed: FeedConfig{
			RenderInterval:   duration{250 * time.Millisecond},
			HistorySize:      60,
			ImbalanceLevels:  5,
			Depth:            10,
			ArbThreshold:     0.01,
			Reconnect:        true,
			ReconnectInitial: duration{2 * time.Second},
			ReconnectMax:     duration{60 * time.Second},
		},
		Discover: DiscoverConfig{
			TagSlug: "bitcoin",
			Limit:   200,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polywatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "polywatch",
			TTL:        duration{10 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polywatch-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval: duration{5 * time.Minute},
			Prefix:   "history",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"arb_window_open", "arb_window_close", "feed_down"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// IsMode reports whether the configured mode is m, ignoring case.
func (c *Config) IsMode(m string) bool { return strings.EqualFold(c.Mode, m) }

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.WsURL == "" {
		errs = append(errs, "polymarket: ws_url must not be empty")
	}
	if c.Polymarket.PingInterval.Duration <= 0 {
		errs = append(errs, "polymarket: ping_interval must be > 0")
	}

	// Feed
	if c.Feed.RenderInterval.Duration < 250*time.Millisecond {
		errs = append(errs, fmt.Sprintf("feed: render_interval must be >= 250ms, got %s", c.Feed.RenderInterval.Duration))
	}
	if c.Feed.HistorySize < 1 {
		errs = append(errs, "feed: history_size must be >= 1")
	}
	if c.Feed.ImbalanceLevels < 1 {
		errs = append(errs, "feed: imbalance_levels must be >= 1")
	}
	if c.Feed.ArbThreshold <= 0 || c.Feed.ArbThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("feed: arb_threshold must be in (0, 1), got %v", c.Feed.ArbThreshold))
	}
	if c.Feed.Reconnect && c.Feed.ReconnectMax.Duration < c.Feed.ReconnectInitial.Duration {
		errs = append(errs, "feed: reconnect_max must not be below reconnect_initial")
	}

	// Markets
	if len(c.Markets) == 0 && !c.Discover.Enabled {
		errs = append(errs, "markets: at least one [[markets]] entry is required unless discover.enabled is set")
	}
	if c.Discover.Enabled && c.Polymarket.GammaHost == "" {
		errs = append(errs, "discover: polymarket.gamma_host must be set")
	}
	labels := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		switch {
		case m.Resolved():
			if m.UpToken == m.DownToken {
				errs = append(errs, fmt.Sprintf("markets[%d]: up_token and down_token must differ", i))
			}
			if m.Label == "" {
				errs = append(errs, fmt.Sprintf("markets[%d]: label is required with explicit tokens", i))
			}
		case m.Slug != "":
			if c.Polymarket.GammaHost == "" {
				errs = append(errs, fmt.Sprintf("markets[%d]: slug needs polymarket.gamma_host", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("markets[%d]: set both up_token and down_token, or slug", i))
		}
		if m.Label != "" {
			if labels[m.Label] {
				errs = append(errs, fmt.Sprintf("markets[%d]: duplicate label %q", i, m.Label))
			}
			labels[m.Label] = true
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled || c.IsMode("server") || c.IsMode("full") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
