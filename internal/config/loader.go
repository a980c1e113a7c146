package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYWATCH_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults and the
// environment still apply. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.WsURL, "POLYWATCH_POLYMARKET_WS_URL")
	setStr(&cfg.Polymarket.GammaHost, "POLYWATCH_POLYMARKET_GAMMA_HOST")
	setDuration(&cfg.Polymarket.PingInterval, "POLYWATCH_POLYMARKET_PING_INTERVAL")

	// ── Feed ──
	setDuration(&cfg.Feed.RenderInterval, "POLYWATCH_FEED_RENDER_INTERVAL")
	setInt(&cfg.Feed.HistorySize, "POLYWATCH_FEED_HISTORY_SIZE")
	setInt(&cfg.Feed.ImbalanceLevels, "POLYWATCH_FEED_IMBALANCE_LEVELS")
	setFloat64(&cfg.Feed.ArbThreshold, "POLYWATCH_FEED_ARB_THRESHOLD")
	setBool(&cfg.Feed.Reconnect, "POLYWATCH_FEED_RECONNECT")

	// ── Markets ──
	// A single pair can be given entirely through the environment.
	var m MarketConfig
	setStr(&m.Label, "POLYWATCH_MARKET_LABEL")
	setStr(&m.UpToken, "POLYWATCH_MARKET_UP_TOKEN")
	setStr(&m.DownToken, "POLYWATCH_MARKET_DOWN_TOKEN")
	setStr(&m.Slug, "POLYWATCH_MARKET_SLUG")
	if m.Resolved() || m.Slug != "" {
		cfg.Markets = append(cfg.Markets, m)
	}
	setBool(&cfg.Discover.Enabled, "POLYWATCH_DISCOVER_ENABLED")
	setStr(&cfg.Discover.TagSlug, "POLYWATCH_DISCOVER_TAG_SLUG")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYWATCH_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "POLYWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYWATCH_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "POLYWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "POLYWATCH_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.Archive.Interval, "POLYWATCH_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLYWATCH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYWATCH_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYWATCH_MODE")
	setStr(&cfg.LogLevel, "POLYWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
