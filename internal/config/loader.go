package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBENGINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ARBENGINE_MODE")
	setStr(&cfg.LogLevel, "ARBENGINE_LOG_LEVEL")

	// ── Identity ──
	setStr(&cfg.Identity.AliasFile, "ARBENGINE_IDENTITY_ALIAS_FILE")

	// ── Evaluator ──
	setFloat64(&cfg.Evaluator.Commission, "ARBENGINE_EVALUATOR_COMMISSION")
	setFloat64(&cfg.Evaluator.TradingFee, "ARBENGINE_EVALUATOR_TRADING_FEE")
	setFloat64(&cfg.Evaluator.Slippage, "ARBENGINE_EVALUATOR_SLIPPAGE")
	setFloat64(&cfg.Evaluator.MinProfit, "ARBENGINE_EVALUATOR_MIN_PROFIT")
	setFloat64(&cfg.Evaluator.BaseStake, "ARBENGINE_EVALUATOR_BASE_STAKE")
	setFloat64(&cfg.Evaluator.MinOdds, "ARBENGINE_EVALUATOR_MIN_ODDS")
	setInt(&cfg.Evaluator.ReportTopN, "ARBENGINE_EVALUATOR_REPORT_TOP_N")

	// ── Providers ──
	setStr(&cfg.Providers.Exchange, "ARBENGINE_PROVIDERS_EXCHANGE")
	setStr(&cfg.Providers.Prediction, "ARBENGINE_PROVIDERS_PREDICTION")
	setDuration(&cfg.Providers.Timeout, "ARBENGINE_PROVIDERS_TIMEOUT")
	setStr(&cfg.Providers.Polymarket.GammaHost, "ARBENGINE_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Providers.Polymarket.PageSize, "ARBENGINE_POLYMARKET_PAGE_SIZE")
	setStr(&cfg.Providers.Betfair.AppKey, "ARBENGINE_BETFAIR_APP_KEY")
	setStr(&cfg.Providers.Betfair.Username, "ARBENGINE_BETFAIR_USERNAME")
	setStr(&cfg.Providers.Betfair.Password, "ARBENGINE_BETFAIR_PASSWORD")
	setStr(&cfg.Providers.Betfair.CertFile, "ARBENGINE_BETFAIR_CERT_FILE")
	setStr(&cfg.Providers.Betfair.KeyFile, "ARBENGINE_BETFAIR_KEY_FILE")
	setStr(&cfg.Providers.Kalshi.BaseURL, "ARBENGINE_KALSHI_BASE_URL")
	setStr(&cfg.Providers.Kalshi.APIKeyID, "ARBENGINE_KALSHI_API_KEY_ID")
	setStr(&cfg.Providers.Kalshi.PrivateKeyFile, "ARBENGINE_KALSHI_PRIVATE_KEY_FILE")
	setStr(&cfg.Providers.Betdex.BaseURL, "ARBENGINE_BETDEX_BASE_URL")
	setStr(&cfg.Providers.Betdex.APIKey, "ARBENGINE_BETDEX_API_KEY")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "ARBENGINE_STORAGE_DRIVER")
	setStr(&cfg.Postgres.DSN, "ARBENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARBENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBENGINE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBENGINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBENGINE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBENGINE_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "ARBENGINE_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "ARBENGINE_REDIS_LOCK_TTL")
	setStr(&cfg.Redis.KeyPrefix, "ARBENGINE_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBENGINE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "ARBENGINE_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.Interval, "ARBENGINE_PIPELINE_INTERVAL")
	setInt(&cfg.Pipeline.FetchConcurrency, "ARBENGINE_PIPELINE_FETCH_CONCURRENCY")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "ARBENGINE_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "ARBENGINE_PIPELINE_ARCHIVE_CRON")

	// ── Server ──
	setInt(&cfg.Server.Port, "ARBENGINE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBENGINE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBENGINE_SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RequestsPerSecond, "ARBENGINE_SERVER_REQUESTS_PER_SECOND")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBENGINE_NOTIFY_EVENTS")
}

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
