// Package config defines the top-level configuration for the arbitrage engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBENGINE_* environment variables.
type Config struct {
	Identity  IdentityConfig  `toml:"identity"`
	Evaluator EvaluatorConfig `toml:"evaluator"`
	Providers ProvidersConfig `toml:"providers"`
	Storage   StorageConfig   `toml:"storage"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// IdentityConfig points at the alias tables used to canonicalise team and
// league names. An empty AliasFile selects the embedded default tables.
type IdentityConfig struct {
	AliasFile string `toml:"alias_file"`
}

// EvaluatorConfig holds the hedge solver's frictions and thresholds.
type EvaluatorConfig struct {
	Commission       float64 `toml:"commission"`
	TradingFee       float64 `toml:"trading_fee"`
	Slippage         float64 `toml:"slippage"`
	MinProfit        float64 `toml:"min_profit"`
	BaseStake        float64 `toml:"base_stake"`
	MinOdds          float64 `toml:"min_odds"`
	MinDenominator   float64 `toml:"min_denominator"`
	BalanceTolerance float64 `toml:"balance_tolerance"`
	Currency         string  `toml:"currency"`
	ReportTopN       int     `toml:"report_top_n"`
}

// ProvidersConfig selects and configures the two venues.
type ProvidersConfig struct {
	// Exchange selects the exchange venue: "betfair", "betdex" or "mock".
	Exchange string `toml:"exchange"`
	// Prediction selects the prediction-market venue: "polymarket", "kalshi"
	// or "mock".
	Prediction string           `toml:"prediction"`
	Timeout    duration         `toml:"timeout"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Betfair    BetfairConfig    `toml:"betfair"`
	Betdex     BetdexConfig     `toml:"betdex"`
	Resilience ResilienceConfig `toml:"resilience"`
}

// PolymarketConfig holds the Gamma API endpoint and paging parameters.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
	TagSlug   string `toml:"tag_slug"`
}

// KalshiConfig holds the Kalshi trade API root, optional signing key and the
// game series to scan, keyed by series ticker with the league as value.
type KalshiConfig struct {
	BaseURL        string            `toml:"base_url"`
	APIKeyID       string            `toml:"api_key_id"`
	PrivateKeyFile string            `toml:"private_key_file"`
	Series         map[string]string `toml:"series"`
	PageSize       int               `toml:"page_size"`
	MaxPages       int               `toml:"max_pages"`
}

// BetfairConfig holds Betfair Exchange API-NG credentials.
type BetfairConfig struct {
	AppKey      string `toml:"app_key"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	CertFile    string `toml:"cert_file"`
	KeyFile     string `toml:"key_file"`
	IdentityURL string `toml:"identity_url"`
	APIURL      string `toml:"api_url"`
	EventTypeID string `toml:"event_type_id"`
}

// BetdexConfig holds BetDEX REST API parameters.
type BetdexConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// ResilienceConfig tunes the circuit breaker and rate limiter wrapped around
// every provider.
type ResilienceConfig struct {
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	BreakerFailures   int      `toml:"breaker_failures"`
	BreakerTimeout    duration `toml:"breaker_timeout"`
}

// StorageConfig selects the repository backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the cycle lock, signal bus and latest-batch cache are skipped.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	LockTTL      duration `toml:"lock_ttl"`
	CacheTTL     duration `toml:"cache_ttl"`
	KeyPrefix    string   `toml:"key_prefix"`
	StreamMaxLen int64    `toml:"stream_max_len"`
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

// PipelineConfig holds ingestion cycle parameters.
type PipelineConfig struct {
	Interval             duration `toml:"interval"`
	FetchConcurrency     int      `toml:"fetch_concurrency"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port              int      `toml:"port"`
	APIKey            string   `toml:"api_key"`
	CORSOrigins       []string `toml:"cors_origins"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Evaluator: EvaluatorConfig{
			Commission:       0.03,
			TradingFee:       0.0,
			Slippage:         0.002,
			MinProfit:        0.10,
			BaseStake:        5.0,
			MinOdds:          1.01,
			MinDenominator:   0,
			BalanceTolerance: 1e-9,
			Currency:         "EUR",
			ReportTopN:       10,
		},
		Providers: ProvidersConfig{
			Exchange:   "mock",
			Prediction: "mock",
			Timeout:    duration{15 * time.Second},
			Polymarket: PolymarketConfig{
				GammaHost: "https://gamma-api.polymarket.com",
				PageSize:  100,
				MaxPages:  50,
				TagSlug:   "soccer",
			},
			Kalshi: KalshiConfig{
				BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
				Series: map[string]string{
					"KXEPLGAME":    "Premier League",
					"KXLALIGAGAME": "La Liga",
					"KXUCLGAME":    "Champions League",
				},
				PageSize: 100,
				MaxPages: 20,
			},
			Betfair: BetfairConfig{
				IdentityURL: "https://identitysso-cert.betfair.com/api/certlogin",
				APIURL:      "https://api.betfair.com/exchange/betting/json-rpc/v1",
				EventTypeID: "1",
			},
			Betdex: BetdexConfig{
				BaseURL: "https://api.betdex.com/v1",
			},
			Resilience: ResilienceConfig{
				RequestsPerSecond: 5,
				Burst:             5,
				BreakerFailures:   3,
				BreakerTimeout:    duration{30 * time.Second},
			},
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbengine",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			LockTTL:      duration{2 * time.Minute},
			CacheTTL:     duration{10 * time.Minute},
			KeyPrefix:    "arbengine:",
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbengine-data",
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			Interval:             duration{time.Minute},
			FetchConcurrency:     4,
			ArchiveRetentionDays: 30,
			ArchiveCron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Port:              8000,
			CORSOrigins:       []string{"http://localhost:3000"},
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Notify: NotifyConfig{
			Events: []string{"arb_detected", "cycle_failed"},
		},
		Mode:     "once",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"once":   true,
	"loop":   true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validExchanges = map[string]bool{"betfair": true, "betdex": true, "mock": true}

var validPredictions = map[string]bool{"polymarket": true, "kalshi": true, "mock": true}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, loop, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Evaluator
	e := c.Evaluator
	if e.Commission < 0 || e.Commission >= 1 {
		errs = append(errs, fmt.Sprintf("evaluator: commission must be in [0, 1), got %g", e.Commission))
	}
	if e.TradingFee < 0 {
		errs = append(errs, "evaluator: trading_fee must be >= 0")
	}
	if e.Slippage < 0 {
		errs = append(errs, "evaluator: slippage must be >= 0")
	}
	if e.BaseStake <= 0 {
		errs = append(errs, "evaluator: base_stake must be > 0")
	}
	if e.MinOdds < 1 {
		errs = append(errs, "evaluator: min_odds must be >= 1")
	}
	if e.MinDenominator < 0 {
		errs = append(errs, "evaluator: min_denominator must be >= 0")
	}
	if e.BalanceTolerance <= 0 {
		errs = append(errs, "evaluator: balance_tolerance must be > 0")
	}
	if e.ReportTopN < 0 {
		errs = append(errs, "evaluator: report_top_n must be >= 0")
	}

	// Providers
	p := c.Providers
	if !validExchanges[p.Exchange] {
		errs = append(errs, fmt.Sprintf("providers: unknown exchange %q (valid: betfair, betdex, mock)", p.Exchange))
	}
	if !validPredictions[p.Prediction] {
		errs = append(errs, fmt.Sprintf("providers: unknown prediction %q (valid: polymarket, kalshi, mock)", p.Prediction))
	}
	if p.Exchange == "betfair" {
		if p.Betfair.AppKey == "" {
			errs = append(errs, "providers.betfair: app_key is required")
		}
		if p.Betfair.Username == "" || p.Betfair.Password == "" {
			errs = append(errs, "providers.betfair: username and password are required")
		}
		if p.Betfair.CertFile == "" || p.Betfair.KeyFile == "" {
			errs = append(errs, "providers.betfair: cert_file and key_file are required")
		}
	}
	if p.Exchange == "betdex" && p.Betdex.BaseURL == "" {
		errs = append(errs, "providers.betdex: base_url must not be empty")
	}
	if p.Prediction == "polymarket" {
		if p.Polymarket.GammaHost == "" {
			errs = append(errs, "providers.polymarket: gamma_host must not be empty")
		}
		if p.Polymarket.PageSize < 1 {
			errs = append(errs, "providers.polymarket: page_size must be >= 1")
		}
	}
	if p.Prediction == "kalshi" {
		if p.Kalshi.BaseURL == "" {
			errs = append(errs, "providers.kalshi: base_url must not be empty")
		}
		if len(p.Kalshi.Series) == 0 {
			errs = append(errs, "providers.kalshi: at least one series is required")
		}
		if (p.Kalshi.APIKeyID == "") != (p.Kalshi.PrivateKeyFile == "") {
			errs = append(errs, "providers.kalshi: api_key_id and private_key_file must be set together")
		}
	}
	if p.Resilience.RequestsPerSecond <= 0 {
		errs = append(errs, "providers.resilience: requests_per_second must be > 0")
	}
	if p.Resilience.BreakerFailures < 1 {
		errs = append(errs, "providers.resilience: breaker_failures must be >= 1")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory":
		if c.Mode == "server" {
			errs = append(errs, "storage: driver memory cannot serve mode server (nothing writes to it)")
		}
	case "postgres":
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
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, memory)", c.Storage.Driver))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be positive")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Storage.Driver != "postgres" {
			errs = append(errs, "s3: archiving requires storage.driver = postgres")
		}
	}

	// Pipeline
	if c.Pipeline.Interval.Duration <= 0 {
		errs = append(errs, "pipeline: interval must be positive")
	}
	if c.Pipeline.FetchConcurrency < 1 {
		errs = append(errs, "pipeline: fetch_concurrency must be >= 1")
	}
	if c.S3.Enabled && c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RequestsPerSecond < 0 {
			errs = append(errs, "server: requests_per_second must be >= 0")
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
