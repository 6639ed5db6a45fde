package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/arbengine/internal/blob/s3"
	"github.com/alanyoungcy/arbengine/internal/cache/redis"
	"github.com/alanyoungcy/arbengine/internal/config"
	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/evaluator"
	"github.com/alanyoungcy/arbengine/internal/identity"
	"github.com/alanyoungcy/arbengine/internal/metrics"
	"github.com/alanyoungcy/arbengine/internal/notify"
	"github.com/alanyoungcy/arbengine/internal/platform/betdex"
	"github.com/alanyoungcy/arbengine/internal/platform/betfair"
	"github.com/alanyoungcy/arbengine/internal/platform/kalshi"
	"github.com/alanyoungcy/arbengine/internal/platform/mock"
	"github.com/alanyoungcy/arbengine/internal/platform/polymarket"
	"github.com/alanyoungcy/arbengine/internal/platform/resilience"
	"github.com/alanyoungcy/arbengine/internal/provider"
	"github.com/alanyoungcy/arbengine/internal/server/handler"
	"github.com/alanyoungcy/arbengine/internal/store/memory"
	"github.com/alanyoungcy/arbengine/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	EventStore       domain.EventStore
	QuoteStore       domain.QuoteStore
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore

	// Redis-backed; LockManager and OpportunityCache stay nil without Redis.
	LockManager      domain.LockManager
	OpportunityCache domain.OpportunityCache
	SignalBus        domain.SignalBus

	// Blob storage; nil unless s3 is enabled.
	Archiver domain.Archiver

	// Venues, each wrapped in a breaker and rate limiter.
	Exchange   provider.Provider
	Prediction provider.Provider

	Resolver  *identity.Resolver
	Evaluator *evaluator.Evaluator
	Notifier  *notify.Notifier
	Metrics   *metrics.Metrics

	// Health pingers keyed by dependency name.
	Checks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]handler.Pinger),
	}

	// --- Identity ---
	resolver, err := identity.LoadResolver(cfg.Identity.AliasFile)
	if err != nil {
		return fail("alias tables", err)
	}
	deps.Resolver = resolver

	// --- Storage ---
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.New()
		deps.EventStore = store
		deps.QuoteStore = store
		deps.OpportunityStore = store
		deps.AuditStore = memory.NewAuditLog()
		logger.Warn("wire: using in-memory storage; nothing survives a restart")
	default:
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
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.EventStore = postgres.NewEventStore(pool)
		deps.QuoteStore = postgres.NewQuoteStore(pool)
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pool.Ping
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
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.OpportunityCache = redis.NewOpportunityCache(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, cfg.Redis.StreamMaxLen)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		// The websocket feed still works within this process.
		deps.SignalBus = memory.NewSignalBus(int(cfg.Redis.StreamMaxLen))
	}

	// --- S3 archive ---
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
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.OpportunityStore, deps.AuditStore, logger)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Venues ---
	exchange, err := newExchange(cfg.Providers, logger)
	if err != nil {
		return fail("exchange provider", err)
	}
	prediction, err := newPrediction(cfg.Providers, logger)
	if err != nil {
		return fail("prediction provider", err)
	}
	rc := resilience.Config{
		RequestsPerSecond: cfg.Providers.Resilience.RequestsPerSecond,
		Burst:             cfg.Providers.Resilience.Burst,
		BreakerFailures:   uint32(cfg.Providers.Resilience.BreakerFailures),
		BreakerTimeout:    cfg.Providers.Resilience.BreakerTimeout.Duration,
	}
	deps.Exchange = resilience.Wrap(exchange, rc, logger)
	deps.Prediction = resilience.Wrap(prediction, rc, logger)

	// --- Evaluator ---
	ec := evaluator.Config{
		Commission:       cfg.Evaluator.Commission,
		TradingFee:       cfg.Evaluator.TradingFee,
		Slippage:         cfg.Evaluator.Slippage,
		MinProfit:        cfg.Evaluator.MinProfit,
		BaseStake:        cfg.Evaluator.BaseStake,
		MinOdds:          cfg.Evaluator.MinOdds,
		MinDenominator:   cfg.Evaluator.MinDenominator,
		BalanceTolerance: cfg.Evaluator.BalanceTolerance,
	}
	if err := ec.Validate(); err != nil {
		return fail("evaluator", err)
	}
	deps.Evaluator = evaluator.New(ec, deps.QuoteStore, deps.OpportunityStore, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			notify.TelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			nil,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, nil))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Evaluator.Currency, cfg.Evaluator.ReportTopN, logger)

	return deps, cleanup, nil
}

func newExchange(cfg config.ProvidersConfig, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Exchange {
	case "betfair":
		return betfair.New(betfair.Config{
			AppKey:      cfg.Betfair.AppKey,
			Username:    cfg.Betfair.Username,
			Password:    cfg.Betfair.Password,
			CertFile:    cfg.Betfair.CertFile,
			KeyFile:     cfg.Betfair.KeyFile,
			IdentityURL: cfg.Betfair.IdentityURL,
			APIURL:      cfg.Betfair.APIURL,
			EventTypeID: cfg.Betfair.EventTypeID,
			Timeout:     cfg.Timeout.Duration,
		}, nil, logger)
	case "betdex":
		return betdex.New(betdex.Config{
			BaseURL: cfg.Betdex.BaseURL,
			APIKey:  cfg.Betdex.APIKey,
			Timeout: cfg.Timeout.Duration,
		}, nil, logger), nil
	case "mock":
		return mock.NewExchange(), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange)
	}
}

func newPrediction(cfg config.ProvidersConfig, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Prediction {
	case "polymarket":
		return polymarket.NewGammaClient(polymarket.GammaConfig{
			BaseURL:  cfg.Polymarket.GammaHost,
			PageSize: cfg.Polymarket.PageSize,
			MaxPages: cfg.Polymarket.MaxPages,
			TagSlug:  cfg.Polymarket.TagSlug,
			Timeout:  cfg.Timeout.Duration,
		}, nil, logger), nil
	case "kalshi":
		return kalshi.New(kalshi.Config{
			BaseURL:        cfg.Kalshi.BaseURL,
			APIKeyID:       cfg.Kalshi.APIKeyID,
			PrivateKeyFile: cfg.Kalshi.PrivateKeyFile,
			Series:         cfg.Kalshi.Series,
			PageSize:       cfg.Kalshi.PageSize,
			MaxPages:       cfg.Kalshi.MaxPages,
			Timeout:        cfg.Timeout.Duration,
		}, nil, logger)
	case "mock":
		return mock.NewPrediction(), nil
	default:
		return nil, fmt.Errorf("unknown prediction venue %q", cfg.Prediction)
	}
}
