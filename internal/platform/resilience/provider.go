// Package resilience wraps a provider.Provider with a circuit breaker and a
// request rate limit.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// Config tunes the wrapper. Zero RequestsPerSecond disables the limiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32        // consecutive failures that open the breaker
	BreakerTimeout    time.Duration // open-state duration before a half-open probe
}

// Provider decorates another Provider.
type Provider struct {
	next    provider.Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

var _ provider.Provider = (*Provider)(nil)

// Wrap returns next guarded by a breaker and limiter.
func Wrap(next provider.Provider, cfg Config, logger *slog.Logger) *Provider {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	st := gobreaker.Settings{Name: next.Name()}
	st.Timeout = cfg.BreakerTimeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.BreakerFailures
	}
	// Missing resources and cancellations say nothing about venue health.
	st.IsSuccessful = func(err error) bool {
		return err == nil ||
			errors.Is(err, domain.ErrNotFound) ||
			errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("resilience: breaker state change",
			slog.String("provider", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}

	p := &Provider{next: next, breaker: gobreaker.NewCircuitBreaker(st)}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.next.Name() }

// Platform implements provider.Provider.
func (p *Provider) Platform() domain.Platform { return p.next.Platform() }

// State reports the breaker state.
func (p *Provider) State() gobreaker.State { return p.breaker.State() }

// ListEvents implements provider.Provider.
func (p *Provider) ListEvents(ctx context.Context) ([]provider.Event, error) {
	return call(ctx, p, func() ([]provider.Event, error) { return p.next.ListEvents(ctx) })
}

// ListMarkets implements provider.Provider.
func (p *Provider) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	return call(ctx, p, func() ([]provider.Market, error) { return p.next.ListMarkets(ctx, eventID) })
}

// ListBook implements provider.Provider.
func (p *Provider) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	return call(ctx, p, func() (provider.Book, error) { return p.next.ListBook(ctx, marketID) })
}

func call[T any](ctx context.Context, p *Provider, fn func() (T, error)) (T, error) {
	var zero T
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("resilience: %s: rate limit wait: %w", p.next.Name(), err)
		}
	}
	out, err := p.breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("resilience: %s: %w: %w", p.next.Name(), domain.ErrUnavailable, err)
		}
		return zero, err
	}
	return out.(T), nil
}
