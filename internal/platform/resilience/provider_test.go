package resilience

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

type flaky struct {
	calls int
	err   error
}

func (f *flaky) Name() string              { return "flaky" }
func (f *flaky) Platform() domain.Platform { return domain.PlatformExchange }
func (f *flaky) ListEvents(context.Context) ([]provider.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []provider.Event{{ID: "e1"}}, nil
}
func (f *flaky) ListMarkets(context.Context, string) ([]provider.Market, error) {
	f.calls++
	return nil, f.err
}
func (f *flaky) ListBook(context.Context, string) (provider.Book, error) {
	f.calls++
	return provider.Book{MarketID: "m"}, f.err
}

var discard = slog.New(slog.DiscardHandler)

func TestPassThrough(t *testing.T) {
	next := &flaky{}
	p := Wrap(next, Config{}, discard)

	events, err := p.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "flaky", p.Name())
	assert.Equal(t, domain.PlatformExchange, p.Platform())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("boom")
	next := &flaky{err: boom}
	p := Wrap(next, Config{BreakerFailures: 2, BreakerTimeout: time.Minute}, discard)
	ctx := context.Background()

	for range 2 {
		_, err := p.ListEvents(ctx)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	_, err := p.ListBook(ctx, "m")
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, 2, next.calls, "open breaker short-circuits")
}

func TestNotFoundDoesNotTrip(t *testing.T) {
	next := &flaky{err: domain.ErrNotFound}
	p := Wrap(next, Config{BreakerFailures: 1}, discard)

	for range 3 {
		_, err := p.ListMarkets(context.Background(), "e")
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, p.State())
	assert.Equal(t, 3, next.calls)
}

func TestLimiterHonoursContext(t *testing.T) {
	p := Wrap(&flaky{}, Config{RequestsPerSecond: 0.001, Burst: 1}, discard)
	ctx := context.Background()

	_, err := p.ListEvents(ctx)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = p.ListEvents(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}
