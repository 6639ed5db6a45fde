package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/evaluator"
	"github.com/alanyoungcy/arbengine/internal/identity"
	"github.com/alanyoungcy/arbengine/internal/metrics"
	"github.com/alanyoungcy/arbengine/internal/platform/mock"
	"github.com/alanyoungcy/arbengine/internal/provider"
	"github.com/alanyoungcy/arbengine/internal/store/memory"
)

var discard = slog.New(slog.DiscardHandler)

func testResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	r, err := identity.LoadResolver("")
	require.NoError(t, err)
	return r
}

type fakeLock struct {
	mu   sync.Mutex
	held bool
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockHeld)
	}
	l.held = true
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, ch string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[ch] = append(b.published[ch], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeCache struct{ latest []domain.Opportunity }

func (c *fakeCache) SetLatest(_ context.Context, opps []domain.Opportunity) error {
	c.latest = opps
	return nil
}

func (c *fakeCache) Latest(context.Context) ([]domain.Opportunity, error) { return c.latest, nil }

type harness struct {
	store *memory.Store
	audit *memory.AuditLog
	lock  *fakeLock
	bus   *fakeBus
	cache *fakeCache
	out   *bytes.Buffer
	met   *metrics.Metrics
	orch  *Orchestrator
}

func newHarness(t *testing.T, exchange, prediction provider.Provider) *harness {
	t.Helper()
	res := testResolver(t)
	h := &harness{
		store: memory.New(),
		audit: memory.NewAuditLog(),
		lock:  &fakeLock{},
		bus:   newFakeBus(),
		cache: &fakeCache{},
		out:   &bytes.Buffer{},
		met:   metrics.New(),
	}
	h.orch = NewOrchestrator(OrchestratorDeps{
		Exchange:   exchange,
		Prediction: prediction,
		Events:     NewEventIngestor(res, h.store, discard),
		Quotes:     NewExchangeIngestor(res, h.store, 2, discard),
		Binary:     NewPredictionIngestor(res, h.store, h.store, discard),
		Evaluator:  evaluator.New(evaluator.DefaultConfig(), h.store, h.store, discard),
		Lock:       h.lock,
		Cache:      h.cache,
		Bus:        h.bus,
		Audit:      h.audit,
		Metrics:    h.met,
		Report:     h.out,
		ReportTopN: 10,
		Currency:   "EUR",
	}, discard)
	return h
}

func TestRunOnceMockCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewExchange(), mock.NewPrediction())

	rep, err := h.orch.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Events.Upserted)
	assert.Equal(t, 6, rep.Exchange.Upserted)
	assert.Equal(t, 3, rep.Exchange.Skipped[SkipNonTeamSelection], "one draw per match")
	assert.Equal(t, 4, rep.Prediction.Upserted)
	assert.Equal(t, 4, rep.Evaluation.Pairs)

	require.Len(t, rep.Opportunities, 2)
	best, second := rep.Opportunities[0], rep.Opportunities[1]
	assert.Equal(t, "Barcelona", best.Team)
	assert.Equal(t, domain.DirectionYesLay, best.Direction)
	assert.InDelta(t, 0.89419, best.WorstCase, 1e-4)
	assert.Equal(t, "Real Madrid", second.Team)
	assert.Equal(t, domain.DirectionNoBack, second.Direction)
	assert.InDelta(t, 0.16917, second.WorstCase, 1e-4)
	assert.InDelta(t, 1.82083, second.HedgeStake, 1e-4)

	stored, err := h.store.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	assert.Equal(t, rep.Opportunities, h.cache.latest)
	require.Len(t, h.bus.published[ChannelArb], 2)
	assert.Len(t, h.bus.streamed[StreamArbHistory], 2)
	var first domain.Opportunity
	require.NoError(t, json.Unmarshal(h.bus.published[ChannelArb][0], &first))
	assert.Equal(t, best.ID, first.ID)

	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "| Barcelona | PM_YES_vs_EXCHANGE_LAY |")
	assert.Contains(t, lines[1], "PM=NO@0.600 | odds=BACK@2.80 | stake_pm=5.00 | hedge=1.82")

	entries, err := h.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cycle_complete", entries[0].Event)

	assert.False(t, h.lock.held, "lock released after the cycle")
}

func TestRunOnceLockHeld(t *testing.T) {
	h := newHarness(t, mock.NewExchange(), mock.NewPrediction())
	h.lock.held = true

	_, err := h.orch.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrLockHeld)

	events, err := h.store.List(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

// blockingProvider holds ListEvents open until release is closed.
type blockingProvider struct {
	provider.Provider
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProvider) ListEvents(ctx context.Context) ([]provider.Event, error) {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return p.Provider.ListEvents(ctx)
}

func TestRunOnceRejectsOverlappingCycle(t *testing.T) {
	ctx := context.Background()
	slow := &blockingProvider{
		Provider: mock.NewExchange(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	h := newHarness(t, slow, mock.NewPrediction())
	h.orch.deps.Lock = nil // no redis: only the in-process guard applies

	first := make(chan error, 1)
	go func() {
		_, err := h.orch.RunOnce(ctx)
		first <- err
	}()
	<-slow.entered

	_, err := h.orch.RunOnce(ctx)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	close(slow.release)
	require.NoError(t, <-first)

	stored, err := h.store.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, stored, 2, "only the first cycle persisted")

	_, err = h.orch.RunOnce(ctx)
	require.NoError(t, err, "guard is released after the cycle")
}

type failingProvider struct{ provider.Provider }

func (failingProvider) ListEvents(context.Context) ([]provider.Event, error) {
	return nil, fmt.Errorf("venue down: %w", domain.ErrUnavailable)
}

func TestRunOnceProviderFailure(t *testing.T) {
	h := newHarness(t, failingProvider{mock.NewExchange()}, mock.NewPrediction())

	_, err := h.orch.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Contains(t, err.Error(), "pipeline: events")
	assert.Empty(t, h.bus.published)
	assert.False(t, h.lock.held)
}

func TestRunOnceIsRepeatable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewExchange(), mock.NewPrediction())

	first, err := h.orch.RunOnce(ctx)
	require.NoError(t, err)
	second, err := h.orch.RunOnce(ctx)
	require.NoError(t, err)

	// Upserts are idempotent; only the history grows.
	events, err := h.store.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.NotEqual(t, first.Opportunities[0].RunID, second.Opportunities[0].RunID)

	stored, err := h.store.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	h := newHarness(t, mock.NewExchange(), mock.NewPrediction())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.orch.RunLoop(ctx, time.Hour)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	stored, err := h.store.ListRecent(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, stored, 2, "first cycle runs before the first tick")
}

func TestEventIngestSkips(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	in := NewEventIngestor(testResolver(t), store, discard)

	p := mock.New("fixture", domain.PlatformExchange, []provider.Event{
		{ID: "1", Name: "Chelsea v Bournemouth", League: "English Premier League", Kickoff: "2025-01-10T20:00:00Z"},
		{ID: "2", Name: "Chelsea vs Bournemouth", League: "EPL", Kickoff: "2025-01-10T20:00:00+00:00"},
		{ID: "3", Name: "Chelsea v Bournemouth", Kickoff: "2025-01-10T20:00:00Z"},
		{ID: "4", Name: "Chelsea v Bournemouth", League: "EPL", Kickoff: "next friday"},
		{ID: "5", Name: "Chelsea v Narnia Athletic", League: "EPL", Kickoff: "2025-01-10T20:00:00Z"},
		{ID: "6", Name: "Chelsea v Bournemouth", League: "Lunar League", Kickoff: "2025-01-10T20:00:00Z"},
	}, nil, nil)

	events, stats, err := in.Run(ctx, p)
	require.NoError(t, err)
	require.Len(t, events, 1, "two spellings of one match collapse to one UID")
	assert.Equal(t, "006dbc3e14a52ffda742c58e5c31a48027090b21674d18ca51701800f2ef2188", events[0].UID)
	assert.Equal(t, "1", events[0].SourceEventID)

	assert.Equal(t, 6, stats.Seen)
	assert.Equal(t, 1, stats.Skipped[SkipMissingEventFields])
	assert.Equal(t, 1, stats.MissingFields["league"])
	assert.Equal(t, 1, stats.Skipped[SkipBadTimestamp])
	assert.Equal(t, 1, stats.Skipped[SkipUnknownTeam])
	assert.Equal(t, 1, stats.Skipped[SkipUnknownLeague])
}

func TestPredictionIngestSkips(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	res := testResolver(t)

	_, _, err := NewEventIngestor(res, store, discard).Run(ctx, mock.NewExchange())
	require.NoError(t, err)

	base := provider.Market{
		Category: "Sports", League: "EPL", Home: "Chelsea", Away: "AFC Bournemouth",
		Kickoff: "2025-01-10T20:00:00Z", Outcomes: []string{"Yes", "No"}, Prices: []float64{0.5, 0.5},
	}
	with := func(id string, f func(*provider.Market)) provider.Market {
		m := base
		m.ID, m.EventID = id, "ev"
		m.Question = "Will Chelsea win on 2025-01-10?"
		f(&m)
		return m
	}
	markets := []provider.Market{
		with("ok", func(*provider.Market) {}),
		with("politics", func(m *provider.Market) { m.Category = "Politics" }),
		with("total", func(m *provider.Market) { m.Question = "Over 2.5 goals?" }),
		with("three-way", func(m *provider.Market) { m.Outcomes = []string{"Chelsea", "Draw", "Bournemouth"} }),
		with("no-league", func(m *provider.Market) { m.League = "" }),
		with("other-day", func(m *provider.Market) { m.Kickoff = "2025-02-10T20:00:00Z" }),
		with("other-team", func(m *provider.Market) { m.Question = "Will Arsenal win on 2025-01-10?" }),
		with("no-price", func(m *provider.Market) { m.Prices = nil }),
	}
	p := mock.New("fixture", domain.PlatformPrediction,
		[]provider.Event{{ID: "ev", Category: "Sports"}}, markets, nil)

	stats, err := NewPredictionIngestor(res, store, store, discard).Run(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Seen)
	assert.Equal(t, 1, stats.Upserted)
	assert.Equal(t, 1, stats.Skipped[SkipNotSports])
	assert.Equal(t, 2, stats.Skipped[SkipNotBinary])
	assert.Equal(t, 1, stats.Skipped[SkipMissingEventFields])
	assert.Equal(t, 2, stats.Skipped[SkipNoMatchingEvent])
	assert.Equal(t, 1, stats.Skipped[SkipMissingPrice])

	quotes, err := store.FindBinaryQuotes(ctx, "")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "Chelsea", quotes[0].Team)
	assert.InDelta(t, 0.5, quotes[0].No(), 1e-12)
}

func TestExchangeIngestSkips(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	res := testResolver(t)

	price := domain.Float
	p := mock.New("fixture", domain.PlatformExchange,
		[]provider.Event{{ID: "1", Name: "Chelsea v Bournemouth", League: "EPL", Kickoff: "2025-01-10T20:00:00Z"}},
		[]provider.Market{
			{ID: "ou", EventID: "1", Name: "Over/Under 2.5 Goals"},
			{ID: "mo", EventID: "1", Name: "Match Odds - Live", Runners: []provider.Runner{
				{SelectionID: "s1", Name: "Chelsea FC"},
				{SelectionID: "s2", Name: "AFC Bournemouth"},
				{SelectionID: "s3", Name: "The Draw"},
				{SelectionID: "s4", Name: "Narnia Athletic"},
				{SelectionID: "s5", Name: "Arsenal"},
			}},
		},
		[]provider.Book{{MarketID: "mo", Runners: []provider.Runner{
			{SelectionID: "s1", BestBack: price(1.70), BestLay: price(1.76)},
			{SelectionID: "s2", BestBack: price(5.10)},
			{SelectionID: "s3", BestBack: price(3.90), BestLay: price(4.00)},
			{SelectionID: "s4", BestBack: price(2.00), BestLay: price(2.02)},
			{SelectionID: "s5", BestBack: price(2.00), BestLay: price(2.02)},
			{SelectionID: "s6", Name: "Bournemouth"},
		}}},
	)

	events, _, err := NewEventIngestor(res, store, discard).Run(ctx, p)
	require.NoError(t, err)
	require.Len(t, events, 1)

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	in := NewExchangeIngestor(res, store, 1, discard)
	in.now = func() time.Time { return now }

	stats, err := in.Run(ctx, p, events)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Seen)
	assert.Equal(t, 2, stats.Upserted)
	assert.Equal(t, map[string]int{
		"non_team_selection": 2, // draw, team from another match
		"unknown_team":       1,
		"missing_price":      1,
	}, stats.SkipCounts())

	quotes, err := store.FindExchangeQuotes(ctx, events[0].UID)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "Bournemouth", quotes[0].Team)
	assert.Equal(t, "s2", quotes[0].SelectionID)
	assert.Nil(t, quotes[0].LayOdds)
	assert.Equal(t, "Chelsea", quotes[1].Team)
	assert.Equal(t, "mo", quotes[1].MarketID, "match odds picked over the first market")
	for _, q := range quotes {
		assert.Equal(t, now, q.UpdatedAt, "a book without a timestamp is stamped now")
	}
}

func TestPickMatchOdds(t *testing.T) {
	_, ok := pickMatchOdds(nil)
	assert.False(t, ok)

	tests := []struct {
		name    string
		markets []provider.Market
		want    string
	}{
		{"exact name", []provider.Market{{ID: "a", Name: "Over/Under 2.5"}, {ID: "b", Name: "Full Time Result"}}, "b"},
		{"name contains", []provider.Market{{ID: "a", Name: "Correct Score"}, {ID: "b", Name: "Match Odds - Live"}}, "b"},
		{"type code", []provider.Market{{ID: "a", Name: "Correct Score"}, {ID: "b", Name: "Winner", Type: "MATCH_ODDS"}}, "b"},
		{"spaced type", []provider.Market{{ID: "a", Name: "Totals"}, {ID: "b", Type: "full time result"}}, "b"},
		{"fallback", []provider.Market{{ID: "a", Name: "Correct Score"}, {ID: "b", Name: "Totals"}}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := pickMatchOdds(tt.markets)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.ID)
		})
	}
}

func TestStatsMerge(t *testing.T) {
	a := NewStats()
	a.Seen, a.Upserted = 3, 1
	a.skip(SkipMissingPrice)
	b := NewStats()
	b.Seen = 2
	b.skip(SkipMissingPrice)
	b.skip(SkipNotSports)
	b.missing("league")

	a.Merge(b)
	assert.Equal(t, 5, a.Seen)
	assert.Equal(t, 3, a.SkippedTotal())
	assert.Equal(t, map[string]int{"missing_price": 2, "not_sports": 1}, a.SkipCounts())
	assert.Equal(t, 1, a.MissingFields["league"])
}
