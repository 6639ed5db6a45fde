package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func TestEventsKeepFirstSource(t *testing.T) {
	ctx := context.Background()
	s := New()
	ev := domain.Event{UID: "u1", League: "La Liga", HomeTeam: "Barcelona", AwayTeam: "Real Madrid",
		Kickoff: time.Date(2025, 1, 12, 19, 0, 0, 0, time.UTC), Source: "betfair"}
	require.NoError(t, s.Upsert(ctx, ev))

	ev.Source = "betdex"
	require.NoError(t, s.UpsertBatch(ctx, []domain.Event{ev}))

	got, err := s.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "betfair", got.Source)

	_, err = s.GetByUID(ctx, "u2")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuotesUpsertByKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	q := domain.ExchangeQuote{Venue: "mock", MarketID: "m", SelectionID: "1", EventUID: "u1", Team: "Chelsea",
		BackOdds: domain.Float(1.7)}
	require.NoError(t, s.UpsertExchange(ctx, q))
	q.BackOdds = domain.Float(1.8)
	require.NoError(t, s.UpsertExchange(ctx, q))

	b := domain.BinaryQuote{Venue: "pm", MarketID: "x", EventUID: "u1", Team: "Chelsea", YesPrice: 0.5}
	require.NoError(t, s.UpsertBinary(ctx, b))
	b.YesPrice = 0.56
	require.NoError(t, s.UpsertBinary(ctx, b))
	require.NoError(t, s.UpsertBinary(ctx, domain.BinaryQuote{Venue: "pm", EventUID: "u2", Team: "Arsenal", YesPrice: 0.45}))

	ex, err := s.FindExchangeQuotes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.InDelta(t, 1.8, *ex[0].BackOdds, 1e-12)

	bin, err := s.FindBinaryQuotes(ctx, "")
	require.NoError(t, err)
	require.Len(t, bin, 2)
	assert.Equal(t, "u1", bin[0].EventUID)
	assert.InDelta(t, 0.56, bin[0].YesPrice, 1e-12)
}

func TestAppendBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendBatch(ctx, []domain.Opportunity{
		{ID: "a", EventUID: "u1", WorstCase: 0.17, DetectedAt: t0},
		{ID: "b", EventUID: "u1", WorstCase: 0.89, DetectedAt: t0},
		{ID: "c", EventUID: "u2", WorstCase: 0.30, DetectedAt: t0.Add(-48 * time.Hour)},
	}))

	err := s.AppendBatch(ctx, []domain.Opportunity{{ID: "d"}, {ID: "a"}})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	recent, err := s.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, "a", recent[1].ID)

	byEvent, err := s.ListByEvent(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, "b", byEvent[0].ID)

	cutoff := t0.Add(-24 * time.Hour)
	old, err := s.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, old, 1)

	n, err := s.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The deleted ID may be reused.
	require.NoError(t, s.AppendBatch(ctx, []domain.Opportunity{{ID: "c", DetectedAt: t0}}))
}

func TestAuditLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := NewAuditLog()
	require.NoError(t, a.Log(ctx, "first", nil))
	require.NoError(t, a.Log(ctx, "second", map[string]any{"n": 1}))

	entries, err := a.List(ctx, domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Event)
}
