//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

const chelseaUID = "006dbc3e14a52ffda742c58e5c31a48027090b21674d18ca51701800f2ef2188"

func seedEvent(t *testing.T, ctx context.Context, events *EventStore) domain.Event {
	t.Helper()
	ev := domain.Event{
		UID:           chelseaUID,
		League:        "Premier League",
		HomeTeam:      "Chelsea",
		AwayTeam:      "Bournemouth",
		Kickoff:       time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC),
		Source:        domain.VenueBetfair,
		SourceEventID: "33001",
	}
	require.NoError(t, events.Upsert(ctx, ev))
	return ev
}

func TestEventStore(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	events := NewEventStore(client.Pool())

	ev := seedEvent(t, ctx, events)

	// A second source reporting the same match keeps the first source.
	again := ev
	again.Source = domain.VenueBetdex
	require.NoError(t, events.UpsertBatch(ctx, []domain.Event{again}))

	got, err := events.GetByUID(ctx, ev.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.VenueBetfair, got.Source)
	assert.True(t, got.Kickoff.Equal(ev.Kickoff))

	_, err = events.GetByUID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	list, err := events.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestQuoteStoreUpsertsLatest(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, ctx, NewEventStore(client.Pool()))
	quotes := NewQuoteStore(client.Pool())

	t0 := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)
	bq := domain.BinaryQuote{
		Venue: domain.VenuePolymarket, MarketID: "pm-2001", EventUID: chelseaUID,
		Team: "Chelsea", YesPrice: 0.55, UpdatedAt: t0,
	}
	require.NoError(t, quotes.UpsertBinary(ctx, bq))
	bq.YesPrice = 0.56
	bq.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, quotes.UpsertBinary(ctx, bq))

	eq := domain.ExchangeQuote{
		Venue: domain.VenueBetfair, MarketID: "1.2345", SelectionID: "55190",
		EventUID: chelseaUID, Team: "Chelsea",
		BackOdds: domain.Float(1.70), LayOdds: domain.Float(1.76), UpdatedAt: t0,
	}
	require.NoError(t, quotes.UpsertExchange(ctx, eq))
	eq.LayOdds = nil
	require.NoError(t, quotes.UpsertExchange(ctx, eq))

	bin, err := quotes.FindBinaryQuotes(ctx, chelseaUID)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	assert.InDelta(t, 0.56, bin[0].YesPrice, 1e-12)
	assert.Nil(t, bin[0].NoPrice)

	ex, err := quotes.FindExchangeQuotes(ctx, "")
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.Nil(t, ex[0].LayOdds)
	assert.InDelta(t, 1.70, *ex[0].BackOdds, 1e-12)
}

func opportunity(runID string, worst float64, at time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID: uuid.NewString(), RunID: runID, EventUID: chelseaUID, Team: "Chelsea",
		Direction: domain.DirectionNoBack, PMSide: "NO", PMPrice: 0.6, PMStake: 5,
		ExchangeSide: "BACK", ExchangeOdds: 2.8, HedgeStake: 1.82,
		ProfitIfWins: worst, ProfitIfNotWins: worst, WorstCase: worst,
		BinaryMarketID: "pm-2004", ExchangeMarketID: "mdx-1003-mo", DetectedAt: at,
	}
}

func TestOpportunityStoreBatchIsAtomic(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	opps := NewOpportunityStore(client.Pool())

	run := uuid.NewString()
	old := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, opps.AppendBatch(ctx, []domain.Opportunity{
		opportunity(run, 0.17, recent),
		opportunity(run, 0.89, recent),
		opportunity(uuid.NewString(), 0.30, old),
	}))

	// A duplicate ID fails the whole batch.
	dup := opportunity(run, 1.0, recent)
	err := opps.AppendBatch(ctx, []domain.Opportunity{opportunity(run, 2.0, recent), dup, dup})
	require.Error(t, err)

	list, err := opps.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.InDelta(t, 0.89, list[0].WorstCase, 1e-12)
	assert.Equal(t, domain.DirectionNoBack, list[0].Direction)

	byEvent, err := opps.ListByEvent(ctx, chelseaUID, 1)
	require.NoError(t, err)
	assert.Len(t, byEvent, 1)

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before, err := opps.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, before, 1)

	n, err := opps.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuditStore(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()
	audit := NewAuditStore(client.Pool())

	require.NoError(t, audit.Log(ctx, "cycle_complete", map[string]any{"emitted": 2}))
	entries, err := audit.List(ctx, domain.ListOpts{Limit: 5})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cycle_complete", entries[0].Event)
	assert.EqualValues(t, 2, entries[0].Detail["emitted"])
}
