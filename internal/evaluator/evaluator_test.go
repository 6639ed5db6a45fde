package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

type fakeOpportunityStore struct {
	batches [][]domain.Opportunity
	err     error
}

func (f *fakeOpportunityStore) AppendBatch(_ context.Context, opps []domain.Opportunity) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]domain.Opportunity(nil), opps...))
	return nil
}

func (f *fakeOpportunityStore) ListRecent(context.Context, domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOpportunityStore) ListByEvent(context.Context, string, int) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOpportunityStore) ListBefore(context.Context, time.Time) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOpportunityStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeQuoteStore struct {
	binary   []domain.BinaryQuote
	exchange []domain.ExchangeQuote
}

func (f *fakeQuoteStore) UpsertBinary(context.Context, domain.BinaryQuote) error     { return nil }
func (f *fakeQuoteStore) UpsertExchange(context.Context, domain.ExchangeQuote) error { return nil }

func (f *fakeQuoteStore) FindBinaryQuotes(context.Context, string) ([]domain.BinaryQuote, error) {
	return f.binary, nil
}

func (f *fakeQuoteStore) FindExchangeQuotes(context.Context, string) ([]domain.ExchangeQuote, error) {
	return f.exchange, nil
}

func newTestEvaluator(cfg Config, opps domain.OpportunityStore) *Evaluator {
	return New(cfg, nil, opps, slog.New(slog.DiscardHandler))
}

func pair(uid, team string, yes float64, back, lay *float64) Pair {
	return Pair{
		Binary: domain.BinaryQuote{
			Venue: domain.VenuePolymarket, MarketID: "pm-" + team,
			EventUID: uid, Team: team, YesPrice: yes,
		},
		Exchange: domain.ExchangeQuote{
			Venue: domain.VenueBetdex, MarketID: "mkt-" + uid, SelectionID: team,
			EventUID: uid, Team: team, BackOdds: back, LayOdds: lay,
		},
	}
}

func TestScenarioNoArbitrage(t *testing.T) {
	store := &fakeOpportunityStore{}
	e := newTestEvaluator(DefaultConfig(), store)

	opps, stats, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-1", "Chelsea", 0.56, nil, domain.Float(1.76)),
	})
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Equal(t, 1, stats.BelowThreshold)
	assert.Equal(t, 1, stats.Unquoted)
	assert.Empty(t, store.batches, "empty batch is not persisted")
}

func TestScenarioMarginalKilledByFrictions(t *testing.T) {
	e := newTestEvaluator(DefaultConfig(), &fakeOpportunityStore{})

	opps, stats, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-2", "Arsenal", 0.45, nil, domain.Float(2.12)),
	})
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Equal(t, 1, stats.BelowThreshold)

	h, ok := SolveLay(DefaultConfig(), 0.45, 2.12)
	require.True(t, ok)
	assert.Less(t, h.WorstCase(), 0.10)
	assert.InDelta(t, 0.0606, h.WorstCase(), 1e-4)
}

func TestScenarioCleanArbitrage(t *testing.T) {
	store := &fakeOpportunityStore{}
	e := newTestEvaluator(DefaultConfig(), store)

	opps, stats, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-3", "Real Madrid", 0.40, domain.Float(2.80), nil),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, 1, stats.Emitted)

	o := opps[0]
	assert.Equal(t, domain.DirectionNoBack, o.Direction)
	assert.Equal(t, "NO", o.PMSide)
	assert.Equal(t, "BACK", o.ExchangeSide)
	assert.InDelta(t, 0.60, o.PMPrice, 1e-12)
	assert.InDelta(t, 2.80, o.ExchangeOdds, 1e-12)
	assert.InDelta(t, 5.0, o.PMStake, 1e-12)
	assert.InDelta(t, 1.82083, o.HedgeStake, 1e-5)
	assert.InDelta(t, o.ProfitIfWins, o.ProfitIfNotWins, 1e-9)
	assert.InDelta(t, 0.16917, o.WorstCase, 1e-5)
	assert.GreaterOrEqual(t, o.WorstCase, 0.10)
	assert.NotEmpty(t, o.ID)
	assert.NotEmpty(t, o.RunID)

	require.Len(t, store.batches, 1)
	assert.Equal(t, opps, store.batches[0])
}

func TestThresholdAndRanking(t *testing.T) {
	fixtures := []Pair{
		pair("evt-1", "Chelsea", 0.56, domain.Float(1.70), domain.Float(1.76)),
		pair("evt-2", "Arsenal", 0.45, domain.Float(2.05), domain.Float(2.12)),
		pair("evt-3", "Real Madrid", 0.40, domain.Float(2.80), domain.Float(2.90)),
		pair("evt-3", "Barcelona", 0.40, domain.Float(1.65), domain.Float(1.70)),
	}

	e := newTestEvaluator(DefaultConfig(), &fakeOpportunityStore{})
	opps, stats, err := e.Evaluate(context.Background(), fixtures)
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.Equal(t, 4, stats.Pairs)
	assert.Equal(t, 6, stats.BelowThreshold)

	assert.Equal(t, "Barcelona", opps[0].Team)
	assert.Equal(t, domain.DirectionYesLay, opps[0].Direction)
	assert.InDelta(t, 0.89419, opps[0].WorstCase, 1e-5)
	assert.Equal(t, "Real Madrid", opps[1].Team)
	assert.Equal(t, domain.DirectionNoBack, opps[1].Direction)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].WorstCase, opps[i].WorstCase)
	}
	assert.Equal(t, opps[0].RunID, opps[1].RunID)

	cfg := DefaultConfig()
	cfg.MinProfit = 0.5
	e = newTestEvaluator(cfg, &fakeOpportunityStore{})
	opps, _, err = e.Evaluate(context.Background(), fixtures)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	for _, o := range opps {
		assert.GreaterOrEqual(t, o.WorstCase, cfg.MinProfit)
	}
}

func TestMinOddsGuard(t *testing.T) {
	e := newTestEvaluator(DefaultConfig(), &fakeOpportunityStore{})

	_, stats, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-9", "Chelsea", 0.40, domain.Float(1.01), domain.Float(1.005)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unquoted)
	assert.Zero(t, stats.Infeasible+stats.BelowThreshold+stats.Emitted)
}

func TestInfeasibleDenominator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDenominator = 10
	e := newTestEvaluator(cfg, &fakeOpportunityStore{})

	_, stats, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-3", "Real Madrid", 0.40, domain.Float(2.80), domain.Float(2.90)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Infeasible)
}

func TestPersistenceFailureAbortsBatch(t *testing.T) {
	boom := errors.New("connection refused")
	store := &fakeOpportunityStore{err: boom}
	e := newTestEvaluator(DefaultConfig(), store)

	opps, _, err := e.Evaluate(context.Background(), []Pair{
		pair("evt-3", "Real Madrid", 0.40, domain.Float(2.80), nil),
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, opps)
	assert.Empty(t, store.batches)
}

func TestEvaluateLatestMatchesStoredQuotes(t *testing.T) {
	now := time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC)
	quotes := &fakeQuoteStore{
		binary: []domain.BinaryQuote{
			{MarketID: "pm-2004", EventUID: "evt-3", Team: "Real Madrid", YesPrice: 0.40},
			{MarketID: "pm-9999", EventUID: "evt-4", Team: "Everton", YesPrice: 0.30},
		},
		exchange: []domain.ExchangeQuote{
			{MarketID: "m-old", SelectionID: "rm", EventUID: "evt-3", Team: "Real Madrid",
				BackOdds: domain.Float(2.10), UpdatedAt: now.Add(-time.Hour)},
			{MarketID: "m-new", SelectionID: "rm", EventUID: "evt-3", Team: "Real Madrid",
				BackOdds: domain.Float(2.80), UpdatedAt: now},
		},
	}
	store := &fakeOpportunityStore{}
	e := New(DefaultConfig(), quotes, store, slog.New(slog.DiscardHandler))

	opps, stats, err := e.EvaluateLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pairs)
	require.Len(t, opps, 1)
	assert.Equal(t, "m-new", opps[0].ExchangeMarketID)
	assert.Equal(t, "pm-2004", opps[0].BinaryMarketID)
}
