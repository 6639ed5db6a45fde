// Package evaluator finds hedge-balanced arbitrage between a prediction-market
// binary contract and an exchange selection on the same event and team.
//
// For every matched pair two directions are tried: YES against an exchange
// lay, and NO against an exchange back. Each is solved for the hedge stake
// that makes profit identical in both outcomes; survivors above the profit
// threshold are ranked and appended to the history in one batch.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Stats counts what happened to each direction attempted in one run.
type Stats struct {
	Pairs          int `json:"pairs"`
	Unquoted       int `json:"unquoted"`        // side absent or odds at/below the guard
	Infeasible     int `json:"infeasible"`      // solver denominator not positive
	Unbalanced     int `json:"unbalanced"`      // outcome profits diverged beyond tolerance
	BelowThreshold int `json:"below_threshold"` // balanced but under MinProfit
	Emitted        int `json:"emitted"`
}

// Evaluator runs evaluation passes. A pass is a point-in-time read of the
// quote set; overlapping passes are not supported.
type Evaluator struct {
	cfg    Config
	quotes domain.QuoteStore
	opps   domain.OpportunityStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Evaluator. quotes may be nil when only Evaluate is used.
func New(cfg Config, quotes domain.QuoteStore, opps domain.OpportunityStore, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		quotes: quotes,
		opps:   opps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// EvaluateLatest reads the current quotes of both platforms, matches them and
// evaluates the pairs.
func (e *Evaluator) EvaluateLatest(ctx context.Context) ([]domain.Opportunity, Stats, error) {
	binary, err := e.quotes.FindBinaryQuotes(ctx, "")
	if err != nil {
		return nil, Stats{}, fmt.Errorf("evaluator: read %s quotes: %w", domain.PlatformPrediction, err)
	}
	exchange, err := e.quotes.FindExchangeQuotes(ctx, "")
	if err != nil {
		return nil, Stats{}, fmt.Errorf("evaluator: read %s quotes: %w", domain.PlatformExchange, err)
	}
	return e.Evaluate(ctx, Match(binary, exchange))
}

// Evaluate solves both directions for every pair, keeps hedges whose
// worst case clears MinProfit, and returns them sorted by worst case
// descending. The batch is persisted before it is returned; if persistence
// fails nothing is returned and nothing is kept.
func (e *Evaluator) Evaluate(ctx context.Context, pairs []Pair) ([]domain.Opportunity, Stats, error) {
	var stats Stats
	runID := uuid.NewString()
	detectedAt := e.now()

	var opps []domain.Opportunity
	for _, p := range pairs {
		stats.Pairs++

		if odds, ok := e.quoted(p.Exchange.LayOdds); ok {
			h, feasible := SolveLay(e.cfg, p.Binary.YesPrice, odds)
			if o, keep := e.accept(ctx, p, h, feasible, &stats); keep {
				opps = append(opps, e.opportunity(runID, detectedAt, p, h, o))
			}
		} else {
			stats.Unquoted++
		}

		if odds, ok := e.quoted(p.Exchange.BackOdds); ok {
			h, feasible := SolveBack(e.cfg, p.Binary.No(), odds)
			if o, keep := e.accept(ctx, p, h, feasible, &stats); keep {
				opps = append(opps, e.opportunity(runID, detectedAt, p, h, o))
			}
		} else {
			stats.Unquoted++
		}
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].WorstCase > opps[j].WorstCase
	})

	if len(opps) > 0 {
		if err := e.opps.AppendBatch(ctx, opps); err != nil {
			return nil, stats, fmt.Errorf("evaluator: persist %d opportunities: %w", len(opps), err)
		}
	}
	stats.Emitted = len(opps)

	e.logger.InfoContext(ctx, "evaluator: run complete",
		slog.String("run_id", runID),
		slog.Int("pairs", stats.Pairs),
		slog.Int("emitted", stats.Emitted),
		slog.Int("below_threshold", stats.BelowThreshold),
		slog.Int("infeasible", stats.Infeasible),
		slog.Int("unbalanced", stats.Unbalanced),
	)
	return opps, stats, nil
}

// quoted applies the minimum-odds guard to an optional exchange price.
func (e *Evaluator) quoted(odds *float64) (float64, bool) {
	if odds == nil || *odds <= e.cfg.MinOdds {
		return 0, false
	}
	return *odds, true
}

// accept classifies a solved direction and reports whether it is emitted.
func (e *Evaluator) accept(ctx context.Context, p Pair, h Hedge, feasible bool, stats *Stats) (float64, bool) {
	if !feasible {
		stats.Infeasible++
		return 0, false
	}
	if !e.cfg.balanced(h) {
		stats.Unbalanced++
		e.logger.WarnContext(ctx, "evaluator: hedge did not balance",
			slog.String("event_uid", p.Binary.EventUID),
			slog.String("team", p.Binary.Team),
			slog.String("direction", string(h.Direction)),
			slog.Float64("profit_if_wins", h.ProfitIfWins),
			slog.Float64("profit_if_not_wins", h.ProfitIfNotWins),
		)
		return 0, false
	}
	worst := h.WorstCase()
	if worst < e.cfg.MinProfit {
		stats.BelowThreshold++
		e.logger.DebugContext(ctx, "evaluator: below threshold",
			slog.String("event_uid", p.Binary.EventUID),
			slog.String("team", p.Binary.Team),
			slog.String("direction", string(h.Direction)),
			slog.Float64("worst_case", worst),
		)
		return 0, false
	}
	return worst, true
}

func (e *Evaluator) opportunity(runID string, at time.Time, p Pair, h Hedge, worst float64) domain.Opportunity {
	pmSide, exSide := "YES", "LAY"
	if h.Direction == domain.DirectionNoBack {
		pmSide, exSide = "NO", "BACK"
	}
	return domain.Opportunity{
		ID:               uuid.NewString(),
		RunID:            runID,
		EventUID:         p.Binary.EventUID,
		Team:             p.Binary.Team,
		Direction:        h.Direction,
		PMSide:           pmSide,
		PMPrice:          h.PMPrice,
		PMStake:          h.PMStake,
		ExchangeSide:     exSide,
		ExchangeOdds:     h.ExchangeOdds,
		HedgeStake:       h.HedgeStake,
		ProfitIfWins:     h.ProfitIfWins,
		ProfitIfNotWins:  h.ProfitIfNotWins,
		WorstCase:        worst,
		BinaryMarketID:   p.Binary.MarketID,
		ExchangeMarketID: p.Exchange.MarketID,
		DetectedAt:       at,
	}
}
