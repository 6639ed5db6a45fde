package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id::text, run_id::text, event_uid, team, direction,
	pm_side, pm_price, pm_stake, exchange_side, exchange_odds, hedge_stake,
	profit_if_wins, profit_if_not_wins, worst_case,
	binary_market_id, exchange_market_id, detected_at`

// AppendBatch inserts every opportunity inside one transaction.
func (s *OpportunityStore) AppendBatch(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO opportunities (
			id, run_id, event_uid, team, direction,
			pm_side, pm_price, pm_stake, exchange_side, exchange_odds, hedge_stake,
			profit_if_wins, profit_if_not_wins, worst_case,
			binary_market_id, exchange_market_id, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin opportunity batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(query,
			o.ID, o.RunID, o.EventUID, o.Team, string(o.Direction),
			o.PMSide, o.PMPrice, o.PMStake, o.ExchangeSide, o.ExchangeOdds, o.HedgeStake,
			o.ProfitIfWins, o.ProfitIfNotWins, o.WorstCase,
			o.BinaryMarketID, o.ExchangeMarketID, o.DetectedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range opps {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: append opportunity batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close opportunity batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit opportunity batch: %w", err)
	}
	return nil
}

// ListRecent returns opportunities newest first, best worst case first within
// a run.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query, args := listQuery(`SELECT `+oppSelectCols+` FROM opportunities`, "detected_at", "detected_at DESC, worst_case DESC", opts)
	return s.query(ctx, "list recent opportunities", query, args...)
}

// ListByEvent returns the history of one event, newest first.
func (s *OpportunityStore) ListByEvent(ctx context.Context, eventUID string, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities
		WHERE event_uid = $1 ORDER BY detected_at DESC, worst_case DESC`
	args := []any{eventUID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.query(ctx, "list opportunities for event "+eventUID, query, args...)
}

// ListBefore returns every opportunity detected strictly before the cutoff,
// oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities
		WHERE detected_at < $1 ORDER BY detected_at, id`
	return s.query(ctx, "list opportunities before cutoff", query, before)
}

// DeleteBefore removes opportunities detected strictly before the cutoff.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) query(ctx context.Context, what, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", what, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		var direction string
		if err := rows.Scan(
			&o.ID, &o.RunID, &o.EventUID, &o.Team, &direction,
			&o.PMSide, &o.PMPrice, &o.PMStake, &o.ExchangeSide, &o.ExchangeOdds, &o.HedgeStake,
			&o.ProfitIfWins, &o.ProfitIfNotWins, &o.WorstCase,
			&o.BinaryMarketID, &o.ExchangeMarketID, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		o.Direction = domain.Direction(direction)
		o.DetectedAt = o.DetectedAt.UTC()
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", what, err)
	}
	return opps, nil
}
