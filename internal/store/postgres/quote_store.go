package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL. Both tables hold
// only the latest quote per key.
type QuoteStore struct {
	pool *pgxpool.Pool
}

var _ domain.QuoteStore = (*QuoteStore)(nil)

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// UpsertBinary writes the latest prediction-market quote for
// (venue, event, team).
func (s *QuoteStore) UpsertBinary(ctx context.Context, q domain.BinaryQuote) error {
	const query = `
		INSERT INTO binary_quotes (
			venue, event_uid, team, market_id, question,
			yes_price, no_price, liquidity, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (venue, event_uid, team) DO UPDATE SET
			market_id  = EXCLUDED.market_id,
			question   = EXCLUDED.question,
			yes_price  = EXCLUDED.yes_price,
			no_price   = EXCLUDED.no_price,
			liquidity  = EXCLUDED.liquidity,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		q.Venue, q.EventUID, q.Team, q.MarketID, q.Question,
		q.YesPrice, q.NoPrice, q.Liquidity, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert binary quote %s/%s: %w", q.EventUID, q.Team, err)
	}
	return nil
}

// UpsertExchange writes the latest exchange quote for venue:market:selection.
func (s *QuoteStore) UpsertExchange(ctx context.Context, q domain.ExchangeQuote) error {
	const query = `
		INSERT INTO exchange_quotes (
			id, venue, market_id, selection_id, event_uid, team,
			back_odds, lay_odds, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			event_uid  = EXCLUDED.event_uid,
			team       = EXCLUDED.team,
			back_odds  = EXCLUDED.back_odds,
			lay_odds   = EXCLUDED.lay_odds,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		q.ID(), q.Venue, q.MarketID, q.SelectionID, q.EventUID, q.Team,
		q.BackOdds, q.LayOdds, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert exchange quote %s: %w", q.ID(), err)
	}
	return nil
}

// FindBinaryQuotes returns prediction-market quotes, optionally for one event.
func (s *QuoteStore) FindBinaryQuotes(ctx context.Context, eventUID string) ([]domain.BinaryQuote, error) {
	query := `SELECT venue, market_id, event_uid, team, question,
		yes_price, no_price, liquidity, updated_at
		FROM binary_quotes`
	args := []any{}
	if eventUID != "" {
		query += " WHERE event_uid = $1"
		args = append(args, eventUID)
	}
	query += " ORDER BY event_uid, team, venue"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find binary quotes: %w", err)
	}
	defer rows.Close()

	var out []domain.BinaryQuote
	for rows.Next() {
		var q domain.BinaryQuote
		if err := rows.Scan(
			&q.Venue, &q.MarketID, &q.EventUID, &q.Team, &q.Question,
			&q.YesPrice, &q.NoPrice, &q.Liquidity, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan binary quote: %w", err)
		}
		q.UpdatedAt = q.UpdatedAt.UTC()
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find binary quotes rows: %w", err)
	}
	return out, nil
}

// FindExchangeQuotes returns exchange quotes, optionally for one event.
func (s *QuoteStore) FindExchangeQuotes(ctx context.Context, eventUID string) ([]domain.ExchangeQuote, error) {
	query := `SELECT venue, market_id, selection_id, event_uid, team,
		back_odds, lay_odds, updated_at
		FROM exchange_quotes`
	args := []any{}
	if eventUID != "" {
		query += " WHERE event_uid = $1"
		args = append(args, eventUID)
	}
	query += " ORDER BY event_uid, team, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: find exchange quotes: %w", err)
	}
	defer rows.Close()

	var out []domain.ExchangeQuote
	for rows.Next() {
		var q domain.ExchangeQuote
		if err := rows.Scan(
			&q.Venue, &q.MarketID, &q.SelectionID, &q.EventUID, &q.Team,
			&q.BackOdds, &q.LayOdds, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan exchange quote: %w", err)
		}
		q.UpdatedAt = q.UpdatedAt.UTC()
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find exchange quotes rows: %w", err)
	}
	return out, nil
}
