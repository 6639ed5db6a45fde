package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// The UID fixes league, teams and kickoff, so a conflict only refreshes
// updated_at. The first source to report an event stays recorded.
const upsertEventSQL = `
	INSERT INTO events (
		uid, league, home_team, away_team, kickoff,
		source, source_event_id, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	ON CONFLICT (uid) DO UPDATE SET
		updated_at = NOW()`

const eventSelectCols = `uid, league, home_team, away_team, kickoff,
	source, source_event_id, created_at, updated_at`

// Upsert inserts or refreshes a single event.
func (s *EventStore) Upsert(ctx context.Context, e domain.Event) error {
	_, err := s.pool.Exec(ctx, upsertEventSQL,
		e.UID, e.League, e.HomeTeam, e.AwayTeam, e.Kickoff,
		e.Source, e.SourceEventID,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", e.UID, err)
	}
	return nil
}

// UpsertBatch upserts many events in one round trip.
func (s *EventStore) UpsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(upsertEventSQL,
			e.UID, e.League, e.HomeTeam, e.AwayTeam, e.Kickoff,
			e.Source, e.SourceEventID,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert event batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetByUID returns one event or domain.ErrNotFound.
func (s *EventStore) GetByUID(ctx context.Context, uid string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventSelectCols+` FROM events WHERE uid = $1`, uid)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", uid, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", uid, err)
	}
	return e, nil
}

// List returns events ordered by kickoff, filtered on kickoff by Since/Until.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query, args := listQuery(`SELECT `+eventSelectCols+` FROM events`, "kickoff", "kickoff, uid", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.UID, &e.League, &e.HomeTeam, &e.AwayTeam, &e.Kickoff,
		&e.Source, &e.SourceEventID, &e.CreatedAt, &e.UpdatedAt,
	)
	e.Kickoff = e.Kickoff.UTC()
	return e, err
}
