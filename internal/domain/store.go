package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// EventStore persists canonical events keyed by UID.
type EventStore interface {
	Upsert(ctx context.Context, event Event) error
	UpsertBatch(ctx context.Context, events []Event) error
	GetByUID(ctx context.Context, uid string) (Event, error)
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}

// QuoteStore persists the latest quote per key. Binary quotes are keyed by
// venue, event UID and team; exchange quotes by venue, market and selection.
// Upserts overwrite price and timestamp, never duplicate.
type QuoteStore interface {
	UpsertBinary(ctx context.Context, q BinaryQuote) error
	UpsertExchange(ctx context.Context, q ExchangeQuote) error
	// FindBinaryQuotes returns prediction-market quotes, restricted to one
	// event when eventUID is non-empty.
	FindBinaryQuotes(ctx context.Context, eventUID string) ([]BinaryQuote, error)
	// FindExchangeQuotes returns exchange quotes, restricted to one event
	// when eventUID is non-empty.
	FindExchangeQuotes(ctx context.Context, eventUID string) ([]ExchangeQuote, error)
}

// OpportunityStore persists the append-only evaluation history.
type OpportunityStore interface {
	// AppendBatch stores every opportunity or none of them.
	AppendBatch(ctx context.Context, opps []Opportunity) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Opportunity, error)
	ListByEvent(ctx context.Context, eventUID string, limit int) ([]Opportunity, error)
	ListBefore(ctx context.Context, before time.Time) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
