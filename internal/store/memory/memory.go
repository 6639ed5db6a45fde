// Package memory implements the domain stores in process memory. It backs the
// "memory" storage driver and the pipeline tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Store holds events, latest quotes and the opportunity history.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	events   map[string]domain.Event
	binary   map[binaryKey]domain.BinaryQuote
	exchange map[string]domain.ExchangeQuote
	opps     []domain.Opportunity
	oppIDs   map[string]struct{}
}

type binaryKey struct {
	venue, eventUID, team string
}

var (
	_ domain.EventStore       = (*Store)(nil)
	_ domain.QuoteStore       = (*Store)(nil)
	_ domain.OpportunityStore = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		events:   make(map[string]domain.Event),
		binary:   make(map[binaryKey]domain.BinaryQuote),
		exchange: make(map[string]domain.ExchangeQuote),
		oppIDs:   make(map[string]struct{}),
	}
}

// Upsert inserts an event or refreshes its updated_at.
func (s *Store) Upsert(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(e)
	return nil
}

// UpsertBatch upserts every event.
func (s *Store) UpsertBatch(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.upsertLocked(e)
	}
	return nil
}

func (s *Store) upsertLocked(e domain.Event) {
	now := s.now()
	if existing, ok := s.events[e.UID]; ok {
		existing.UpdatedAt = now
		s.events[e.UID] = existing
		return
	}
	e.CreatedAt, e.UpdatedAt = now, now
	s.events[e.UID] = e
}

// GetByUID returns one event or domain.ErrNotFound.
func (s *Store) GetByUID(_ context.Context, uid string) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[uid]
	if !ok {
		return domain.Event{}, fmt.Errorf("memory: get event %s: %w", uid, domain.ErrNotFound)
	}
	return e, nil
}

// List returns events ordered by kickoff.
func (s *Store) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		if opts.Since != nil && e.Kickoff.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.Kickoff.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Kickoff.Equal(out[j].Kickoff) {
			return out[i].Kickoff.Before(out[j].Kickoff)
		}
		return out[i].UID < out[j].UID
	})
	return page(out, opts), nil
}

// UpsertBinary stores the latest prediction-market quote for
// (venue, event, team).
func (s *Store) UpsertBinary(_ context.Context, q domain.BinaryQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binary[binaryKey{q.Venue, q.EventUID, q.Team}] = q
	return nil
}

// UpsertExchange stores the latest exchange quote for venue:market:selection.
func (s *Store) UpsertExchange(_ context.Context, q domain.ExchangeQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchange[q.ID()] = q
	return nil
}

// FindBinaryQuotes returns prediction-market quotes ordered by event, team
// and venue.
func (s *Store) FindBinaryQuotes(_ context.Context, eventUID string) ([]domain.BinaryQuote, error) {
	s.mu.RLock()
	var out []domain.BinaryQuote
	for _, q := range s.binary {
		if eventUID == "" || q.EventUID == eventUID {
			out = append(out, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EventUID != b.EventUID {
			return a.EventUID < b.EventUID
		}
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.Venue < b.Venue
	})
	return out, nil
}

// FindExchangeQuotes returns exchange quotes ordered by event, team and ID.
func (s *Store) FindExchangeQuotes(_ context.Context, eventUID string) ([]domain.ExchangeQuote, error) {
	s.mu.RLock()
	var out []domain.ExchangeQuote
	for _, q := range s.exchange {
		if eventUID == "" || q.EventUID == eventUID {
			out = append(out, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EventUID != b.EventUID {
			return a.EventUID < b.EventUID
		}
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.ID() < b.ID()
	})
	return out, nil
}

// AppendBatch appends every opportunity or, on a duplicate ID, none.
func (s *Store) AppendBatch(_ context.Context, opps []domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(opps))
	for _, o := range opps {
		if _, dup := s.oppIDs[o.ID]; dup {
			return fmt.Errorf("memory: append opportunity %s: %w", o.ID, domain.ErrAlreadyExists)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("memory: append opportunity %s: %w", o.ID, domain.ErrAlreadyExists)
		}
		seen[o.ID] = struct{}{}
	}
	for _, o := range opps {
		s.oppIDs[o.ID] = struct{}{}
		s.opps = append(s.opps, o)
	}
	return nil
}

// ListRecent returns opportunities newest first, best worst case first within
// a detection time.
func (s *Store) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Opportunity, error) {
	out := s.filterOpps(func(o domain.Opportunity) bool {
		if opts.Since != nil && o.DetectedAt.Before(*opts.Since) {
			return false
		}
		if opts.Until != nil && o.DetectedAt.After(*opts.Until) {
			return false
		}
		return true
	})
	sortRecent(out)
	return page(out, opts), nil
}

// ListByEvent returns the history of one event, newest first.
func (s *Store) ListByEvent(_ context.Context, eventUID string, limit int) ([]domain.Opportunity, error) {
	out := s.filterOpps(func(o domain.Opportunity) bool { return o.EventUID == eventUID })
	sortRecent(out)
	return page(out, domain.ListOpts{Limit: limit}), nil
}

// ListBefore returns opportunities detected strictly before the cutoff,
// oldest first.
func (s *Store) ListBefore(_ context.Context, before time.Time) ([]domain.Opportunity, error) {
	out := s.filterOpps(func(o domain.Opportunity) bool { return o.DetectedAt.Before(before) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

// DeleteBefore removes opportunities detected strictly before the cutoff.
func (s *Store) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.opps[:0]
	var n int64
	for _, o := range s.opps {
		if o.DetectedAt.Before(before) {
			delete(s.oppIDs, o.ID)
			n++
			continue
		}
		kept = append(kept, o)
	}
	s.opps = kept
	return n, nil
}

func (s *Store) filterOpps(keep func(domain.Opportunity) bool) []domain.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Opportunity
	for _, o := range s.opps {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func sortRecent(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if !opps[i].DetectedAt.Equal(opps[j].DetectedAt) {
			return opps[i].DetectedAt.After(opps[j].DetectedAt)
		}
		return opps[i].WorstCase > opps[j].WorstCase
	})
}

// AuditLog implements domain.AuditStore in memory. It is separate from Store
// because both interfaces name a List method.
type AuditLog struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries []domain.AuditEntry
}

var _ domain.AuditStore = (*AuditLog)(nil)

// NewAuditLog creates an empty AuditLog.
func NewAuditLog() *AuditLog {
	return &AuditLog{now: func() time.Time { return time.Now().UTC() }}
}

// Log appends an audit entry.
func (a *AuditLog) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{
		ID:        int64(len(a.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: a.now(),
	})
	return nil
}

// List returns audit entries newest first.
func (a *AuditLog) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.RLock()
	var out []domain.AuditEntry
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	a.mu.RUnlock()
	return page(out, opts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
