package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/identity"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// EventIngestor turns exchange events into canonical events. The exchange is
// the source of truth for which matches exist; prediction markets are only
// kept when they resolve to one of these.
type EventIngestor struct {
	resolver *identity.Resolver
	events   domain.EventStore
	logger   *slog.Logger
}

// NewEventIngestor creates an EventIngestor.
func NewEventIngestor(resolver *identity.Resolver, events domain.EventStore, logger *slog.Logger) *EventIngestor {
	return &EventIngestor{resolver: resolver, events: events, logger: logger}
}

// Run lists the provider's events, resolves each to a canonical identity and
// upserts them in one batch. Records that cannot be resolved are skipped and
// counted. The returned events carry the venue's own ID in SourceEventID.
func (in *EventIngestor) Run(ctx context.Context, p provider.Provider) ([]domain.Event, Stats, error) {
	stats := NewStats()

	raw, err := p.ListEvents(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("pipeline: list %s events: %w", p.Name(), err)
	}

	events := make([]domain.Event, 0, len(raw))
	byUID := make(map[string]struct{}, len(raw))
	for _, e := range raw {
		stats.Seen++

		ev, reason := in.resolve(p.Name(), e, &stats)
		if reason != "" {
			stats.skip(reason)
			in.logger.DebugContext(ctx, "pipeline: event skipped",
				slog.String("provider", p.Name()),
				slog.String("event_id", e.ID),
				slog.String("name", e.Name),
				slog.String("reason", string(reason)),
			)
			continue
		}
		// Two venue events resolving to one UID keep the first.
		if _, dup := byUID[ev.UID]; dup {
			continue
		}
		byUID[ev.UID] = struct{}{}
		events = append(events, ev)
	}

	if err := in.events.UpsertBatch(ctx, events); err != nil {
		return nil, stats, fmt.Errorf("pipeline: upsert %d events: %w", len(events), err)
	}
	stats.Upserted = len(events)

	in.logger.InfoContext(ctx, "pipeline: events ingested",
		slog.String("provider", p.Name()),
		slog.Int("seen", stats.Seen),
		slog.Int("upserted", stats.Upserted),
		slog.Int("skipped", stats.SkippedTotal()),
	)
	return events, stats, nil
}

func (in *EventIngestor) resolve(source string, e provider.Event, stats *Stats) (domain.Event, SkipReason) {
	home, away := strings.TrimSpace(e.Home), strings.TrimSpace(e.Away)
	if home == "" || away == "" {
		if h, a, ok := provider.SplitMatchName(e.Name); ok {
			home, away = h, a
		}
	}

	var missing []string
	if e.League == "" {
		missing = append(missing, "league")
	}
	if home == "" {
		missing = append(missing, "home")
	}
	if away == "" {
		missing = append(missing, "away")
	}
	if e.Kickoff == "" {
		missing = append(missing, "kickoff")
	}
	if len(missing) > 0 {
		stats.missing(missing...)
		return domain.Event{}, SkipMissingEventFields
	}

	kickoff, err := identity.ToCanonicalInstant(e.Kickoff)
	if err != nil {
		return domain.Event{}, SkipBadTimestamp
	}
	id, err := in.resolver.DeriveEventIdentity(e.League, home, away, kickoff)
	if err != nil {
		return domain.Event{}, aliasReason(err)
	}

	return domain.Event{
		UID:           id.UID,
		League:        id.League,
		HomeTeam:      id.Home,
		AwayTeam:      id.Away,
		Kickoff:       id.Kickoff,
		Source:        source,
		SourceEventID: e.ID,
	}, ""
}
