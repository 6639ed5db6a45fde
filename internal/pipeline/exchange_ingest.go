package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/identity"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// matchOddsNames identify the 1X2 market by name; matchOddsTypes by the
// venue's market type code.
var (
	matchOddsNames = []string{"match odds", "full time result", "match result", "1x2"}
	matchOddsTypes = []string{"match_odds", "full_time_result"}
)

// ExchangeIngestor stores the top of book of each canonical event's match
// odds market.
type ExchangeIngestor struct {
	resolver    *identity.Resolver
	quotes      domain.QuoteStore
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewExchangeIngestor creates an ExchangeIngestor fetching up to concurrency
// events at once.
func NewExchangeIngestor(resolver *identity.Resolver, quotes domain.QuoteStore, concurrency int, logger *slog.Logger) *ExchangeIngestor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &ExchangeIngestor{
		resolver:    resolver,
		quotes:      quotes,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run fetches and upserts quotes for every event. A failing event is logged
// and counted as other_error; only cancellation aborts the run.
func (in *ExchangeIngestor) Run(ctx context.Context, p provider.Provider, events []domain.Event) (Stats, error) {
	var (
		mu    sync.Mutex
		total = NewStats()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, ev := range events {
		g.Go(func() error {
			stats, err := in.ingestEvent(gctx, p, ev)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.skip(SkipOtherError)
				in.logger.WarnContext(gctx, "pipeline: exchange event failed",
					slog.String("provider", p.Name()),
					slog.String("event_uid", ev.UID),
					slog.String("source_event_id", ev.SourceEventID),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			total.Merge(stats)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, fmt.Errorf("pipeline: ingest %s quotes: %w", p.Name(), err)
	}

	in.logger.InfoContext(ctx, "pipeline: exchange quotes ingested",
		slog.String("provider", p.Name()),
		slog.Int("events", len(events)),
		slog.Int("seen", total.Seen),
		slog.Int("upserted", total.Upserted),
		slog.Int("skipped", total.SkippedTotal()),
	)
	return total, nil
}

func (in *ExchangeIngestor) ingestEvent(ctx context.Context, p provider.Provider, ev domain.Event) (Stats, error) {
	stats := NewStats()

	markets, err := p.ListMarkets(ctx, ev.SourceEventID)
	if err != nil {
		return stats, fmt.Errorf("list markets: %w", err)
	}
	market, ok := pickMatchOdds(markets)
	if !ok {
		return stats, fmt.Errorf("event has no markets: %w", domain.ErrNotFound)
	}

	book, err := p.ListBook(ctx, market.ID)
	if err != nil {
		return stats, fmt.Errorf("list book %s: %w", market.ID, err)
	}
	updated := book.UpdatedAt
	if updated.IsZero() {
		updated = in.now()
	}

	names := make(map[string]string, len(market.Runners))
	for _, r := range market.Runners {
		names[r.SelectionID] = r.Name
	}

	for _, r := range book.Runners {
		stats.Seen++

		name := r.Name
		if n, ok := names[r.SelectionID]; ok && n != "" {
			name = n
		}
		team, reason := in.selectionTeam(name, ev)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		if r.BestBack == nil && r.BestLay == nil {
			stats.skip(SkipMissingPrice)
			continue
		}

		q := domain.ExchangeQuote{
			Venue:       p.Name(),
			MarketID:    market.ID,
			SelectionID: r.SelectionID,
			EventUID:    ev.UID,
			Team:        team,
			BackOdds:    r.BestBack,
			LayOdds:     r.BestLay,
			UpdatedAt:   updated,
		}
		if err := in.quotes.UpsertExchange(ctx, q); err != nil {
			return stats, fmt.Errorf("upsert quote %s: %w", q.ID(), err)
		}
		stats.Upserted++
	}
	return stats, nil
}

// selectionTeam resolves a runner to one of the event's two teams. The draw
// and teams from another match are non-team selections; names missing from
// the alias table are unknown teams.
func (in *ExchangeIngestor) selectionTeam(name string, ev domain.Event) (string, SkipReason) {
	if strings.TrimSpace(name) == "" || provider.IsDraw(name) {
		return "", SkipNonTeamSelection
	}
	team, err := in.resolver.Team(name)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownAlias) {
			return "", SkipUnknownTeam
		}
		return "", SkipOtherError
	}
	if !ev.HasTeam(team) {
		return "", SkipNonTeamSelection
	}
	return team, ""
}

// pickMatchOdds prefers the first market whose name mentions match odds or
// whose type code is a match-odds type, and falls back to the first market.
func pickMatchOdds(markets []provider.Market) (provider.Market, bool) {
	if len(markets) == 0 {
		return provider.Market{}, false
	}
	for _, m := range markets {
		if isMatchOdds(m) {
			return m, true
		}
	}
	return markets[0], true
}

func isMatchOdds(m provider.Market) bool {
	name := strings.ToLower(m.Name)
	for _, want := range matchOddsNames {
		if strings.Contains(name, want) {
			return true
		}
	}
	typ := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m.Type)), " ", "_")
	return slices.Contains(matchOddsTypes, typ)
}
