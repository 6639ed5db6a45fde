package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/identity"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// sportsCategories are the category values treated as sports.
var sportsCategories = []string{"sport", "soccer", "football"}

// PredictionIngestor stores "will <team> win" binary quotes that resolve to a
// known canonical event.
type PredictionIngestor struct {
	resolver *identity.Resolver
	events   domain.EventStore
	quotes   domain.QuoteStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewPredictionIngestor creates a PredictionIngestor.
func NewPredictionIngestor(resolver *identity.Resolver, events domain.EventStore, quotes domain.QuoteStore, logger *slog.Logger) *PredictionIngestor {
	return &PredictionIngestor{
		resolver: resolver,
		events:   events,
		quotes:   quotes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run walks every event of the provider and every market of each event.
// Market fields left empty by the venue are filled from the parent event.
func (in *PredictionIngestor) Run(ctx context.Context, p provider.Provider) (Stats, error) {
	stats := NewStats()

	events, err := p.ListEvents(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: list %s events: %w", p.Name(), err)
	}

	for _, ev := range events {
		markets, err := p.ListMarkets(ctx, ev.ID)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("pipeline: ingest %s markets: %w", p.Name(), ctx.Err())
			}
			stats.skip(SkipOtherError)
			in.logger.WarnContext(ctx, "pipeline: list markets failed",
				slog.String("provider", p.Name()),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, m := range markets {
			stats.Seen++
			reason, err := in.ingestMarket(ctx, p, inherit(m, ev), &stats)
			if err != nil {
				if ctx.Err() != nil {
					return stats, fmt.Errorf("pipeline: ingest %s markets: %w", p.Name(), ctx.Err())
				}
				in.logger.WarnContext(ctx, "pipeline: market failed",
					slog.String("provider", p.Name()),
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
			}
			if reason != "" {
				stats.skip(reason)
				in.logger.DebugContext(ctx, "pipeline: market skipped",
					slog.String("provider", p.Name()),
					slog.String("market_id", m.ID),
					slog.String("question", m.Question),
					slog.String("reason", string(reason)),
				)
				continue
			}
			stats.Upserted++
		}
	}

	in.logger.InfoContext(ctx, "pipeline: prediction quotes ingested",
		slog.String("provider", p.Name()),
		slog.Int("seen", stats.Seen),
		slog.Int("upserted", stats.Upserted),
		slog.Int("skipped", stats.SkippedTotal()),
	)
	return stats, nil
}

// ingestMarket returns a skip reason, or "" once the quote is stored. A
// non-nil error always comes with SkipOtherError.
func (in *PredictionIngestor) ingestMarket(ctx context.Context, p provider.Provider, m provider.Market, stats *Stats) (SkipReason, error) {
	if !isSports(m.Category) {
		return SkipNotSports, nil
	}
	if !isYesNo(m.Outcomes) || !provider.MentionsWin(m.Question) {
		return SkipNotBinary, nil
	}

	rawTeam := m.Team
	if rawTeam == "" {
		rawTeam, _ = provider.TeamFromQuestion(m.Question)
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"team", rawTeam}, {"league", m.League}, {"home", m.Home}, {"away", m.Away}, {"kickoff", m.Kickoff},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		stats.missing(missing...)
		return SkipMissingEventFields, nil
	}

	kickoff, err := identity.ToCanonicalInstant(m.Kickoff)
	if err != nil {
		return SkipBadTimestamp, nil
	}
	id, err := in.resolver.DeriveEventIdentity(m.League, m.Home, m.Away, kickoff)
	if err != nil {
		return aliasReason(err), nil
	}
	team, err := in.resolver.Team(rawTeam)
	if err != nil {
		return aliasReason(err), nil
	}

	ev, err := in.events.GetByUID(ctx, id.UID)
	if errors.Is(err, domain.ErrNotFound) {
		return SkipNoMatchingEvent, nil
	}
	if err != nil {
		return SkipOtherError, fmt.Errorf("get event %s: %w", id.UID, err)
	}
	if !ev.HasTeam(team) {
		return SkipNoMatchingEvent, nil
	}

	yes, no, err := in.prices(ctx, p, m)
	if err != nil {
		return SkipOtherError, err
	}
	if yes == nil || *yes <= 0 || *yes >= 1 {
		return SkipMissingPrice, nil
	}

	q := domain.BinaryQuote{
		Venue:     p.Name(),
		MarketID:  m.ID,
		EventUID:  ev.UID,
		Team:      team,
		Question:  m.Question,
		YesPrice:  *yes,
		NoPrice:   no,
		Liquidity: m.Liquidity,
		UpdatedAt: in.now(),
	}
	if err := in.quotes.UpsertBinary(ctx, q); err != nil {
		return SkipOtherError, fmt.Errorf("upsert quote %s: %w", m.ID, err)
	}
	return "", nil
}

// prices reads YES and NO from the market, falling back to the book when the
// market listing carries no prices.
func (in *PredictionIngestor) prices(ctx context.Context, p provider.Provider, m provider.Market) (yes, no *float64, err error) {
	if y, ok := m.Price("yes"); ok {
		yes = domain.Float(y)
		if n, ok := m.Price("no"); ok {
			no = domain.Float(n)
		}
		return yes, no, nil
	}

	book, err := p.ListBook(ctx, m.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list book %s: %w", m.ID, err)
	}
	for _, r := range book.Runners {
		switch strings.ToLower(strings.TrimSpace(r.Name)) {
		case "yes":
			yes = r.Price
		case "no":
			no = r.Price
		}
	}
	return yes, no, nil
}

// inherit fills empty market fields from the parent event.
func inherit(m provider.Market, ev provider.Event) provider.Market {
	if m.EventID == "" {
		m.EventID = ev.ID
	}
	if m.Category == "" {
		m.Category = ev.Category
	}
	if m.League == "" {
		m.League = ev.League
	}
	if m.Kickoff == "" {
		m.Kickoff = ev.Kickoff
	}
	if m.Home == "" || m.Away == "" {
		home, away := ev.Home, ev.Away
		if home == "" || away == "" {
			home, away, _ = provider.SplitMatchName(ev.Name)
		}
		if m.Home == "" {
			m.Home = home
		}
		if m.Away == "" {
			m.Away = away
		}
	}
	return m
}

func isSports(category string) bool {
	c := strings.ToLower(category)
	for _, s := range sportsCategories {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}

func isYesNo(outcomes []string) bool {
	if len(outcomes) != 2 {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(outcomes[0]))
	b := strings.ToLower(strings.TrimSpace(outcomes[1]))
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}
