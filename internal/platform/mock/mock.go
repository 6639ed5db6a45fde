// Package mock serves fixed fixtures through provider.Provider so a full
// cycle can run without network access.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// Provider is an in-memory venue.
type Provider struct {
	name     string
	platform domain.Platform
	events   []provider.Event
	markets  map[string][]provider.Market // by event ID, "" holds every market
	books    map[string]provider.Book
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Provider from explicit fixtures. Markets are indexed by their
// EventID; books by MarketID.
func New(name string, platform domain.Platform, events []provider.Event, markets []provider.Market, books []provider.Book) *Provider {
	p := &Provider{
		name:     name,
		platform: platform,
		events:   events,
		markets:  make(map[string][]provider.Market),
		books:    make(map[string]provider.Book, len(books)),
	}
	for _, m := range markets {
		p.markets[m.EventID] = append(p.markets[m.EventID], m)
		if m.EventID != "" {
			p.markets[""] = append(p.markets[""], m)
		}
	}
	for _, b := range books {
		p.books[b.MarketID] = b
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.name }

// Platform implements provider.Provider.
func (p *Provider) Platform() domain.Platform { return p.platform }

// ListEvents implements provider.Provider.
func (p *Provider) ListEvents(ctx context.Context) ([]provider.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]provider.Event(nil), p.events...), nil
}

// ListMarkets implements provider.Provider. An empty eventID lists every
// market.
func (p *Provider) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]provider.Market(nil), p.markets[eventID]...), nil
}

// ListBook implements provider.Provider.
func (p *Provider) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	if err := ctx.Err(); err != nil {
		return provider.Book{}, err
	}
	b, ok := p.books[marketID]
	if !ok {
		return provider.Book{}, fmt.Errorf("mock: book %s: %w", marketID, domain.ErrNotFound)
	}
	return b, nil
}

var fixtureTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixtureMatch struct {
	id, name, league, kickoff string
	runners                   []provider.Runner
}

func runner(id, name string, back, lay float64) provider.Runner {
	return provider.Runner{SelectionID: id, Name: name, BestBack: domain.Float(back), BestLay: domain.Float(lay)}
}

var exchangeMatches = []fixtureMatch{
	{
		id: "mdx-1001", name: "Chelsea v Bournemouth", league: "English Premier League", kickoff: "2025-01-10T20:00:00Z",
		runners: []provider.Runner{
			runner("1", "Chelsea", 1.70, 1.76),
			runner("2", "Bournemouth", 5.00, 5.20),
			runner("3", "The Draw", 4.00, 4.20),
		},
	},
	{
		id: "mdx-1002", name: "Arsenal v Tottenham", league: "English Premier League", kickoff: "2025-01-11T18:30:00Z",
		runners: []provider.Runner{
			runner("1", "Arsenal", 2.05, 2.12),
			runner("2", "Tottenham", 3.60, 3.75),
			runner("3", "The Draw", 3.50, 3.65),
		},
	},
	{
		id: "mdx-1003", name: "Barcelona v Real Madrid", league: "Spanish La Liga", kickoff: "2025-01-12T19:00:00Z",
		runners: []provider.Runner{
			runner("1", "Barcelona", 1.65, 1.70),
			runner("2", "Real Madrid", 2.80, 2.90),
			runner("3", "The Draw", 4.40, 4.60),
		},
	},
}

// NewExchange returns the exchange fixture: three match-odds markets.
func NewExchange() *Provider {
	var (
		events  []provider.Event
		markets []provider.Market
		books   []provider.Book
	)
	for _, m := range exchangeMatches {
		marketID := m.id + "-mo"
		events = append(events, provider.Event{
			ID: m.id, Name: m.name, League: m.league, Kickoff: m.kickoff, Category: "Sports",
		})
		names := make([]provider.Runner, 0, len(m.runners))
		for _, r := range m.runners {
			names = append(names, provider.Runner{SelectionID: r.SelectionID, Name: r.Name})
		}
		markets = append(markets, provider.Market{
			ID: marketID, EventID: m.id, Name: "Match Odds", Type: "MATCH_ODDS", League: m.league, Kickoff: m.kickoff, Runners: names,
		})
		books = append(books, provider.Book{MarketID: marketID, Runners: m.runners, UpdatedAt: fixtureTime})
	}
	return New(domain.VenueMock+"-exchange", domain.PlatformExchange, events, markets, books)
}

type fixtureContract struct {
	id, question, home, away, league, kickoff string
	yes, liquidity                            float64
}

var predictionContracts = []fixtureContract{
	{"pm-2001", "Will Chelsea win on 2025-01-10?", "Chelsea", "AFC Bournemouth", "EPL", "2025-01-10T20:00:00Z", 0.56, 15000},
	{"pm-2002", "Will Arsenal win on 2025-01-11?", "Arsenal", "Spurs", "EPL", "2025-01-11T18:30:00Z", 0.45, 9000},
	{"pm-2003", "Will Barcelona win on 2025-01-12?", "FC Barcelona", "Real Madrid CF", "La Liga", "2025-01-12T19:00:00Z", 0.40, 22000},
	{"pm-2004", "Will Real Madrid win on 2025-01-12?", "FC Barcelona", "Real Madrid CF", "La Liga", "2025-01-12T19:00:00Z", 0.40, 18000},
}

// NewPrediction returns the prediction-market fixture: four binary
// "will <team> win" contracts spelled the way a prediction market spells them.
func NewPrediction() *Provider {
	var (
		events  []provider.Event
		markets []provider.Market
		books   []provider.Book
	)
	for _, c := range predictionContracts {
		eventID := "ev-" + c.id
		events = append(events, provider.Event{
			ID: eventID, Name: c.home + " vs. " + c.away, Home: c.home, Away: c.away,
			League: c.league, Kickoff: c.kickoff, Category: "Sports",
		})
		markets = append(markets, provider.Market{
			ID:        c.id,
			EventID:   eventID,
			Question:  c.question,
			Category:  "Sports",
			League:    c.league,
			Home:      c.home,
			Away:      c.away,
			Kickoff:   c.kickoff,
			Outcomes:  []string{"Yes", "No"},
			Prices:    []float64{c.yes, 1 - c.yes},
			Liquidity: domain.Float(c.liquidity),
		})
		books = append(books, provider.Book{
			MarketID: c.id,
			Runners: []provider.Runner{
				{SelectionID: "Yes", Name: "Yes", Price: domain.Float(c.yes)},
				{SelectionID: "No", Name: "No", Price: domain.Float(1 - c.yes)},
			},
			UpdatedAt: fixtureTime,
		})
	}
	return New(domain.VenueMock+"-prediction", domain.PlatformPrediction, events, markets, books)
}
