// Package polymarket adapts the Polymarket Gamma API to provider.Provider.
package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/platform/apiclient"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// GammaConfig configures the Gamma client.
type GammaConfig struct {
	BaseURL  string // e.g. "https://gamma-api.polymarket.com"
	PageSize int
	MaxPages int
	TagSlug  string // restricts event listing, e.g. "soccer"
	Timeout  time.Duration
}

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	api    *apiclient.Client
	cfg    GammaConfig
	logger *slog.Logger

	mu     sync.RWMutex
	events map[string]APIEvent // last ListEvents result, by event ID
}

var _ provider.Provider = (*GammaClient)(nil)

// NewGammaClient creates a new Gamma API client. httpClient may be nil.
func NewGammaClient(cfg GammaConfig, httpClient *http.Client, logger *slog.Logger) *GammaClient {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GammaClient{
		api:    apiclient.New(cfg.BaseURL, httpClient, cfg.Timeout),
		cfg:    cfg,
		logger: logger,
		events: make(map[string]APIEvent),
	}
}

// Name implements provider.Provider.
func (g *GammaClient) Name() string { return domain.VenuePolymarket }

// Platform implements provider.Provider.
func (g *GammaClient) Platform() domain.Platform { return domain.PlatformPrediction }

// ListEvents returns every open event under the configured tag. The nested
// markets are kept so ListMarkets can answer without another request.
func (g *GammaClient) ListEvents(ctx context.Context) ([]provider.Event, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	if g.cfg.TagSlug != "" {
		params.Set("tag_slug", g.cfg.TagSlug)
	}

	apiEvents, err := paginate(ctx, g, "/events", params, func(e APIEvent) string { return e.ID })
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list events: %w", err)
	}

	byID := make(map[string]APIEvent, len(apiEvents))
	out := make([]provider.Event, 0, len(apiEvents))
	for _, e := range apiEvents {
		byID[e.ID] = e
		out = append(out, e.toProvider())
	}

	g.mu.Lock()
	g.events = byID
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "polymarket/gamma: fetched events", slog.Int("count", len(out)))
	return out, nil
}

// ListMarkets returns the markets of one event. An empty eventID lists every
// open market instead.
func (g *GammaClient) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	if eventID == "" {
		return g.listAllMarkets(ctx)
	}

	g.mu.RLock()
	ev, ok := g.events[eventID]
	g.mu.RUnlock()
	if !ok {
		if err := g.api.GetJSON(ctx, "/events/"+url.PathEscape(eventID), nil, &ev); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: get event %s: %w", eventID, err)
		}
	}

	out := make([]provider.Market, 0, len(ev.Markets))
	for i := range ev.Markets {
		out = append(out, ev.Markets[i].toProvider(&ev))
	}
	return out, nil
}

func (g *GammaClient) listAllMarkets(ctx context.Context) ([]provider.Market, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")

	apiMarkets, err := paginate(ctx, g, "/markets", params, func(m APIMarket) string { return m.ID })
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}
	out := make([]provider.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		out = append(out, apiMarkets[i].toProvider(nil))
	}
	g.logger.InfoContext(ctx, "polymarket/gamma: fetched markets", slog.Int("count", len(out)))
	return out, nil
}

// ListBook returns one runner per outcome priced as a probability.
func (g *GammaClient) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	var m APIMarket
	if err := g.api.GetJSON(ctx, "/markets/"+url.PathEscape(marketID), nil, &m); err != nil {
		return provider.Book{}, fmt.Errorf("polymarket/gamma: get market %s: %w", marketID, err)
	}
	pm := m.toProvider(nil)

	book := provider.Book{MarketID: m.ID, UpdatedAt: parseTime(m.UpdatedAt)}
	for i, outcome := range pm.Outcomes {
		r := provider.Runner{SelectionID: outcome, Name: outcome}
		if len(pm.Prices) == len(pm.Outcomes) {
			r.Price = domain.Float(pm.Prices[i])
		}
		book.Runners = append(book.Runners, r)
	}
	return book, nil
}

// paginate walks limit/offset pages until a short page, deduplicating by ID.
// A full page that adds nothing new means the API ignored the offset, so the
// walk stops there instead of looping.
func paginate[T any](ctx context.Context, g *GammaClient, path string, base url.Values, id func(T) string) ([]T, error) {
	seen := make(map[string]struct{})
	var out []T

	for page := 0; page < g.cfg.MaxPages; page++ {
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		params.Set("limit", strconv.Itoa(g.cfg.PageSize))
		params.Set("offset", strconv.Itoa(page*g.cfg.PageSize))

		var batch []T
		if err := g.api.GetJSON(ctx, path, params, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		added := 0
		for _, item := range batch {
			key := id(item)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			out = append(out, item)
			added++
		}

		if len(batch) < g.cfg.PageSize {
			break
		}
		if page > 0 && added == 0 {
			g.logger.WarnContext(ctx, "polymarket/gamma: offset ignored, stopping pagination",
				slog.String("path", path),
				slog.Int("page", page),
			)
			break
		}
	}
	return out, nil
}

func (e APIEvent) toProvider() provider.Event {
	out := provider.Event{
		ID:       e.ID,
		Name:     e.Title,
		League:   e.League,
		Kickoff:  firstNonEmpty(e.StartDate, e.EndDate),
		Category: e.category(),
	}
	out.Home, out.Away, _ = provider.SplitMatchName(e.Title)
	return out
}

// category reports "Sports" for events tagged with a sport even when the
// category field itself is empty.
func (e APIEvent) category() string {
	if e.Category != "" {
		return e.Category
	}
	for _, t := range e.Tags {
		switch strings.ToLower(t.Slug) {
		case "sports", "soccer", "football", "epl", "la-liga":
			return "Sports"
		}
	}
	return ""
}

// toProvider flattens a market, filling event-level fields from parent or,
// failing that, from the first nested event.
func (m APIMarket) toProvider(parent *APIEvent) provider.Market {
	ev := parent
	if ev == nil && len(m.Events) > 0 {
		ev = &m.Events[0]
	}

	out := provider.Market{
		ID:       m.ID,
		Question: m.Question,
		Category: m.Category,
		League:   m.League,
		Team:     firstNonEmpty(m.Team, m.TeamName),
		Home:     firstNonEmpty(m.HomeTeam, m.HomeTeamCamel),
		Away:     firstNonEmpty(m.AwayTeam, m.AwayTeamCamel),
		Kickoff:  m.GameStartTime,
		Outcomes: []string(m.Outcomes),
	}
	if out.Team == "" {
		out.Team, _ = provider.TeamFromQuestion(m.Question)
	}

	if ev != nil {
		out.EventID = ev.ID
		if out.Category == "" {
			out.Category = ev.category()
		}
		if out.League == "" {
			out.League = ev.League
		}
		if out.Kickoff == "" {
			out.Kickoff = firstNonEmpty(ev.StartDate, ev.EndDate)
		}
		if out.Home == "" || out.Away == "" {
			if h, a, ok := provider.SplitMatchName(ev.Title); ok {
				out.Home, out.Away = h, a
			}
		}
	}

	if len(m.OutcomePrices) == len(m.Outcomes) {
		prices := make([]float64, 0, len(m.OutcomePrices))
		for _, s := range m.OutcomePrices {
			p, err := strconv.ParseFloat(s, 64)
			if err != nil {
				prices = nil
				break
			}
			prices = append(prices, p)
		}
		out.Prices = prices
	}

	switch {
	case m.LiquidityNum > 0:
		out.Liquidity = domain.Float(m.LiquidityNum)
	case m.Liquidity > 0:
		out.Liquidity = domain.Float(float64(m.Liquidity))
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
