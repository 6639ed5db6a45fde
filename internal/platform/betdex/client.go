// Package betdex adapts the BetDEX exchange REST API to provider.Provider.
package betdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/platform/apiclient"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// Config configures the BetDEX client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a BetDEX REST client.
type Client struct {
	api    *apiclient.Client
	logger *slog.Logger
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	api := apiclient.New(cfg.BaseURL, httpClient, cfg.Timeout)
	if cfg.APIKey != "" {
		api.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{api: api, logger: logger}
}

// Name implements provider.Provider.
func (c *Client) Name() string { return domain.VenueBetdex }

// Platform implements provider.Provider.
func (c *Client) Platform() domain.Platform { return domain.PlatformExchange }

// ListEvents returns the listed events.
func (c *Client) ListEvents(ctx context.Context) ([]provider.Event, error) {
	var raw envelope[apiEvent]
	if err := c.api.GetJSON(ctx, "/events", nil, &raw); err != nil {
		return nil, fmt.Errorf("betdex: list events: %w", err)
	}

	out := make([]provider.Event, 0, len(raw))
	for _, e := range raw {
		ev := provider.Event{
			ID:       string(e.ID),
			Name:     first(e.Name, e.Title),
			Home:     e.HomeTeam,
			Away:     e.AwayTeam,
			League:   first(e.League, e.Competition),
			Kickoff:  first(e.StartTime, e.Start),
			Category: first(e.Category, e.Sport),
		}
		if ev.Home == "" || ev.Away == "" {
			ev.Home, ev.Away, _ = provider.SplitMatchName(ev.Name)
		}
		out = append(out, ev)
	}
	c.logger.InfoContext(ctx, "betdex: fetched events", slog.Int("count", len(out)))
	return out, nil
}

// ListMarkets returns the markets of one event.
func (c *Client) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	var raw envelope[apiMarket]
	if err := c.api.GetJSON(ctx, "/events/"+url.PathEscape(eventID)+"/markets", nil, &raw); err != nil {
		return nil, fmt.Errorf("betdex: list markets for event %s: %w", eventID, err)
	}

	out := make([]provider.Market, 0, len(raw))
	for _, m := range raw {
		pm := provider.Market{
			ID:      string(m.ID),
			EventID: first(string(m.EventID), eventID),
			Name:    first(m.Name, m.Title, m.Type),
			Type:    first(m.MarketType, m.Type),
		}
		sels := m.Selections
		if len(sels) == 0 {
			sels = m.Outcomes
		}
		for _, s := range sels {
			pm.Runners = append(pm.Runners, provider.Runner{
				SelectionID: string(s.ID),
				Name:        first(s.Name, s.Title),
			})
		}
		out = append(out, pm)
	}
	return out, nil
}

// ListBook returns the best back and lay per selection. Ladders take
// precedence over the single-price back/lay fields.
func (c *Client) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	var raw json.RawMessage
	if err := c.api.GetJSON(ctx, "/markets/"+url.PathEscape(marketID)+"/book", nil, &raw); err != nil {
		return provider.Book{}, fmt.Errorf("betdex: get book %s: %w", marketID, err)
	}
	var b apiBook
	if err := decodeBook(raw, &b); err != nil {
		return provider.Book{}, fmt.Errorf("betdex: decode book %s: %w", marketID, err)
	}

	book := provider.Book{MarketID: first(string(b.MarketID), marketID), UpdatedAt: time.Now().UTC()}
	if t, err := time.Parse(time.RFC3339Nano, b.UpdatedAt); err == nil {
		book.UpdatedAt = t.UTC()
	}
	entries := b.Selections
	if len(entries) == 0 {
		entries = b.Runners
	}
	for _, e := range entries {
		r := provider.Runner{
			SelectionID: first(string(e.SelectionID), string(e.OutcomeID)),
			Name:        e.Name,
		}
		switch {
		case len(e.AvailableToBack) > 0:
			r.BestBack = domain.Float(e.AvailableToBack[0].Price)
		case e.Back != nil:
			r.BestBack = domain.Float(e.Back.Price)
		}
		switch {
		case len(e.AvailableToLay) > 0:
			r.BestLay = domain.Float(e.AvailableToLay[0].Price)
		case e.Lay != nil:
			r.BestLay = domain.Float(e.Lay.Price)
		}
		book.Runners = append(book.Runners, r)
	}
	return book, nil
}

// decodeBook accepts the book either bare or under "data".
func decodeBook(raw json.RawMessage, out *apiBook) error {
	raw = bytes.TrimSpace(raw)
	var wrapped struct {
		Data *apiBook `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		*out = *wrapped.Data
		return nil
	}
	return json.Unmarshal(raw, out)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
