// Package betfair adapts the Betfair Exchange API-NG (JSON-RPC) to
// provider.Provider.
package betfair

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
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

// Config holds Betfair credentials and endpoints.
type Config struct {
	AppKey      string
	Username    string
	Password    string
	CertFile    string
	KeyFile     string
	IdentityURL string // certificate login endpoint
	APIURL      string // JSON-RPC endpoint
	EventTypeID string // "1" is soccer
	Timeout     time.Duration
}

// Client is a Betfair session. It logs in lazily and once more when the
// session expires.
type Client struct {
	cfg      Config
	identity *apiclient.Client
	api      *apiclient.Client
	logger   *slog.Logger

	mu    sync.Mutex
	token string
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client. When httpClient is nil one is built with the
// configured client certificate, which the login endpoint requires.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.EventTypeID == "" {
		cfg.EventTypeID = "1"
	}
	if httpClient == nil {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("betfair: load client certificate: %w", err)
		}
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			},
		}
	}

	identity := apiclient.New(cfg.IdentityURL, httpClient, cfg.Timeout)
	identity.SetHeader("X-Application", cfg.AppKey)
	api := apiclient.New(cfg.APIURL, httpClient, cfg.Timeout)
	api.SetHeader("X-Application", cfg.AppKey)

	return &Client{cfg: cfg, identity: identity, api: api, logger: logger}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return domain.VenueBetfair }

// Platform implements provider.Provider.
func (c *Client) Platform() domain.Platform { return domain.PlatformExchange }

// ListEvents lists soccer competitions and the events in each. The
// competition name becomes the event's league.
func (c *Client) ListEvents(ctx context.Context) ([]provider.Event, error) {
	var comps []competitionResult
	err := c.call(ctx, "listCompetitions", map[string]any{
		"filter": marketFilter{EventTypeIDs: []string{c.cfg.EventTypeID}},
	}, &comps)
	if err != nil {
		return nil, fmt.Errorf("betfair: list competitions: %w", err)
	}

	var out []provider.Event
	for _, comp := range comps {
		if comp.Competition.ID == "" {
			continue
		}
		var events []eventResult
		err := c.call(ctx, "listEvents", map[string]any{
			"filter": marketFilter{CompetitionIDs: []string{comp.Competition.ID}},
		}, &events)
		if err != nil {
			return nil, fmt.Errorf("betfair: list events for competition %s: %w", comp.Competition.ID, err)
		}
		for _, e := range events {
			ev := provider.Event{
				ID:       e.Event.ID,
				Name:     e.Event.Name,
				League:   comp.Competition.Name,
				Kickoff:  e.Event.OpenDate,
				Category: "Sports",
			}
			ev.Home, ev.Away, _ = provider.SplitMatchName(e.Event.Name)
			out = append(out, ev)
		}
	}

	c.logger.InfoContext(ctx, "betfair: fetched events",
		slog.Int("competitions", len(comps)),
		slog.Int("events", len(out)),
	)
	return out, nil
}

// ListMarkets returns the match-odds markets of an event with runner names.
func (c *Client) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	var cats []marketCatalogue
	err := c.call(ctx, "listMarketCatalogue", map[string]any{
		"filter": marketFilter{
			EventIDs:        []string{eventID},
			MarketTypeCodes: []string{"MATCH_ODDS"},
		},
		"maxResults":       10,
		"marketProjection": []string{"EVENT", "COMPETITION", "MARKET_DESCRIPTION", "RUNNER_DESCRIPTION", "MARKET_START_TIME"},
	}, &cats)
	if err != nil {
		return nil, fmt.Errorf("betfair: list market catalogue for event %s: %w", eventID, err)
	}

	out := make([]provider.Market, 0, len(cats))
	for _, cat := range cats {
		m := provider.Market{
			ID:       cat.MarketID,
			EventID:  eventID,
			Name:     cat.MarketName,
			Kickoff:  cat.MarketStartTime,
			Category: "Sports",
		}
		if cat.Description != nil {
			m.Type = cat.Description.MarketType
		}
		if cat.Competition != nil {
			m.League = cat.Competition.Name
		}
		if cat.Event != nil {
			m.Home, m.Away, _ = provider.SplitMatchName(cat.Event.Name)
			if m.Kickoff == "" {
				m.Kickoff = cat.Event.OpenDate
			}
		}
		for _, r := range cat.Runners {
			m.Runners = append(m.Runners, provider.Runner{
				SelectionID: strconv.FormatInt(r.SelectionID, 10),
				Name:        r.RunnerName,
			})
		}
		out = append(out, m)
	}
	return out, nil
}

// ListBook returns the best back and lay price per runner. Runner names are
// not part of the book; callers join them from ListMarkets by selection ID.
func (c *Client) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	var books []marketBook
	err := c.call(ctx, "listMarketBook", map[string]any{
		"marketIds": []string{marketID},
		"priceProjection": map[string]any{
			"priceData": []string{"EX_BEST_OFFERS"},
		},
	}, &books)
	if err != nil {
		return provider.Book{}, fmt.Errorf("betfair: list market book %s: %w", marketID, err)
	}
	if len(books) == 0 {
		return provider.Book{}, fmt.Errorf("betfair: market book %s: %w", marketID, domain.ErrNotFound)
	}

	b := books[0]
	book := provider.Book{MarketID: b.MarketID, UpdatedAt: time.Now().UTC()}
	if t, err := time.Parse(time.RFC3339Nano, b.LastMatchTime); err == nil {
		book.UpdatedAt = t.UTC()
	}
	for _, r := range b.Runners {
		runner := provider.Runner{SelectionID: strconv.FormatInt(r.SelectionID, 10)}
		if len(r.Ex.AvailableToBack) > 0 {
			runner.BestBack = domain.Float(r.Ex.AvailableToBack[0].Price)
		}
		if len(r.Ex.AvailableToLay) > 0 {
			runner.BestLay = domain.Float(r.Ex.AvailableToLay[0].Price)
		}
		book.Runners = append(book.Runners, runner)
	}
	return book, nil
}

// errSessionExpired marks API-NG errors that a fresh login fixes.
var errSessionExpired = errors.New("betfair session expired")

// call runs one SportsAPING method, logging in first if needed and retrying
// once after an expired session.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	err := c.callOnce(ctx, method, params, out)
	if errors.Is(err, errSessionExpired) {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		err = c.callOnce(ctx, method, params, out)
	}
	return err
}

func (c *Client) callOnce(ctx context.Context, method string, params, out any) error {
	token, err := c.session(ctx)
	if err != nil {
		return err
	}

	req := []rpcRequest{{
		JSONRPC: "2.0",
		Method:  "SportsAPING/v1.0/" + method,
		Params:  params,
		ID:      1,
	}}
	var resp []rpcResponse
	if err := c.api.PostJSON(ctx, "", req, &resp, apiclient.WithHeader("X-Authentication", token)); err != nil {
		return err
	}
	if len(resp) == 0 {
		return fmt.Errorf("%s: empty json-rpc response", method)
	}
	if e := resp[0].Error; e != nil {
		detail := string(e.Data)
		if strings.Contains(detail, "INVALID_SESSION_INFORMATION") || strings.Contains(detail, "NO_SESSION") {
			return fmt.Errorf("%s: %w", method, errSessionExpired)
		}
		return fmt.Errorf("%s: json-rpc error %d: %s %s", method, e.Code, e.Message, detail)
	}
	if err := json.Unmarshal(resp[0].Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// session returns the current token, logging in when there is none.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	var resp loginResponse
	if err := c.identity.PostForm(ctx, "", form, &resp); err != nil {
		return "", fmt.Errorf("betfair: login: %w", err)
	}
	if resp.LoginStatus != "SUCCESS" || resp.SessionToken == "" {
		return "", fmt.Errorf("betfair: login: status %s: %w", resp.LoginStatus, domain.ErrUnauthorized)
	}
	c.token = resp.SessionToken
	c.logger.InfoContext(ctx, "betfair: login successful")
	return c.token, nil
}
