// Package kalshi adapts the Kalshi trade API to provider.Provider. Each game
// event carries one yes/no market per outcome, so Kalshi slots in next to
// Polymarket as a prediction-market venue.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/platform/apiclient"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

// Config holds the API root, optional signing credentials and the game
// series to scan.
type Config struct {
	BaseURL string // e.g. "https://api.elections.kalshi.com/trade-api/v2"
	// APIKeyID and PrivateKeyFile enable signed requests. Market data is
	// public, so both may be empty.
	APIKeyID       string
	PrivateKeyFile string
	// Series maps a series ticker to the league its events belong to, e.g.
	// "KXEPLGAME" -> "EPL".
	Series   map[string]string
	PageSize int
	MaxPages int
	Timeout  time.Duration
}

// Client is a Kalshi REST client.
type Client struct {
	api        *apiclient.Client
	cfg        Config
	basePath   string
	privateKey *rsa.PrivateKey
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	events map[string]apiEvent // last ListEvents result, by event ticker
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("kalshi: parse base url: %w", err)
	}

	c := &Client{
		api:      apiclient.New(cfg.BaseURL, httpClient, cfg.Timeout),
		cfg:      cfg,
		basePath: u.Path,
		logger:   logger,
		now:      time.Now,
		events:   make(map[string]apiEvent),
	}
	if cfg.PrivateKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("kalshi: read private key: %w", err)
		}
		if err := c.SetRSAPrivateKey(pemBytes); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetRSAPrivateKey loads a PEM-encoded RSA key (PKCS#8 or PKCS#1) used to
// sign every request.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return errors.New("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return domain.VenueKalshi }

// Platform implements provider.Provider.
func (c *Client) Platform() domain.Platform { return domain.PlatformPrediction }

// ListEvents returns the open events of every configured series with their
// markets nested, so ListMarkets can answer without another request.
func (c *Client) ListEvents(ctx context.Context) ([]provider.Event, error) {
	byTicker := make(map[string]apiEvent)
	var out []provider.Event

	for series, league := range c.cfg.Series {
		events, err := c.listSeriesEvents(ctx, series)
		if err != nil {
			return nil, fmt.Errorf("kalshi: list events for series %s: %w", series, err)
		}
		for _, e := range events {
			e.league = league
			byTicker[e.EventTicker] = e
			out = append(out, e.toProvider())
		}
	}

	c.mu.Lock()
	c.events = byTicker
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "kalshi: fetched events",
		slog.Int("series", len(c.cfg.Series)),
		slog.Int("events", len(out)),
	)
	return out, nil
}

// listSeriesEvents walks the cursor pages of one series.
func (c *Client) listSeriesEvents(ctx context.Context, series string) ([]apiEvent, error) {
	var out []apiEvent
	cursor := ""
	for range c.cfg.MaxPages {
		params := url.Values{}
		params.Set("series_ticker", series)
		params.Set("status", "open")
		params.Set("with_nested_markets", "true")
		params.Set("limit", strconv.Itoa(c.cfg.PageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page eventsPage
		if err := c.get(ctx, "/events", params, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Events...)
		if page.Cursor == "" || page.Cursor == cursor || len(page.Events) == 0 {
			return out, nil
		}
		cursor = page.Cursor
	}
	c.logger.WarnContext(ctx, "kalshi: page limit reached",
		slog.String("series", series),
		slog.Int("max_pages", c.cfg.MaxPages),
	)
	return out, nil
}

// ListMarkets returns the markets of one event.
func (c *Client) ListMarkets(ctx context.Context, eventID string) ([]provider.Market, error) {
	c.mu.RLock()
	ev, ok := c.events[eventID]
	c.mu.RUnlock()
	if !ok {
		var resp eventResponse
		if err := c.get(ctx, "/events/"+url.PathEscape(eventID), url.Values{"with_nested_markets": {"true"}}, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: get event %s: %w", eventID, err)
		}
		ev = resp.Event
		if len(ev.Markets) == 0 {
			ev.Markets = resp.Markets
		}
		ev.league = c.cfg.Series[ev.SeriesTicker]
	}

	out := make([]provider.Market, 0, len(ev.Markets))
	for _, m := range ev.Markets {
		if m.Status != "" && m.Status != "open" && m.Status != "active" {
			continue
		}
		// The tie market has no team to hedge against.
		if provider.IsDraw(m.YesSubTitle) {
			continue
		}
		out = append(out, m.toProvider(&ev))
	}
	return out, nil
}

// ListBook derives both outcome prices from the order book. Kalshi only lists
// bids, so the YES ask is 100 minus the best NO bid and vice versa.
func (c *Client) ListBook(ctx context.Context, marketID string) (provider.Book, error) {
	var resp orderbookResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(marketID)+"/orderbook", nil, &resp); err != nil {
		return provider.Book{}, fmt.Errorf("kalshi: get orderbook %s: %w", marketID, err)
	}

	book := provider.Book{MarketID: marketID, UpdatedAt: c.now().UTC()}
	yes := provider.Runner{SelectionID: "yes", Name: "Yes"}
	no := provider.Runner{SelectionID: "no", Name: "No"}
	if bid, ok := bestBid(resp.Orderbook.No); ok {
		yes.Price = domain.Float(float64(100-bid) / 100)
	}
	if bid, ok := bestBid(resp.Orderbook.Yes); ok {
		no.Price = domain.Float(float64(100-bid) / 100)
	}
	book.Runners = []provider.Runner{yes, no}
	return book, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	var opts []apiclient.RequestOption
	if c.privateKey != nil {
		opts = append(opts, c.sign(path))
	}
	return c.api.GetJSON(ctx, path, query, out, opts...)
}

// sign returns a request option adding the RSA-PSS-SHA256 signature over
// timestamp + method + full path (query excluded).
func (c *Client) sign(path string) apiclient.RequestOption {
	return func(req *http.Request) {
		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		message := ts + req.Method + c.basePath + path

		hash := sha256.Sum256([]byte(message))
		signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
		if err != nil {
			c.logger.Error("kalshi: sign request failed", slog.String("error", err.Error()))
			return
		}

		req.Header.Set("KALSHI-ACCESS-KEY", c.cfg.APIKeyID)
		req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
		req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	}
}
