package kalshi

import (
	"strconv"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/provider"
)

type eventsPage struct {
	Events []apiEvent `json:"events"`
	Cursor string     `json:"cursor"`
}

type eventResponse struct {
	Event   apiEvent    `json:"event"`
	Markets []apiMarket `json:"markets"`
}

type apiEvent struct {
	EventTicker  string      `json:"event_ticker"`
	SeriesTicker string      `json:"series_ticker"`
	Title        string      `json:"title"`
	SubTitle     string      `json:"sub_title"`
	Category     string      `json:"category"`
	StrikeDate   string      `json:"strike_date"`
	Markets      []apiMarket `json:"markets"`

	league string
}

// apiMarket is one outcome of a game: YES pays if YesSubTitle happens.
// Prices are integer cents; the *_dollars fields are the newer decimal
// strings and win when present.
type apiMarket struct {
	Ticker             string `json:"ticker"`
	EventTicker        string `json:"event_ticker"`
	Title              string `json:"title"`
	YesSubTitle        string `json:"yes_sub_title"`
	Status             string `json:"status"`
	YesAsk             int64  `json:"yes_ask"`
	NoAsk              int64  `json:"no_ask"`
	YesAskDollars      string `json:"yes_ask_dollars"`
	NoAskDollars       string `json:"no_ask_dollars"`
	Liquidity          int64  `json:"liquidity"`
	OccurrenceDatetime string `json:"occurrence_datetime"`
}

type orderbookResponse struct {
	Orderbook struct {
		// Each level is [price_cents, quantity].
		Yes [][2]int64 `json:"yes"`
		No  [][2]int64 `json:"no"`
	} `json:"orderbook"`
}

func (e apiEvent) toProvider() provider.Event {
	ev := provider.Event{
		ID:       e.EventTicker,
		Name:     e.Title,
		League:   e.league,
		Kickoff:  e.kickoff(),
		Category: sportsCategory(e.Category),
	}
	ev.Home, ev.Away, _ = provider.SplitMatchName(e.Title)
	return ev
}

// kickoff prefers the scheduled occurrence of the first market.
func (e apiEvent) kickoff() string {
	for _, m := range e.Markets {
		if m.OccurrenceDatetime != "" {
			return m.OccurrenceDatetime
		}
	}
	return e.StrikeDate
}

func (m apiMarket) toProvider(ev *apiEvent) provider.Market {
	out := provider.Market{
		ID:       m.Ticker,
		EventID:  m.EventTicker,
		Question: m.Title,
		Team:     strings.TrimSpace(m.YesSubTitle),
		Kickoff:  m.OccurrenceDatetime,
		Outcomes: []string{"Yes", "No"},
	}
	if ev != nil {
		out.Category = sportsCategory(ev.Category)
		out.League = ev.league
		if out.Kickoff == "" {
			out.Kickoff = ev.kickoff()
		}
		out.Home, out.Away, _ = provider.SplitMatchName(ev.Title)
	}
	if out.Team != "" && !provider.MentionsWin(out.Question) {
		out.Question = "Will " + out.Team + " win?"
	}

	yes, yesOK := price(m.YesAskDollars, m.YesAsk)
	no, noOK := price(m.NoAskDollars, m.NoAsk)
	if yesOK && noOK {
		out.Prices = []float64{yes, no}
	}
	if m.Liquidity > 0 {
		out.Liquidity = domain.Float(float64(m.Liquidity) / 100)
	}
	return out
}

// price reads a probability from the decimal string or, failing that, the
// cents value. Zero means no offer.
func price(dollars string, cents int64) (float64, bool) {
	if dollars != "" {
		if p, err := strconv.ParseFloat(dollars, 64); err == nil && p > 0 {
			return p, true
		}
	}
	if cents > 0 && cents < 100 {
		return float64(cents) / 100, true
	}
	return 0, false
}

func bestBid(levels [][2]int64) (int64, bool) {
	best, ok := int64(0), false
	for _, l := range levels {
		if l[1] > 0 && l[0] > best {
			best, ok = l[0], true
		}
	}
	return best, ok
}

// sportsCategory keeps Kalshi's category but guarantees the ingest filter
// recognises game series, which Kalshi files under "Sports".
func sportsCategory(c string) string {
	if c == "" {
		return "Sports"
	}
	return c
}
