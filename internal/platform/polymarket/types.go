package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexList unmarshals a JSON array or a string holding a JSON-encoded array,
// e.g. "[\"Yes\",\"No\"]". Numeric items are kept in their text form.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*f = nil
			return nil
		}
		data = []byte(s)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flexList: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			out = append(out, str)
			continue
		}
		out = append(out, strings.TrimSpace(string(item)))
	}
	*f = out
	return nil
}

// flexFloat unmarshals a JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %w", err)
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is an event tag.
type APITag struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Category  string      `json:"category"`
	League    string      `json:"league"`
	Tags      []APITag    `json:"tags"`
	Active    flexBool    `json:"active"`
	Closed    bool        `json:"closed"`
	Markets   []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Sports metadata arrives under several spellings depending on the market
// template, so every known variant is decoded.
type APIMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Slug          string     `json:"slug"`
	Active        flexBool   `json:"active"`
	Closed        bool       `json:"closed"`
	Outcomes      flexList   `json:"outcomes"`
	OutcomePrices flexList   `json:"outcomePrices"`
	Liquidity     flexFloat  `json:"liquidity"`
	LiquidityNum  float64    `json:"liquidityNum"`
	Category      string     `json:"category"`
	League        string     `json:"league"`
	Team          string     `json:"team"`
	TeamName      string     `json:"team_name"`
	HomeTeam      string     `json:"home_team"`
	HomeTeamCamel string     `json:"homeTeam"`
	AwayTeam      string     `json:"away_team"`
	AwayTeamCamel string     `json:"awayTeam"`
	GameStartTime string     `json:"gameStartTime"`
	UpdatedAt     string     `json:"updatedAt"`
	Events        []APIEvent `json:"events"`
}
