// Package provider defines the capability surface every trading venue
// implements. Adapters do their own payload shape handling; callers only see
// the records below.
package provider

import (
	"context"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Provider lists events, the markets of an event and the book of a market.
type Provider interface {
	Name() string
	Platform() domain.Platform
	ListEvents(ctx context.Context) ([]Event, error)
	ListMarkets(ctx context.Context, eventID string) ([]Market, error)
	ListBook(ctx context.Context, marketID string) (Book, error)
}

// Event is a venue's view of a match. Fields hold raw venue spellings; any of
// them may be empty.
type Event struct {
	ID       string
	Name     string // e.g. "Chelsea v Bournemouth"
	Home     string
	Away     string
	League   string
	Kickoff  string // venue timestamp, offset optional
	Category string
}

// Market is a venue market. Exchange markets carry Name and Runners;
// prediction markets carry Question, Outcomes and Prices.
type Market struct {
	ID        string
	EventID   string
	Name      string
	Type      string // venue market type code, e.g. MATCH_ODDS
	Question  string
	Category  string
	League    string
	Team      string
	Home      string
	Away      string
	Kickoff   string
	Outcomes  []string
	Prices    []float64 // parallel to Outcomes, empty when unquoted
	Liquidity *float64
	Runners   []Runner
}

// Price returns the quoted price of the named outcome, matched
// case-insensitively.
func (m Market) Price(outcome string) (float64, bool) {
	if len(m.Prices) != len(m.Outcomes) {
		return 0, false
	}
	for i, o := range m.Outcomes {
		if equalFold(o, outcome) {
			return m.Prices[i], true
		}
	}
	return 0, false
}

// Runner is one selection of a market. Exchange runners carry best back and
// lay odds; prediction-market runners carry Price.
type Runner struct {
	SelectionID string
	Name        string
	BestBack    *float64
	BestLay     *float64
	Price       *float64
}

// Book is the top of book of one market.
type Book struct {
	MarketID  string
	Runners   []Runner
	UpdatedAt time.Time
}
