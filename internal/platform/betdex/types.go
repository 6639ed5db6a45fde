package betdex

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// envelope accepts both a bare array and {"data": [...]}.
type envelope[T any] []T

func (e *envelope[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Data []T `json:"data"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		*e = wrapped.Data
		return nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*e = items
	return nil
}

// flexID decodes an identifier given as string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type apiEvent struct {
	ID          flexID `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	League      string `json:"league"`
	Competition string `json:"competition"`
	StartTime   string `json:"startTime"`
	Start       string `json:"start"`
	Category    string `json:"category"`
	Sport       string `json:"sport"`
}

type apiSelection struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type apiMarket struct {
	ID         flexID         `json:"id"`
	EventID    flexID         `json:"eventId"`
	Name       string         `json:"name"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	MarketType string         `json:"marketType"`
	Selections []apiSelection `json:"selections"`
	Outcomes   []apiSelection `json:"outcomes"`
}

// level is one price level, either {"price": x} or a bare number.
type level struct {
	Price float64
}

func (l *level) UnmarshalJSON(b []byte) error {
	var obj struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		p, err := strconv.ParseFloat(obj.Price.String(), 64)
		if err != nil {
			return err
		}
		l.Price = p
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	p, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return err
	}
	l.Price = p
	return nil
}

type apiBookEntry struct {
	SelectionID     flexID  `json:"selectionId"`
	OutcomeID       flexID  `json:"outcomeId"`
	Name            string  `json:"name"`
	AvailableToBack []level `json:"availableToBack"`
	AvailableToLay  []level `json:"availableToLay"`
	Back            *level  `json:"back"`
	Lay             *level  `json:"lay"`
}

type apiBook struct {
	MarketID   flexID         `json:"marketId"`
	UpdatedAt  string         `json:"updatedAt"`
	Selections []apiBookEntry `json:"selections"`
	Runners    []apiBookEntry `json:"runners"`
}
