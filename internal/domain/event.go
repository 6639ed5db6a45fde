package domain

import "time"

// Event is a canonical football match. UID is the deterministic identity
// derived from the canonical league, teams and kickoff; it is the join key
// between venues and never changes once written.
type Event struct {
	UID           string
	League        string
	HomeTeam      string
	AwayTeam      string
	Kickoff       time.Time
	Source        string // venue that first reported the event
	SourceEventID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasTeam reports whether team is one of the two sides of the event.
func (e Event) HasTeam(team string) bool {
	return team == e.HomeTeam || team == e.AwayTeam
}
