// Package identity turns heterogeneous provider spellings and kickoff times
// into one deterministic event key, so independent venues arrive at the same
// identity for the same match without coordinating.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// EventIdentity is the canonical description of a match and its UID.
type EventIdentity struct {
	UID     string
	League  string
	Home    string
	Away    string
	Kickoff time.Time
}

// BuildEventUID hashes the canonical tuple "league|home|away|kickoff" with
// SHA-256 and returns the lowercase hex digest. Inputs must already be
// canonical.
func BuildEventUID(league, home, away string, kickoff time.Time) string {
	payload := strings.Join([]string{league, home, away, FormatKickoff(kickoff)}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Resolver holds the team and league tables.
type Resolver struct {
	teams   *AliasTable
	leagues *AliasTable
}

// NewResolver returns a Resolver over already validated tables.
func NewResolver(teams, leagues *AliasTable) *Resolver {
	return &Resolver{teams: teams, leagues: leagues}
}

// Team normalizes a team name.
func (r *Resolver) Team(raw string) (string, error) {
	return r.teams.Normalize(raw)
}

// League normalizes a league name.
func (r *Resolver) League(raw string) (string, error) {
	return r.leagues.Normalize(raw)
}

// DeriveEventIdentity normalizes league and both teams, moves kickoff to UTC,
// and derives the event UID. The first unknown alias is returned as an
// *UnknownAliasError.
func (r *Resolver) DeriveEventIdentity(league, home, away string, kickoff time.Time) (EventIdentity, error) {
	l, err := r.leagues.Normalize(league)
	if err != nil {
		return EventIdentity{}, err
	}
	h, err := r.teams.Normalize(home)
	if err != nil {
		return EventIdentity{}, err
	}
	a, err := r.teams.Normalize(away)
	if err != nil {
		return EventIdentity{}, err
	}
	k := Canonical(kickoff)
	return EventIdentity{
		UID:     BuildEventUID(l, h, a, k),
		League:  l,
		Home:    h,
		Away:    a,
		Kickoff: k,
	}, nil
}
