package pipeline

import (
	"errors"
	"sort"

	"github.com/alanyoungcy/arbengine/internal/identity"
)

// SkipReason says why an ingested record was dropped.
type SkipReason string

const (
	SkipNotSports          SkipReason = "not_sports"
	SkipNotBinary          SkipReason = "not_binary"
	SkipMissingEventFields SkipReason = "missing_event_fields"
	SkipNoMatchingEvent    SkipReason = "no_matching_event"
	SkipUnknownTeam        SkipReason = "unknown_team"
	SkipUnknownLeague      SkipReason = "unknown_league"
	SkipBadTimestamp       SkipReason = "bad_timestamp"
	SkipNonTeamSelection   SkipReason = "non_team_selection"
	SkipMissingPrice       SkipReason = "missing_price"
	SkipOtherError         SkipReason = "other_error"
)

// Stats counts one ingest stage. Each run returns its own value; nothing is
// shared between runs.
type Stats struct {
	Seen          int                `json:"seen"`
	Upserted      int                `json:"upserted"`
	Skipped       map[SkipReason]int `json:"skipped"`
	MissingFields map[string]int     `json:"missing_fields,omitempty"`
}

// NewStats returns empty Stats with initialised maps.
func NewStats() Stats {
	return Stats{Skipped: make(map[SkipReason]int), MissingFields: make(map[string]int)}
}

func (s *Stats) skip(r SkipReason) {
	if s.Skipped == nil {
		s.Skipped = make(map[SkipReason]int)
	}
	s.Skipped[r]++
}

func (s *Stats) missing(fields ...string) {
	if s.MissingFields == nil {
		s.MissingFields = make(map[string]int)
	}
	for _, f := range fields {
		s.MissingFields[f]++
	}
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.Seen += o.Seen
	s.Upserted += o.Upserted
	for r, n := range o.Skipped {
		if s.Skipped == nil {
			s.Skipped = make(map[SkipReason]int)
		}
		s.Skipped[r] += n
	}
	if len(o.MissingFields) > 0 && s.MissingFields == nil {
		s.MissingFields = make(map[string]int)
	}
	for f, n := range o.MissingFields {
		s.MissingFields[f] += n
	}
}

// SkippedTotal sums every skip reason.
func (s Stats) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// SkipCounts returns Skipped keyed by plain strings, for metrics and logs.
func (s Stats) SkipCounts() map[string]int {
	out := make(map[string]int, len(s.Skipped))
	for r, n := range s.Skipped {
		out[string(r)] = n
	}
	return out
}

// SkipReasons returns the reasons present, sorted.
func (s Stats) SkipReasons() []SkipReason {
	out := make([]SkipReason, 0, len(s.Skipped))
	for r := range s.Skipped {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// aliasReason maps an identity error to its skip reason.
func aliasReason(err error) SkipReason {
	var unknown *identity.UnknownAliasError
	switch {
	case errors.As(err, &unknown) && unknown.Dimension == identity.DimensionLeague:
		return SkipUnknownLeague
	case errors.As(err, &unknown):
		return SkipUnknownTeam
	case errors.Is(err, identity.ErrUnparsableTimestamp):
		return SkipBadTimestamp
	default:
		return SkipOtherError
	}
}
