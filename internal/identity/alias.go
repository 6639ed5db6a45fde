package identity

import (
	"sort"
)

// Alias is one raw spelling and the canonical name it stands for.
type Alias struct {
	Raw       string
	Canonical string
}

// AliasTable maps raw provider spellings to canonical names for one
// dimension. It is built once, validated eagerly, and read-only afterwards,
// so concurrent lookups need no locking.
type AliasTable struct {
	dimension string
	entries   map[string]string
}

// NewAliasTable builds and validates a table. Repeating the same alias for the
// same canonical is harmless; mapping it to a second canonical returns an
// *AmbiguousAliasError.
func NewAliasTable(dimension string, aliases []Alias) (*AliasTable, error) {
	entries := make(map[string]string, len(aliases))
	conflicts := make(map[string]map[string]struct{})

	for _, a := range aliases {
		prev, ok := entries[a.Raw]
		if !ok {
			entries[a.Raw] = a.Canonical
			continue
		}
		if prev == a.Canonical {
			continue
		}
		set, ok := conflicts[a.Raw]
		if !ok {
			set = map[string]struct{}{prev: {}}
			conflicts[a.Raw] = set
		}
		set[a.Canonical] = struct{}{}
	}

	if len(conflicts) > 0 {
		// Report the lexically first conflict so the error is stable.
		raws := make([]string, 0, len(conflicts))
		for raw := range conflicts {
			raws = append(raws, raw)
		}
		sort.Strings(raws)
		raw := raws[0]
		canonicals := make([]string, 0, len(conflicts[raw]))
		for c := range conflicts[raw] {
			canonicals = append(canonicals, c)
		}
		sort.Strings(canonicals)
		return nil, &AmbiguousAliasError{Dimension: dimension, Alias: raw, Canonicals: canonicals}
	}

	return &AliasTable{dimension: dimension, entries: entries}, nil
}

// FromCanonicalGroups builds a table from canonical -> aliases groups, the
// shape used in alias files. Every canonical name also maps to itself.
func FromCanonicalGroups(dimension string, groups map[string][]string) (*AliasTable, error) {
	canonicals := make([]string, 0, len(groups))
	for c := range groups {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	var aliases []Alias
	for _, c := range canonicals {
		aliases = append(aliases, Alias{Raw: c, Canonical: c})
		for _, raw := range groups[c] {
			aliases = append(aliases, Alias{Raw: raw, Canonical: c})
		}
	}
	return NewAliasTable(dimension, aliases)
}

// Normalize returns the canonical name for raw. Lookup is exact; an absent
// alias returns an *UnknownAliasError rather than a guess.
func (t *AliasTable) Normalize(raw string) (string, error) {
	canonical, ok := t.entries[raw]
	if !ok {
		return "", &UnknownAliasError{Dimension: t.dimension, Alias: raw}
	}
	return canonical, nil
}

// Dimension returns the table's dimension name ("team" or "league").
func (t *AliasTable) Dimension() string { return t.dimension }

// Len returns the number of aliases, canonical self-entries included.
func (t *AliasTable) Len() int { return len(t.entries) }
