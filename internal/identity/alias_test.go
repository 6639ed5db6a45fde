package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExactMatch(t *testing.T) {
	table, err := FromCanonicalGroups(DimensionTeam, map[string][]string{
		"Chelsea":   {"Chelsea FC", "CHE"},
		"Tottenham": {"Spurs"},
	})
	require.NoError(t, err)

	for raw, want := range map[string]string{
		"Chelsea":    "Chelsea",
		"Chelsea FC": "Chelsea",
		"CHE":        "Chelsea",
		"Spurs":      "Tottenham",
	} {
		got, err := table.Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestNormalizeUnknownAlias(t *testing.T) {
	table, err := FromCanonicalGroups(DimensionTeam, map[string][]string{"Chelsea": {"CHE"}})
	require.NoError(t, err)

	for _, raw := range []string{"chelsea", "Chelsea ", "Arsenal", ""} {
		_, err := table.Normalize(raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrUnknownAlias)

		var unknown *UnknownAliasError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, DimensionTeam, unknown.Dimension)
		assert.Equal(t, raw, unknown.Alias)
	}
}

func TestNewAliasTableRejectsAmbiguity(t *testing.T) {
	_, err := NewAliasTable(DimensionLeague, []Alias{
		{Raw: "EPL", Canonical: "Premier League"},
		{Raw: "PL", Canonical: "Premier League"},
		{Raw: "PL", Canonical: "Primeira Liga"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousAlias)

	var amb *AmbiguousAliasError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, "PL", amb.Alias)
	assert.Equal(t, []string{"Premier League", "Primeira Liga"}, amb.Canonicals)
}

func TestNewAliasTableAllowsRepeatedMapping(t *testing.T) {
	table, err := NewAliasTable(DimensionTeam, []Alias{
		{Raw: "CHE", Canonical: "Chelsea"},
		{Raw: "CHE", Canonical: "Chelsea"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestFromCanonicalGroupsCanonicalListedAsOtherAlias(t *testing.T) {
	// "Milan" is its own canonical and also an alias of "AC Milan".
	_, err := FromCanonicalGroups(DimensionTeam, map[string][]string{
		"Milan":    {},
		"AC Milan": {"Milan"},
	})
	require.ErrorIs(t, err, ErrAmbiguousAlias)
}

func TestParseResolverAmbiguousFileFails(t *testing.T) {
	content := `
[leagues]
"Premier League" = ["EPL"]

[teams]
"Manchester United" = ["Man U"]
"Manchester City" = ["Man U"]
`
	_, err := ParseResolver(content)
	require.ErrorIs(t, err, ErrAmbiguousAlias)
}

func TestDefaultAliasesLoad(t *testing.T) {
	r, err := LoadResolver("")
	require.NoError(t, err)

	team, err := r.Team("AFC Bournemouth")
	require.NoError(t, err)
	assert.Equal(t, "Bournemouth", team)

	league, err := r.League("EPL")
	require.NoError(t, err)
	assert.Equal(t, "Premier League", league)
}

func TestLoadResolverMissingFile(t *testing.T) {
	_, err := LoadResolver("/nonexistent/aliases.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity: read alias file")
}
