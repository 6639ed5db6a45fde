package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitMatchName(t *testing.T) {
	cases := []struct {
		in         string
		home, away string
		ok         bool
	}{
		{"Chelsea v Bournemouth", "Chelsea", "Bournemouth", true},
		{"Barcelona vs Real Madrid", "Barcelona", "Real Madrid", true},
		{"Arsenal vs. Tottenham", "Arsenal", "Tottenham", true},
		{"Inter - AC Milan", "Inter", "AC Milan", true},
		{"Premier League Outright", "", "", false},
		{" v Chelsea", "", "", false},
	}
	for _, tc := range cases {
		home, away, ok := SplitMatchName(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.home, home, tc.in)
		assert.Equal(t, tc.away, away, tc.in)
	}
}

func TestTeamFromQuestion(t *testing.T) {
	team, ok := TeamFromQuestion("Will Real Madrid win on 2025-01-12?")
	assert.True(t, ok)
	assert.Equal(t, "Real Madrid", team)

	_, ok = TeamFromQuestion("Chelsea vs Bournemouth: total goals over 2.5?")
	assert.False(t, ok)
}

func TestMarketPrice(t *testing.T) {
	m := Market{Outcomes: []string{"Yes", "No"}, Prices: []float64{0.4, 0.6}}
	p, ok := m.Price("yes")
	assert.True(t, ok)
	assert.Equal(t, 0.4, p)

	m.Prices = nil
	_, ok = m.Price("Yes")
	assert.False(t, ok)
}

func TestIsDraw(t *testing.T) {
	assert.True(t, IsDraw("Draw"))
	assert.True(t, IsDraw(" The Draw "))
	assert.False(t, IsDraw("Drawsden FC"))
}
