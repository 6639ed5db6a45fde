package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

var realMadrid = domain.Opportunity{
	EventUID:     "a53cc5ee0655a2d8789c3cdddb160e6a3c306af3b6d8ae9e5c436ea9bf616567",
	Team:         "Real Madrid",
	Direction:    domain.DirectionNoBack,
	PMSide:       "NO",
	PMPrice:      0.6,
	PMStake:      5,
	ExchangeSide: "BACK",
	ExchangeOdds: 2.8,
	HedgeStake:   1.82083,
	WorstCase:    0.16917,
}

func TestLine(t *testing.T) {
	assert.Equal(t,
		"[arb] a53cc5ee0655a2d8789c3cdddb160e6a3c306af3b6d8ae9e5c436ea9bf616567 | Real Madrid | PM_NO_vs_EXCHANGE_BACK | worst=EUR 0.17 | PM=NO@0.600 | odds=BACK@2.80 | stake_pm=5.00 | hedge=1.82",
		Line(realMadrid, ""))
	assert.Contains(t, Line(realMadrid, "GBP"), "worst=GBP 0.17")
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, nil, 5, "EUR"))
	assert.Equal(t, "[arb] no opportunities\n", buf.String())

	buf.Reset()
	barca := realMadrid
	barca.Team = "Barcelona"
	require.NoError(t, Summary(&buf, []domain.Opportunity{barca, realMadrid}, 1, "EUR"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Barcelona")
}
