package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCanonicalInstant(t *testing.T) {
	want := time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC)

	cases := map[string]string{
		"zulu":          "2025-01-10T20:00:00Z",
		"offset":        "2025-01-10T21:00:00+01:00",
		"negative":      "2025-01-10T15:00:00-05:00",
		"compact":       "2025-01-10T21:00:00+0100",
		"naive":         "2025-01-10T20:00:00",
		"naive space":   "2025-01-10 20:00:00",
		"naive minutes": "2025-01-10T20:00",
		"padded":        "  2025-01-10T20:00:00Z ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ToCanonicalInstant(raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestToCanonicalInstantFraction(t *testing.T) {
	got, err := ToCanonicalInstant("2025-01-10T20:00:00.123456")
	require.NoError(t, err)
	assert.Equal(t, 123456000, got.Nanosecond())
}

func TestToCanonicalInstantRejects(t *testing.T) {
	for _, raw := range []string{"", "tomorrow", "10/01/2025 20:00", "2025-13-40T20:00:00Z"} {
		_, err := ToCanonicalInstant(raw)
		assert.ErrorIs(t, err, ErrUnparsableTimestamp, raw)
	}
}

func TestFormatKickoff(t *testing.T) {
	base := time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-10T20:00:00+00:00", FormatKickoff(base))
	assert.Equal(t, "2025-01-10T20:00:00.250000+00:00", FormatKickoff(base.Add(250*time.Millisecond)))
	// below a microsecond is dropped
	assert.Equal(t, "2025-01-10T20:00:00+00:00", FormatKickoff(base.Add(999*time.Nanosecond)))

	paris := time.FixedZone("CET", 3600)
	assert.Equal(t, "2025-01-10T20:00:00+00:00", FormatKickoff(time.Date(2025, 1, 10, 21, 0, 0, 0, paris)))
}
