package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobArchiver struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeBlobArchiver) ArchiveOpportunities(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return f.n, f.err
}

func TestArchiverRunUsesRetention(t *testing.T) {
	blob := &fakeBlobArchiver{n: 7}
	a := NewArchiver(blob, 14, discard)
	now := time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.Len(t, blob.cutoffs, 1)
	assert.Equal(t, now.Add(-14*24*time.Hour), blob.cutoffs[0])
}

func TestArchiverRunWrapsError(t *testing.T) {
	boom := errors.New("bucket gone")
	a := NewArchiver(&fakeBlobArchiver{err: boom}, 0, discard)

	_, err := a.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pipeline: archive opportunities before")
}

func TestRunCronRejectsBadExpression(t *testing.T) {
	a := NewArchiver(&fakeBlobArchiver{}, 30, discard)
	err := a.RunCron(context.Background(), "0 3 * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 5 fields")
}

func TestCronNext(t *testing.T) {
	at := time.Date(2025, 1, 10, 20, 7, 30, 0, time.UTC) // a Friday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2025, 1, 10, 20, 8, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2025, 1, 11, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2025, 1, 10, 20, 15, 0, 0, time.UTC)},
		{"30 9-17 * * 1-5", time.Date(2025, 1, 13, 9, 30, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"0,45 20 * * *", time.Date(2025, 1, 10, 20, 45, 0, 0, time.UTC)},
		{"10/20 * * * *", time.Date(2025, 1, 10, 20, 10, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, ok := c.next(at)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronParseErrors(t *testing.T) {
	for _, expr := range []string{
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronNeverFires(t *testing.T) {
	c, err := parseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, ok := c.next(time.Now())
	assert.False(t, ok)
}
