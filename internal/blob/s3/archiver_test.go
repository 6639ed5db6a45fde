package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/store/memory"
)

type fakeWriter struct {
	objects map[string][]byte
	err     error
}

func (f *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[path] = b
	return nil
}

func (f *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, jsonlContentType)
}

func seed(t *testing.T, store *memory.Store) time.Time {
	t.Helper()
	now := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendBatch(context.Background(), []domain.Opportunity{
		{ID: "old-1", Team: "Chelsea", WorstCase: 0.2, DetectedAt: now.AddDate(0, 0, -40)},
		{ID: "old-2", Team: "Arsenal", WorstCase: 0.1, DetectedAt: now.AddDate(0, 0, -35)},
		{ID: "new", Team: "Real Madrid", WorstCase: 0.17, DetectedAt: now},
	}))
	return now
}

func TestArchiveUploadsThenDeletes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	audit := memory.NewAuditLog()
	now := seed(t, store)
	w := &fakeWriter{}

	a := NewArchiver(w, store, audit, slog.New(slog.DiscardHandler))
	cutoff := now.AddDate(0, 0, -30)
	n, err := a.ArchiveOpportunities(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	body, ok := w.objects["archive/opportunities/2025/01/11/20250111T030000Z.jsonl"]
	require.True(t, ok, "objects: %v", w.objects)
	sc := bufio.NewScanner(bytes.NewReader(body))
	lines := 0
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)

	left, err := store.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.opportunities", entries[0].Event)
}

func TestArchiveKeepsRowsWhenUploadFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := seed(t, store)

	a := NewArchiver(&fakeWriter{err: errors.New("bucket gone")}, store, nil, slog.New(slog.DiscardHandler))
	_, err := a.ArchiveOpportunities(ctx, now.AddDate(0, 0, -30))
	require.Error(t, err)

	left, err := store.ListRecent(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestArchiveNothingToDo(t *testing.T) {
	w := &fakeWriter{}
	a := NewArchiver(w, memory.New(), nil, slog.New(slog.DiscardHandler))
	n, err := a.ArchiveOpportunities(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.objects)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://x", normaliseEndpoint("http://x", true))
}
