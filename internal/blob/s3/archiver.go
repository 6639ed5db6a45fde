package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// OpportunityHistory is the slice of domain.OpportunityStore the archiver
// needs.
type OpportunityHistory interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver: opportunities older than the cutoff
// are written to the bucket as JSONL and only then deleted from the store.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	history   OpportunityHistory
	audit     domain.AuditStore
	logger    *slog.Logger
	multipart int64 // payloads at or above this size use PutMultipart
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates an ArchiveImpl. audit may be nil.
func NewArchiver(writer domain.BlobWriter, history OpportunityHistory, audit domain.AuditStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		history:   history,
		audit:     audit,
		logger:    logger,
		multipart: 4 * minPartSize,
	}
}

// ArchiveOpportunities uploads every opportunity detected before the cutoff
// and then removes them from the store. Nothing is deleted if the upload
// fails. It returns the number of rows deleted.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if int64(len(buf)) >= a.multipart {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	deleted, err := a.history.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities delete: %w", err)
	}

	a.logger.InfoContext(ctx, "s3blob: archived opportunities",
		slog.String("path", path),
		slog.Int("uploaded", len(opps)),
		slog.Int64("deleted", deleted),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.opportunities", map[string]any{
			"path":     path,
			"uploaded": len(opps),
			"deleted":  deleted,
			"before":   before.UTC().Format(time.RFC3339),
		}); err != nil {
			return deleted, fmt.Errorf("s3blob: archive opportunities audit log: %w", err)
		}
	}
	return deleted, nil
}

// archivePath partitions archives by cutoff day and names the file by the
// exact cutoff, so reruns on the same day write distinct objects:
//
//	archive/opportunities/2025/01/10/20250110T030000Z.jsonl
func archivePath(kind string, before time.Time) string {
	t := before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, t.Format("2006/01/02"), t.Format("20060102T150405Z"))
}

// marshalJSONL encodes one compact JSON object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
