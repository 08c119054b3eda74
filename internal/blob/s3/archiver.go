package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

const archivePageSize = 500

// LargeWriter uploads a fully buffered object of any size.
type LargeWriter interface {
	PutLarge(ctx context.Context, path string, buf []byte, contentType string) error
}

// ArchiveImpl implements domain.Archiver. Records are serialised as JSONL
// and uploaded under archive/<kind>/<yyyy-mm>.jsonl. Archived rows are not
// removed from the primary store.
type ArchiveImpl struct {
	writer  LargeWriter
	records domain.RecordStore
	audit   domain.AuditStore
}

func NewArchiver(writer LargeWriter, records domain.RecordStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, records: records, audit: audit}
}

// ArchiveRecords exports every record of kind created before the cutoff.
func (a *ArchiveImpl) ArchiveRecords(ctx context.Context, kind domain.RecordKind, before time.Time) (int64, error) {
	var all []domain.Record
	for offset := 0; ; offset += archivePageSize {
		page, err := a.records.List(ctx, kind, domain.ListOpts{
			Limit:  archivePageSize,
			Offset: offset,
			Until:  &before,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s query: %w", kind, err)
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			break
		}
	}
	n, err := upload(ctx, a.writer, string(kind), before, all)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_ = a.audit.Log(ctx, "archive."+string(kind), map[string]any{
			"path":   archivePath(string(kind), before),
			"count":  n,
			"before": before.Format(time.RFC3339),
		})
	}
	return n, nil
}

// ArchiveAudit exports audit entries written before the cutoff.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	var all []domain.AuditEntry
	for offset := 0; ; offset += archivePageSize {
		page, err := a.audit.List(ctx, domain.ListOpts{
			Limit:  archivePageSize,
			Offset: offset,
			Until:  &before,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			break
		}
	}
	return upload(ctx, a.writer, "audit", before, all)
}

func upload[T any](ctx context.Context, w LargeWriter, kind string, before time.Time, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	if err := w.PutLarge(ctx, archivePath(kind, before), buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return int64(len(rows)), nil
}

func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("jsonl encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
