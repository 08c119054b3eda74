package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// BlobStore is the read/write view used by content-addressed publishing.
type BlobStore interface {
	BlobWriter
	BlobReader
}

// Archiver exports persisted records to object storage.
type Archiver interface {
	ArchiveRecords(ctx context.Context, kind RecordKind, before time.Time) (int64, error)
	ArchiveAudit(ctx context.Context, before time.Time) (int64, error)
}
