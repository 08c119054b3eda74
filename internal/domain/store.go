package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RecordKind identifies which pipeline entity a stored record holds.
type RecordKind string

const (
	RecordDescription RecordKind = "description"
	RecordOracle      RecordKind = "oracle"
	RecordEvent       RecordKind = "event"
	RecordMarket      RecordKind = "market"
	RecordTrade       RecordKind = "trade"
)

// Record is a persisted pipeline entity. Key is the on-chain address for
// contracts, the content hash for descriptions and the tx hash for trades.
type Record struct {
	Kind      RecordKind      `json:"kind"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RecordStore persists pipeline entities.
type RecordStore interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, kind RecordKind, key string) (Record, error)
	List(ctx context.Context, kind RecordKind, opts ListOpts) ([]Record, error)
}

// AuditEntry is a single row in the audit log.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore is an append-only log of pipeline activity.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
