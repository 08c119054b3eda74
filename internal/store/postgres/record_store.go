package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// RecordStore implements domain.RecordStore on the records table. Payloads
// are kept as JSONB so they can be queried ad hoc.
type RecordStore struct {
	pool *pgxpool.Pool
}

func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Upsert inserts rec or replaces the payload of the existing (kind, key)
// row. created_at is preserved on update.
func (s *RecordStore) Upsert(ctx context.Context, rec domain.Record) error {
	if rec.Kind == "" || rec.Key == "" {
		return fmt.Errorf("postgres: upsert record: %w: kind and key are required", domain.ErrInvalidRecord)
	}
	const query = `
		INSERT INTO records (kind, key, payload, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, NOW()), NOW())
		ON CONFLICT (kind, key) DO UPDATE SET
			payload    = EXCLUDED.payload,
			updated_at = NOW()`

	var createdAt any
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt
	}
	if _, err := s.pool.Exec(ctx, query, string(rec.Kind), rec.Key, []byte(rec.Payload), createdAt); err != nil {
		return fmt.Errorf("postgres: upsert %s %s: %w", rec.Kind, rec.Key, err)
	}
	return nil
}

// Get returns domain.ErrNotFound when no row matches.
func (s *RecordStore) Get(ctx context.Context, kind domain.RecordKind, key string) (domain.Record, error) {
	const query = `SELECT kind, key, payload, created_at, updated_at FROM records WHERE kind = $1 AND key = $2`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, string(kind), key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("postgres: get %s %s: %w", kind, key, err)
	}
	return rec, nil
}

// List returns records of one kind, oldest first.
func (s *RecordStore) List(ctx context.Context, kind domain.RecordKind, opts domain.ListOpts) ([]domain.Record, error) {
	query, args := listQuery(
		`SELECT kind, key, payload, created_at, updated_at FROM records WHERE kind = $1`,
		[]any{string(kind)}, opts, "created_at, key",
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s rows: %w", kind, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		rec     domain.Record
		kind    string
		payload []byte
	)
	if err := row.Scan(&kind, &rec.Key, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.Record{}, err
	}
	rec.Kind = domain.RecordKind(kind)
	rec.Payload = payload
	return rec, nil
}

var _ domain.RecordStore = (*RecordStore)(nil)
