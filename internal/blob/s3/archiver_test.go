package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
}

func (m *memWriter) PutLarge(_ context.Context, p string, buf []byte, _ string) error {
	m.objects[p] = append([]byte(nil), buf...)
	return nil
}

type sliceRecords struct {
	rows []domain.Record
}

func (s *sliceRecords) Upsert(context.Context, domain.Record) error { return nil }
func (s *sliceRecords) Get(context.Context, domain.RecordKind, string) (domain.Record, error) {
	return domain.Record{}, domain.ErrNotFound
}
func (s *sliceRecords) List(_ context.Context, kind domain.RecordKind, opts domain.ListOpts) ([]domain.Record, error) {
	var out []domain.Record
	for _, r := range s.rows {
		if r.Kind == kind && (opts.Until == nil || r.CreatedAt.Before(*opts.Until)) {
			out = append(out, r)
		}
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}
func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveRecords(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &sliceRecords{rows: []domain.Record{
		{Kind: domain.RecordMarket, Key: "0x1", Payload: json.RawMessage(`{}`), CreatedAt: cutoff.Add(-time.Hour)},
		{Kind: domain.RecordMarket, Key: "0x2", Payload: json.RawMessage(`{}`), CreatedAt: cutoff.Add(time.Hour)},
		{Kind: domain.RecordOracle, Key: "0x3", Payload: json.RawMessage(`{}`), CreatedAt: cutoff.Add(-time.Hour)},
	}}
	w := &memWriter{objects: map[string][]byte{}}
	audit := &memAudit{}

	n, err := NewArchiver(w, store, audit).ArchiveRecords(context.Background(), domain.RecordMarket, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	body, ok := w.objects["archive/market/2026-03.jsonl"]
	require.True(t, ok)
	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var rec domain.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.Equal(t, "0x1", rec.Key)
		lines++
	}
	assert.Equal(t, 1, lines)
	assert.Equal(t, []string{"archive.market"}, audit.events)
}

func TestArchiveRecords_NothingToDo(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	n, err := NewArchiver(w, &sliceRecords{}, &memAudit{}).ArchiveRecords(context.Background(), domain.RecordTrade, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.objects)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://storage.local", normaliseEndpoint("storage.local", false))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
}
