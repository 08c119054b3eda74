package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

type fakeBlob struct {
	mu      sync.Mutex
	kinds   []domain.RecordKind
	cutoffs []time.Time
	failOn  domain.RecordKind
}

func (f *fakeBlob) ArchiveRecords(_ context.Context, kind domain.RecordKind, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.cutoffs = append(f.cutoffs, before)
	if kind == f.failOn {
		return 0, errors.New("bucket unavailable")
	}
	return int64(len(kind)), nil
}

func (f *fakeBlob) ArchiveAudit(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 3, nil
}

func newTestArchiver(blob domain.Archiver, days int, now time.Time) *Archiver {
	a := NewArchiver(blob, days, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return now }
	return a
}

func TestRun_ArchivesEveryKindAtCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	blob := &fakeBlob{}

	res, err := newTestArchiver(blob, 30, now).Run(context.Background())
	require.NoError(t, err)

	want := now.AddDate(0, 0, -30)
	assert.Equal(t, want, res.Cutoff)
	assert.Equal(t, Kinds, blob.kinds)
	for _, c := range blob.cutoffs {
		assert.Equal(t, want, c)
	}
	assert.Equal(t, int64(len("market")), res.Records[domain.RecordMarket])
	assert.Equal(t, int64(3), res.Audit)
}

func TestRun_ContinuesPastFailure(t *testing.T) {
	blob := &fakeBlob{failOn: domain.RecordOracle}

	res, err := newTestArchiver(blob, 1, time.Now()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
	assert.Len(t, blob.kinds, len(Kinds))
	assert.NotContains(t, res.Records, domain.RecordOracle)
	assert.Equal(t, int64(3), res.Audit)
}

func TestRunCron_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestArchiver(&fakeBlob{}, 1, time.Now()).RunCron(ctx, "0 3 * * *")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCron_RejectsBadExpression(t *testing.T) {
	err := newTestArchiver(&fakeBlob{}, 1, time.Now()).RunCron(context.Background(), "0 3 *")
	assert.ErrorContains(t, err, "5 fields")
}
