// Package retention moves aged records and audit rows out of Postgres into
// S3 cold storage on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// Kinds lists the record kinds a run archives, in order.
var Kinds = []domain.RecordKind{
	domain.RecordDescription,
	domain.RecordOracle,
	domain.RecordEvent,
	domain.RecordMarket,
	domain.RecordTrade,
}

// Result counts what a single run archived.
type Result struct {
	Cutoff  time.Time                   `json:"cutoff"`
	Records map[domain.RecordKind]int64 `json:"records"`
	Audit   int64                       `json:"audit"`
}

// Archiver applies a retention window to the record store.
type Archiver struct {
	blob          domain.Archiver
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewArchiver creates an Archiver that keeps retentionDays of history.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		retentionDays: retentionDays,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.With(slog.String("component", "retention")),
	}
}

// Run executes a single archive pass. Every kind is attempted even when an
// earlier one fails; the failures are joined.
func (a *Archiver) Run(ctx context.Context) (Result, error) {
	cutoff := a.now().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	res := Result{Cutoff: cutoff, Records: make(map[domain.RecordKind]int64, len(Kinds))}
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var errs []error
	for _, kind := range Kinds {
		n, err := a.blob.ArchiveRecords(ctx, kind, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("retention: archive %s records: %w", kind, err))
			continue
		}
		res.Records[kind] = n
		if n > 0 {
			a.logger.InfoContext(ctx, "archived records", slog.String("kind", string(kind)), slog.Int64("count", n))
		}
	}

	n, err := a.blob.ArchiveAudit(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("retention: archive audit: %w", err))
	}
	res.Audit = n

	if err := errors.Join(errs...); err != nil {
		return res, err
	}
	a.logger.InfoContext(ctx, "archive run complete", slog.Int64("audit_archived", res.Audit))
	return res, nil
}

// RunCron runs the archiver on a five-field cron schedule until ctx is
// cancelled. A failed run is logged and the schedule continues.
func (a *Archiver) RunCron(ctx context.Context, expr string) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "archive cron started", slog.String("cron", expr))

	for {
		next, ok := sched.Next(a.now())
		if !ok {
			return fmt.Errorf("retention: cron %q never fires", expr)
		}
		wait := next.Sub(a.now())
		a.logger.DebugContext(ctx, "archive waiting", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.InfoContext(ctx, "archive cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
