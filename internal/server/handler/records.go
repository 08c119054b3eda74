package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// RecordsHandler lists persisted pipeline records and the audit log, and
// triggers archival to blob storage.
type RecordsHandler struct {
	records  domain.RecordStore
	audit    domain.AuditStore
	archiver domain.Archiver
	logger   *slog.Logger
}

func NewRecordsHandler(records domain.RecordStore, audit domain.AuditStore, archiver domain.Archiver, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		records:  records,
		audit:    audit,
		archiver: archiver,
		logger:   logger.With(slog.String("handler", "records")),
	}
}

func parseRecordKind(s string) (domain.RecordKind, error) {
	switch k := domain.RecordKind(s); k {
	case domain.RecordDescription, domain.RecordOracle, domain.RecordEvent, domain.RecordMarket, domain.RecordTrade:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidRecord, s)
}

// ListRecords handles GET /api/records/{kind}.
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind, err := parseRecordKind(r.PathValue("kind"))
	if err != nil {
		fail(w, r, h.logger, "list records", err)
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		fail(w, r, h.logger, "list records", err)
		return
	}
	recs, err := h.records.List(r.Context(), kind, opts)
	if err != nil {
		fail(w, r, h.logger, "list records", err)
		return
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListAudit handles GET /api/audit.
func (h *RecordsHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		fail(w, r, h.logger, "list audit", err)
		return
	}
	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		fail(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type archiveRequest struct {
	Kind   string    `json:"kind"`
	Before time.Time `json:"before"`
}

// Archive handles POST /api/archive. Kind "audit" exports the audit log,
// anything else must be a record kind.
func (h *RecordsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, "archive", err)
		return
	}
	if req.Before.IsZero() {
		fail(w, r, h.logger, "archive", fmt.Errorf("%w: before is required", domain.ErrInvalidRecord))
		return
	}

	var (
		n   int64
		err error
	)
	if req.Kind == "audit" {
		n, err = h.archiver.ArchiveAudit(r.Context(), req.Before)
	} else {
		var kind domain.RecordKind
		if kind, err = parseRecordKind(req.Kind); err == nil {
			n, err = h.archiver.ArchiveRecords(r.Context(), kind, req.Before)
		}
	}
	if err != nil {
		fail(w, r, h.logger, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": req.Kind, "archived": n})
}
