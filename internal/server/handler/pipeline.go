package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/service"
)

// MarketAPI is the slice of the market service the HTTP layer drives.
type MarketAPI interface {
	PublishDescription(ctx context.Context, d domain.EventDescription) (domain.EventDescription, error)
	Description(ctx context.Context, hash string) (domain.EventDescription, error)
	CreateOracle(ctx context.Context, o domain.Oracle) (domain.Oracle, error)
	CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	CreateMarket(ctx context.Context, m domain.Market) (domain.Market, error)
	GetMarket(ctx context.Context, address string) (domain.Market, error)
	MarketState(ctx context.Context, address string) (domain.Market, error)
	FundMarket(ctx context.Context, m domain.Market) (domain.Market, error)
	QuoteShares(ctx context.Context, m domain.Market, outcomeIndex int, collateralAmount string) (service.Quote, error)
	BuyShares(ctx context.Context, m domain.Market, outcomeIndex int, collateralAmount string) (domain.TradeResult, error)
	Balance(ctx context.Context) (*big.Int, error)
}

// PipelineHandler serves the creation steps that precede a market.
type PipelineHandler struct {
	svc    MarketAPI
	logger *slog.Logger
}

func NewPipelineHandler(svc MarketAPI, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{svc: svc, logger: logger.With(slog.String("handler", "pipeline"))}
}

// PublishDescription handles POST /api/descriptions.
func (h *PipelineHandler) PublishDescription(w http.ResponseWriter, r *http.Request) {
	var d domain.EventDescription
	if err := decodeJSON(r, &d); err != nil {
		fail(w, r, h.logger, "publish description", err)
		return
	}
	out, err := h.svc.PublishDescription(r.Context(), d)
	if err != nil {
		fail(w, r, h.logger, "publish description", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetDescription handles GET /api/descriptions/{hash}.
func (h *PipelineHandler) GetDescription(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Description(r.Context(), r.PathValue("hash"))
	if err != nil {
		fail(w, r, h.logger, "get description", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateOracle handles POST /api/oracles.
func (h *PipelineHandler) CreateOracle(w http.ResponseWriter, r *http.Request) {
	var o domain.Oracle
	if err := decodeJSON(r, &o); err != nil {
		fail(w, r, h.logger, "create oracle", err)
		return
	}
	out, err := h.svc.CreateOracle(r.Context(), o)
	if err != nil {
		fail(w, r, h.logger, "create oracle", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// CreateEvent handles POST /api/events.
func (h *PipelineHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var e domain.Event
	if err := decodeJSON(r, &e); err != nil {
		fail(w, r, h.logger, "create event", err)
		return
	}
	out, err := h.svc.CreateEvent(r.Context(), e)
	if err != nil {
		fail(w, r, h.logger, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
