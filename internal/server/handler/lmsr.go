package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/lmsrmarket/internal/lmsr"
)

// LMSRHandler exposes the pure pricing functions.
type LMSRHandler struct {
	logger *slog.Logger
}

func NewLMSRHandler(logger *slog.Logger) *LMSRHandler {
	return &LMSRHandler{logger: logger.With(slog.String("handler", "lmsr"))}
}

// lmsrRequest accepts decimals as JSON strings or numbers.
type lmsrRequest struct {
	NetOutcomeTokensSold []decimal.Decimal `json:"netOutcomeTokensSold"`
	Funding              decimal.Decimal   `json:"funding"`
	OutcomeTokenIndex    int               `json:"outcomeTokenIndex"`
	Cost                 decimal.Decimal   `json:"cost"`
	OutcomeTokenCount    decimal.Decimal   `json:"outcomeTokenCount"`
}

func (req lmsrRequest) params() lmsr.Params {
	return lmsr.Params{
		NetOutcomeTokensSold: req.NetOutcomeTokensSold,
		Funding:              req.Funding,
		OutcomeTokenIndex:    req.OutcomeTokenIndex,
		Cost:                 req.Cost,
		OutcomeTokenCount:    req.OutcomeTokenCount,
	}
}

// Cost handles POST /api/lmsr/cost.
func (h *LMSRHandler) Cost(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, "lmsr cost", lmsr.Cost)
}

// OutcomeTokenCount handles POST /api/lmsr/outcome-token-count.
func (h *LMSRHandler) OutcomeTokenCount(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, "lmsr outcome token count", lmsr.OutcomeTokenCount)
}

// MarginalPrice handles POST /api/lmsr/marginal-price.
func (h *LMSRHandler) MarginalPrice(w http.ResponseWriter, r *http.Request) {
	h.compute(w, r, "lmsr marginal price", lmsr.MarginalPrice)
}

func (h *LMSRHandler) compute(w http.ResponseWriter, r *http.Request, op string, fn func(lmsr.Params) (decimal.Decimal, error)) {
	var req lmsrRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, op, err)
		return
	}
	v, err := fn(req.params())
	if err != nil {
		fail(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": v.String()})
}
