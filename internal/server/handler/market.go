package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// MarketHandler serves market creation, funding and trading.
type MarketHandler struct {
	svc    MarketAPI
	logger *slog.Logger
}

func NewMarketHandler(svc MarketAPI, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logger.With(slog.String("handler", "market"))}
}

// CreateMarket handles POST /api/markets.
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var m domain.Market
	if err := decodeJSON(r, &m); err != nil {
		fail(w, r, h.logger, "create market", err)
		return
	}
	out, err := h.svc.CreateMarket(r.Context(), m)
	if err != nil {
		fail(w, r, h.logger, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetMarket handles GET /api/markets/{address}.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GetMarket(r.Context(), r.PathValue("address"))
	if err != nil {
		fail(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMarketState handles GET /api/markets/{address}/state.
func (h *MarketHandler) GetMarketState(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MarketState(r.Context(), r.PathValue("address"))
	if err != nil {
		fail(w, r, h.logger, "market state", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type fundRequest struct {
	Funding string `json:"funding"`
}

// FundMarket handles POST /api/markets/{address}/fund. The stored record
// supplies the funding unless the body overrides it.
func (h *MarketHandler) FundMarket(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, h.logger, "fund market", err)
			return
		}
	}
	m, err := h.lookup(r)
	if err != nil {
		fail(w, r, h.logger, "fund market", err)
		return
	}
	if req.Funding != "" {
		m.Funding = req.Funding
	}
	out, err := h.svc.FundMarket(r.Context(), m)
	if err != nil {
		fail(w, r, h.logger, "fund market", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// numberText holds a JSON number or string as its literal text, so
// {"outcomeIndex": "0"} and {"outcomeIndex": 0} decode alike.
type numberText string

func (n *numberText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("want a number or a string, got %s", data)
	}
	*n = numberText(num.String())
	return nil
}

type tradeRequest struct {
	OutcomeIndex     numberText `json:"outcomeIndex"`
	CollateralAmount numberText `json:"collateralAmount"`
}

// outcomeIndex defaults to 0 when the field is absent.
func (t tradeRequest) outcomeIndex() (int, error) {
	if t.OutcomeIndex == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(string(t.OutcomeIndex))
	if err != nil {
		return 0, fmt.Errorf("%w: outcomeIndex %q is not an integer", domain.ErrInvalidRecord, string(t.OutcomeIndex))
	}
	return i, nil
}

type quoteResponse struct {
	Collateral        string `json:"collateral"`
	OutcomeTokenCount string `json:"outcomeTokenCount"`
	Bounded           string `json:"boundedOutcomeTokenCount"`
}

// QuoteShares handles POST /api/markets/{address}/quote.
func (h *MarketHandler) QuoteShares(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, "quote", err)
		return
	}
	idx, err := req.outcomeIndex()
	if err != nil {
		fail(w, r, h.logger, "quote", err)
		return
	}
	m, err := h.lookup(r)
	if err != nil {
		fail(w, r, h.logger, "quote", err)
		return
	}
	q, err := h.svc.QuoteShares(r.Context(), m, idx, string(req.CollateralAmount))
	if err != nil {
		fail(w, r, h.logger, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Collateral:        q.Collateral.String(),
		OutcomeTokenCount: q.Raw.String(),
		Bounded:           q.Bounded.String(),
	})
}

// BuyShares handles POST /api/markets/{address}/buy.
func (h *MarketHandler) BuyShares(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, "buy shares", err)
		return
	}
	idx, err := req.outcomeIndex()
	if err != nil {
		fail(w, r, h.logger, "buy shares", err)
		return
	}
	m, err := h.lookup(r)
	if err != nil {
		fail(w, r, h.logger, "buy shares", err)
		return
	}
	out, err := h.svc.BuyShares(r.Context(), m, idx, string(req.CollateralAmount))
	if err != nil {
		fail(w, r, h.logger, "buy shares", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Balance handles GET /api/balance.
func (h *MarketHandler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.Balance(r.Context())
	if err != nil {
		fail(w, r, h.logger, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": bal.String()})
}

// lookup loads the stored market for the path address, falling back to a
// bare record so unknown markets are read from chain.
func (h *MarketHandler) lookup(r *http.Request) (domain.Market, error) {
	address := r.PathValue("address")
	m, err := h.svc.GetMarket(r.Context(), address)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Market{Address: address}, nil
	}
	return m, err
}
