package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/server"
	"github.com/alanyoungcy/lmsrmarket/internal/server/handler"
	"github.com/alanyoungcy/lmsrmarket/internal/service"
)

const marketAddr = "0x00000000000000000000000000000000000000aa"

// fakeAPI returns canned values and records the last inputs.
type fakeAPI struct {
	err error

	stored    map[string]domain.Market
	funded    domain.Market
	bought    domain.Market
	boughtIdx int
	boughtAmt string
	oracle    domain.Oracle
}

func (f *fakeAPI) PublishDescription(_ context.Context, d domain.EventDescription) (domain.EventDescription, error) {
	if f.err != nil {
		return domain.EventDescription{}, f.err
	}
	d.ContentHash = "0x" + strings.Repeat("ab", 32)
	return d, nil
}

func (f *fakeAPI) Description(_ context.Context, hash string) (domain.EventDescription, error) {
	if f.err != nil {
		return domain.EventDescription{}, f.err
	}
	return domain.EventDescription{Title: "t", ContentHash: hash}, nil
}

func (f *fakeAPI) CreateOracle(_ context.Context, o domain.Oracle) (domain.Oracle, error) {
	f.oracle = o
	if f.err != nil {
		return domain.Oracle{}, f.err
	}
	o.Address = "0x01"
	return o, nil
}

func (f *fakeAPI) CreateEvent(_ context.Context, e domain.Event) (domain.Event, error) {
	if f.err != nil {
		return domain.Event{}, f.err
	}
	e.Address = "0x02"
	return e, nil
}

func (f *fakeAPI) CreateMarket(_ context.Context, m domain.Market) (domain.Market, error) {
	if f.err != nil {
		return domain.Market{}, f.err
	}
	m.Address = marketAddr
	return m, nil
}

func (f *fakeAPI) GetMarket(_ context.Context, address string) (domain.Market, error) {
	m, ok := f.stored[address]
	if !ok {
		return domain.Market{}, fmt.Errorf("get market: %w", domain.ErrNotFound)
	}
	return m, nil
}

func (f *fakeAPI) MarketState(_ context.Context, address string) (domain.Market, error) {
	return domain.Market{Address: address, Funding: "10", NetOutcomeTokensSold: []string{"0", "0"}}, f.err
}

func (f *fakeAPI) FundMarket(_ context.Context, m domain.Market) (domain.Market, error) {
	f.funded = m
	return m, f.err
}

func (f *fakeAPI) QuoteShares(_ context.Context, _ domain.Market, _ int, _ string) (service.Quote, error) {
	if f.err != nil {
		return service.Quote{}, f.err
	}
	return service.Quote{
		Collateral: big.NewInt(1000),
		Raw:        decimal.RequireFromString("1990.5"),
		Bounded:    big.NewInt(1970),
	}, nil
}

func (f *fakeAPI) BuyShares(_ context.Context, m domain.Market, idx int, amt string) (domain.TradeResult, error) {
	f.bought, f.boughtIdx, f.boughtAmt = m, idx, amt
	if f.err != nil {
		return domain.TradeResult{}, f.err
	}
	return domain.TradeResult{Market: m.Address, OutcomeIndex: idx, TxHash: "0xtx"}, nil
}

func (f *fakeAPI) Balance(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(42), nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRoutes(api *fakeAPI, probes map[string]handler.Probe, cfg server.Config) http.Handler {
	logger := discard()
	return server.Routes(cfg, server.Handlers{
		Health:   handler.NewHealthHandler(probes, logger),
		Pipeline: handler.NewPipelineHandler(api, logger),
		Markets:  handler.NewMarketHandler(api, logger),
		LMSR:     handler.NewLMSRHandler(logger),
	}, nil, logger)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestPublishDescription(t *testing.T) {
	h := newRoutes(&fakeAPI{}, nil, server.Config{})
	rec := do(t, h, http.MethodPost, "/api/descriptions",
		`{"title":"Will it rain?","outcomes":["Yes","No"],"resolutionDate":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var out domain.EventDescription
	decode(t, rec, &out)
	assert.Len(t, out.ContentHash, 66)
}

func TestCreateOracleMapsInvalidKindTo400(t *testing.T) {
	api := &fakeAPI{err: fmt.Errorf("wrap: %w", domain.ErrInvalidOracleKind)}
	rec := do(t, newRoutes(api, nil, server.Config{}), http.MethodPost, "/api/oracles", `{"kind":"magic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.OracleKind("magic"), api.oracle.Kind)
}

func TestMalformedBodyIs400(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodPost, "/api/events", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&domain.ConnectionError{Endpoint: "http://node", Err: io.EOF}, http.StatusServiceUnavailable},
		{fmt.Errorf("fund: %w", domain.ErrInsufficientBalance), http.StatusConflict},
		{fmt.Errorf("tx: %w", domain.ErrConfirmationTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("tx: %w", domain.ErrTxReverted), http.StatusBadGateway},
		{fmt.Errorf("amount: %w", domain.ErrInvalidAmount), http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, newRoutes(&fakeAPI{err: tc.err}, nil, server.Config{}), http.MethodGet, "/api/balance", "")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestGetMarketNotFound(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodGet, "/api/markets/"+marketAddr, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFundMarketUsesStoredRecord(t *testing.T) {
	api := &fakeAPI{stored: map[string]domain.Market{
		marketAddr: {Address: marketAddr, Event: "0x02", Funding: "1000"},
	}}
	h := newRoutes(api, nil, server.Config{})

	rec := do(t, h, http.MethodPost, "/api/markets/"+marketAddr+"/fund", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1000", api.funded.Funding)
	assert.Equal(t, "0x02", api.funded.Event)

	rec = do(t, h, http.MethodPost, "/api/markets/"+marketAddr+"/fund", `{"funding":"5000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5000", api.funded.Funding)
}

func TestBuySharesFallsBackToAddress(t *testing.T) {
	api := &fakeAPI{}
	rec := do(t, newRoutes(api, nil, server.Config{}), http.MethodPost, "/api/markets/"+marketAddr+"/buy",
		`{"outcomeIndex":1,"collateralAmount":"0.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, marketAddr, api.bought.Address)
	assert.Equal(t, 1, api.boughtIdx)
	assert.Equal(t, "0.5", api.boughtAmt)
}

func TestBuySharesAcceptsStringIndexAndNumericAmount(t *testing.T) {
	bodies := map[string]string{
		"string index, number amount": `{"outcomeIndex":"0","collateralAmount":1.0}`,
		"number index, number amount": `{"outcomeIndex":0,"collateralAmount":1.0}`,
		"string index, string amount": `{"outcomeIndex":"0","collateralAmount":"1.0"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{}
			rec := do(t, newRoutes(api, nil, server.Config{}), http.MethodPost, "/api/markets/"+marketAddr+"/buy", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, 0, api.boughtIdx)
			assert.Equal(t, "1.0", api.boughtAmt)
		})
	}
}

func TestBuySharesRejectsBadIndex(t *testing.T) {
	for _, body := range []string{
		`{"outcomeIndex":"first","collateralAmount":"1"}`,
		`{"outcomeIndex":1.5,"collateralAmount":"1"}`,
		`{"outcomeIndex":true,"collateralAmount":"1"}`,
	} {
		api := &fakeAPI{}
		rec := do(t, newRoutes(api, nil, server.Config{}), http.MethodPost, "/api/markets/"+marketAddr+"/buy", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Empty(t, api.bought.Address, body)
	}
}

func TestQuoteAcceptsStringIndex(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodPost, "/api/markets/"+marketAddr+"/quote",
		`{"outcomeIndex":"1","collateralAmount":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestQuote(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodPost, "/api/markets/"+marketAddr+"/quote",
		`{"outcomeIndex":0,"collateralAmount":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	decode(t, rec, &out)
	assert.Equal(t, "1000", out["collateral"])
	assert.Equal(t, "1990.5", out["outcomeTokenCount"])
	assert.Equal(t, "1970", out["boundedOutcomeTokenCount"])
}

func TestLMSRMarginalPrice(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodPost, "/api/lmsr/marginal-price",
		`{"netOutcomeTokensSold":["0","0"],"funding":"1000000000000000000","outcomeTokenIndex":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]string
	decode(t, rec, &out)
	assert.True(t, decimal.RequireFromString(out["value"]).Equal(decimal.RequireFromString("0.5")))
}

func TestLMSRInvalidParams(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{}), http.MethodPost, "/api/lmsr/cost",
		`{"netOutcomeTokensSold":["0"],"funding":"10","outcomeTokenIndex":0,"outcomeTokenCount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	probes := map[string]handler.Probe{
		"chain": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return fmt.Errorf("dial tcp: refused") },
	}
	rec := do(t, newRoutes(&fakeAPI{}, probes, server.Config{APIKey: "k"}), http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var out struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "degraded", out.Status)
	assert.Equal(t, "ok", out.Checks["chain"])
}

func TestAuthAppliesToAPI(t *testing.T) {
	rec := do(t, newRoutes(&fakeAPI{}, nil, server.Config{APIKey: "k"}), http.MethodGet, "/api/balance", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type memRecords struct{ recs []domain.Record }

func (m *memRecords) Upsert(context.Context, domain.Record) error { return nil }
func (m *memRecords) Get(context.Context, domain.RecordKind, string) (domain.Record, error) {
	return domain.Record{}, domain.ErrNotFound
}
func (m *memRecords) List(_ context.Context, kind domain.RecordKind, _ domain.ListOpts) ([]domain.Record, error) {
	var out []domain.Record
	for _, r := range m.recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAudit struct{}

func (memAudit) Log(context.Context, string, map[string]any) error { return nil }
func (memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type stubArchiver struct {
	kind   domain.RecordKind
	before time.Time
}

func (s *stubArchiver) ArchiveRecords(_ context.Context, kind domain.RecordKind, before time.Time) (int64, error) {
	s.kind, s.before = kind, before
	return 3, nil
}

func (s *stubArchiver) ArchiveAudit(context.Context, time.Time) (int64, error) { return 7, nil }

func TestRecordsAndArchive(t *testing.T) {
	logger := discard()
	records := &memRecords{recs: []domain.Record{
		{Kind: domain.RecordMarket, Key: marketAddr, Payload: json.RawMessage(`{}`)},
		{Kind: domain.RecordTrade, Key: "0xtx", Payload: json.RawMessage(`{}`)},
	}}
	arch := &stubArchiver{}
	api := &fakeAPI{}
	h := server.Routes(server.Config{}, server.Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Pipeline: handler.NewPipelineHandler(api, logger),
		Markets:  handler.NewMarketHandler(api, logger),
		LMSR:     handler.NewLMSRHandler(logger),
		Records:  handler.NewRecordsHandler(records, memAudit{}, arch, logger),
	}, nil, logger)

	rec := do(t, h, http.MethodGet, "/api/records/market", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []domain.Record
	decode(t, rec, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, marketAddr, recs[0].Key)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/records/bogus", "").Code)

	rec = do(t, h, http.MethodGet, "/api/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/archive", `{"kind":"trade","before":"2024-02-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.RecordTrade, arch.kind)
	assert.JSONEq(t, `{"kind":"trade","archived":3}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/archive", `{"kind":"audit","before":"2024-02-01T00:00:00Z"}`)
	assert.JSONEq(t, `{"kind":"audit","archived":7}`, rec.Body.String())
}
