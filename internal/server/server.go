// Package server is the HTTP and WebSocket API in front of the market
// service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/server/handler"
	"github.com/alanyoungcy/lmsrmarket/internal/server/middleware"
	"github.com/alanyoungcy/lmsrmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey enables authentication when set.
	APIKey          string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers groups the endpoint handlers. Records and Hub are optional.
type Handlers struct {
	Health   *handler.HealthHandler
	Pipeline *handler.PipelineHandler
	Markets  *handler.MarketHandler
	LMSR     *handler.LMSRHandler
	Records  *handler.RecordsHandler
	Hub      *ws.Hub
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. limiter may be nil.
func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     Routes(cfg, h, limiter, logger),
			ReadTimeout: 15 * time.Second,
			// Chain steps wait for confirmations.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler, exported for httptest.
func Routes(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("POST /api/descriptions", h.Pipeline.PublishDescription)
	mux.HandleFunc("GET /api/descriptions/{hash}", h.Pipeline.GetDescription)
	mux.HandleFunc("POST /api/oracles", h.Pipeline.CreateOracle)
	mux.HandleFunc("POST /api/events", h.Pipeline.CreateEvent)

	mux.HandleFunc("POST /api/markets", h.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{address}", h.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{address}/state", h.Markets.GetMarketState)
	mux.HandleFunc("POST /api/markets/{address}/fund", h.Markets.FundMarket)
	mux.HandleFunc("POST /api/markets/{address}/quote", h.Markets.QuoteShares)
	mux.HandleFunc("POST /api/markets/{address}/buy", h.Markets.BuyShares)
	mux.HandleFunc("GET /api/balance", h.Markets.Balance)

	mux.HandleFunc("POST /api/lmsr/cost", h.LMSR.Cost)
	mux.HandleFunc("POST /api/lmsr/outcome-token-count", h.LMSR.OutcomeTokenCount)
	mux.HandleFunc("POST /api/lmsr/marginal-price", h.LMSR.MarginalPrice)

	if h.Records != nil {
		mux.HandleFunc("GET /api/records/{kind}", h.Records.ListRecords)
		mux.HandleFunc("GET /api/audit", h.Records.ListAudit)
		mux.HandleFunc("POST /api/archive", h.Records.Archive)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var out http.Handler = mux
	out = middleware.Auth(cfg.APIKey, "/api/health")(out)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		out = middleware.RateLimit(limiter, cfg.RateLimit, window, logger)(out)
	}
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// Start blocks until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
