package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alanyoungcy/lmsrmarket/internal/chain"
	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/numeric"
)

// ConnectionProvider hands out the shared chain connection.
type ConnectionProvider interface {
	Get(ctx context.Context) (*chain.Connection, error)
}

// DescriptionPublisher stores descriptions in content-addressed storage.
type DescriptionPublisher interface {
	Publish(ctx context.Context, d domain.EventDescription) (string, error)
	Fetch(ctx context.Context, hash string) (domain.EventDescription, error)
}

// MarketConfig holds the behavioural switches of the pipeline.
type MarketConfig struct {
	// SettleDelay is waited after every confirmed step.
	SettleDelay time.Duration

	// EnforceBalanceCheck makes FundMarket fail when the wrapped token
	// balance is below the funding amount. When off, a warning is logged
	// and funding proceeds.
	EnforceBalanceCheck bool

	// SlippageBps is taken off every LMSR quote before buying.
	SlippageBps int64
}

// MarketService runs the market pipeline: description, oracle, event,
// market, funding and trading. Steps are independent; callers invoke them
// in dependency order.
type MarketService struct {
	conns     ConnectionProvider
	publisher DescriptionPublisher
	cfg       MarketConfig
	logger    *slog.Logger

	records   domain.RecordStore
	audit     domain.AuditStore
	cache     domain.MarketCache
	observers []domain.StepObserver
}

// Option configures optional MarketService collaborators.
type Option func(*MarketService)

func WithRecordStore(r domain.RecordStore) Option { return func(s *MarketService) { s.records = r } }
func WithAuditStore(a domain.AuditStore) Option   { return func(s *MarketService) { s.audit = a } }
func WithMarketCache(c domain.MarketCache) Option { return func(s *MarketService) { s.cache = c } }

// WithObservers registers observers notified after every step.
func WithObservers(o ...domain.StepObserver) Option {
	return func(s *MarketService) { s.observers = append(s.observers, o...) }
}

// NewMarketService creates a MarketService.
func NewMarketService(
	conns ConnectionProvider,
	publisher DescriptionPublisher,
	cfg MarketConfig,
	logger *slog.Logger,
	opts ...Option,
) *MarketService {
	s := &MarketService{
		conns:     conns,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "market_service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateMarket creates an LMSR market on m.Event with the configured market
// maker and factory. Funding is validated as base units and returned
// unchanged.
func (s *MarketService) CreateMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	start := time.Now()
	if _, err := numeric.ParseFunding(m.Funding); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}
	event, err := chain.ParseAddress("event", m.Event)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}

	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	reg := conn.Registry()

	created, err := conn.Factories().CreateMarket(ctx, reg.StandardMarketFactory, event, reg.LMSRMarketMaker, m.Fee)
	if err != nil {
		s.failed(ctx, domain.StepMarketCreated, m.Event, err, start)
		return domain.Market{}, fmt.Errorf("market_service: create market: %w", err)
	}
	if err := s.settle(ctx); err != nil {
		return domain.Market{}, err
	}

	m.Address = created.Address.Hex()
	m.TxHash = created.Receipt.TxHash.Hex()
	m.MarketMaker = reg.LMSRMarketMaker.Hex()
	m.MarketFactory = reg.StandardMarketFactory.Hex()

	s.cacheMarket(ctx, m)
	s.completed(ctx, domain.StepMarketCreated, domain.RecordMarket, m.Address, m.TxHash, m, map[string]any{
		"event":   m.Event,
		"fee":     m.Fee,
		"funding": m.Funding,
	}, start)
	return m, nil
}

// FundMarket wraps, approves and funds m.Funding base units into the
// market at m.Address, in that order. The record is returned unchanged.
// Already submitted transactions are not rolled back when a later one
// fails.
func (s *MarketService) FundMarket(ctx context.Context, m domain.Market) (domain.Market, error) {
	start := time.Now()
	amount, err := numeric.ParseFunding(m.Funding)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: fund market: %w", err)
	}
	addr, err := chain.ParseAddress("market address", m.Address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: fund market: %w", err)
	}

	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	token := conn.EtherToken()

	if _, err := token.Deposit(ctx, amount); err != nil {
		return domain.Market{}, s.fundFailed(ctx, m, "deposit", err, start)
	}
	if _, err := token.Approve(ctx, addr, amount); err != nil {
		return domain.Market{}, s.fundFailed(ctx, m, "approve", err, start)
	}

	balance, err := token.BalanceOf(ctx, conn.Account())
	if err != nil {
		return domain.Market{}, s.fundFailed(ctx, m, "balance", err, start)
	}
	s.logger.InfoContext(ctx, "market_service: wrapped token balance",
		slog.String("account", conn.Account().Hex()),
		slog.String("balance", balance.String()),
		slog.String("required", amount.String()),
	)
	if balance.Cmp(amount) < 0 {
		if s.cfg.EnforceBalanceCheck {
			err := fmt.Errorf("%w: have %s, need %s", domain.ErrInsufficientBalance, balance, amount)
			return domain.Market{}, s.fundFailed(ctx, m, "balance", err, start)
		}
		s.logger.WarnContext(ctx, "market_service: balance below funding, proceeding",
			slog.String("market", m.Address),
			slog.String("balance", balance.String()),
			slog.String("required", amount.String()),
		)
	}

	receipt, err := conn.Market(addr).Fund(ctx, amount)
	if err != nil {
		return domain.Market{}, s.fundFailed(ctx, m, "fund", err, start)
	}
	if err := s.settle(ctx); err != nil {
		return domain.Market{}, err
	}

	m.FundTxHash = receipt.TxHash.Hex()
	s.invalidateMarket(ctx, m.Address)
	s.completed(ctx, domain.StepMarketFunded, domain.RecordMarket, m.Address, receipt.TxHash.Hex(), m, map[string]any{
		"funding": m.Funding,
		"balance": balance.String(),
	}, start)
	return m, nil
}

func (s *MarketService) fundFailed(ctx context.Context, m domain.Market, stage string, err error, start time.Time) error {
	s.failed(ctx, domain.StepMarketFunded, m.Address, fmt.Errorf("%s: %w", stage, err), start)
	return fmt.Errorf("market_service: fund market %s: %s: %w", m.Address, stage, err)
}

// GetMarket looks a market record up by address: cache, then record store.
func (s *MarketService) GetMarket(ctx context.Context, address string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, address); err == nil {
			return m, nil
		}
	}
	if s.records == nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %s: %w", address, domain.ErrNotFound)
	}
	rec, err := s.records.Get(ctx, domain.RecordMarket, address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %s: %w", address, err)
	}
	var m domain.Market
	if err := json.Unmarshal(rec.Payload, &m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: decode market %s: %w", address, err)
	}
	s.cacheMarket(ctx, m)
	return m, nil
}

// MarketState reads funding and per-outcome quantities sold from chain.
func (s *MarketService) MarketState(ctx context.Context, address string) (domain.Market, error) {
	addr, err := chain.ParseAddress("market address", address)
	if err != nil {
		return domain.Market{}, err
	}
	conn, err := s.conns.Get(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	sold, funding, event, err := readMarketState(ctx, conn, addr)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: market state %s: %w", address, err)
	}
	return domain.Market{
		Event:                event.Hex(),
		Funding:              funding.String(),
		NetOutcomeTokensSold: bigStrings(sold),
		Address:              addr.Hex(),
	}, nil
}

// Balance returns the account's wrapped token balance in base units.
func (s *MarketService) Balance(ctx context.Context) (*big.Int, error) {
	conn, err := s.conns.Get(ctx)
	if err != nil {
		return nil, err
	}
	bal, err := conn.EtherToken().BalanceOf(ctx, conn.Account())
	if err != nil {
		return nil, fmt.Errorf("market_service: balance: %w", err)
	}
	return bal, nil
}

// settle waits the configured post-confirmation delay.
func (s *MarketService) settle(ctx context.Context) error {
	if s.cfg.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// completed persists the step result and notifies observers. Persistence
// and notification failures are logged and never fail the step.
func (s *MarketService) completed(
	ctx context.Context,
	step domain.Step,
	kind domain.RecordKind,
	key, txHash string,
	payload any,
	detail map[string]any,
	start time.Time,
) {
	if s.records != nil {
		body, err := json.Marshal(payload)
		if err == nil {
			err = s.records.Upsert(ctx, domain.Record{Kind: kind, Key: key, Payload: body})
		}
		if err != nil {
			s.logger.WarnContext(ctx, "market_service: record upsert failed",
				slog.String("kind", string(kind)),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	if detail == nil {
		detail = map[string]any{}
	}
	detail["key"] = key
	if txHash != "" {
		detail["tx_hash"] = txHash
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, string(step), detail); err != nil {
			s.logger.WarnContext(ctx, "market_service: audit log failed",
				slog.String("step", string(step)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "market_service: step completed",
		slog.String("step", string(step)),
		slog.String("key", key),
		slog.String("tx", txHash),
		slog.Duration("elapsed", time.Since(start)),
	)
	s.notify(ctx, domain.StepEvent{
		Step:    step,
		Key:     key,
		TxHash:  txHash,
		Detail:  detail,
		Elapsed: time.Since(start),
		At:      time.Now().UTC(),
	})
}

func (s *MarketService) failed(ctx context.Context, step domain.Step, key string, err error, start time.Time) {
	s.logger.ErrorContext(ctx, "market_service: step failed",
		slog.String("step", string(step)),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	if s.audit != nil {
		_ = s.audit.Log(ctx, string(domain.StepFailed), map[string]any{
			"step":  string(step),
			"key":   key,
			"error": err.Error(),
		})
	}
	s.notify(ctx, domain.StepEvent{
		Step:    domain.StepFailed,
		Key:     key,
		Detail:  map[string]any{"step": string(step)},
		Error:   err.Error(),
		Elapsed: time.Since(start),
		At:      time.Now().UTC(),
	})
}

func (s *MarketService) notify(ctx context.Context, ev domain.StepEvent) {
	for _, o := range s.observers {
		if err := o.StepCompleted(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "market_service: observer failed",
				slog.String("step", string(ev.Step)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *MarketService) cacheMarket(ctx context.Context, m domain.Market) {
	if s.cache == nil || m.Address == "" {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market", m.Address),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) invalidateMarket(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, address); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("market", address),
			slog.String("error", err.Error()),
		)
	}
}

func bigStrings(vals []*big.Int) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}
