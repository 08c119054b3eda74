package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/lmsrmarket/internal/domain"
)

// Config holds the connection settings.
type Config struct {
	RPCURL string
	// ChainID, when non-zero, must match what the endpoint reports.
	ChainID  int64
	Registry Registry

	// RateLimit caps RPC requests per second. Zero disables limiting.
	RateLimit float64

	ConfirmPollInterval time.Duration
	ConfirmTimeout      time.Duration

	// GasBufferPct is added on top of every gas estimate.
	GasBufferPct uint64

	// TxLockTTL bounds how long the distributed submission lock is held.
	TxLockTTL time.Duration

	// DialTimeout bounds one connection attempt. The attempt is shared by
	// every concurrent Get and outlives any single caller's ctx.
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConfirmPollInterval <= 0 {
		c.ConfirmPollInterval = 2 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 2 * time.Minute
	}
	if c.GasBufferPct == 0 {
		c.GasBufferPct = 20
	}
	if c.TxLockTTL <= 0 {
		c.TxLockTTL = c.ConfirmTimeout + 30*time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 30 * time.Second
	}
	return c
}

// Manager owns the single shared Connection. The first caller of Get
// establishes it; concurrent callers during establishment wait for and
// share that one attempt. A failed attempt is not remembered, so the next
// Get tries again.
type Manager struct {
	cfg    Config
	signer Signer
	dial   DialFunc
	locks  domain.LockManager
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	conn  *Connection
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithDialer replaces DialRPC.
func WithDialer(d DialFunc) ManagerOption {
	return func(m *Manager) { m.dial = d }
}

// WithLockManager serialises transaction submission across processes that
// share the same account.
func WithLockManager(l domain.LockManager) ManagerOption {
	return func(m *Manager) { m.locks = l }
}

// NewManager creates a Manager. No network activity happens until Get.
func NewManager(cfg Config, signer Signer, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		signer: signer,
		dial:   DialRPC,
		logger: logger.With(slog.String("component", "chain")),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the shared connection, establishing it on first use.
// Failures are reported as *domain.ConnectionError. If ctx ends first, Get
// returns ctx.Err() while the attempt carries on for the other callers.
func (m *Manager) Get(ctx context.Context) (*Connection, error) {
	if c := m.Current(); c != nil {
		return c, nil
	}

	ch := m.group.DoChan("connect", func() (any, error) {
		if c := m.Current(); c != nil {
			return c, nil
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.DialTimeout)
		defer cancel()
		c, err := m.connect(dctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.conn = c
		m.mu.Unlock()
		return c, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("chain: connect: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		m.logger.WarnContext(ctx, "chain connection failed",
			slog.String("rpc", m.cfg.RPCURL),
			slog.Bool("shared", res.Shared),
			slog.String("error", res.Err.Error()),
		)
		return nil, &domain.ConnectionError{Endpoint: m.cfg.RPCURL, Err: res.Err}
	}
	v := res.Val
	return v.(*Connection), nil
}

// Current returns the established connection or nil.
func (m *Manager) Current() *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// Close releases the backend, if one was established.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.backend.Close()
		m.conn = nil
	}
}

func (m *Manager) connect(ctx context.Context) (*Connection, error) {
	if m.signer == nil {
		return nil, fmt.Errorf("no signing key configured")
	}
	start := time.Now()

	backend, err := m.dial(ctx, m.cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if m.cfg.ChainID != 0 && chainID.Cmp(big.NewInt(m.cfg.ChainID)) != 0 {
		backend.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %s, configured %d", chainID, m.cfg.ChainID)
	}

	limit := rate.Inf
	if m.cfg.RateLimit > 0 {
		limit = rate.Limit(m.cfg.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1+int(m.cfg.RateLimit))

	c := &Connection{
		backend:  backend,
		chainID:  chainID,
		account:  m.signer.Address(),
		registry: m.cfg.Registry,
		limiter:  limiter,
		confirm: confirmer{
			backend:  backend,
			limiter:  limiter,
			interval: m.cfg.ConfirmPollInterval,
			timeout:  m.cfg.ConfirmTimeout,
		},
		logger: m.logger,
	}
	c.tx = &transactor{
		backend:   backend,
		signer:    m.signer,
		chainID:   chainID,
		limiter:   limiter,
		locks:     m.locks,
		lockTTL:   m.cfg.TxLockTTL,
		bufferPct: m.cfg.GasBufferPct,
		logger:    m.logger,
	}

	m.logger.InfoContext(ctx, "chain connection established",
		slog.String("rpc", m.cfg.RPCURL),
		slog.String("chain_id", chainID.String()),
		slog.String("account", c.account.Hex()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return c, nil
}
