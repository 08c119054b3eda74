package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/lmsrmarket/internal/blob/s3"
	"github.com/alanyoungcy/lmsrmarket/internal/cache/redis"
	"github.com/alanyoungcy/lmsrmarket/internal/chain"
	"github.com/alanyoungcy/lmsrmarket/internal/config"
	"github.com/alanyoungcy/lmsrmarket/internal/crypto"
	"github.com/alanyoungcy/lmsrmarket/internal/description"
	"github.com/alanyoungcy/lmsrmarket/internal/domain"
	"github.com/alanyoungcy/lmsrmarket/internal/notify"
	"github.com/alanyoungcy/lmsrmarket/internal/server/handler"
	"github.com/alanyoungcy/lmsrmarket/internal/service"
	"github.com/alanyoungcy/lmsrmarket/internal/store/postgres"
)

// Dependencies bundles what the modes need. Optional backends are nil
// when disabled.
type Dependencies struct {
	Manager *chain.Manager
	Service *service.MarketService

	Records  domain.RecordStore
	Audit    domain.AuditStore
	Archiver domain.Archiver

	Bus         *redis.SignalBus
	RateLimiter domain.RateLimiter
	Notifier    *notify.Notifier

	// Probes feed the health endpoint.
	Probes map[string]handler.Probe
}

// Wire builds every dependency from cfg. The returned cleanup releases
// them in reverse order. The chain connection itself is established
// lazily on first use.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{Probes: map[string]handler.Probe{}}
	var svcOpts []service.Option
	var observers []domain.StepObserver

	// --- Wallet ---
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey: cfg.Wallet.PrivateKey,
		KeystorePath:  cfg.Wallet.KeystorePath,
		SealedKeyPath: cfg.Wallet.EncryptedKeyPath,
		Password:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail("wallet", err)
	}
	signer := crypto.NewTxSigner(key)

	registry, err := chain.ParseRegistry(chain.Addresses{
		EtherToken:               cfg.Contracts.EtherToken,
		LMSRMarketMaker:          cfg.Contracts.LMSRMarketMaker,
		StandardMarketFactory:    cfg.Contracts.StandardMarketFactory,
		CentralizedOracleFactory: cfg.Contracts.CentralizedOracleFactory,
		UltimateOracleFactory:    cfg.Contracts.UltimateOracleFactory,
		EventFactory:             cfg.Contracts.EventFactory,
	})
	if err != nil {
		return fail("contracts", err)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Records = postgres.NewRecordStore(pg.Pool())
		deps.Audit = postgres.NewAuditStore(pg.Pool())
		deps.Probes["postgres"] = pg.Ping
		svcOpts = append(svcOpts, service.WithRecordStore(deps.Records), service.WithAuditStore(deps.Audit))
	}

	// --- Redis ---
	var managerOpts []chain.ManagerOption
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.Bus = redis.NewSignalBus(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc)
		deps.Probes["redis"] = rc.Ping
		managerOpts = append(managerOpts, chain.WithLockManager(redis.NewLockManager(rc)))
		svcOpts = append(svcOpts, service.WithMarketCache(redis.NewMarketCache(rc)))
		observers = append(observers, deps.Bus)
	}

	// --- S3 ---
	s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		Prefix:         cfg.S3.Prefix,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return fail("s3", err)
	}
	closers = append(closers, func() { _ = s3c.Close() })
	deps.Probes["s3"] = s3c.Health
	if deps.Records != nil {
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3c), deps.Records, deps.Audit)
	}

	// --- Chain ---
	deps.Manager = chain.NewManager(chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		ChainID:             cfg.Chain.ChainID,
		Registry:            registry,
		RateLimit:           cfg.Chain.RPCRateLimit,
		ConfirmPollInterval: cfg.Chain.ConfirmPollInterval.Duration,
		ConfirmTimeout:      cfg.Chain.ConfirmTimeout.Duration,
		GasBufferPct:        uint64(cfg.Chain.GasLimitBufferPct),
		TxLockTTL:           cfg.Chain.TxLockTTL.Duration,
	}, signer, logger, managerOpts...)
	closers = append(closers, deps.Manager.Close)
	deps.Probes["chain"] = func(ctx context.Context) error {
		_, err := deps.Manager.Get(ctx)
		return err
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Steps, logger)
		observers = append(observers, deps.Notifier)
	}

	// --- Service ---
	svcOpts = append(svcOpts, service.WithObservers(observers...))
	deps.Service = service.NewMarketService(
		deps.Manager,
		description.NewPublisher(s3blob.NewStore(s3c), logger),
		service.MarketConfig{
			SettleDelay:         cfg.Chain.SettleDelay.Duration,
			EnforceBalanceCheck: cfg.Funding.EnforceBalanceCheck,
			SlippageBps:         cfg.Trade.SlippageBps,
		},
		logger,
		svcOpts...,
	)

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("account", signer.Address().Hex()),
		slog.Bool("postgres", deps.Records != nil),
		slog.Bool("redis", deps.Bus != nil),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
