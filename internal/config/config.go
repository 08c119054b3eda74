// Package config defines the configuration of the market client and its
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by PMKT_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	Contracts ContractsConfig `toml:"contracts"`
	Funding   FundingConfig   `toml:"funding"`
	Trade     TradeConfig     `toml:"trade"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Plan      PlanConfig      `toml:"plan"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig selects exactly one key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	KeystorePath     string `toml:"keystore_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig describes the RPC endpoint and how transactions are settled.
type ChainConfig struct {
	RPCURL              string   `toml:"rpc_url"`
	ChainID             int64    `toml:"chain_id"`
	RPCRateLimit        float64  `toml:"rpc_rate_limit"`
	ConfirmPollInterval duration `toml:"confirm_poll_interval"`
	ConfirmTimeout      duration `toml:"confirm_timeout"`
	SettleDelay         duration `toml:"settle_delay"`
	GasLimitBufferPct   int      `toml:"gas_limit_buffer_pct"`
	TxLockTTL           duration `toml:"tx_lock_ttl"`
}

// ContractsConfig holds the deployed contract addresses.
// ultimate_oracle_factory is optional.
type ContractsConfig struct {
	EtherToken               string `toml:"ether_token"`
	LMSRMarketMaker          string `toml:"lmsr_market_maker"`
	StandardMarketFactory    string `toml:"standard_market_factory"`
	CentralizedOracleFactory string `toml:"centralized_oracle_factory"`
	UltimateOracleFactory    string `toml:"ultimate_oracle_factory"`
	EventFactory             string `toml:"event_factory"`
}

type FundingConfig struct {
	EnforceBalanceCheck bool `toml:"enforce_balance_check"`
}

type TradeConfig struct {
	SlippageBps int64 `toml:"slippage_bps"`
}

// PostgresConfig holds the record store connection. Disabled leaves the
// service without persistence.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the cache, lock and bus connection.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the description and archive store. An empty endpoint
// means AWS itself.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`

	// ArchiveCron schedules the retention archive in server mode. Empty
	// disables it.
	ArchiveCron          string `toml:"archive_cron"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
}

type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig configures chat delivery of step events. Steps filters by
// step name; failures are always sent.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Steps             []string `toml:"steps"`
}

// PlanConfig points pipeline mode at its YAML plan.
type PlanConfig struct {
	Path string `toml:"path"`
}

// duration decodes TOML strings like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with sane defaults for every field.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:              "http://localhost:8545",
			RPCRateLimit:        20,
			ConfirmPollInterval: duration{2 * time.Second},
			ConfirmTimeout:      duration{2 * time.Minute},
			GasLimitBufferPct:   20,
		},
		Trade: TradeConfig{SlippageBps: 100},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "lmsrmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:               "us-east-1",
			Bucket:               "lmsr-descriptions",
			ForcePathStyle:       true,
			ArchiveRetentionDays: 90,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":   true,
	"pipeline": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: server, pipeline)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	sources := 0
	for _, s := range []string{c.Wallet.PrivateKey, c.Wallet.KeystorePath, c.Wallet.EncryptedKeyPath} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		add("wallet: one of private_key, keystore_path or encrypted_key_path must be set")
	case sources > 1:
		add("wallet: private_key, keystore_path and encrypted_key_path are mutually exclusive")
	}
	if (c.Wallet.KeystorePath != "" || c.Wallet.EncryptedKeyPath != "") && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required for a key file")
	}

	if c.Chain.RPCURL == "" {
		add("chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID < 0 {
		add("chain: chain_id must not be negative")
	}
	if c.Chain.RPCRateLimit < 0 {
		add("chain: rpc_rate_limit must be >= 0")
	}
	if c.Chain.ConfirmPollInterval.Duration <= 0 {
		add("chain: confirm_poll_interval must be > 0")
	}
	if c.Chain.ConfirmTimeout.Duration < c.Chain.ConfirmPollInterval.Duration {
		add("chain: confirm_timeout must be at least confirm_poll_interval")
	}
	if c.Chain.SettleDelay.Duration < 0 {
		add("chain: settle_delay must be >= 0")
	}
	if c.Chain.GasLimitBufferPct < 0 || c.Chain.GasLimitBufferPct > 100 {
		add("chain: gas_limit_buffer_pct must be 0-100, got %d", c.Chain.GasLimitBufferPct)
	}

	required := map[string]string{
		"ether_token":                c.Contracts.EtherToken,
		"lmsr_market_maker":          c.Contracts.LMSRMarketMaker,
		"standard_market_factory":    c.Contracts.StandardMarketFactory,
		"centralized_oracle_factory": c.Contracts.CentralizedOracleFactory,
		"event_factory":              c.Contracts.EventFactory,
	}
	for _, name := range []string{"ether_token", "lmsr_market_maker", "standard_market_factory", "centralized_oracle_factory", "event_factory"} {
		if required[name] == "" {
			add("contracts: %s must not be empty", name)
		}
	}

	if c.Trade.SlippageBps < 0 || c.Trade.SlippageBps >= 10_000 {
		add("trade: slippage_bps must be 0-9999, got %d", c.Trade.SlippageBps)
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.S3.Bucket == "" {
		add("s3: bucket must not be empty")
	}
	if c.S3.ArchiveCron != "" && c.S3.ArchiveRetentionDays < 1 {
		add("s3: archive_retention_days must be >= 1 when archive_cron is set")
	}

	if strings.EqualFold(c.Mode, "server") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			add("server: rate_limit must be >= 0")
		}
	}
	if strings.EqualFold(c.Mode, "pipeline") && c.Plan.Path == "" {
		add("plan: path is required in pipeline mode")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
