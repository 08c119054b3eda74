package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over Defaults, loads .env when present
// and applies PMKT_* overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets and endpoints at deploy
// time. Unset or empty variables leave the field alone.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PMKT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeystorePath, "PMKT_WALLET_KEYSTORE_PATH")
	setStr(&cfg.Wallet.EncryptedKeyPath, "PMKT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PMKT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PMKT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "PMKT_CHAIN_CHAIN_ID")
	setFloat64(&cfg.Chain.RPCRateLimit, "PMKT_CHAIN_RPC_RATE_LIMIT")
	setDuration(&cfg.Chain.ConfirmPollInterval, "PMKT_CHAIN_CONFIRM_POLL_INTERVAL")
	setDuration(&cfg.Chain.ConfirmTimeout, "PMKT_CHAIN_CONFIRM_TIMEOUT")
	setDuration(&cfg.Chain.SettleDelay, "PMKT_CHAIN_SETTLE_DELAY")
	setInt(&cfg.Chain.GasLimitBufferPct, "PMKT_CHAIN_GAS_LIMIT_BUFFER_PCT")
	setDuration(&cfg.Chain.TxLockTTL, "PMKT_CHAIN_TX_LOCK_TTL")

	// ── Contracts ──
	setStr(&cfg.Contracts.EtherToken, "PMKT_CONTRACTS_ETHER_TOKEN")
	setStr(&cfg.Contracts.LMSRMarketMaker, "PMKT_CONTRACTS_LMSR_MARKET_MAKER")
	setStr(&cfg.Contracts.StandardMarketFactory, "PMKT_CONTRACTS_STANDARD_MARKET_FACTORY")
	setStr(&cfg.Contracts.CentralizedOracleFactory, "PMKT_CONTRACTS_CENTRALIZED_ORACLE_FACTORY")
	setStr(&cfg.Contracts.UltimateOracleFactory, "PMKT_CONTRACTS_ULTIMATE_ORACLE_FACTORY")
	setStr(&cfg.Contracts.EventFactory, "PMKT_CONTRACTS_EVENT_FACTORY")

	// ── Funding / trade ──
	setBool(&cfg.Funding.EnforceBalanceCheck, "PMKT_FUNDING_ENFORCE_BALANCE_CHECK")
	setInt64(&cfg.Trade.SlippageBps, "PMKT_TRADE_SLIPPAGE_BPS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PMKT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PMKT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PMKT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PMKT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PMKT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PMKT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PMKT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PMKT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PMKT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PMKT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PMKT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PMKT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PMKT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PMKT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PMKT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PMKT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PMKT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PMKT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PMKT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PMKT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PMKT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "PMKT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "PMKT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PMKT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PMKT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PMKT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchiveCron, "PMKT_S3_ARCHIVE_CRON")
	setInt(&cfg.S3.ArchiveRetentionDays, "PMKT_S3_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "PMKT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PMKT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PMKT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PMKT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "PMKT_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PMKT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PMKT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PMKT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Steps, "PMKT_NOTIFY_STEPS")

	// ── Top-level ──
	setStr(&cfg.Plan.Path, "PMKT_PLAN_PATH")
	setStr(&cfg.Mode, "PMKT_MODE")
	setStr(&cfg.LogLevel, "PMKT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
