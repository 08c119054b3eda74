package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lmsrmarket/internal/config"
)

const sampleTOML = `
mode = "server"
log_level = "debug"

[wallet]
private_key = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

[chain]
rpc_url = "http://node:8545"
chain_id = 4
confirm_timeout = "30s"
settle_delay = "5s"

[contracts]
ether_token = "0x0000000000000000000000000000000000000001"
lmsr_market_maker = "0x0000000000000000000000000000000000000002"
standard_market_factory = "0x0000000000000000000000000000000000000003"
centralized_oracle_factory = "0x0000000000000000000000000000000000000004"
event_factory = "0x0000000000000000000000000000000000000005"

[trade]
slippage_bps = 250
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "http://node:8545", cfg.Chain.RPCURL)
	assert.Equal(t, int64(4), cfg.Chain.ChainID)
	assert.Equal(t, 30*time.Second, cfg.Chain.ConfirmTimeout.Duration)
	assert.Equal(t, 5*time.Second, cfg.Chain.SettleDelay.Duration)
	assert.Equal(t, 2*time.Second, cfg.Chain.ConfirmPollInterval.Duration, "default kept")
	assert.Equal(t, int64(250), cfg.Trade.SlippageBps)
	assert.Equal(t, 8000, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PMKT_CHAIN_RPC_URL", "http://other:8545")
	t.Setenv("PMKT_FUNDING_ENFORCE_BALANCE_CHECK", "true")
	t.Setenv("PMKT_NOTIFY_STEPS", "market_created, shares_bought")
	t.Setenv("PMKT_CHAIN_CONFIRM_POLL_INTERVAL", "500ms")

	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "http://other:8545", cfg.Chain.RPCURL)
	assert.True(t, cfg.Funding.EnforceBalanceCheck)
	assert.Equal(t, []string{"market_created", "shares_bought"}, cfg.Notify.Steps)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.ConfirmPollInterval.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"
	cfg.Trade.SlippageBps = 10_000

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "wallet: one of private_key")
	assert.Contains(t, msg, "contracts: ether_token must not be empty")
	assert.Contains(t, msg, "trade: slippage_bps")
}

func TestValidateWalletSources(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg.Wallet.KeystorePath = "/keys/a.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Contains(t, err.Error(), "key_password is required")
}

func TestValidatePipelineNeedsPlan(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg.Mode = "pipeline"
	require.ErrorContains(t, cfg.Validate(), "plan: path is required")
	cfg.Plan.Path = "plan.yaml"
	require.NoError(t, cfg.Validate())
}

func TestValidateArchiveCron(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.S3.ArchiveRetentionDays)

	cfg.S3.ArchiveCron = "0 3 * * *"
	cfg.S3.ArchiveRetentionDays = 0
	require.ErrorContains(t, cfg.Validate(), "archive_retention_days")
}

func TestRedactedConfig(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	cfg.S3.SecretKey = "s3cret"

	red := config.RedactedConfig(cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Empty(t, red.Redis.Password)
	assert.Equal(t, "s3cret", cfg.S3.SecretKey)

	red.Server.CORSOrigins[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Server.CORSOrigins[0])
}
