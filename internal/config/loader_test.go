package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "keeper"
log_level = "debug"

[wallet]
private_key = "0xabc123"

[chain]
rpc_url = "https://polygon-rpc.com"
rebalancer = "0x00000000000000000000000000000000000000aa"

[governance]
governor = "0x0000000000000000000000000000000000000001"
transfer_delay = "24h"

[arbiter]
max_staleness = "1h"

[keeper]
interval = "15s"
concurrency = 8

[postgres]
host = "db.internal"
port = 5433
database = "arbiter"

[server]
enabled = true
port = 9000
auth_token = "sekrit"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "keeper", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://polygon-rpc.com", cfg.Chain.RPCURL)
	assert.Equal(t, 24*time.Hour, cfg.Governance.TransferDelay.Duration)
	assert.Equal(t, time.Hour, cfg.Arbiter.MaxStaleness.Duration)
	assert.Equal(t, 15*time.Second, cfg.Keeper.Interval.Duration)
	assert.Equal(t, 8, cfg.Keeper.Concurrency)
	assert.Equal(t, 5433, cfg.Postgres.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Arbiter.MaxPayloadAge.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("ARBITER_CHAIN_RPC_URL", "wss://override.example")
	t.Setenv("ARBITER_KEEPER_INTERVAL", "5s")
	t.Setenv("ARBITER_SERVER_ENABLED", "false")
	t.Setenv("ARBITER_NOTIFY_EVENTS", "rebalance_executed, error")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "wss://override.example", cfg.Chain.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.Keeper.Interval.Duration)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"rebalance_executed", "error"}, cfg.Notify.Events)
}

func TestValidateAcceptsSample(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "banana"
	cfg.Chain.RPCURL = ""
	cfg.Keeper.Concurrency = 0
	// wallet, rebalancer, governor and server auth token also missing

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "rpc_url")
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "governor")
	assert.Contains(t, err.Error(), "auth_token")
}

func TestValidateRejectsZeroGovernor(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg.Governance.Governor = "0x0000000000000000000000000000000000000000"
	require.ErrorContains(t, cfg.Validate(), "governor")
}

func TestValidateStationAmounts(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg.Station.Address = "0x00000000000000000000000000000000000000bb"
	cfg.Station.MinBalance = "not-a-number"
	require.ErrorContains(t, cfg.Validate(), "min_balance")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	cfg.Postgres.Password = "hunter2"

	red := RedactedConfig(cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.AuthToken)

	// Original untouched.
	assert.Equal(t, "0xabc123", cfg.Wallet.PrivateKey)
}
