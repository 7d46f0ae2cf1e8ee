// Package config defines the top-level configuration for the arbiter
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by ARBITER_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Chain      ChainConfig      `toml:"chain"`
	Governance GovernanceConfig `toml:"governance"`
	Arbiter    ArbiterConfig    `toml:"arbiter"`
	Keeper     KeeperConfig     `toml:"keeper"`
	Station    StationConfig    `toml:"station"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the transaction signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds the RPC endpoint and the deployed contract
// addresses the service talks to. Router and quoter addresses are
// per venue dialect; per-pool assignments derive from these at boot
// and can be overridden through the admin API afterwards.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	Rebalancer    string `toml:"rebalancer"`
	V3Quoter      string `toml:"v3_quoter"`
	AlgebraQuoter string `toml:"algebra_quoter"`
	KyberQuoter   string `toml:"kyber_quoter"`
	V2Router      string `toml:"v2_router"`
	V3Router      string `toml:"v3_router"`
	AlgebraRouter string `toml:"algebra_router"`
	KyberRouter   string `toml:"kyber_router"`
}

// GovernanceConfig holds the governor identity and the timelock delay
// for governance transfers.
type GovernanceConfig struct {
	Governor      string   `toml:"governor"`
	TransferDelay duration `toml:"transfer_delay"`
}

// ArbiterConfig holds the decision and execution engine parameters.
type ArbiterConfig struct {
	MaxStaleness  duration `toml:"max_staleness"`
	MaxPayloadAge duration `toml:"max_payload_age"`
}

// KeeperConfig holds the sweep loop parameters.
type KeeperConfig struct {
	Interval    duration `toml:"interval"`
	Concurrency int      `toml:"concurrency"`
}

// StationConfig holds the automation funding parameters. An empty
// address disables station checks.
type StationConfig struct {
	Address    string `toml:"address"`
	MinBalance string `toml:"min_balance"`
	TopUp      string `toml:"top_up"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP admin API parameters. AuthToken gates the
// mutating endpoints.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder
// can parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Governance: GovernanceConfig{
			TransferDelay: duration{72 * time.Hour},
		},
		Arbiter: ArbiterConfig{
			MaxStaleness:  duration{6 * time.Hour},
			MaxPayloadAge: duration{5 * time.Minute},
		},
		Keeper: KeeperConfig{
			Interval:    duration{30 * time.Second},
			Concurrency: 4,
		},
		Station: StationConfig{
			MinBalance: "5000000000000000000",  // 5 LINK
			TopUp:      "10000000000000000000", // 10 LINK
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbiter",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"rebalance_executed", "governance_changed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"keeper": true,
	"serve":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: keeper, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet: a key source is required to transact.
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !validAddress(c.Chain.Rebalancer) {
		errs = append(errs, "chain: rebalancer must be a non-zero hex address")
	}
	for name, addr := range map[string]string{
		"v3_quoter":      c.Chain.V3Quoter,
		"algebra_quoter": c.Chain.AlgebraQuoter,
		"kyber_quoter":   c.Chain.KyberQuoter,
		"v2_router":      c.Chain.V2Router,
		"v3_router":      c.Chain.V3Router,
		"algebra_router": c.Chain.AlgebraRouter,
		"kyber_router":   c.Chain.KyberRouter,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("chain: %s is not a hex address", name))
		}
	}

	// Governance
	if !validAddress(c.Governance.Governor) {
		errs = append(errs, "governance: governor must be a non-zero hex address")
	}
	if c.Governance.TransferDelay.Duration < 0 {
		errs = append(errs, "governance: transfer_delay must not be negative")
	}

	// Arbiter
	if c.Arbiter.MaxStaleness.Duration <= 0 {
		errs = append(errs, "arbiter: max_staleness must be > 0")
	}
	if c.Arbiter.MaxPayloadAge.Duration <= 0 {
		errs = append(errs, "arbiter: max_payload_age must be > 0")
	}

	// Keeper
	if c.Keeper.Interval.Duration <= 0 {
		errs = append(errs, "keeper: interval must be > 0")
	}
	if c.Keeper.Concurrency < 1 {
		errs = append(errs, "keeper: concurrency must be >= 1")
	}

	// Station is optional, but when enabled the amounts must parse.
	if c.Station.Address != "" {
		if !common.IsHexAddress(c.Station.Address) {
			errs = append(errs, "station: address is not a hex address")
		}
		if !decimalString(c.Station.MinBalance) {
			errs = append(errs, "station: min_balance must be a base-10 integer")
		}
		if !decimalString(c.Station.TopUp) {
			errs = append(errs, "station: top_up must be a base-10 integer")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.AuthToken == "" {
			errs = append(errs, "server: auth_token is required when the server is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func decimalString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
