// Package config defines the top-level configuration for the hotpot
// storefront backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HOTPOT_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Chain     ChainConfig     `toml:"chain"`
	PrizePool PrizePoolConfig `toml:"prize_pool"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Session   SessionConfig   `toml:"session"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the seller account credentials. Either a raw hex key or
// an encrypted key file with its password.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds the JSON-RPC endpoint and the marketplace deployment.
type ChainConfig struct {
	RPCURL              string   `toml:"rpc_url"`
	ChainID             int64    `toml:"chain_id"`
	MarketplaceAddress  string   `toml:"marketplace_address"`
	ExplorerURL         string   `toml:"explorer_url"`
	ReceiptPollInterval duration `toml:"receipt_poll_interval"`
}

// PrizePoolConfig selects where the prize pool figures come from: the
// storefront API ("http") or the marketplace contract ("chain").
type PrizePoolConfig struct {
	Source  string   `toml:"source"`
	APIURL  string   `toml:"api_url"`
	Timeout duration `toml:"timeout"`
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
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters for the receipt
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	KeyPrefix      string `toml:"key_prefix"`
}

// SessionConfig bounds the lifetime of server-side wizard sessions.
type SessionConfig struct {
	TTL           duration `toml:"ttl"`
	LockTTL       duration `toml:"lock_ttl"`
	SubmitTimeout duration `toml:"submit_timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	// APIKey is a comma-separated list; any listed key is accepted.
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of requests a client may make per
	// RateWindow. Zero disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds the outbound toast channels. Kinds filters which toast
// kinds leave the process; empty means all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebhookURL        string   `toml:"webhook_url"`
	WebhookSecret     string   `toml:"webhook_secret"`
	Kinds             []string `toml:"kinds"`
}

// Defaults returns a Config populated with local-development defaults.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:              "http://localhost:8545",
			ChainID:             31337,
			ReceiptPollInterval: duration{2 * time.Second},
		},
		PrizePool: PrizePoolConfig{
			Source:  "chain",
			Timeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "hotpot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "hotpot",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "hotpot-receipts",
			ForcePathStyle: true,
		},
		Session: SessionConfig{
			TTL:           duration{30 * time.Minute},
			LockTTL:       duration{15 * time.Minute},
			SubmitTimeout: duration{10 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Kinds: []string{"success", "error"},
		},
		Mode:     ModeFull,
		LogLevel: "info",
	}
}

// Operating modes. ModeFull serves the API and signs listings. ModeServer
// serves the API without a wallet, so submissions fail as retryable errors.
// ModeMigrate applies the database migrations and exits.
const (
	ModeFull    = "full"
	ModeServer  = "server"
	ModeMigrate = "migrate"
)

var validModes = map[string]bool{
	ModeFull:    true,
	ModeServer:  true,
	ModeMigrate: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validPrizePoolSources = map[string]bool{
	"http":  true,
	"chain": true,
}

var validToastKinds = map[string]bool{
	"success": true,
	"error":   true,
	"info":    true,
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, migrate)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if mode == ModeFull {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode full")
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if mode != ModeMigrate {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if !common.IsHexAddress(c.Chain.MarketplaceAddress) {
			errs = append(errs, fmt.Sprintf("chain: marketplace_address %q is not a hex address", c.Chain.MarketplaceAddress))
		}
	}
	if c.Chain.ReceiptPollInterval.Duration <= 0 {
		errs = append(errs, "chain: receipt_poll_interval must be > 0")
	}

	// Prize pool
	if !validPrizePoolSources[strings.ToLower(c.PrizePool.Source)] {
		errs = append(errs, fmt.Sprintf("prize_pool: unknown source %q (valid: http, chain)", c.PrizePool.Source))
	}
	if strings.ToLower(c.PrizePool.Source) == "http" && c.PrizePool.APIURL == "" {
		errs = append(errs, "prize_pool: api_url is required when source is http")
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

	// S3
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}
	if c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty")
	}

	// Session
	if c.Session.TTL.Duration <= 0 {
		errs = append(errs, "session: ttl must be > 0")
	}
	if c.Session.LockTTL.Duration <= 0 {
		errs = append(errs, "session: lock_ttl must be > 0")
	}
	if c.Session.SubmitTimeout.Duration <= 0 {
		errs = append(errs, "session: submit_timeout must be > 0")
	}
	if c.Session.LockTTL.Duration > 0 && c.Session.LockTTL.Duration < c.Session.SubmitTimeout.Duration {
		errs = append(errs, "session: lock_ttl must not be shorter than submit_timeout")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	for _, k := range c.Notify.Kinds {
		if !validToastKinds[strings.ToLower(k)] {
			errs = append(errs, fmt.Sprintf("notify: unknown kind %q (valid: success, error, info)", k))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.WebhookSecret != "" && c.Notify.WebhookURL == "" {
		errs = append(errs, "notify: webhook_secret is set without webhook_url")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Marketplace returns the configured marketplace contract address.
func (c *ChainConfig) Marketplace() common.Address {
	return common.HexToAddress(c.MarketplaceAddress)
}
