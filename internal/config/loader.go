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

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HOTPOT_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HOTPOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "HOTPOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "HOTPOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "HOTPOT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "HOTPOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "HOTPOT_CHAIN_ID")
	setStr(&cfg.Chain.MarketplaceAddress, "HOTPOT_CHAIN_MARKETPLACE_ADDRESS")
	setStr(&cfg.Chain.ExplorerURL, "HOTPOT_CHAIN_EXPLORER_URL")
	setDuration(&cfg.Chain.ReceiptPollInterval, "HOTPOT_CHAIN_RECEIPT_POLL_INTERVAL")

	// ── Prize pool ──
	setStr(&cfg.PrizePool.Source, "HOTPOT_PRIZE_POOL_SOURCE")
	setStr(&cfg.PrizePool.APIURL, "HOTPOT_PRIZE_POOL_API_URL")
	setDuration(&cfg.PrizePool.Timeout, "HOTPOT_PRIZE_POOL_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "HOTPOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "HOTPOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HOTPOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HOTPOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HOTPOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HOTPOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HOTPOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HOTPOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HOTPOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "HOTPOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HOTPOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HOTPOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HOTPOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HOTPOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HOTPOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HOTPOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "HOTPOT_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "HOTPOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HOTPOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "HOTPOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HOTPOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HOTPOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HOTPOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HOTPOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.KeyPrefix, "HOTPOT_S3_KEY_PREFIX")

	// ── Session ──
	setDuration(&cfg.Session.TTL, "HOTPOT_SESSION_TTL")
	setDuration(&cfg.Session.LockTTL, "HOTPOT_SESSION_LOCK_TTL")
	setDuration(&cfg.Session.SubmitTimeout, "HOTPOT_SESSION_SUBMIT_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "HOTPOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "HOTPOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "HOTPOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "HOTPOT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "HOTPOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "HOTPOT_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HOTPOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HOTPOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HOTPOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "HOTPOT_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookSecret, "HOTPOT_NOTIFY_WEBHOOK_SECRET")
	setStringSlice(&cfg.Notify.Kinds, "HOTPOT_NOTIFY_KINDS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HOTPOT_MODE")
	setStr(&cfg.LogLevel, "HOTPOT_LOG_LEVEL")
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
