package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/hotpot/internal/blob/s3"
	"github.com/alanyoungcy/hotpot/internal/cache/redis"
	"github.com/alanyoungcy/hotpot/internal/chain"
	"github.com/alanyoungcy/hotpot/internal/config"
	"github.com/alanyoungcy/hotpot/internal/crypto"
	"github.com/alanyoungcy/hotpot/internal/domain"
	"github.com/alanyoungcy/hotpot/internal/listing"
	"github.com/alanyoungcy/hotpot/internal/notify"
	"github.com/alanyoungcy/hotpot/internal/prizepool"
	"github.com/alanyoungcy/hotpot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Chain
	Chain       *chain.Client
	Wallet      *crypto.Wallet // nil when running without a key
	Marketplace *chain.Marketplace
	PrizePool   prizepool.Source

	// Stores
	Postgres     *postgres.Client
	ListingStore domain.ListingStore
	AuditStore   domain.AuditStore

	// Caches
	Redis       *redis.Client
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	S3       *s3blob.Client
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// ListingDeps builds the wizard collaborators for one item. Without a wallet
// the account stays zero, so submissions fail with a retryable
// domain.ErrCollaboratorUnavailable.
func (d *Dependencies) ListingDeps(item listing.Item) listing.Deps {
	if d.Chain == nil {
		return listing.Deps{}
	}
	deps := listing.Deps{
		Account:     d.Chain.Account(),
		Collection:  d.Chain.Collection(item.Collection),
		Marketplace: d.Marketplace,
	}
	return deps
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)
	deps.Postgres = pgClient
	deps.ListingStore = postgres.NewListingStore(pgClient.Pool())
	deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Redis = redisClient
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 receipt archive ---
	s3Client, err := OpenS3(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: s3: %w", err))
	}
	closers = append(closers, func() { _ = s3Client.Close() })
	deps.S3 = s3Client
	deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), deps.AuditStore)

	// --- Chain ---
	chainClient, wallet, err := OpenChain(ctx, cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: chain: %w", err))
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient
	deps.Wallet = wallet
	deps.Marketplace = chainClient.Marketplace(cfg.Chain.Marketplace())
	deps.PrizePool = PrizePoolSource(cfg, deps.Marketplace)

	// --- Notifications ---
	deps.Notifier = NewNotifier(cfg, deps.SignalBus, logger)

	return deps, cleanup, nil
}

// OpenPostgres connects to PostgreSQL and applies the embedded migrations
// when enabled.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	client, err := postgres.New(ctx, postgres.ClientConfig{
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
		return nil, err
	}
	if cfg.Postgres.RunMigrations {
		if err := client.RunMigrations(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return client, nil
}

// OpenS3 creates the object storage client.
func OpenS3(ctx context.Context, cfg *config.Config) (*s3blob.Client, error) {
	return s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
		KeyPrefix:      cfg.S3.KeyPrefix,
	})
}

// OpenChain resolves the wallet key and dials the RPC endpoint. A missing
// key yields a read-only client and a nil wallet.
func OpenChain(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*chain.Client, *crypto.Wallet, error) {
	wallet, err := LoadWallet(cfg)
	if err != nil && !errors.Is(err, crypto.ErrNoKey) {
		return nil, nil, err
	}

	var signer chain.TxSigner
	if wallet != nil {
		signer = wallet
		logger.Info("wallet loaded", slog.String("account", wallet.Address().Hex()))
	} else {
		logger.Warn("no wallet key configured; listing submissions will fail")
	}

	client, err := chain.Dial(ctx, chain.ClientConfig{
		RPCURL:       cfg.Chain.RPCURL,
		ChainID:      cfg.Chain.ChainID,
		PollInterval: cfg.Chain.ReceiptPollInterval.Duration,
	}, signer, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, wallet, nil
}

// LoadWallet resolves the configured key into a signing wallet.
func LoadWallet(cfg *config.Config) (*crypto.Wallet, error) {
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, err
	}
	return crypto.NewWallet(key)
}

// PrizePoolSource returns the configured prize pool source. The chain source
// reads marketplace views; the http source calls the storefront API.
func PrizePoolSource(cfg *config.Config, reader prizepool.PoolReader) prizepool.Source {
	if strings.EqualFold(cfg.PrizePool.Source, "http") {
		return prizepool.NewHTTPSource(cfg.PrizePool.APIURL, cfg.PrizePool.Timeout.Duration)
	}
	return prizepool.NewChainSource(reader)
}

// NewNotifier builds the toast fan-out: the signal bus for websocket clients
// plus the configured chat and webhook channels. bus may be nil.
func NewNotifier(cfg *config.Config, bus domain.SignalBus, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if bus != nil {
		senders = append(senders, notify.NewBusSender(bus))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}
	return notify.NewNotifier(senders, cfg.Notify.Kinds, logger)
}
