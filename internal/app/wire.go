package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/blob/s3"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/cache/redis"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/crypto"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/decision/llm"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/decision/rules"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/exchange/binance"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/finetune"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/market"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/notify"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/retry"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/server/handler"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/store/postgres"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/store/sqlite"
)

// Dependencies bundles every collaborator the trading mode needs. It is
// constructed by Wire and torn down by the returned cleanup function. The
// Redis-backed fields are nil when no Redis address is configured.
type Dependencies struct {
	// Persistence
	Store   domain.PersistenceStore
	History domain.TradeHistory
	Audit   domain.AuditStore

	// Market data and execution. Exchange is nil for paper trading.
	Feed     domain.PriceFeed
	Depth    domain.DepthSource
	Exchange domain.Exchange
	Brain    domain.DecisionSource

	// Caches
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Exporter is nil when no bucket is configured.
	Exporter *s3blob.TradeExporter

	// Notifications
	Notifier *notify.Notifier

	// Checks probe each external dependency for /api/health.
	Checks map[string]handler.Check
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

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- Persistence ---
	stores, closeStores, err := OpenStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeStores)
	deps.Store = retry.WrapStore(stores.State, retry.Default())
	deps.History = stores.History
	deps.Audit = stores.Audit
	if stores.Ping != nil {
		deps.Checks[stores.Driver] = stores.Ping
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Market.PriceCacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, logger)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- Binance ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		Raw:           cfg.Binance.APISecret,
		EncryptedPath: cfg.Binance.EncryptedSecretPath,
		Password:      cfg.Binance.SecretPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: binance secret: %w", err))
	}
	exchange := binance.New(binance.Config{
		APIKey:    cfg.Binance.APIKey,
		APISecret: secret,
		Testnet:   cfg.Binance.Testnet,
		BaseURL:   cfg.Binance.BaseURL,
	}, logger)
	if cfg.Binance.Enabled {
		deps.Exchange = exchange
	}
	deps.Depth = exchange

	var feed domain.PriceFeed = retry.WrapFeed(exchange, retry.Default())
	if deps.PriceCache != nil {
		feed = market.NewCachedFeed(feed, deps.PriceCache, cfg.Market.PriceCacheTTL.Duration, logger)
	}
	deps.Feed = feed
	symbol := cfg.App.Symbol
	deps.Checks["binance"] = func(ctx context.Context) error {
		_, err := exchange.GetCurrentPrice(ctx, symbol)
		return err
	}

	// --- Decision source ---
	deps.Brain = newBrain(cfg.Decision, logger)

	// --- S3 export (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		writer := s3blob.NewWriter(s3Client, cfg.S3.PartSizeMB<<20)
		deps.Exporter = s3blob.NewTradeExporter(writer, cfg.S3.Prefix,
			finetune.Options{MinConfidence: cfg.S3.MinConfidence}, deps.Audit)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

func newBrain(cfg config.DecisionConfig, logger *slog.Logger) domain.DecisionSource {
	if strings.EqualFold(cfg.Source, "llm") {
		return llm.New(llm.Config{
			BaseURL:       cfg.LLM.BaseURL,
			APIKey:        cfg.LLM.APIKey,
			Model:         cfg.LLM.Model,
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
			Timeout:       cfg.LLM.Timeout.Duration,
			PromptCandles: cfg.LLM.PromptCandles,
		}, logger)
	}
	return rules.New(rules.Config{
		MinStrength:        cfg.Rules.MinStrength,
		MaxDistancePercent: cfg.Rules.MaxDistancePercent,
		StopBufferPercent:  cfg.Rules.StopBufferPercent,
		RewardRatio:        cfg.Rules.RewardRatio,
	})
}

// Stores is the persistence backend selected by the store driver.
type Stores struct {
	Driver  string
	State   domain.PersistenceStore
	History domain.TradeHistory
	Audit   domain.AuditStore
	// Ping is nil for the embedded drivers.
	Ping handler.Check
}

// OpenStores opens the configured backend. "memory" is a private in-memory
// SQLite database that lives until the returned cleanup runs.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, func(), error) {
	driver := strings.ToLower(cfg.Store.Driver)
	if driver == "postgres" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		store := postgres.NewStateStore(pgClient.Pool())
		return &Stores{
			Driver:  driver,
			State:   store,
			History: store,
			Audit:   postgres.NewAuditStore(pgClient.Pool()),
			Ping:    pgClient.Ping,
		}, pgClient.Close, nil
	}

	path := cfg.Store.SQLitePath
	if driver == "memory" {
		path = ":memory:"
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
	}
	return &Stores{
		Driver:  driver,
		State:   store,
		History: store,
		Audit:   store,
	}, func() { _ = store.Close() }, nil
}
