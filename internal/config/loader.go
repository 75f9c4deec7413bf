package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a TOML or YAML configuration file at path, merges it on top of
// the built-in defaults, applies AITRADER_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides reads well-known AITRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the config file.
func applyEnvOverrides(cfg *Config) {
	// ── App ──
	setStr(&cfg.App.Symbol, "AITRADER_SYMBOL")
	setFloat64(&cfg.App.InitialBalance, "AITRADER_INITIAL_BALANCE")
	setDuration(&cfg.App.Interval, "AITRADER_INTERVAL")
	setDuration(&cfg.App.OrderExpiry, "AITRADER_ORDER_EXPIRY")
	setInt(&cfg.App.TradesPerCycle, "AITRADER_TRADES_PER_CYCLE")
	setInt(&cfg.App.MinRealCycle, "AITRADER_MIN_REAL_CYCLE")
	setDuration(&cfg.App.LockTTL, "AITRADER_LOCK_TTL")

	// ── Binance ──
	setBool(&cfg.Binance.Enabled, "AITRADER_BINANCE_ENABLED")
	setStr(&cfg.Binance.APIKey, "AITRADER_BINANCE_API_KEY")
	setStr(&cfg.Binance.APISecret, "AITRADER_BINANCE_API_SECRET")
	setStr(&cfg.Binance.EncryptedSecretPath, "AITRADER_BINANCE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Binance.SecretPassword, "AITRADER_BINANCE_SECRET_PASSWORD")
	setBool(&cfg.Binance.Testnet, "AITRADER_BINANCE_TESTNET")
	setStr(&cfg.Binance.BaseURL, "AITRADER_BINANCE_BASE_URL")

	// ── Market ──
	setStr(&cfg.Market.CandleInterval, "AITRADER_MARKET_CANDLE_INTERVAL")
	setInt(&cfg.Market.CandleLimit, "AITRADER_MARKET_CANDLE_LIMIT")
	setInt(&cfg.Market.DepthLimit, "AITRADER_MARKET_DEPTH_LIMIT")
	setDuration(&cfg.Market.PriceCacheTTL, "AITRADER_MARKET_PRICE_CACHE_TTL")

	// ── Decision ──
	setStr(&cfg.Decision.Source, "AITRADER_DECISION_SOURCE")
	setInt(&cfg.Decision.DecisionsPerHour, "AITRADER_DECISIONS_PER_HOUR")
	setStr(&cfg.Decision.LLM.BaseURL, "AITRADER_LLM_BASE_URL")
	setStr(&cfg.Decision.LLM.APIKey, "AITRADER_LLM_API_KEY")
	setStr(&cfg.Decision.LLM.APIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Decision.LLM.Model, "AITRADER_LLM_MODEL")
	setFloat64(&cfg.Decision.LLM.Temperature, "AITRADER_LLM_TEMPERATURE")
	setInt(&cfg.Decision.LLM.MaxTokens, "AITRADER_LLM_MAX_TOKENS")
	setDuration(&cfg.Decision.LLM.Timeout, "AITRADER_LLM_TIMEOUT")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxRiskPerTradePercent, "AITRADER_RISK_MAX_RISK_PER_TRADE_PERCENT")
	setFloat64(&cfg.Risk.MaxDailyLossPercent, "AITRADER_RISK_MAX_DAILY_LOSS_PERCENT")
	setFloat64(&cfg.Risk.MinRiskRewardRatio, "AITRADER_RISK_MIN_RISK_REWARD_RATIO")
	setFloat64(&cfg.Risk.MaxLeverage, "AITRADER_RISK_MAX_LEVERAGE")

	// ── Store ──
	setStr(&cfg.Store.Driver, "AITRADER_STORE_DRIVER")
	setStr(&cfg.Store.SQLitePath, "AITRADER_STORE_SQLITE_PATH")
	setDuration(&cfg.Store.SaveTimeout, "AITRADER_STORE_SAVE_TIMEOUT")
	setInt(&cfg.Store.FailureAlertAfter, "AITRADER_STORE_FAILURE_ALERT_AFTER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AITRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "AITRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AITRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AITRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AITRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AITRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AITRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "AITRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "AITRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "AITRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AITRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AITRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AITRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AITRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AITRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AITRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AITRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AITRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "AITRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AITRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AITRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AITRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AITRADER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "AITRADER_S3_PREFIX")
	setInt64(&cfg.S3.PartSizeMB, "AITRADER_S3_PART_SIZE_MB")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AITRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AITRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AITRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AITRADER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "AITRADER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "AITRADER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AITRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AITRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AITRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AITRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "AITRADER_LOG_LEVEL")
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
