// Package config defines the top-level configuration for the trading agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// or YAML file and then optionally overridden by AITRADER_* environment
// variables.
type Config struct {
	App      AppConfig      `toml:"app" yaml:"app"`
	Binance  BinanceConfig  `toml:"binance" yaml:"binance"`
	Market   MarketConfig   `toml:"market" yaml:"market"`
	Decision DecisionConfig `toml:"decision" yaml:"decision"`
	Risk     RiskConfig     `toml:"risk" yaml:"risk"`
	Store    StoreConfig    `toml:"store" yaml:"store"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
	S3       S3Config       `toml:"s3" yaml:"s3"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	LogLevel string         `toml:"log_level" yaml:"log_level"`
}

// AppConfig holds the trading loop parameters.
type AppConfig struct {
	Symbol         string   `toml:"symbol" yaml:"symbol"`
	InitialBalance float64  `toml:"initial_balance" yaml:"initial_balance"`
	Interval       duration `toml:"interval" yaml:"interval"`
	OrderExpiry    duration `toml:"order_expiry" yaml:"order_expiry"`
	TradesPerCycle int      `toml:"trades_per_cycle" yaml:"trades_per_cycle"`
	MinRealCycle   int      `toml:"min_real_cycle" yaml:"min_real_cycle"`
	// LockTTL bounds how long the per-symbol Redis lock survives a crash.
	LockTTL duration `toml:"lock_ttl" yaml:"lock_ttl"`
}

// BinanceConfig holds USDT-M futures credentials. With live disabled the
// agent trades on paper and only reads market data.
type BinanceConfig struct {
	Enabled             bool   `toml:"enabled" yaml:"enabled"`
	APIKey              string `toml:"api_key" yaml:"api_key"`
	APISecret           string `toml:"api_secret" yaml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path" yaml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password" yaml:"secret_password"`
	Testnet             bool   `toml:"testnet" yaml:"testnet"`
	BaseURL             string `toml:"base_url" yaml:"base_url"`
}

// MarketConfig controls snapshot construction.
type MarketConfig struct {
	CandleInterval string   `toml:"candle_interval" yaml:"candle_interval"`
	CandleLimit    int      `toml:"candle_limit" yaml:"candle_limit"`
	DepthLimit     int      `toml:"depth_limit" yaml:"depth_limit"`
	PriceCacheTTL  duration `toml:"price_cache_ttl" yaml:"price_cache_ttl"`
}

// DecisionConfig selects and configures the decision source.
type DecisionConfig struct {
	Source           string      `toml:"source" yaml:"source"`
	DecisionsPerHour int         `toml:"decisions_per_hour" yaml:"decisions_per_hour"`
	LLM              LLMConfig   `toml:"llm" yaml:"llm"`
	Rules            RulesConfig `toml:"rules" yaml:"rules"`
}

// LLMConfig holds the chat-completions endpoint parameters.
type LLMConfig struct {
	BaseURL       string   `toml:"base_url" yaml:"base_url"`
	APIKey        string   `toml:"api_key" yaml:"api_key"`
	Model         string   `toml:"model" yaml:"model"`
	Temperature   float64  `toml:"temperature" yaml:"temperature"`
	MaxTokens     int      `toml:"max_tokens" yaml:"max_tokens"`
	Timeout       duration `toml:"timeout" yaml:"timeout"`
	PromptCandles int      `toml:"prompt_candles" yaml:"prompt_candles"`
}

// RulesConfig tunes the pattern-driven fallback source.
type RulesConfig struct {
	MinStrength        float64 `toml:"min_strength" yaml:"min_strength"`
	MaxDistancePercent float64 `toml:"max_distance_percent" yaml:"max_distance_percent"`
	StopBufferPercent  float64 `toml:"stop_buffer_percent" yaml:"stop_buffer_percent"`
	RewardRatio        float64 `toml:"reward_ratio" yaml:"reward_ratio"`
}

// RiskConfig can only tighten the built-in hard limits.
type RiskConfig struct {
	MaxRiskPerTradePercent float64 `toml:"max_risk_per_trade_percent" yaml:"max_risk_per_trade_percent"`
	MaxDailyLossPercent    float64 `toml:"max_daily_loss_percent" yaml:"max_daily_loss_percent"`
	MinRiskRewardRatio     float64 `toml:"min_risk_reward_ratio" yaml:"min_risk_reward_ratio"`
	MaxLeverage            float64 `toml:"max_leverage" yaml:"max_leverage"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string   `toml:"driver" yaml:"driver"`
	SQLitePath  string   `toml:"sqlite_path" yaml:"sqlite_path"`
	SaveTimeout duration `toml:"save_timeout" yaml:"save_timeout"`
	// FailureAlertAfter is the consecutive failed save count that raises
	// a persistence alert.
	FailureAlertAfter int `toml:"failure_alert_after" yaml:"failure_alert_after"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty addr disables
// the cache, the event bus and the instance lock.
type RedisConfig struct {
	Addr       string `toml:"addr" yaml:"addr"`
	Password   string `toml:"password" yaml:"password"`
	DB         int    `toml:"db" yaml:"db"`
	PoolSize   int    `toml:"pool_size" yaml:"pool_size"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled" yaml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the
// fine-tune export. An empty bucket disables the export.
type S3Config struct {
	Endpoint       string  `toml:"endpoint" yaml:"endpoint"`
	Region         string  `toml:"region" yaml:"region"`
	Bucket         string  `toml:"bucket" yaml:"bucket"`
	AccessKey      string  `toml:"access_key" yaml:"access_key"`
	SecretKey      string  `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool    `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool    `toml:"force_path_style" yaml:"force_path_style"`
	Prefix         string  `toml:"prefix" yaml:"prefix"`
	PartSizeMB     int64   `toml:"part_size_mb" yaml:"part_size_mb"`
	MinConfidence  float64 `toml:"min_confidence" yaml:"min_confidence"`
}

// ServerConfig holds the dashboard API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	APIKey      string   `toml:"api_key" yaml:"api_key"`
	RateLimit   int      `toml:"rate_limit" yaml:"rate_limit"`
	RateWindow  duration `toml:"rate_window" yaml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url" yaml:"discord_webhook_url"`
	Events            []string `toml:"events" yaml:"events"`
}

// duration is a wrapper around time.Duration that supports string decoding
// (e.g. "5m", "30s") from both TOML and YAML.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so BurntSushi/toml can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Defaults returns a Config populated with safe paper-trading defaults.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Symbol:         "BTCUSDT",
			InitialBalance: 10000,
			Interval:       duration{60 * time.Second},
			OrderExpiry:    duration{30 * time.Minute},
			TradesPerCycle: 100,
			MinRealCycle:   3,
			LockTTL:        duration{30 * time.Second},
		},
		Binance: BinanceConfig{
			Testnet: true,
		},
		Market: MarketConfig{
			CandleInterval: "15m",
			CandleLimit:    100,
			DepthLimit:     100,
			PriceCacheTTL:  duration{5 * time.Second},
		},
		Decision: DecisionConfig{
			Source:           "rules",
			DecisionsPerHour: 60,
			LLM: LLMConfig{
				BaseURL:       "https://api.openai.com/v1",
				Model:         "gpt-4o-mini",
				Temperature:   0.2,
				MaxTokens:     800,
				Timeout:       duration{60 * time.Second},
				PromptCandles: 50,
			},
			Rules: RulesConfig{
				MinStrength:        0.5,
				MaxDistancePercent: 2,
				StopBufferPercent:  0.5,
				RewardRatio:        2,
			},
		},
		Store: StoreConfig{
			Driver:            "sqlite",
			SQLitePath:        "aitrader.db",
			SaveTimeout:       duration{5 * time.Second},
			FailureAlertAfter: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "aitrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
			Prefix:         "finetune",
			PartSizeMB:     5,
			MinConfidence:  0.6,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "daily_limit_reached", "risk_limit_warning", "persistence_failing", "cycle_completed", "error"},
		},
		LogLevel: "info",
	}
}

var validDrivers = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"memory":   true,
}

var validSources = map[string]bool{
	"llm":   true,
	"rules": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// App
	if strings.TrimSpace(c.App.Symbol) == "" {
		errs = append(errs, "app: symbol must not be empty")
	}
	if c.App.InitialBalance <= 0 {
		errs = append(errs, "app: initial_balance must be > 0")
	}
	if c.App.Interval.Duration < time.Second {
		errs = append(errs, "app: interval must be at least 1s")
	}
	if c.App.OrderExpiry.Duration <= 0 {
		errs = append(errs, "app: order_expiry must be > 0")
	}
	if c.App.TradesPerCycle < 1 {
		errs = append(errs, "app: trades_per_cycle must be >= 1")
	}
	if c.App.MinRealCycle < 1 {
		errs = append(errs, "app: min_real_cycle must be >= 1")
	}

	// Binance
	if c.Binance.Enabled {
		if c.Binance.APIKey == "" {
			errs = append(errs, "binance: api_key is required when enabled")
		}
		if c.Binance.APISecret == "" && c.Binance.EncryptedSecretPath == "" {
			errs = append(errs, "binance: either api_secret or encrypted_secret_path must be set when enabled")
		}
		if c.Binance.EncryptedSecretPath != "" && c.Binance.SecretPassword == "" {
			errs = append(errs, "binance: secret_password is required when encrypted_secret_path is set")
		}
	}

	// Market
	if c.Market.CandleLimit < 1 || c.Market.CandleLimit > 1500 {
		errs = append(errs, fmt.Sprintf("market: candle_limit must be 1-1500, got %d", c.Market.CandleLimit))
	}

	// Decision
	if !validSources[strings.ToLower(c.Decision.Source)] {
		errs = append(errs, fmt.Sprintf("decision: unknown source %q (valid: llm, rules)", c.Decision.Source))
	}
	if strings.EqualFold(c.Decision.Source, "llm") {
		if c.Decision.LLM.APIKey == "" {
			errs = append(errs, "decision: llm.api_key is required for the llm source")
		}
		if c.Decision.LLM.BaseURL == "" {
			errs = append(errs, "decision: llm.base_url must not be empty")
		}
	}
	if c.Decision.DecisionsPerHour < 0 {
		errs = append(errs, "decision: decisions_per_hour must be >= 0")
	}

	// Risk overrides may only be zero (use the hard limit) or tighter.
	if c.Risk.MaxRiskPerTradePercent < 0 || c.Risk.MaxDailyLossPercent < 0 ||
		c.Risk.MinRiskRewardRatio < 0 || c.Risk.MaxLeverage < 0 {
		errs = append(errs, "risk: limits must not be negative")
	}

	// Store
	driver := strings.ToLower(c.Store.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: postgres, sqlite, memory)", c.Store.Driver))
	}
	if driver == "sqlite" && c.Store.SQLitePath == "" {
		errs = append(errs, "store: sqlite_path must not be empty for the sqlite driver")
	}
	if driver == "postgres" {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Bucket != "" && c.S3.PartSizeMB < 5 {
		errs = append(errs, "s3: part_size_mb must be >= 5")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
