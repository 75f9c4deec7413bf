package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.App.Interval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.App.OrderExpiry.Duration)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.App.Symbol = ""
	cfg.Store.Driver = "bolt"
	cfg.Decision.Source = "llm"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown log_level "loud"`,
		"app: symbol must not be empty",
		`store: unknown driver "bolt"`,
		"decision: llm.api_key is required",
		"telegram_token and telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateBinanceCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		binance BinanceConfig
		wantErr string
	}{
		{name: "disabled needs nothing", binance: BinanceConfig{}},
		{name: "raw secret", binance: BinanceConfig{Enabled: true, APIKey: "k", APISecret: "s"}},
		{name: "encrypted secret", binance: BinanceConfig{Enabled: true, APIKey: "k", EncryptedSecretPath: "key.json", SecretPassword: "pw"}},
		{name: "missing key", binance: BinanceConfig{Enabled: true, APISecret: "s"}, wantErr: "binance: api_key"},
		{name: "missing secret", binance: BinanceConfig{Enabled: true, APIKey: "k"}, wantErr: "encrypted_secret_path must be set"},
		{name: "keystore without password", binance: BinanceConfig{Enabled: true, APIKey: "k", EncryptedSecretPath: "key.json"}, wantErr: "secret_password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			cfg.Binance = tt.binance
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aitrader.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[app]
symbol = "ETHUSDT"
interval = "30s"

[store]
driver = "memory"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ETHUSDT", cfg.App.Symbol)
	assert.Equal(t, 30*time.Second, cfg.App.Interval.Duration)
	assert.Equal(t, "memory", cfg.Store.Driver)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.App.TradesPerCycle)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aitrader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  symbol: SOLUSDT
  order_expiry: 10m
server:
  port: 9090
  cors_origins: ["https://dash.example"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", cfg.App.Symbol)
	assert.Equal(t, 10*time.Minute, cfg.App.OrderExpiry.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dash.example"}, cfg.Server.CORSOrigins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AITRADER_SYMBOL", "BNBUSDT")
	t.Setenv("AITRADER_INTERVAL", "2m")
	t.Setenv("AITRADER_BINANCE_TESTNET", "false")
	t.Setenv("AITRADER_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("AITRADER_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BNBUSDT", cfg.App.Symbol)
	assert.Equal(t, 2*time.Minute, cfg.App.Interval.Duration)
	assert.False(t, cfg.Binance.Testnet)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// Unparseable values leave the default in place.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestRedactedConfig(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Binance.APISecret = "binance-secret"
	cfg.Decision.LLM.APIKey = "sk-live"
	cfg.Postgres.Password = "pg"
	cfg.Server.APIKey = "dash"

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Binance.APISecret)
	assert.Equal(t, redacted, out.Decision.LLM.APIKey)
	assert.Equal(t, redacted, out.Postgres.Password)
	assert.Equal(t, redacted, out.Server.APIKey)
	assert.Empty(t, out.Redis.Password)

	out.Notify.Events[0] = "mutated"
	assert.Equal(t, "binance-secret", cfg.Binance.APISecret)
	assert.NotEqual(t, "mutated", cfg.Notify.Events[0])
}
