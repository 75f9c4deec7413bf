package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/config"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/decision/llm"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/decision/rules"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/risk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Store.Driver = "memory"
	return &cfg
}

func TestWirePaperDefaults(t *testing.T) {
	t.Parallel()

	deps, cleanup, err := Wire(context.Background(), memoryConfig(), testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Exchange, "paper trading has no exchange")
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.Exporter)
	assert.NotNil(t, deps.Feed)
	assert.NotNil(t, deps.Depth)
	assert.NotNil(t, deps.Notifier)
	assert.IsType(t, &rules.Source{}, deps.Brain)
	assert.Contains(t, deps.Checks, "binance")
	assert.NotContains(t, deps.Checks, "memory")

	_, err = deps.Store.LoadState(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWireLiveExchangeAndLLM(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Binance.Enabled = true
	cfg.Binance.APIKey = "key"
	cfg.Binance.APISecret = "secret"
	cfg.Decision.Source = "llm"
	cfg.Decision.LLM.APIKey = "sk-test"

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Exchange)
	assert.IsType(t, &llm.Client{}, deps.Brain)
}

func TestWireBadKeystore(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Binance.EncryptedSecretPath = "/nonexistent/key.json"
	cfg.Binance.SecretPassword = "pw"

	_, _, err := Wire(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance secret")
}

func TestOpenStoresMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores, cleanup, err := OpenStores(ctx, memoryConfig())
	require.NoError(t, err)
	defer cleanup()

	state := domain.NewLedgerState("BTCUSDT", 10000)
	require.NoError(t, stores.State.SaveState(ctx, state))

	got, err := stores.State.LoadState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 10000, got.CurrentBalance, 1e-9)
	assert.Nil(t, stores.Ping)
}

func TestPolicyOnlyTightens(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Risk.MaxRiskPerTradePercent = 1
	cfg.Risk.MaxLeverage = 1000

	limits := Policy(&cfg).Limits()
	assert.InDelta(t, 1, limits.MaxRiskPerTradePercent, 1e-9)
	assert.InDelta(t, risk.DefaultLimits().MaxLeverage, limits.MaxLeverage, 1e-9)
	assert.InDelta(t, risk.DefaultLimits().MaxDailyLossPercent, limits.MaxDailyLossPercent, 1e-9)
}

func TestEngineConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	ec := EngineConfig(&cfg)
	assert.Equal(t, "BTCUSDT", ec.Symbol)
	assert.Equal(t, 30*time.Minute, ec.OrderExpiry)
	assert.Equal(t, 100, ec.TradesPerCycle)
	assert.Equal(t, 3, ec.FailureAlertAfter)
}
