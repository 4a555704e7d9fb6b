package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTarget = "0x00000000000000000000000000000000000000aa"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", validTarget)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Equal(t, BankrollFixed, cfg.BankrollMode)
	assert.Equal(t, 1000.0, cfg.FixedBankroll)
	assert.Equal(t, 0.01, cfg.MinPrice)
	assert.Equal(t, 0.99, cfg.MaxPrice)
	assert.Equal(t, 60*time.Second, cfg.MaxTradeAge)
	assert.Equal(t, 0.25, cfg.MaxKellyFraction)
	assert.Equal(t, "FOK", cfg.OrderType)
	assert.Equal(t, 9090, cfg.PrometheusPort)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", validTarget)
	t.Setenv("DRY_RUN", "false")
	t.Setenv("POLYMARKET_PRIVATE_KEY", "secret-key-material")
	t.Setenv("MAX_BET_SIZE_USD", "250")
	t.Setenv("POLL_INTERVAL_SECONDS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.DryRun)
	assert.Equal(t, 250.0, cfg.MaxBetSizeUSD)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
}

func TestLoadLowercasesTargetAccount(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", "0x00000000000000000000000000000000000000AA")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, validTarget, cfg.TargetAccount)
}

func TestValidateMissingTarget(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_ACCOUNT")
}

func TestValidateMalformedTarget(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", "not-an-address")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateLiveRequiresKey(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", validTarget)
	t.Setenv("DRY_RUN", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLYMARKET_PRIVATE_KEY")
}

func TestValidateDynamicRequiresWallet(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", validTarget)
	t.Setenv("BANKROLL_MODE", "dynamic")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_ADDRESS")
}

func TestValidatePriceRange(t *testing.T) {
	t.Setenv("TARGET_ACCOUNT", validTarget)
	t.Setenv("MIN_PRICE", "0.5")
	t.Setenv("MAX_PRICE", "0.4")

	_, err := Load()
	assert.Error(t, err)
}

func TestMaskedSecrets(t *testing.T) {
	cfg := &Config{
		PrivateKey:       "abcdef1234567890",
		TelegramBotToken: "",
	}

	assert.Equal(t, "abcd****7890", cfg.MaskedPrivateKey())
	assert.Equal(t, "(not set)", cfg.MaskedTelegramToken())
}
