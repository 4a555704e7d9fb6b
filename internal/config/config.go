// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bankroll modes.
const (
	BankrollFixed   = "fixed"
	BankrollDynamic = "dynamic"
)

// Config holds all configuration values for the copy-trading engine.
type Config struct {
	// Target account
	TargetAccount        string
	TargetInitialCapital float64

	// Trading mode
	DryRun        bool
	BankrollMode  string
	FixedBankroll float64
	WalletAddress string
	PrivateKey    string

	// Polymarket endpoints
	WSURL       string
	DataAPIURL  string
	GammaAPIURL string
	ClobAPIURL  string

	// Feed
	WSReconnectDelay time.Duration
	WSMaxReconnects  int
	PollInterval     time.Duration

	// Validation thresholds
	MinPrice           float64
	MaxPrice           float64
	MinHoursUntilClose float64
	Min24hVolumeUSD    float64
	MaxTradeAge        time.Duration
	MaxTradesPerHour   int
	MinTradeInterval   time.Duration
	DailyLossLimitPct  float64
	MaxDrawdownPct     float64
	MinEdgePct         float64
	MaxKellyFraction   float64

	// Position limits
	MinBetSizeUSD       float64
	MaxBetSizeUSD       float64
	MaxBetPctPortfolio  float64
	MaxPriceMovementPct float64

	// Execution
	ExecMaxRetries   int
	ExecTotalTimeout time.Duration
	ExecRetryDelay   time.Duration
	SlippagePct      float64
	OrderType        string

	// Telegram
	TelegramBotToken   string
	TelegramChatID     string
	NotifyTrades       bool
	NotifyRejections   bool
	NotifyErrors       bool
	NotifyBreakers     bool
	NotifyDailySummary bool

	// Metrics
	PrometheusPort int

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		// Target
		TargetAccount:        strings.ToLower(getEnv("TARGET_ACCOUNT", "")),
		TargetInitialCapital: getEnvFloat("TARGET_INITIAL_CAPITAL", 10000),

		// Mode
		DryRun:        getEnvBool("DRY_RUN", true),
		BankrollMode:  getEnv("BANKROLL_MODE", BankrollFixed),
		FixedBankroll: getEnvFloat("FIXED_BANKROLL", 1000),
		WalletAddress: strings.ToLower(getEnv("WALLET_ADDRESS", "")),
		PrivateKey:    getEnv("POLYMARKET_PRIVATE_KEY", ""),

		// Endpoints
		WSURL:       getEnv("POLYMARKET_WS_URL", "wss://ws-live-data.polymarket.com"),
		DataAPIURL:  getEnv("POLYMARKET_DATA_API", "https://data-api.polymarket.com"),
		GammaAPIURL: getEnv("POLYMARKET_GAMMA_API", "https://gamma-api.polymarket.com"),
		ClobAPIURL:  getEnv("POLYMARKET_CLOB_API", "https://clob.polymarket.com"),

		// Feed
		WSReconnectDelay: time.Duration(getEnvInt("WS_RECONNECT_DELAY_SECONDS", 5)) * time.Second,
		WSMaxReconnects:  getEnvInt("WS_MAX_RECONNECTS", 10),
		PollInterval:     time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)) * time.Second,

		// Validation
		MinPrice:           getEnvFloat("MIN_PRICE", 0.01),
		MaxPrice:           getEnvFloat("MAX_PRICE", 0.99),
		MinHoursUntilClose: getEnvFloat("MIN_HOURS_UNTIL_CLOSE", 24),
		Min24hVolumeUSD:    getEnvFloat("MIN_24H_VOLUME_USD", 5000),
		MaxTradeAge:        time.Duration(getEnvInt("MAX_TRADE_AGE_SECONDS", 60)) * time.Second,
		MaxTradesPerHour:   getEnvInt("MAX_TRADES_PER_HOUR", 10),
		MinTradeInterval:   time.Duration(getEnvInt("MIN_SECONDS_BETWEEN_TRADES", 30)) * time.Second,
		DailyLossLimitPct:  getEnvFloat("DAILY_LOSS_LIMIT_PCT", 5),
		MaxDrawdownPct:     getEnvFloat("MAX_DRAWDOWN_PCT", 15),
		MinEdgePct:         getEnvFloat("MIN_EDGE_PCT", 0),
		MaxKellyFraction:   getEnvFloat("MAX_KELLY_FRACTION", 0.25),

		// Position limits
		MinBetSizeUSD:       getEnvFloat("MIN_BET_SIZE_USD", 0.001),
		MaxBetSizeUSD:       getEnvFloat("MAX_BET_SIZE_USD", 1000),
		MaxBetPctPortfolio:  getEnvFloat("MAX_BET_PCT_PORTFOLIO", 10),
		MaxPriceMovementPct: getEnvFloat("MAX_PRICE_MOVEMENT_PCT", 5),

		// Execution
		ExecMaxRetries:   getEnvInt("EXEC_MAX_RETRIES", 3),
		ExecTotalTimeout: time.Duration(getEnvInt("EXEC_TOTAL_TIMEOUT_SECONDS", 3)) * time.Second,
		ExecRetryDelay:   time.Duration(getEnvInt("EXEC_RETRY_DELAY_MS", 500)) * time.Millisecond,
		SlippagePct:      getEnvFloat("SLIPPAGE_PCT", 1),
		OrderType:        getEnv("ORDER_TYPE", "FOK"),

		// Telegram
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		NotifyTrades:       getEnvBool("NOTIFY_TRADES", true),
		NotifyRejections:   getEnvBool("NOTIFY_REJECTIONS", true),
		NotifyErrors:       getEnvBool("NOTIFY_ERRORS", true),
		NotifyBreakers:     getEnvBool("NOTIFY_CIRCUIT_BREAKERS", true),
		NotifyDailySummary: getEnvBool("NOTIFY_DAILY_SUMMARY", true),

		// Metrics
		PrometheusPort: getEnvInt("PROMETHEUS_PORT", 9090),

		// UI
		EnableTUI:     getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
// Failures here are fatal at startup, before any trade processing begins.
func (c *Config) Validate() error {
	if c.TargetAccount == "" {
		return fmt.Errorf("TARGET_ACCOUNT is required")
	}

	if !strings.HasPrefix(c.TargetAccount, "0x") || len(c.TargetAccount) != 42 {
		return fmt.Errorf("TARGET_ACCOUNT must be a 0x-prefixed 40-hex-char address")
	}

	if c.BankrollMode != BankrollFixed && c.BankrollMode != BankrollDynamic {
		return fmt.Errorf("BANKROLL_MODE must be %q or %q", BankrollFixed, BankrollDynamic)
	}

	if c.BankrollMode == BankrollFixed && c.FixedBankroll <= 0 {
		return fmt.Errorf("FIXED_BANKROLL must be positive")
	}

	if c.BankrollMode == BankrollDynamic && c.WalletAddress == "" {
		return fmt.Errorf("WALLET_ADDRESS is required in dynamic bankroll mode")
	}

	if !c.DryRun && c.PrivateKey == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY is required for live trading")
	}

	if c.MinPrice <= 0 || c.MaxPrice >= 1 || c.MinPrice >= c.MaxPrice {
		return fmt.Errorf("price range [%v, %v] must satisfy 0 < min < max < 1", c.MinPrice, c.MaxPrice)
	}

	if c.MaxKellyFraction <= 0 || c.MaxKellyFraction > 1 {
		return fmt.Errorf("MAX_KELLY_FRACTION must be in (0, 1]")
	}

	if c.MinBetSizeUSD < 0 || c.MaxBetSizeUSD <= 0 || c.MinBetSizeUSD >= c.MaxBetSizeUSD {
		return fmt.Errorf("bet size bounds [%v, %v] are invalid", c.MinBetSizeUSD, c.MaxBetSizeUSD)
	}

	if c.ExecMaxRetries < 1 {
		return fmt.Errorf("EXEC_MAX_RETRIES must be at least 1")
	}

	if c.PrometheusPort < 1 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 1 and 65535")
	}

	return nil
}

// MaskedPrivateKey returns the private key with most characters hidden for logging.
func (c *Config) MaskedPrivateKey() string {
	return maskSecret(c.PrivateKey)
}

// MaskedTelegramToken returns the bot token with most characters hidden for logging.
func (c *Config) MaskedTelegramToken() string {
	return maskSecret(c.TelegramBotToken)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
