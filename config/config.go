package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Instruments and data feed
	Symbols        string
	BarInterval    string
	BinanceBaseURL string
	BinanceWSURL   string

	// Detection
	Strategy        string
	CheckInterval   time.Duration
	RSIPeriod       int
	RSIEMAPeriod    int
	ShortEMAPeriod  int
	LongEMAPeriod   int
	TrendlineLength int
	SlopeMethod     string
	MaxTrendlines   int
	SignalCooldown  time.Duration

	// Ledger
	InitialBalance   float64
	PositionNotional float64
	FeeRatePct       float64
	TakeProfitPct    float64
	StopLossPct      float64
	MaxTradeHistory  int
	ExportEveryN     int

	// Health tracking
	MaxRetries int
	Cooldown   time.Duration

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first when
// present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	return &Config{
		Symbols:        mustEnv("SYMBOLS"),
		BarInterval:    getEnv("BAR_INTERVAL", "1h"),
		BinanceBaseURL: getEnv("BINANCE_BASE_URL", ""),
		BinanceWSURL:   getEnv("BINANCE_WS_URL", ""),

		Strategy:        getEnv("STRATEGY", "rsi"),
		CheckInterval:   getEnvDur("CHECK_INTERVAL", 5*time.Minute),
		RSIPeriod:       getEnvInt("RSI_PERIOD", 14),
		RSIEMAPeriod:    getEnvInt("RSI_EMA_PERIOD", 9),
		ShortEMAPeriod:  getEnvInt("SHORT_EMA_PERIOD", 12),
		LongEMAPeriod:   getEnvInt("LONG_EMA_PERIOD", 26),
		TrendlineLength: getEnvInt("TRENDLINE_LENGTH", 10),
		SlopeMethod:     getEnv("SLOPE_METHOD", "pivot"),
		MaxTrendlines:   getEnvInt("MAX_TRENDLINES", 3),
		SignalCooldown:  getEnvDur("SIGNAL_COOLDOWN", 0),

		InitialBalance:   getEnvFloat("INITIAL_BALANCE_USDT", 1000),
		PositionNotional: getEnvFloat("POSITION_NOTIONAL_USDT", 15),
		FeeRatePct:       getEnvFloat("FEE_RATE_PCT", 0.1),
		TakeProfitPct:    getEnvFloat("TAKE_PROFIT_PCT", 15),
		StopLossPct:      getEnvFloat("STOP_LOSS_PCT", 15),
		MaxTradeHistory:  getEnvInt("MAX_TRADE_HISTORY", 1000),
		ExportEveryN:     getEnvInt("EXPORT_EVERY_N_TRADES", 10),

		MaxRetries: getEnvInt("MAX_RETRIES", 5),
		Cooldown:   getEnvDur("COOLDOWN", 15*time.Minute),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/trades.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSymbols splits the SYMBOLS list into trimmed, upper-cased,
// deduplicated instrument symbols, preserving order.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	seen := make(map[string]bool, len(parts))
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
