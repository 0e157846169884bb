package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Runtime mode
	StagingMode bool

	// Ingestion
	PollInterval time.Duration
	Workers      int
	InboxDir     string // staging maildir; required when StagingMode is set

	// Extraction endpoint
	ExtractorURL    string
	ExtractorAPIKey string
	ExtractorModel  string

	// Validation and resolution
	ConfidenceThreshold float64
	AutoSKUPrefix       string

	// Stock backend
	StockAPIBase  string
	StockAPIToken string

	// Retry policy for stock backend and ledger calls
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	CommandAddr   string

	// Notifications: "discord", "telegram" or "log"
	NotifyChannel     string
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
}

// Load reads configuration from environment variables with sensible
// defaults. Staging mode relaxes the required set: everything external is
// swapped for local stand-ins.
func Load() *Config {
	cfg := &Config{
		StagingMode: getBool("STAGING_MODE", false),

		PollInterval: getDuration("POLL_INTERVAL", 2*time.Minute),
		Workers:      getInt("WORKERS", 4),
		InboxDir:     getEnv("INBOX_DIR", ""),

		ConfidenceThreshold: getFloat("CONFIDENCE_THRESHOLD", 0.7),
		AutoSKUPrefix:       getEnv("AUTO_SKU_PREFIX", ""),

		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:    getDuration("RETRY_MAX_DELAY", 4*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/ledger.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		CommandAddr:   getEnv("COMMAND_ADDR", ":8085"),

		NotifyChannel: getEnv("NOTIFY_CHANNEL", "log"),
	}

	if cfg.StagingMode {
		cfg.InboxDir = getEnv("INBOX_DIR", "testdata/inbox")
		return cfg
	}

	cfg.InboxDir = mustEnv("INBOX_DIR")
	cfg.ExtractorURL = mustEnv("EXTRACTOR_URL")
	cfg.ExtractorAPIKey = mustEnv("EXTRACTOR_API_KEY")
	cfg.ExtractorModel = getEnv("EXTRACTOR_MODEL", "gpt-4o-mini")

	cfg.StockAPIBase = mustEnv("STOCK_API_BASE")
	cfg.StockAPIToken = mustEnv("STOCK_API_TOKEN")

	switch cfg.NotifyChannel {
	case "discord":
		cfg.DiscordWebhookURL = mustEnv("DISCORD_WEBHOOK_URL")
	case "telegram":
		cfg.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
		cfg.TelegramChatID = mustEnv("TELEGRAM_CHAT_ID")
	case "log":
	default:
		log.Fatalf("[config] unknown NOTIFY_CHANNEL %q (want discord, telegram or log)", cfg.NotifyChannel)
	}
	return cfg
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

func getInt(key string, fallback int) int {
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

func getFloat(key string, fallback float64) float64 {
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

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
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
