// Package config loads process configuration from the environment, the
// same mustEnv/getEnv shape as the teacher's config.Load, extended with
// exchange credentials, broker/store DSNs, and risk/sizing defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything a cmd/* binary needs to start.
type Config struct {
	// Exchange credentials
	ExchangeAPIKey    string
	ExchangeAPISecret string
	ExchangeBaseURL   string
	ExchangeInfoURL   string
	// ExchangeUserStreamURL is optional; empty disables the informational
	// user-data-stream listener entirely.
	ExchangeUserStreamURL string

	// Redis (streams + state store)
	RedisAddr     string
	RedisPassword string
	ConsumerGroup string
	ConsumerName  string

	// Postgres (order_states, bot config)
	PostgresDSN string
	SQLitePath  string

	MetricsAddr string

	// Subscription
	Symbols    []string
	Timeframes []string

	// Sizing/risk fallbacks used when a symbol's filters can't be loaded
	FallbackTick     string
	FallbackStep     string
	FallbackMinQty   string
	FallbackNotional string

	SnapshotInterval time.Duration
	ReconcileInterval time.Duration
	ExchangeTimeout   time.Duration

	// AlertWebhookURL is optional; empty falls back to a log-only notifier.
	AlertWebhookURL string
}

// Load reads configuration from environment variables with sensible
// defaults; exchange credentials are required, everything else degrades.
func Load() *Config {
	return &Config{
		ExchangeAPIKey:    mustEnv("EXCHANGE_API_KEY"),
		ExchangeAPISecret: mustEnv("EXCHANGE_API_SECRET"),
		ExchangeBaseURL:   getEnv("EXCHANGE_BASE_URL", "https://fapi.binance.com"),
		ExchangeInfoURL:   getEnv("EXCHANGE_INFO_URL", "https://fapi.binance.com/fapi/v1/exchangeInfo"),
		ExchangeUserStreamURL: getEnv("EXCHANGE_USER_STREAM_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "signalworker"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostnameOrDefault("worker-1")),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/order_states.db"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		Symbols:    parseCSV(getEnv("SYMBOLS", "BTCUSDT")),
		Timeframes: parseCSV(getEnv("TIMEFRAMES", "2m")),

		FallbackTick:     getEnv("FALLBACK_TICK", "0.01"),
		FallbackStep:     getEnv("FALLBACK_STEP", "0.001"),
		FallbackMinQty:   getEnv("FALLBACK_MIN_QTY", "0.001"),
		FallbackNotional: getEnv("FALLBACK_NOTIONAL", "5"),

		SnapshotInterval:  getDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 60*time.Second),
		ExchangeTimeout:   getDuration("EXCHANGE_TIMEOUT", 15*time.Second),

		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
	}
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func hostnameOrDefault(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
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

// EnvOrFatal exposes mustEnv to other packages that
// need the same fail-fast behavior for an ad-hoc variable.
func EnvOrFatal(key string) string { return mustEnv(key) }

func parseFloatEnv(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
