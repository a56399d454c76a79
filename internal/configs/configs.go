package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppURL                 string
	DatabaseDSN            string
	RedisAddr              string
	RedisOutboxKey         string
	BroadcastChatID        string
	RateLimit              int
	LogLevel               string
	ShutdownTimeoutSeconds int

	Warn48hInterval     time.Duration
	Warn24hInterval     time.Duration
	Warn1hInterval      time.Duration
	OverdueInterval     time.Duration
	ReminderInterval    time.Duration
	WeeklyDigestEnabled bool
}

func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDSN:            getEnv("DATABASE_DSN", "taskforce.db"),
		RedisAddr:              fmt.Sprintf("%s:%s", redisHost, redisPort),
		RedisOutboxKey:         getEnv("REDIS_OUTBOX_KEY", "taskforce_outbox"),
		BroadcastChatID:        getEnv("BROADCAST_CHAT_ID", ""),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),

		Warn48hInterval:     getEnvAsMinutes("WARN_48H_INTERVAL_MINUTES", 60),
		Warn24hInterval:     getEnvAsMinutes("WARN_24H_INTERVAL_MINUTES", 60),
		Warn1hInterval:      getEnvAsMinutes("WARN_1H_INTERVAL_MINUTES", 15),
		OverdueInterval:     getEnvAsMinutes("OVERDUE_INTERVAL_MINUTES", 10),
		ReminderInterval:    getEnvAsMinutes("REMINDER_INTERVAL_MINUTES", 1),
		WeeklyDigestEnabled: getEnvAsBool("WEEKLY_DIGEST_ENABLED", true),
	}

	validate(cfg)
	return cfg
}

func validate(cfg Config) {
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.RedisOutboxKey == "" {
		log.Fatal("REDIS_OUTBOX_KEY must not be empty")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.Warn48hInterval <= 0 || cfg.Warn24hInterval <= 0 || cfg.Warn1hInterval <= 0 {
		log.Fatal("warning sweep intervals must be greater than 0")
	}
	if cfg.OverdueInterval <= 0 {
		log.Fatal("OVERDUE_INTERVAL_MINUTES must be greater than 0")
	}
	if cfg.ReminderInterval <= 0 {
		log.Fatal("REMINDER_INTERVAL_MINUTES must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}

func getEnvAsMinutes(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultVal)) * time.Minute
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Fatalf("invalid boolean value for %s", key)
		}
		return b
	}
	return defaultVal
}
