package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL   string
	DBMaxOpen     int
	HTTPAddr      string
	LogLevel      string
	Env           string // dev|prod
	SentryDSN     string
	Location      *time.Location
	JWTSecret     string
	TelegramToken string // пусто — уведомления выключены
	DateLayout    string // формат {date} в сертификате
	StatsInterval time.Duration
}

func (c *Config) IsProd() bool { return strings.ToLower(c.Env) == "prod" }

func Load() (*Config, error) {
	tz := getenv("TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	maxOpen, err := strconv.Atoi(getenv("DB_MAX_OPEN_CONNS", "10"))
	if err != nil || maxOpen <= 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: bad value %q", os.Getenv("DB_MAX_OPEN_CONNS"))
	}

	interval, err := time.ParseDuration(getenv("STATS_REFRESH_INTERVAL", "1m"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("STATS_REFRESH_INTERVAL: bad duration %q", os.Getenv("STATS_REFRESH_INTERVAL"))
	}

	cfg := &Config{
		DatabaseURL:   mustEnv("DATABASE_URL"),
		DBMaxOpen:     maxOpen,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           getenv("ENV", "dev"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Location:      loc,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DateLayout:    getenv("CERT_DATE_LAYOUT", "January 2, 2006"),
		StatsInterval: interval,
	}
	if cfg.IsProd() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when ENV=prod")
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
