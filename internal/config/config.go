package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/model"
	"github.com/joho/godotenv"

	// База часовых поясов для TIMEZONE в минимальных образах
	_ "time/tzdata"
)

type Config struct {
	DBDSN              string
	Environment        string
	HTTPAddr           string
	JWTSecret          string
	TokenTTL           time.Duration
	Timezone           *time.Location
	AvailabilityPolicy model.AvailabilityPolicy
	DBConnectAttempts  uint64
	QueryRetries       uint64
	TelegramToken      string
	TelegramChatID     int64
	LoginRateLimit     int
}

// devJWTSecret используется вне production, если JWT_SECRET не задан
const devJWTSecret = "homeconnect-dev-secret"

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из getenv. Load вызывает её с os.Getenv
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:              getenv("DB_DSN"),
		Environment:        withDefault(getenv("ENV"), "development"),
		HTTPAddr:           withDefault(getenv("HTTP_ADDR"), ":8080"),
		JWTSecret:          getenv("JWT_SECRET"),
		AvailabilityPolicy: model.AvailabilityPolicy(withDefault(getenv("AVAILABILITY_POLICY"), string(model.PolicyNonCancelled))),
		TelegramToken:      getenv("TELEGRAM_TOKEN"),
	}

	var errs []error

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required but not set"))
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		cfg.JWTSecret = devJWTSecret
	}
	if !cfg.AvailabilityPolicy.Valid() {
		errs = append(errs, fmt.Errorf("AVAILABILITY_POLICY %q is not one of non_cancelled, active, any", cfg.AvailabilityPolicy))
	}

	var err error
	if cfg.TokenTTL, err = parseDuration(getenv, "TOKEN_TTL", 72*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.DBConnectAttempts, err = parseUint(getenv, "DB_CONNECT_ATTEMPTS", 5); err != nil {
		errs = append(errs, err)
	}
	if cfg.QueryRetries, err = parseUint(getenv, "QUERY_RETRIES", 2); err != nil {
		errs = append(errs, err)
	}

	limit, err := parseUint(getenv, "LOGIN_RATE_LIMIT", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.LoginRateLimit = int(limit)

	tz := withDefault(getenv("TIMEZONE"), "UTC")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", tz, err))
	}

	if raw := getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID %q is not an integer", raw))
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NotificationsEnabled сообщает, настроен ли Telegram
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != ""
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s %q is not a positive duration", key, raw)
	}
	return d, nil
}

func parseUint(getenv func(string) string, key string, def uint64) (uint64, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a non-negative integer", key, raw)
	}
	return n, nil
}
