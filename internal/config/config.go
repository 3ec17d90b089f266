package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix   = "RELIEF_"
	minKeyBytes = 32
)

type Config struct {
	HTTPAddr string
	GRPCAddr string
	LogLevel string
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	// StrictTransitions limits status changes to forward-only moves.
	StrictTransitions bool
	AutoMigrate       bool
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTKey           string
	JWTIssuer        string
	JWTAudience      string
	TokenExpiry      time.Duration
	AllowQueryToken  bool
	LoginMaxAttempts int
	LoginLockout     time.Duration
}

type HTTPConfig struct {
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
	CORSOrigins  []string
}

// Load reads RELIEF_* variables, after merging a .env file found in the working
// directory or one of its parents. Variables already set in the environment win.
func Load(log *slog.Logger) (Config, error) {
	if err := loadDotEnv(log); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":9090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StrictTransitions: getEnvBool("STRICT_TRANSITIONS", false),
		AutoMigrate:       getEnvBool("AUTO_MIGRATE", false),
		DB: DBConfig{
			DSN:             getEnv("PG_DSN", ""),
			MaxOpenConns:    getEnvInt("PG_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("PG_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("PG_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JWTKey:           getEnv("JWT_KEY", ""),
			JWTIssuer:        getEnv("JWT_ISSUER", ""),
			JWTAudience:      getEnv("JWT_AUDIENCE", ""),
			TokenExpiry:      time.Duration(getEnvInt("JWT_EXPIRY_MINUTES", 120)) * time.Minute,
			AllowQueryToken:  getEnvBool("AUTH_ALLOW_QUERY_TOKEN", true),
			LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginLockout:     getEnvDuration("LOGIN_LOCKOUT", 15*time.Minute),
		},
		HTTP: HTTPConfig{
			RateBurst:    getEnvInt("RATE_BURST", 20),
			RatePerSec:   getEnvInt("RATE_PER_SEC", 10),
			MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
			CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails closed: the service refuses to start without a usable signing setup.
func (c Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTKey) < minKeyBytes {
		errs = append(errs, fmt.Errorf("%sJWT_KEY must be at least %d bytes", envPrefix, minKeyBytes))
	}
	if strings.TrimSpace(c.Auth.JWTIssuer) == "" {
		errs = append(errs, fmt.Errorf("%sJWT_ISSUER is required", envPrefix))
	}
	if strings.TrimSpace(c.Auth.JWTAudience) == "" {
		errs = append(errs, fmt.Errorf("%sJWT_AUDIENCE is required", envPrefix))
	}
	if c.Auth.TokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("%sJWT_EXPIRY_MINUTES must be positive", envPrefix))
	}
	if c.HTTP.RateBurst <= 0 || c.HTTP.RatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("%sRATE_BURST and %sRATE_PER_SEC must be positive", envPrefix, envPrefix))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES must be positive", envPrefix))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
