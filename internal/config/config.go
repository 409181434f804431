package config

import (
	"os"
	"strconv"
	"time"
)

const (
	StoreModeLocal  = "local"
	StoreModeRemote = "remote"
)

type Config struct {
	HTTPAddr string
	LogMode  string

	// StoreMode selects the session-wide source of truth: "remote" runs
	// against MySQL with the local replica as fallback, "local" runs fully
	// in memory with demo seed data.
	StoreMode     string
	MySQLDSN      string
	RemoteTimeout time.Duration

	RedisAddr string

	JWTSecret string
	TokenTTL  time.Duration

	// DemoUsers seeds the static auth provider: "email:password:role,...".
	DemoUsers string

	AllowDuplicateSKU bool
}

func Load() Config {
	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogMode:           getEnv("LOG_MODE", "dev"),
		StoreMode:         getEnv("STORE_MODE", StoreModeLocal),
		MySQLDSN:          getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/stockledger?parseTime=true"),
		RemoteTimeout:     time.Duration(getEnvInt("REMOTE_TIMEOUT_MS", 3000)) * time.Millisecond,
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		JWTSecret:         getEnv("JWT_SECRET", "defaultsecret"),
		TokenTTL:          time.Duration(getEnvInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
		DemoUsers:         getEnv("DEMO_USERS", "admin@example.com:admin:admin,staff@example.com:staff:staff"),
		AllowDuplicateSKU: getEnvBool("ALLOW_DUPLICATE_SKU", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
