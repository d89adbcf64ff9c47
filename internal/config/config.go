package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port                     string
	AppEnv                   string
	LogLevel                 string
	AllowedOrigin            string
	StoreDriver              string
	DatabaseURL              string
	SQLitePath               string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	DashboardCacheTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	AdminPassword            string
	LoginRatePerMinute       int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AppEnv:                   getEnv("APP_ENV", "development"),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		StoreDriver:              storeDriver(os.Getenv("STORE_DRIVER"), databaseURL),
		DatabaseURL:              databaseURL,
		SQLitePath:               getEnv("SQLITE_PATH", "ledger.db"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		DashboardCacheTTLSeconds: getPositiveInt("DASHBOARD_CACHE_TTL_SECONDS", 30),
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		AdminPassword:            os.Getenv("ADMIN_PASSWORD"),
		LoginRatePerMinute:       getPositiveInt("LOGIN_RATE_PER_MINUTE", 5),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// storeDriver picks postgres whenever a DATABASE_URL is given and no driver
// was named explicitly.
func storeDriver(raw string, databaseURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreDriverPostgres:
		return StoreDriverPostgres
	case StoreDriverMemory:
		return StoreDriverMemory
	case StoreDriverSQLite:
		return StoreDriverSQLite
	}
	if databaseURL != "" {
		return StoreDriverPostgres
	}
	return StoreDriverSQLite
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
