package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	Storage     string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	JWTSecret string
	JWTIssuer string

	DefaultPageSize int
	MaxPageSize     int

	RateLimitRPS   float64
	RateLimitBurst int

	RepriceWorkers int
}

// Load reads the environment, optionally seeded from a .env file in the working directory.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	c := Config{
		AppEnv:          env("APP_ENV", "prod"),
		LogLevel:        env("LOG_LEVEL", "info"),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ":9100"),
		Storage:         env("APP_STORAGE", StorageMySQL),
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotels?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		CacheTTL:        time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		JWTSecret:       env("JWT_SECRET", ""),
		JWTIssuer:       env("JWT_ISSUER", ""),
		DefaultPageSize: atoi("DEFAULT_PAGE_SIZE", 10),
		MaxPageSize:     atoi("MAX_PAGE_SIZE", 100),
		RateLimitRPS:    atof("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  atoi("RATE_LIMIT_BURST", 40),
		RepriceWorkers:  atoi("REPRICE_WORKERS", 8),
	}
	if c.Storage != StorageMySQL && c.Storage != StorageMemory {
		log.Warn().Str("storage", c.Storage).Msg("unknown APP_STORAGE, using mysql")
		c.Storage = StorageMySQL
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	if c.RepriceWorkers < 1 {
		c.RepriceWorkers = 1
	}
	// a zero ttl would make redis keep entries forever
	if c.CacheTTL <= 0 {
		log.Warn().Dur("ttl", c.CacheTTL).Msg("CACHE_TTL_SECONDS must be positive, using default")
		c.CacheTTL = 900 * time.Second
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
