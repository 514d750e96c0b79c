package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by TENANCY_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TENANCY_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreDriver selects the tenant and link store.
// Defaults to "postgres" if not set.
// Valid values: postgres, memory
func StoreDriver() string {
	d := os.Getenv("STORE_DRIVER")
	if d == "" {
		return "postgres"
	}
	return d
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RedisURL enables the shared tenant cache when set.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

// TenantCacheTTL bounds how long a resolved tenant may be served from cache.
// Defaults to 30s. Zero disables caching.
func TenantCacheTTL() time.Duration {
	return durationEnv("TENANT_CACHE_TTL", 30*time.Second, true)
}

// BackendProvider returns the commerce backend provider.
// Defaults to "http" if not set.
// Valid values: http, mock
func BackendProvider() string {
	p := os.Getenv("BACKEND_PROVIDER")
	if p == "" {
		return "http"
	}
	return p
}

func SalesChannelURL() string {
	return os.Getenv("SALES_CHANNEL_URL")
}

func CatalogURL() string {
	return os.Getenv("CATALOG_URL")
}

func CartURL() string {
	return os.Getenv("CART_URL")
}

func BackendAPIKey() string {
	return os.Getenv("BACKEND_API_KEY")
}

// StepTimeout bounds each external call made by a provisioning step.
// Defaults to 5s if not set.
func StepTimeout() time.Duration {
	return durationEnv("STEP_TIMEOUT", 5*time.Second, false)
}

// StepRetries is the number of extra attempts for a failed external step.
// Defaults to 1. Capped at 1.
func StepRetries() int {
	n, err := strconv.Atoi(os.Getenv("STEP_RETRIES"))
	if err != nil || n < 0 {
		return 1
	}
	if n > 1 {
		return 1
	}
	return n
}

// ProvisionParallel runs tenant and sales-channel creation concurrently.
// Defaults to true.
func ProvisionParallel() bool {
	v, err := strconv.ParseBool(os.Getenv("PROVISION_PARALLEL"))
	if err != nil {
		return true
	}
	return v
}

// AdminJWTSecret enables bearer authentication on admin routes when set.
func AdminJWTSecret() string {
	return os.Getenv("ADMIN_JWT_SECRET")
}

// AdminJWTIssuer is the expected "iss" claim. Empty skips the check.
func AdminJWTIssuer() string {
	return os.Getenv("ADMIN_JWT_ISSUER")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func durationEnv(key string, def time.Duration, allowZero bool) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return def
	}
	return d
}
