package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mediastore/internal/resilience"
)

const (
	defaultPort          = "8080"
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultJWTAccessTTL  = "24h"
	defaultDatabaseURL   = "mediastore.db"
	defaultProvider      = "local"
	defaultLocalRoot     = "./uploads"
	defaultLocalBaseURL  = "http://localhost:8080/media/content"
	defaultS3Region      = "us-east-1"
	defaultHTTPTimeout   = "30s"
	defaultGraphBaseURL  = "https://graph.facebook.com"
	defaultGraphVersion  = "v20.0"
	defaultTempDir       = "./uploads/tmp"
	defaultTempMaxAge    = "24h"
	defaultMultipartMin  = 100 << 20
	defaultS3PartSize    = 16 << 20
	defaultPageSize      = 20
	defaultMaxPageSize   = 100
	defaultRetryAttempts = 3
	defaultRetryWait     = "1s"
	defaultLimitPeriod   = "1s"
	defaultLimitFor      = 10
	defaultAPILimitFor   = 100
	defaultAPIPeriod     = "1m"
	defaultBreakerWait   = "10s"
	defaultSlowThreshold = "2s"
)

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	Root          string
	PublicBaseURL string
}

// S3StorageConfig configures the S3-compatible backend.
type S3StorageConfig struct {
	Endpoint                string
	AccessKey               string
	SecretKey               string
	UseSSL                  bool
	Bucket                  string
	Region                  string
	PublicBaseURL           string
	MultipartThresholdBytes int64
	PartSizeBytes           int64
}

// WhatsAppConfig configures the Graph API media gateway.
type WhatsAppConfig struct {
	BaseURL         string
	APIVersion      string
	OutgoingEnabled bool
	Timeout         time.Duration
}

// ClientConfig configures one internal HTTP client.
type ClientConfig struct {
	BaseURL         string
	OutgoingEnabled bool
	Timeout         time.Duration
}

// CleanupConfig configures the temp file janitor.
type CleanupConfig struct {
	TempDir string
	MaxAge  time.Duration
}

// APIRateLimitConfig bounds inbound request rates per caller and
// endpoint class.
type APIRateLimitConfig struct {
	Enabled bool
	Limiter resilience.RateLimiterConfig
}

// PaginationConfig bounds listing page sizes.
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Config is the full runtime configuration, loaded once at startup.
type Config struct {
	AppEnv       string
	Port         string
	DatabaseURL  string
	JWTSecret    string
	JWTAccessTTL time.Duration

	StorageProvider string
	Local           LocalStorageConfig
	S3              S3StorageConfig

	WhatsApp     WhatsAppConfig
	Organisation ClientConfig
	User         ClientConfig

	RateLimiter  resilience.RateLimiterConfig
	Breaker      resilience.BreakerConfig
	Retry        resilience.RetryConfig
	APIRateLimit APIRateLimitConfig

	Pagination PaginationConfig
	Cleanup    CleanupConfig
}

// Load reads .env when present, then the environment. Unknown
// STORAGE_PROVIDER values and malformed durations fail startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.Port = getEnv("PORT", defaultPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	cfg.StorageProvider = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", defaultProvider)))
	switch cfg.StorageProvider {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unknown STORAGE_PROVIDER %q, expected local or s3", cfg.StorageProvider)
	}

	cfg.Local = LocalStorageConfig{
		Root:          getEnv("LOCAL_STORAGE_ROOT", defaultLocalRoot),
		PublicBaseURL: getEnv("LOCAL_PUBLIC_BASE_URL", defaultLocalBaseURL),
	}

	cfg.S3 = S3StorageConfig{
		Endpoint:      getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		UseSSL:        parseBoolEnv("S3_USE_SSL", "true"),
		Bucket:        os.Getenv("S3_BUCKET"),
		Region:        getEnv("S3_REGION", defaultS3Region),
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
	}
	cfg.S3.MultipartThresholdBytes, err = parseBytesEnv("S3_MULTIPART_THRESHOLD_BYTES", defaultMultipartMin)
	if err != nil {
		return nil, err
	}
	cfg.S3.PartSizeBytes, err = parseBytesEnv("S3_PART_SIZE_BYTES", defaultS3PartSize)
	if err != nil {
		return nil, err
	}
	if cfg.StorageProvider == "s3" {
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET must be set when STORAGE_PROVIDER=s3")
		}
		if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set when STORAGE_PROVIDER=s3")
		}
	}

	httpTimeout, err := parseDurationEnv("HTTP_CLIENT_TIMEOUT", defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}

	cfg.WhatsApp = WhatsAppConfig{
		BaseURL:         getEnv("WHATSAPP_BASE_URL", defaultGraphBaseURL),
		APIVersion:      getEnv("WHATSAPP_API_VERSION", defaultGraphVersion),
		OutgoingEnabled: parseBoolEnv("WHATSAPP_OUTGOING_ENABLED", "true"),
		Timeout:         httpTimeout,
	}
	cfg.Organisation = ClientConfig{
		BaseURL:         getEnv("ORGANISATION_SERVICE_URL", "http://localhost:8081"),
		OutgoingEnabled: parseBoolEnv("ORGANISATION_CLIENT_ENABLED", "true"),
		Timeout:         httpTimeout,
	}
	cfg.User = ClientConfig{
		BaseURL:         getEnv("USER_SERVICE_URL", "http://localhost:8082"),
		OutgoingEnabled: parseBoolEnv("USER_CLIENT_ENABLED", "true"),
		Timeout:         httpTimeout,
	}

	if cfg.RateLimiter, err = loadRateLimiter(); err != nil {
		return nil, err
	}
	if cfg.Breaker, err = loadBreaker(); err != nil {
		return nil, err
	}
	if cfg.Retry, err = loadRetry(); err != nil {
		return nil, err
	}
	if cfg.APIRateLimit, err = loadAPIRateLimit(); err != nil {
		return nil, err
	}

	cfg.Pagination = PaginationConfig{
		DefaultPageSize: parseIntEnv("PAGE_SIZE_DEFAULT", defaultPageSize),
		MaxPageSize:     parseIntEnv("PAGE_SIZE_MAX", defaultMaxPageSize),
	}
	if cfg.Pagination.DefaultPageSize < 1 || cfg.Pagination.MaxPageSize < cfg.Pagination.DefaultPageSize {
		return nil, fmt.Errorf("invalid pagination bounds: default=%d max=%d",
			cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	}

	maxAge, err := parseDurationEnv("CLEANUP_MAX_AGE", defaultTempMaxAge)
	if err != nil {
		return nil, err
	}
	cfg.Cleanup = CleanupConfig{
		TempDir: getEnv("CLEANUP_TEMP_DIR", defaultTempDir),
		MaxAge:  maxAge,
	}

	if isProdLike(cfg.AppEnv) && cfg.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
	}

	return cfg, nil
}

func loadRateLimiter() (resilience.RateLimiterConfig, error) {
	cfg := resilience.RateLimiterConfig{
		LimitForPeriod: parseIntEnv("RATE_LIMIT_FOR_PERIOD", defaultLimitFor),
	}
	var err error
	cfg.LimitRefreshPeriod, err = parseDurationEnv("RATE_LIMIT_REFRESH_PERIOD", defaultLimitPeriod)
	if err != nil {
		return cfg, err
	}
	cfg.TimeoutDuration, err = parseDurationEnv("RATE_LIMIT_TIMEOUT", "0s")
	if err != nil {
		return cfg, err
	}
	if cfg.LimitForPeriod < 1 {
		return cfg, fmt.Errorf("RATE_LIMIT_FOR_PERIOD must be >= 1")
	}
	return cfg, nil
}

func loadBreaker() (resilience.BreakerConfig, error) {
	cfg := resilience.DefaultBreakerConfig()
	cfg.SlidingWindowSize = parseIntEnv("BREAKER_SLIDING_WINDOW_SIZE", cfg.SlidingWindowSize)
	cfg.MinimumNumberOfCalls = parseIntEnv("BREAKER_MINIMUM_CALLS", cfg.MinimumNumberOfCalls)
	cfg.FailureRateThreshold = float64(parseIntEnv("BREAKER_FAILURE_RATE", int(cfg.FailureRateThreshold)))
	cfg.SlowCallRateThreshold = float64(parseIntEnv("BREAKER_SLOW_CALL_RATE", int(cfg.SlowCallRateThreshold)))
	cfg.PermittedCallsInHalfOpen = parseIntEnv("BREAKER_HALF_OPEN_CALLS", cfg.PermittedCallsInHalfOpen)
	cfg.AutomaticTransition = parseBoolEnv("BREAKER_AUTO_HALF_OPEN", "true")

	var err error
	cfg.SlowCallDurationThreshold, err = parseDurationEnv("BREAKER_SLOW_CALL_THRESHOLD", defaultSlowThreshold)
	if err != nil {
		return cfg, err
	}
	cfg.WaitDurationInOpenState, err = parseDurationEnv("BREAKER_WAIT_IN_OPEN", defaultBreakerWait)
	if err != nil {
		return cfg, err
	}
	if cfg.SlidingWindowSize < cfg.MinimumNumberOfCalls {
		return cfg, fmt.Errorf("BREAKER_SLIDING_WINDOW_SIZE must be >= BREAKER_MINIMUM_CALLS")
	}
	return cfg, nil
}

func loadAPIRateLimit() (APIRateLimitConfig, error) {
	cfg := APIRateLimitConfig{
		Enabled: parseBoolEnv("API_RATE_LIMIT_ENABLED", "true"),
		Limiter: resilience.RateLimiterConfig{
			LimitForPeriod: parseIntEnv("API_RATE_LIMIT_CAPACITY", defaultAPILimitFor),
		},
	}
	var err error
	cfg.Limiter.LimitRefreshPeriod, err = parseDurationEnv("API_RATE_LIMIT_REFRESH_PERIOD", defaultAPIPeriod)
	if err != nil {
		return cfg, err
	}
	if cfg.Limiter.LimitForPeriod < 1 {
		return cfg, fmt.Errorf("API_RATE_LIMIT_CAPACITY must be >= 1")
	}
	return cfg, nil
}

func loadRetry() (resilience.RetryConfig, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: parseIntEnv("RETRY_MAX_ATTEMPTS", defaultRetryAttempts),
	}
	var err error
	cfg.WaitDuration, err = parseDurationEnv("RETRY_WAIT_DURATION", defaultRetryWait)
	if err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts < 1 {
		return cfg, fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	return cfg, nil
}

func isProdLike(env string) bool {
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseIntEnv(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseBytesEnv(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value %q", name, value)
	}
	return n, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
