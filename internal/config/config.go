package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Credential verifiers
const (
	VerifierGoTrue   = "gotrue"
	VerifierPostgres = "postgres"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Store         StoreConfig
	RateLimit     RateLimitConfig
	Verifier      VerifierConfig
	Session       SessionConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	DefaultLocale  string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// StoreConfig selects and tunes the attempt store
type StoreConfig struct {
	Backend         string
	Timeout         time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
}

// RateLimitConfig carries the lockout policy and the edge interception settings
type RateLimitConfig struct {
	MaxAttemptsBeforeCaptcha int
	MaxAttemptsBeforeLockout int
	LockoutDuration          time.Duration
	LoginPaths               []string
	TrustedProxies           []*net.IPNet
	TrustAllProxies          bool
	LoginRequestsPerMinute   int
}

type VerifierConfig struct {
	Kind        string
	ProviderURL string
	APIKey      string
	Timeout     time.Duration

	FailureDelayBase   time.Duration
	FailureDelayJitter time.Duration
}

type SessionConfig struct {
	Secret         string
	TTL            time.Duration
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string
}

type ObservabilityConfig struct {
	SentryDSN string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	trusted, err := parseTrustedProxies(getEnvAsList("TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, err
	}

	captchaAfter, err := policyInt("MAX_ATTEMPTS_BEFORE_CAPTCHA", 3)
	if err != nil {
		return nil, err
	}
	lockAfter, err := policyInt("MAX_ATTEMPTS_BEFORE_LOCKOUT", 4)
	if err != nil {
		return nil, err
	}
	lockoutDuration, err := policyDuration("LOCKOUT_DURATION", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			DefaultLocale:  getEnv("DEFAULT_LOCALE", "de"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "lrl"),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
			Timeout:         getEnvAsDuration("STORE_TIMEOUT", 2*time.Second),
			Retention:       getEnvAsDuration("RECORD_RETENTION", 24*time.Hour),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MaxAttemptsBeforeCaptcha: captchaAfter,
			MaxAttemptsBeforeLockout: lockAfter,
			LockoutDuration:          lockoutDuration,
			LoginPaths:               getEnvAsList("LOGIN_PATHS", []string{"/login", "/api/auth/login"}),
			TrustedProxies:           trusted,
			TrustAllProxies:          getEnvAsBool("TRUST_ALL_PROXIES", false),
			LoginRequestsPerMinute:   getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 30),
		},
		Verifier: VerifierConfig{
			Kind:        strings.ToLower(getEnv("VERIFIER", VerifierPostgres)),
			ProviderURL: strings.TrimRight(getEnv("IDENTITY_PROVIDER_URL", ""), "/"),
			APIKey:      getEnv("IDENTITY_PROVIDER_API_KEY", ""),
			Timeout:     getEnvAsDuration("VERIFIER_TIMEOUT", 5*time.Second),

			FailureDelayBase:   getEnvAsDuration("FAILURE_DELAY_BASE", 200*time.Millisecond),
			FailureDelayJitter: getEnvAsDuration("FAILURE_DELAY_JITTER", 100*time.Millisecond),
		},
		Session: SessionConfig{
			Secret:         getEnv("SESSION_SECRET", ""),
			TTL:            getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:   getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),
		},
		Observability: ObservabilityConfig{
			SentryDSN: getEnv("SENTRY_DSN", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validatePolicy(c.RateLimit); err != nil {
		return err
	}

	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, postgres, redis (got %q)", c.Store.Backend)
	}

	switch c.Verifier.Kind {
	case VerifierPostgres:
	case VerifierGoTrue:
		if c.Verifier.ProviderURL == "" {
			return fmt.Errorf("IDENTITY_PROVIDER_URL is required when VERIFIER=gotrue")
		}
	default:
		return fmt.Errorf("VERIFIER must be one of gotrue, postgres (got %q)", c.Verifier.Kind)
	}

	if c.NeedsDatabase() && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}

	if c.Store.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	if len(c.RateLimit.LoginPaths) == 0 {
		return fmt.Errorf("LOGIN_PATHS must name at least one path")
	}

	switch c.Session.CookieSameSite {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be one of lax, strict, none (got %q)", c.Session.CookieSameSite)
	}

	return validateSessionSecret(c.Session.Secret, c.Server.Env)
}

// NeedsDatabase reports whether any configured component talks to Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Store.Backend == StorePostgres || c.Verifier.Kind == VerifierPostgres
}

// validatePolicy rejects thresholds that would make the lockout policy unusable
func validatePolicy(rl RateLimitConfig) error {
	if rl.MaxAttemptsBeforeCaptcha < 1 {
		return fmt.Errorf("%w: MAX_ATTEMPTS_BEFORE_CAPTCHA must be at least 1",
			models.ErrPolicyMisconfiguration)
	}
	if rl.MaxAttemptsBeforeLockout < rl.MaxAttemptsBeforeCaptcha {
		return fmt.Errorf("%w: MAX_ATTEMPTS_BEFORE_LOCKOUT (%d) must not be below MAX_ATTEMPTS_BEFORE_CAPTCHA (%d)",
			models.ErrPolicyMisconfiguration, rl.MaxAttemptsBeforeLockout, rl.MaxAttemptsBeforeCaptcha)
	}
	if rl.LockoutDuration <= 0 {
		return fmt.Errorf("%w: LOCKOUT_DURATION must be positive", models.ErrPolicyMisconfiguration)
	}
	return nil
}

// validateSessionSecret enforces minimum security standards for the session signing key
func validateSessionSecret(secret, env string) error {
	if secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// policyInt is getEnvAsInt for lockout policy keys: a set but unparseable
// value is a misconfiguration, never a silent fallback
func policyInt(key string, defaultVal int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer (got %q)", models.ErrPolicyMisconfiguration, key, value)
	}
	return intVal, nil
}

// policyDuration requires a Go duration with a unit, e.g. "30m"
func policyDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a duration such as 30m (got %q)", models.ErrPolicyMisconfiguration, key, value)
	}
	return duration, nil
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultVal
	}
	return items
}

// parseTrustedProxies accepts CIDRs or bare addresses
func parseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}

		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q: %w", entry, err)
		}
		nets = append(nets, ipNet)
	}
	return nets, nil
}
