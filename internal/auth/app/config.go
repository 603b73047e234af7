package app

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/ratelimit"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	SecretKey     string // Required outside dev/test: HMAC signing secret
	SecretKeyFile string // Optional: file holding the secret, read when SecretKey is empty
	Algorithm     string // Optional: HS256, HS384 or HS512 (default: HS256)
	Issuer        string // Optional: iss claim (default: triage-auth)

	AccessTTL  time.Duration // AUTH_ACCESS_TTL_MINUTES (default: 30m)
	RefreshTTL time.Duration // AUTH_REFRESH_TTL_DAYS (default: 7d)
	ResetTTL   time.Duration // AUTH_RESET_TTL_HOURS (default: 1h)
	VerifyTTL  time.Duration // AUTH_VERIFY_TTL_HOURS (default: 24h)

	HashAlgorithm string // bcrypt or argon2id (default: bcrypt)
	BcryptCost    int    // default: 12
	HashWorkers   int    // concurrent hash operations (default: NumCPU)

	BootstrapAdminEmail    string // Optional: seed an admin into an empty database
	BootstrapAdminUsername string
	BootstrapAdminPassword string

	RateLimitBackend string // memory or redis (default: memory)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RateLimits       ratelimit.Rules
	TrustProxy       bool // take the client address from the last X-Forwarded-For hop or X-Real-IP

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./triage.db)
	Env                  string        // Environment (dev, test, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// LoadConfig reads the environment, after loading .env when one exists.
func LoadConfig() Config {
	_ = godotenv.Load() // a missing .env is fine

	defaults := ratelimit.DefaultRules()

	return Config{
		SecretKey:     os.Getenv("AUTH_SECRET_KEY"),
		SecretKeyFile: os.Getenv("AUTH_SECRET_KEY_FILE"),
		Algorithm:     getEnvOrDefault("AUTH_ALGORITHM", "HS256"),
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "triage-auth"),

		AccessTTL:  time.Duration(getEnvIntOrDefault("AUTH_ACCESS_TTL_MINUTES", 30)) * time.Minute,
		RefreshTTL: time.Duration(getEnvIntOrDefault("AUTH_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,
		ResetTTL:   time.Duration(getEnvIntOrDefault("AUTH_RESET_TTL_HOURS", 1)) * time.Hour,
		VerifyTTL:  time.Duration(getEnvIntOrDefault("AUTH_VERIFY_TTL_HOURS", 24)) * time.Hour,

		HashAlgorithm: getEnvOrDefault("AUTH_HASH_ALGORITHM", cryptox.AlgorithmBcrypt),
		BcryptCost:    getEnvIntOrDefault("AUTH_BCRYPT_COST", cryptox.DefaultBcryptCost),
		HashWorkers:   getEnvIntOrDefault("AUTH_HASH_WORKERS", runtime.NumCPU()),

		BootstrapAdminEmail:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminUsername: os.Getenv("AUTH_BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),

		RateLimitBackend: strings.ToLower(getEnvOrDefault("RATELIMIT_BACKEND", BackendMemory)),
		RedisAddr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvIntOrDefault("REDIS_DB", 0),
		RateLimits: ratelimit.Rules{
			Login:    getEnvRule("LOGIN", defaults.Login),
			Register: getEnvRule("REGISTER", defaults.Register),
			Reset:    getEnvRule("RESET", defaults.Reset),
			Refresh:  getEnvRule("REFRESH", defaults.Refresh),
			Verify:   getEnvRule("VERIFY", defaults.Verify),
		},
		TrustProxy: getEnvBoolOrDefault("TRUST_PROXY", false),

		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "triage.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// IsDevelopment reports whether the process may run with generated secrets.
func (c Config) IsDevelopment() bool {
	return c.Env == "dev" || c.Env == "test"
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.SecretKey == "" && c.SecretKeyFile == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("AUTH_SECRET_KEY is required outside dev and test"))
	}
	if c.SecretKey != "" && len(c.SecretKey) < jwtx.MinSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_SECRET_KEY must be at least %d bytes", jwtx.MinSecretLength))
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q is not one of HS256, HS384, HS512", c.Algorithm))
	}
	for name, ttl := range map[string]time.Duration{
		"AUTH_ACCESS_TTL_MINUTES": c.AccessTTL,
		"AUTH_REFRESH_TTL_DAYS":   c.RefreshTTL,
		"AUTH_RESET_TTL_HOURS":    c.ResetTTL,
		"AUTH_VERIFY_TTL_HOURS":   c.VerifyTTL,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	switch c.HashAlgorithm {
	case cryptox.AlgorithmBcrypt, cryptox.AlgorithmArgon2id:
	default:
		errs = append(errs, fmt.Errorf("AUTH_HASH_ALGORITHM %q is not bcrypt or argon2id", c.HashAlgorithm))
	}
	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATELIMIT_BACKEND %q is not memory or redis", c.RateLimitBackend))
	}
	for name, rule := range map[string]ratelimit.Rule{
		"LOGIN":    c.RateLimits.Login,
		"REGISTER": c.RateLimits.Register,
		"RESET":    c.RateLimits.Reset,
		"REFRESH":  c.RateLimits.Refresh,
		"VERIFY":   c.RateLimits.Verify,
	} {
		if rule.Requests <= 0 || rule.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATELIMIT_%s_REQUESTS and _WINDOW_SEC must be positive", name))
		}
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("AUTH_BOOTSTRAP_ADMIN_EMAIL and AUTH_BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// TokenConfig is the signing configuration handed to jwtx.
func (c Config) TokenConfig(secret []byte) jwtx.Config {
	return jwtx.Config{
		Secret:     secret,
		Algorithm:  c.Algorithm,
		Issuer:     c.Issuer,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		ResetTTL:   c.ResetTTL,
		VerifyTTL:  c.VerifyTTL,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getEnvRule reads RATELIMIT_<op>_REQUESTS and RATELIMIT_<op>_WINDOW_SEC.
func getEnvRule(op string, def ratelimit.Rule) ratelimit.Rule {
	return ratelimit.Rule{
		Requests: getEnvIntOrDefault("RATELIMIT_"+op+"_REQUESTS", def.Requests),
		Window:   time.Duration(getEnvIntOrDefault("RATELIMIT_"+op+"_WINDOW_SEC", int(def.Window/time.Second))) * time.Second,
	}
}
