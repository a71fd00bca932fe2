package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/httpx"
	"github.com/aussiebroadwan/medvault/pkg/jwtx"
)

type Config struct {
	Issuer string // Issuer claim for tokens and the TOTP issuer label (default: medvault)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./auth.db)
	DatabaseURL    string // Postgres DSN, required when DatabaseDriver is postgres
	PepperFile     string // File holding the credential pepper (default: ./pepper)

	// Raw token secrets. Empty values are resolved by LoadSecrets.
	AccessSecret     string
	RefreshSecret    string
	PreSessionSecret string

	AccessTTL     time.Duration // default: 15m
	RefreshTTL    time.Duration // default: 7d
	PreSessionTTL time.Duration // default: 5m

	HashParams cryptox.HashParams

	ServerEncryption bool   // Accept SERVER_MANAGED uploads (default: false)
	ServerKey        string // base64 AES-256 key for SERVER_MANAGED envelopes

	BlobBackend string // fs or s3 (default: fs)
	BlobDir     string // Root for the fs backend (default: ./blobs)
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	RedisAddr string          // Empty disables the login throttle
	Throttle  throttle.Config // LOGIN_MAX_ATTEMPTS / LOGIN_LOCKOUT_WINDOW

	Env                  string        // dev, test, staging, prod (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json or text (default: json)
	Port                 int           // HTTP port (default: 8080)
	ShutdownGracePeriod  time.Duration // default: 10s
	HousekeepingInterval time.Duration // default: 1h
	MaxUploadBytes       int64         // default: 32 MiB
	RateLimits           httpx.RateLimits
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) Config {
	env := envReader(getenv)

	hashParams := cryptox.DefaultHashParams
	hashParams.Memory = uint32(env.getInt("AUTH_HASH_MEMORY_KIB", int(hashParams.Memory)))         // #nosec G115 - floor enforced by NewHasher
	hashParams.Iterations = uint32(env.getInt("AUTH_HASH_ITERATIONS", int(hashParams.Iterations))) // #nosec G115
	hashParams.Parallelism = uint8(env.getInt("AUTH_HASH_PARALLELISM", int(hashParams.Parallelism)))

	return Config{
		Issuer:         env.get("AUTH_ISSUER", "medvault"),
		DatabaseDriver: strings.ToLower(env.get("AUTH_DATABASE_DRIVER", "sqlite")),
		DatabaseFile:   env.get("AUTH_DATABASE_FILE", "auth.db"),
		DatabaseURL:    getenv("AUTH_DATABASE_URL"),
		PepperFile:     env.get("AUTH_PEPPER_FILE", "pepper"),

		AccessSecret:     getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret:    getenv("AUTH_REFRESH_SECRET"),
		PreSessionSecret: getenv("AUTH_PRESESSION_SECRET"),

		AccessTTL:     env.getDuration("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:    env.getDuration("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		PreSessionTTL: env.getDuration("AUTH_PRESESSION_TTL", jwtx.DefaultPreSessionTokenTTL),

		HashParams: hashParams,

		ServerEncryption: env.getBool("ENVELOPE_SERVER_ENCRYPTION", false),
		ServerKey:        getenv("ENVELOPE_SERVER_KEY"),

		BlobBackend: strings.ToLower(env.get("BLOB_BACKEND", "fs")),
		BlobDir:     env.get("BLOB_DIR", "blobs"),
		S3Bucket:    getenv("S3_BUCKET"),
		S3Region:    env.get("S3_REGION", "us-east-1"),
		S3Endpoint:  getenv("S3_ENDPOINT"),
		S3AccessKey: getenv("S3_ACCESS_KEY"),
		S3SecretKey: getenv("S3_SECRET_KEY"),

		RedisAddr: getenv("REDIS_ADDR"),
		Throttle: throttle.Config{
			MaxAttempts: env.getInt("LOGIN_MAX_ATTEMPTS", throttle.DefaultConfig().MaxAttempts),
			Window:      env.getDuration("LOGIN_LOCKOUT_WINDOW", throttle.DefaultConfig().Window),
		},

		Env:                  env.get("ENV", "dev"),
		LogLevel:             env.get("LOG_LEVEL", "info"),
		LogFormat:            env.get("LOG_FORMAT", "json"),
		Port:                 env.getInt("PORT", 8080),
		ShutdownGracePeriod:  env.getDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: env.getDuration("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		MaxUploadBytes:       int64(env.getInt("MAX_UPLOAD_BYTES", 32<<20)),
		RateLimits:           httpx.LoadRateLimits(getenv),
	}
}

// Validate reports settings that cannot work together. Every failure wraps
// domain.ErrConfiguration.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			return configErrorf("AUTH_DATABASE_FILE is required for sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return configErrorf("AUTH_DATABASE_URL is required for postgres")
		}
	default:
		return configErrorf("unknown AUTH_DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	switch c.BlobBackend {
	case "fs":
		if c.BlobDir == "" {
			return configErrorf("BLOB_DIR is required for the fs backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			return configErrorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return configErrorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.ServerEncryption && c.ServerKey == "" {
		return configErrorf("ENVELOPE_SERVER_KEY is required when ENVELOPE_SERVER_ENCRYPTION is on")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.PreSessionTTL <= 0 {
		return configErrorf("token lifetimes must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return configErrorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return configErrorf("PORT %d out of range", c.Port)
	}
	return nil
}

// ephemeralSecretsAllowed reports whether missing secrets may be generated.
func (c Config) ephemeralSecretsAllowed() bool {
	return c.Env == "dev" || c.Env == "test"
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfiguration, fmt.Sprintf(format, args...))
}

type envReader func(string) string

func (e envReader) get(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) getInt(key string, defaultValue int) int {
	value := e(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func (e envReader) getBool(key string, defaultValue bool) bool {
	value := e(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func (e envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := e(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
