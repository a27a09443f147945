package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	ImageBackendLocal = "local"
	ImageBackendGCS   = "gcs"

	TransportLog   = "log"
	TransportRedis = "redis"
	TransportNone  = "none"
)

// Config holds every setting read from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StorageDriver string
	DatabasePath  string
	MongoURI      string
	MongoDatabase string

	ImageBackend     string
	ImageDir         string
	ImageUniqueNames bool
	GCSBucket        string

	RedisAddress     string
	RedisPassword    string
	IssueLimitPrefix string
	IssueLimit       int
	IssueLimitWindow time.Duration

	NotifyTransport string
	NotifyQueue     string

	CORSAllowedOrigins []string
	TrustedProxies     []string
}

// Load reads .env if present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "5000"),
		Env:              getEnv("GO_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverSQLite)),
		DatabasePath:     getEnv("DATABASE_PATH", "fixmycity.db"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "fixmycity"),
		ImageBackend:     strings.ToLower(getEnv("IMAGE_BACKEND", ImageBackendLocal)),
		ImageDir:         getEnv("IMAGE_DIR", "images"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		IssueLimitPrefix: getEnv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit"),
		NotifyTransport:  strings.ToLower(getEnv("NOTIFY_TRANSPORT", TransportLog)),
		NotifyQueue:      getEnv("NOTIFY_QUEUE", "fixmycity:notifications"),
	}

	var err error
	if cfg.ImageUniqueNames, err = strconv.ParseBool(getEnv("IMAGE_UNIQUE_NAMES", "true")); err != nil {
		return nil, fmt.Errorf("invalid IMAGE_UNIQUE_NAMES: %w", err)
	}
	if cfg.IssueLimit, err = strconv.Atoi(getEnv("ISSUE_LIMIT", "20")); err != nil {
		return nil, fmt.Errorf("invalid ISSUE_LIMIT: %w", err)
	}
	if cfg.IssueLimitWindow, err = time.ParseDuration(getEnv("ISSUE_LIMIT_WINDOW", "24h")); err != nil {
		return nil, fmt.Errorf("invalid ISSUE_LIMIT_WINDOW: %w", err)
	}

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))
	// Empty means no proxy is trusted and client IPs come from the socket.
	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH must not be empty")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("please define the MONGODB_URI environment variable")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.ImageBackend {
	case ImageBackendLocal:
	case ImageBackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when IMAGE_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}

	switch c.NotifyTransport {
	case TransportLog, TransportNone:
	case TransportRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when NOTIFY_TRANSPORT=redis")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.NotifyTransport)
	}

	if c.IssueLimit < 1 {
		return fmt.Errorf("ISSUE_LIMIT must be positive")
	}

	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", proxy)
		}
	}
	return nil
}

// IsProduction reports whether GO_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
