// Package config loads assetledger settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"assetledger/internal/blob"
	"assetledger/internal/core"
	"assetledger/pkg/domain"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Environment variable names.
const (
	EnvStorageDriver        = "ASSETLEDGER_STORAGE_DRIVER"
	EnvSQLitePath           = "ASSETLEDGER_SQLITE_PATH"
	EnvPostgresDSN          = "ASSETLEDGER_POSTGRES_DSN"
	EnvBlobDriver           = "ASSETLEDGER_BLOB_DRIVER"
	EnvBlobFSRoot           = "ASSETLEDGER_BLOB_FS_ROOT"
	EnvBlobS3Bucket         = "ASSETLEDGER_BLOB_S3_BUCKET"
	EnvBlobS3Region         = "ASSETLEDGER_BLOB_S3_REGION"
	EnvBlobS3Endpoint       = "ASSETLEDGER_BLOB_S3_ENDPOINT"
	EnvBlobS3AccessKey      = "ASSETLEDGER_BLOB_S3_ACCESS_KEY_ID"
	EnvBlobS3SecretKey      = "ASSETLEDGER_BLOB_S3_SECRET_ACCESS_KEY"
	EnvBlobS3PathStyle      = "ASSETLEDGER_BLOB_S3_PATH_STYLE"
	EnvRedisURL             = "ASSETLEDGER_REDIS_URL"
	EnvSweepSchedule        = "ASSETLEDGER_SWEEP_SCHEDULE"
	EnvSweepLockTTL         = "ASSETLEDGER_SWEEP_LOCK_TTL"
	EnvHTTPAddr             = "ASSETLEDGER_HTTP_ADDR"
	EnvLogLevel             = "ASSETLEDGER_LOG_LEVEL"
	EnvLogPretty            = "ASSETLEDGER_LOG_PRETTY"
	EnvReusabilityThreshold = "ASSETLEDGER_REUSABILITY_THRESHOLD"
)

// BlobDisabled turns the disposal archive off.
const BlobDisabled = "none"

// DefaultSweepSchedule runs the overdue sweep every 15 minutes.
const DefaultSweepSchedule = "0 */15 * * * *"

// DefaultSweepLockTTL bounds how long one sweep may hold the lock.
const DefaultSweepLockTTL = 5 * time.Minute

// Config holds application configuration.
type Config struct {
	Storage core.StorageConfig
	// Blob.Driver is empty when the archive is disabled.
	Blob                 blob.Config
	RedisURL             string
	SweepSchedule        string
	SweepLockTTL         time.Duration
	HTTPAddr             string
	LogLevel             string
	LogPretty            bool
	ReusabilityThreshold float64
}

// ArchiveEnabled reports whether disposal records are copied to a blob store.
func (c *Config) ArchiveEnabled() bool {
	return c.Blob.Driver != ""
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	blobDriver := strings.ToLower(getEnv(EnvBlobDriver, string(blob.DriverFilesystem)))
	if blobDriver == BlobDisabled {
		blobDriver = ""
	}

	cfg := &Config{
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(strings.ToLower(getEnv(EnvStorageDriver, string(core.StorageSQLite)))),
			SQLitePath:  getEnv(EnvSQLitePath, "./data/assetledger.db"),
			PostgresDSN: getEnv(EnvPostgresDSN, ""),
		},
		Blob: blob.Config{
			Driver: blob.Driver(blobDriver),
			FSRoot: getEnv(EnvBlobFSRoot, "./data/archive"),
			S3: blob.S3Config{
				Bucket:          getEnv(EnvBlobS3Bucket, ""),
				Region:          getEnv(EnvBlobS3Region, "us-east-1"),
				Endpoint:        getEnv(EnvBlobS3Endpoint, ""),
				AccessKeyID:     getEnv(EnvBlobS3AccessKey, ""),
				SecretAccessKey: getEnv(EnvBlobS3SecretKey, ""),
				PathStyle:       getEnvAsBool(EnvBlobS3PathStyle, false),
			},
		},
		RedisURL:             getEnv(EnvRedisURL, ""),
		SweepSchedule:        getEnv(EnvSweepSchedule, DefaultSweepSchedule),
		SweepLockTTL:         getEnvAsDuration(EnvSweepLockTTL, DefaultSweepLockTTL),
		HTTPAddr:             getEnv(EnvHTTPAddr, ":8080"),
		LogLevel:             getEnv(EnvLogLevel, "info"),
		LogPretty:            getEnvAsBool(EnvLogPretty, false),
		ReusabilityThreshold: getEnvAsFloat(EnvReusabilityThreshold, domain.DefaultReusabilityThreshold),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured drivers and values are usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory:
	case core.StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("%s is required for the sqlite driver", EnvSQLitePath))
		}
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%s is required for the postgres driver", EnvPostgresDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Blob.Driver {
	case "", blob.DriverMemory:
	case blob.DriverFilesystem:
		if c.Blob.FSRoot == "" {
			errs = append(errs, fmt.Errorf("%s is required for the fs blob driver", EnvBlobFSRoot))
		}
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s is required for the s3 blob driver", EnvBlobS3Bucket))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}

	if _, err := ParseSchedule(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvSweepSchedule, err))
	}
	if c.SweepLockTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvSweepLockTTL))
	}
	if c.ReusabilityThreshold < 0 || c.ReusabilityThreshold > 100 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 100], got %v", EnvReusabilityThreshold, c.ReusabilityThreshold))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvHTTPAddr))
	}
	return errors.Join(errs...)
}

// ParseSchedule parses a six-field cron expression (with seconds).
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
