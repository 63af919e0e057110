// Package config loads kincore settings from KINCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"kincore/internal/blob"
	"kincore/internal/core"
)

// Prefix is prepended to every variable name.
const Prefix = "KINCORE_"

// Config holds all application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local"`

	Log     LogConfig
	HTTP    HTTPConfig
	Storage StorageConfig
	Blob    BlobConfig
	Metrics MetricsConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

// HTTPConfig holds server address and timeouts
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StorageConfig selects the person store backend.
type StorageConfig struct {
	Driver      string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./kincore.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// BlobConfig selects where tree exports are written.
type BlobConfig struct {
	Driver string `env:"BLOB_DRIVER" envDefault:"fs"`
	FSRoot string `env:"BLOB_FS_ROOT" envDefault:"./exports"`
	S3     S3Config
}

// S3Config holds bucket and credentials for the s3 blob driver
type S3Config struct {
	Bucket          string `env:"BLOB_S3_BUCKET"`
	Region          string `env:"BLOB_S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"BLOB_S3_ENDPOINT"`
	AccessKeyID     string `env:"BLOB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"BLOB_S3_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"BLOB_S3_SESSION_TOKEN"`
	PathStyle       bool   `env:"BLOB_S3_PATH_STYLE" envDefault:"false"`
}

// MetricsConfig controls the Prometheus recorder and /metrics.
type MetricsConfig struct {
	Enabled   bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"kincore"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment. Keys carry the
// KINCORE_ prefix.
func LoadFrom(vars map[string]string) (*Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	var errs []error
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("KINCORE_POSTGRES_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("KINCORE_BLOB_S3_BUCKET is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("KINCORE_METRICS_NAMESPACE must not be empty when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// PersistentStorage maps the storage section to core.StorageConfig.
func (c *Config) PersistentStorage() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobStorage maps the blob section to blob.Config.
func (c *Config) BlobStorage() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          c.Blob.S3.Bucket,
			Region:          c.Blob.S3.Region,
			Endpoint:        c.Blob.S3.Endpoint,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
			SessionToken:    c.Blob.S3.SessionToken,
			PathStyle:       c.Blob.S3.PathStyle,
		},
	}
}

// LogValue keeps credentials out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("environment", c.Environment),
		slog.String("http_addr", c.HTTP.Addr),
		slog.String("storage_driver", c.Storage.Driver),
		slog.String("blob_driver", c.Blob.Driver),
		slog.Bool("metrics", c.Metrics.Enabled),
	)
}
