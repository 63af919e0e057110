package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"kincore/internal/blob"
	"kincore/internal/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(nil)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Environment != "local" || cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	storage := cfg.PersistentStorage()
	if storage.Driver != core.StorageSQLite || storage.SQLitePath != "./kincore.db" {
		t.Fatalf("unexpected storage %+v", storage)
	}
	if b := cfg.BlobStorage(); b.Driver != blob.DriverFilesystem || b.FSRoot != "./exports" || b.S3.Region != "us-east-1" {
		t.Fatalf("unexpected blob config %+v", b)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "kincore" {
		t.Fatalf("unexpected metrics %+v", cfg.Metrics)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"KINCORE_ENVIRONMENT":           "production",
		"KINCORE_LOG_LEVEL":             "debug",
		"KINCORE_LOG_FORMAT":            "json",
		"KINCORE_HTTP_ADDR":             "127.0.0.1:9000",
		"KINCORE_HTTP_READ_TIMEOUT":     "2s",
		"KINCORE_STORAGE_DRIVER":        "postgres",
		"KINCORE_POSTGRES_DSN":          "postgres://kin:pw@db:5432/kin",
		"KINCORE_BLOB_DRIVER":           "s3",
		"KINCORE_BLOB_S3_BUCKET":        "trees",
		"KINCORE_BLOB_S3_ENDPOINT":      "http://minio:9000",
		"KINCORE_BLOB_S3_PATH_STYLE":    "true",
		"KINCORE_BLOB_S3_ACCESS_KEY_ID": "AKIA",
		"KINCORE_METRICS_ENABLED":       "false",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Environment != "production" || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log settings %+v", cfg)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("unexpected http settings %+v", cfg.HTTP)
	}
	if s := cfg.PersistentStorage(); s.Driver != core.StoragePostgres || s.PostgresDSN != "postgres://kin:pw@db:5432/kin" {
		t.Fatalf("unexpected storage %+v", s)
	}
	b := cfg.BlobStorage()
	if b.Driver != blob.DriverS3 || b.S3.Bucket != "trees" || !b.S3.PathStyle || b.S3.Endpoint != "http://minio:9000" || b.S3.AccessKeyID != "AKIA" {
		t.Fatalf("unexpected blob config %+v", b)
	}
	if cfg.Metrics.Enabled {
		t.Fatalf("expected metrics disabled")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown storage", map[string]string{"KINCORE_STORAGE_DRIVER": "mongo"}, `unknown storage driver "mongo"`},
		{"postgres without dsn", map[string]string{"KINCORE_STORAGE_DRIVER": "postgres"}, "KINCORE_POSTGRES_DSN"},
		{"unknown blob", map[string]string{"KINCORE_BLOB_DRIVER": "gcs"}, `unknown blob driver "gcs"`},
		{"s3 without bucket", map[string]string{"KINCORE_BLOB_DRIVER": "s3"}, "KINCORE_BLOB_S3_BUCKET"},
		{"bad log format", map[string]string{"KINCORE_LOG_FORMAT": "xml"}, `unknown log format "xml"`},
		{"bad duration", map[string]string{"KINCORE_HTTP_READ_TIMEOUT": "soon"}, "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateRequiresNamespaceWhenMetricsEnabled(t *testing.T) {
	cfg, err := LoadFrom(nil)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	cfg.Metrics.Namespace = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "KINCORE_METRICS_NAMESPACE") {
		t.Fatalf("expected namespace error, got %v", err)
	}
	cfg.Metrics.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled metrics need no namespace: %v", err)
	}
}

func TestLoadReadsProcessEnvironment(t *testing.T) {
	t.Setenv("KINCORE_STORAGE_DRIVER", "memory")
	t.Setenv("KINCORE_BLOB_DRIVER", "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Blob.Driver != "memory" {
		t.Fatalf("unexpected drivers %+v %+v", cfg.Storage, cfg.Blob)
	}
}

func TestLogValueOmitsSecrets(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"KINCORE_STORAGE_DRIVER":            "postgres",
		"KINCORE_POSTGRES_DSN":              "postgres://kin:hunter2@db/kin",
		"KINCORE_BLOB_S3_SECRET_ACCESS_KEY": "hunter2",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("configuration loaded", "config", cfg)
	out := buf.String()
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "storage_driver=postgres") {
		t.Fatalf("unexpected log output %s", out)
	}
}
