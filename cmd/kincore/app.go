package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kincore/internal/blob"
	"kincore/internal/config"
	"kincore/internal/core"
	"kincore/internal/export"
	"kincore/internal/logger"
)

// app holds everything a command needs, built from configuration.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	svc      *core.Service
	exporter *export.Exporter
	// registry is nil when Prometheus metrics are disabled.
	registry *prometheus.Registry
	closers  []io.Closer
}

// loadEnvFile applies path to the process environment. The default .env is
// optional; an explicitly named file must exist.
func loadEnvFile(path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	return godotenv.Load(path)
}

type appOptions struct {
	stderr    io.Writer
	traceFile string
	withBlob  bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, opts.stderr)
	log.Debug("configuration loaded", "config", cfg)

	a := &app{cfg: cfg, log: log}
	svcOpts := []core.ServiceOption{
		core.WithLogger(log.With(logger.Scope("service"))),
		core.WithAuditRecorder(core.NewSlogAuditRecorder(log)),
	}

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder, err := core.NewPrometheusMetricsRecorder(cfg.Metrics.Namespace, a.registry)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, core.WithMetricsRecorder(recorder))
	} else {
		svcOpts = append(svcOpts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
	}

	if opts.traceFile != "" {
		f, err := os.OpenFile(opts.traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(f)))
	}

	store, closer, err := core.OpenPersistentStore(ctx, cfg.PersistentStorage(), core.NewDefaultRulesEngine())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closer)
	a.svc = core.NewService(store, svcOpts...)

	if opts.withBlob {
		blobs, err := blob.Open(ctx, cfg.BlobStorage())
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		a.exporter = export.New(blobs)
	}
	return a, nil
}

// Close releases stores and files in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
