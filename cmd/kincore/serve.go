package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kincore/internal/adapters/httpapi"
	"kincore/internal/logger"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags, cmd)
		},
	}
}

func runServe(ctx context.Context, flags *rootFlags, cmd *cobra.Command) error {
	a, err := newApp(ctx, appOptions{stderr: cmd.ErrOrStderr(), traceFile: flags.traceFile, withBlob: true})
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log.With(logger.Scope("server"))

	opts := httpapi.Options{Logger: a.log, Debug: a.cfg.Environment == "local"}
	if a.registry != nil {
		opts.Gatherer = a.registry
	}
	e := httpapi.NewEcho(httpapi.NewHandler(a.svc, a.exporter), opts)
	if a.registry == nil {
		e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))
	}

	server := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", "address", server.Addr, "environment", a.cfg.Environment)
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down HTTP server")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
