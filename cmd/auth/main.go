package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkauth/internal/app"
	"linkauth/internal/config"
	"linkauth/internal/observability/logging"
	"linkauth/internal/observability/metrics"
	httpx "linkauth/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "auth",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	logger.Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, sqlDB, err := app.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	svc, err := app.Wire(st, cfg, logger)
	if err != nil {
		logger.Error("wire services", "error", err)
		os.Exit(1)
	}
	metrics.MustRegister("auth")

	go svc.Sweeper.Run(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpx.NewRouter(svc.Auth, svc.RouterOptions(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	slog.Info("auth service listening", "addr", srv.Addr, "issuer", cfg.Issuer)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
