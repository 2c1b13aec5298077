package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohamedS2020/lifetag/internal/app"
	"github.com/mohamedS2020/lifetag/internal/authz"
	"github.com/mohamedS2020/lifetag/internal/config"
	"github.com/mohamedS2020/lifetag/internal/grpchealth"
	"github.com/mohamedS2020/lifetag/internal/httpapi"
	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
	"github.com/mohamedS2020/lifetag/internal/logging"
	"github.com/mohamedS2020/lifetag/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lifetag-server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	stores, err := app.OpenStores(ctx, cfg, logger, app.OpenOptions{SeedDev: true})
	if err != nil {
		return err
	}
	defer stores.Close()

	// Services
	m := metrics.New()
	svc := app.NewServices(cfg, stores, app.Observers{Gate: m, Retention: m}, nil, logger)

	scheduler := service.NewRetentionScheduler(svc.Retention, service.SchedulerConfig{
		Interval: cfg.Retention.Interval,
	}, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// gRPC health
	health := grpchealth.New(logger)
	if cfg.GRPC.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.HealthAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("grpc health error", slog.Any("error", err))
			}
		}()
		defer health.Shutdown()
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:              logger,
		Addr:                cfg.HTTP.Addr,
		Gate:                svc.Gate,
		Sessions:            svc.Sessions,
		Profiles:            svc.Profiles,
		Audit:               svc.Audit,
		Retention:           svc.Retention,
		Tokens:              authz.NewTokenManager(cfg.Admin.TokenSecret, cfg.Admin.TokenTTL),
		Metrics:             m.Handler(),
		VerifyRatePerMinute: cfg.HTTP.VerifyRatePerMinute,
	})
	if cfg.Admin.TokenSecret == "" {
		logger.Warn("admin token secret not set, admin endpoints disabled")
	}

	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTP.Addr), slog.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	for _, name := range []string{"", grpchealth.ServiceGate, grpchealth.ServiceRetention} {
		health.SetServing(name, true)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	for _, name := range []string{"", grpchealth.ServiceGate, grpchealth.ServiceRetention} {
		health.SetServing(name, false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
