// Command leadledger serves the lead marketplace over HTTP.
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

	"github.com/joho/godotenv"

	"github.com/xraph/leadledger"
	amqphook "github.com/xraph/leadledger/amqp_hook"
	"github.com/xraph/leadledger/api"
	audithook "github.com/xraph/leadledger/audit_hook"
	"github.com/xraph/leadledger/cache"
	"github.com/xraph/leadledger/observability"
	"github.com/xraph/leadledger/store/backend"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("leadledger exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}

	opts := []leadledger.Option{
		leadledger.WithLogger(logger),
		leadledger.WithViewCost(cfg.ViewCost),
		leadledger.WithRemoveDeltaMode(cfg.RemoveDeltaMode),
		leadledger.WithPlugin(audithook.New(audithook.LogRecorder(logger), audithook.WithLogger(logger))),
	}

	if cfg.RedisAddr != "" {
		views, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = s.Close()
			return err
		}
		defer views.Close()
		opts = append(opts, leadledger.WithViewCache(views))
		logger.Info("view cache enabled", "addr", cfg.RedisAddr)
	}

	if cfg.AMQPURL != "" {
		conn, err := amqphook.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPAttempts, logger)
		if err != nil {
			_ = s.Close()
			return err
		}
		defer conn.Close()
		opts = append(opts, leadledger.WithPlugin(amqphook.New(conn, cfg.AMQPExchange, amqphook.WithLogger(logger))))
	}

	var apiOpts []api.Option
	apiOpts = append(apiOpts, api.WithLogger(logger))
	if cfg.MetricsEnabled {
		factory := observability.NewPrometheusFactory(nil)
		opts = append(opts, leadledger.WithPlugin(observability.NewMetricsExtension(factory)))
		apiOpts = append(apiOpts, api.WithMetricsHandler(factory.Handler()))
	}

	engine := leadledger.New(s, opts...)
	if err := engine.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Warn("engine stop", "error", err)
		}
	}()

	if cfg.SuperadminEmail != "" && cfg.SuperadminPassword != "" {
		_, created, err := engine.SeedSuperadmin(ctx, cfg.SuperadminEmail, cfg.SuperadminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("superadmin created", "email", cfg.SuperadminEmail)
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	tokens := api.NewTokenService([]byte(secret), cfg.JWTTTL, nil)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.New(engine, tokens, apiOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
