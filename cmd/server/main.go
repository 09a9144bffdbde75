package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/config"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/handler"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/metrics"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/notify"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/processor"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/ratelimit"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/repository"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/routes"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/signature"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("heartheals-webhooks", cfg.LogLevel, cfg.AppEnv)

	if cfg.WebhookSharedSecret == "" {
		slog.Warn("WEBHOOK_SHARED_SECRET is not set; every webhook delivery will be rejected with 500 until it is")
	}
	if cfg.HealthCheckToken == "" {
		slog.Warn("HEALTH_CHECK_TOKEN is not set; the snapshot endpoint will refuse all requests")
	}

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry(nil)

	limiter := ratelimit.NewLimiter(cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowMS)*time.Millisecond)
	go limiter.Start(ctx)

	var receipts processor.ReceiptSender
	if cfg.ReceiptServiceURL != "" {
		receipts = notify.NewReceiptClient(cfg.ReceiptServiceURL)
	}

	dispatcher := processor.NewDispatcher(
		repository.NewSubscriptionRepository(db),
		receipts,
		time.Duration(cfg.HandlerTimeoutMS)*time.Millisecond,
	)

	router := routes.New(routes.Deps{
		Webhook: handler.NewWebhookHandler(
			repository.NewProcessingRecordRepository(db),
			signature.NewVerifier(cfg.WebhookSharedSecret),
			dispatcher,
			reg,
		),
		WebhookHealth: handler.NewWebhookHealthHandler(reg, cfg.HealthCheckToken),
		Health:        handler.NewHealthHandler(db),
		Limiter:       limiter,
		Metrics:       reg,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var lastErr error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
