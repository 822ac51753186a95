package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/fulfillment/internal/bootstrap"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/auth"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/scheduler"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/erp/fulfillment/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Apply pending SQL migrations before serving (postgres only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting fulfillment server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if err := run(cfg, log, migrate); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger, migrate bool) error {
	ctx := context.Background()
	clock := shared.SystemClock{}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, bootstrap.TracingConfig(cfg, "", version), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	storage, err := bootstrap.OpenStorage(cfg, log, bootstrap.StorageOptions{Migrate: migrate, Clock: clock})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("Error closing storage", zap.Error(err))
		}
	}()

	services, err := bootstrap.NewServices(storage, cfg, clock, log)
	if err != nil {
		return err
	}

	var metrics *telemetry.FulfillmentMetrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewFulfillmentMetrics()
		services.SetMetrics(metrics)
	}

	// Redis is optional outside production: idempotency falls back to memory
	allowFallback := cfg.App.Env != "production"
	idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis, log, allowFallback).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = idempotency.Close() }()

	var redisClient *redis.Client
	if cfg.Notification.Enabled && cfg.Notification.Driver == "redis" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("notification redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	orderNotifier, err := bootstrap.NewNotifier(cfg.Notification, redisClient, clock, log)
	if err != nil {
		return err
	}
	busCfg := bootstrap.EventBusConfig{
		Notification: cfg.Notification,
		Notifier:     orderNotifier,
		Idempotency:  idempotency,
	}
	if metrics != nil {
		busCfg.Observer = metrics
	}
	bus := bootstrap.NewEventBus(busCfg, log)
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = bus.Stop(context.Background()) }()
	services.Orders.SetEventPublisher(bus)

	if cfg.Sweeper.Enabled && cfg.Sweeper.Mode == "inprocess" {
		trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			DailyHour:     cfg.Sweeper.DailyHour,
			DailyMinute:   cfg.Sweeper.DailyMinute,
			CheckInterval: cfg.Sweeper.CheckInterval,
		}, clock, log,
			scheduler.NewBatchExpiryJob(services.Expiry),
			scheduler.NewPreorderSweepJob(services.Sweeper),
		)
		if err := trigger.Start(ctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = trigger.Stop(stopCtx)
		}()
	}

	system := handler.NewSystemHandler(version)
	system.AddCheck("database", storage.Ping)
	if redisClient != nil {
		system.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:     log,
		JWTService: auth.NewJWTService(cfg.JWT),
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:        metrics,
		MetricsPath:    cfg.Metrics.Path,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		System:         system,
		Handlers: router.Handlers{
			Order:     handler.NewOrderHandler(services.Orders),
			Inventory: handler.NewInventoryHandler(services.Ledger, services.Queries),
			Payment: handler.NewPaymentCallbackHandler(
				services.Orders, idempotency, cfg.Payment.CallbackSecret, cfg.Payment.IdempotencyTTL,
			),
			Admin: handler.NewAdminHandler(services.Sweeper, services.Expiry),
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
