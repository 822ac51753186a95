package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/fulfillment/internal/bootstrap"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/jobs"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	var (
		enqueue     string
		concurrency int
	)
	flag.StringVar(&enqueue, "enqueue", "", "Enqueue one sweep and exit: preorders or batches")
	flag.IntVar(&concurrency, "concurrency", 2, "Number of tasks processed in parallel")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name+"-worker")
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	if enqueue != "" {
		err = enqueueOnce(redisOpts, enqueue, log)
	} else {
		err = run(cfg, redisOpts, concurrency, log)
	}
	if err != nil {
		log.Error("Worker failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func enqueueOnce(redisOpts asynq.RedisClientOpt, which string, log *zap.Logger) error {
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		info *asynq.TaskInfo
		err  error
	)
	switch which {
	case "preorders":
		info, err = client.EnqueuePreorderSweep(ctx, time.Time{})
	case "batches":
		info, err = client.EnqueueBatchExpiry(ctx)
	default:
		return fmt.Errorf("unknown sweep %q: use preorders or batches", which)
	}
	if err != nil {
		return err
	}
	log.Info("Sweep enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

func run(cfg *config.Config, redisOpts asynq.RedisClientOpt, concurrency int, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("the worker needs a shared database; database.driver is %q", cfg.Database.Driver)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, bootstrap.TracingConfig(cfg, "worker", version), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	clock := shared.SystemClock{}
	storage, err := bootstrap.OpenStorage(cfg, log, bootstrap.StorageOptions{Clock: clock})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = storage.Close() }()

	services, err := bootstrap.NewServices(storage, cfg, clock, log)
	if err != nil {
		return err
	}

	// the sweeper cancels pre-orders; their notifications go out from here too
	var redisClient *redis.Client
	if cfg.Notification.Enabled && cfg.Notification.Driver == "redis" {
		if redisClient, err = cache.NewRedisClient(ctx, cfg.Redis); err != nil {
			return fmt.Errorf("notification redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
	}
	notifier, err := bootstrap.NewNotifier(cfg.Notification, redisClient, clock, log)
	if err != nil {
		log.Warn("Notifications disabled in worker", zap.Error(err))
	} else {
		// asynq already needs redis, so the worker never falls back to memory
		idempotency, err := cache.NewIdempotencyStoreFactory(cfg.Redis, log, false).CreateStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = idempotency.Close() }()
		bus := bootstrap.NewEventBus(bootstrap.EventBusConfig{
			Notification: cfg.Notification,
			Notifier:     notifier,
			Idempotency:  idempotency,
		}, log)
		if err := bus.Start(ctx); err != nil {
			return err
		}
		services.Orders.SetEventPublisher(bus)
	}

	cronSpec := ""
	if cfg.Sweeper.Enabled && cfg.Sweeper.Mode == "asynq" {
		cronSpec = cfg.Sweeper.CronSpec
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      log,
		Handlers:    jobs.NewHandlers(services.Sweeper, services.Expiry, log),
		CronSpec:    cronSpec,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}

	err = worker.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
