package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// WorkerConfig collects dependencies required to bootstrap the worker
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *zap.Logger
	Handlers    *Handlers
	CronSpec    string
	Concurrency int
}

// Worker wraps the asynq server and the cron scheduler that enqueues the sweeps.
// Only one scheduler should run per deployment; any number of workers may
// process tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// NewWorker constructs a Worker
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handlers == nil {
		return nil, errors.New("worker: handlers are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			cfg.Logger.Error("Task failed",
				zap.String("task_type", task.Type()),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPreorderSweep, cfg.Handlers.HandlePreorderSweep)
	mux.HandleFunc(TaskBatchExpiry, cfg.Handlers.HandleBatchExpiry)

	var scheduler *asynq.Scheduler
	if cfg.CronSpec != "" {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})

		// Expire batches first so the pre-order sweep sees the same stock picture
		// a checkout would.
		expiryTask, err := NewBatchExpiryTask()
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.CronSpec, expiryTask); err != nil {
			return nil, err
		}
		sweepTask, err := NewPreorderSweepTask(time.Time{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(cfg.CronSpec, sweepTask); err != nil {
			return nil, err
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// ProcessTask runs a task through the worker's handlers without a queue
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return w.mux.ProcessTask(ctx, t)
}

// Run starts processing tasks until context cancellation
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	w.logger.Info("Worker started", zap.Bool("scheduler", w.scheduler != nil))

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		w.logger.Info("Worker stopped")
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client enqueues sweep tasks on demand
type Client struct {
	client *asynq.Client
}

// NewClient constructs an asynq client
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueuePreorderSweep enqueues a pre-order sweep at time at (zero for now)
func (c *Client) EnqueuePreorderSweep(ctx context.Context, at time.Time) (*asynq.TaskInfo, error) {
	task, err := NewPreorderSweepTask(at)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueBatchExpiry enqueues a batch expiry run
func (c *Client) EnqueueBatchExpiry(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewBatchExpiryTask()
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources
func (c *Client) Close() error {
	return c.client.Close()
}
