package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gomodule/redigo/redis"
	"github.com/yukikurage/taskflow-api/internal/cache"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/membership"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/realtime"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/services"
	"gorm.io/gorm"
)

const memoryQueueSize = 1024

// app holds the infrastructure shared by the serve and worker commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *gorm.DB
	pool  *redis.Pool // nil when neither cache nor queue uses Redis
	queue queue.Queue
	repos repository.Repositories
	deps  services.Deps
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	if cfg.CacheBackend == "redis" || cfg.QueueBackend == "redis" {
		a.pool = database.NewRedisPool(cfg.RedisAddr())
		if err := database.PingRedis(ctx, a.pool); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr(), err)
		}
		log.Info("redis connection established", "address", cfg.RedisAddr())
	}

	var store cache.Store
	switch cfg.CacheBackend {
	case "redis":
		store = cache.NewRedisStore(a.pool)
	case "memory":
		store = cache.NewMemoryStore()
	default:
		a.close()
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}

	switch cfg.QueueBackend {
	case "redis":
		a.queue = queue.NewRedisQueue(a.pool, cfg.QueueName)
	case "memory":
		a.queue = queue.NewMemoryQueue(memoryQueueSize)
	default:
		a.close()
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.QueueBackend)
	}

	a.repos = repository.NewRepositories(db)
	authority := membership.NewAuthority(cache.NewReadThrough(store, log), a.repos.Projects, log)
	a.deps = services.Deps{
		Runner:     outbox.NewRunner(db, a.queue, log),
		Repos:      a.repos,
		Members:    authority,
		Authorizer: permissions.NewAuthorizer(authority),
	}
	return a, nil
}

// newWorker builds a worker pool with every job handler registered.
func (a *app) newWorker(publisher realtime.Publisher) *queue.Worker {
	w := queue.NewWorker(a.queue, a.log.With("component", "worker"), a.cfg.WorkerConcurrency)
	jobs.Register(w,
		jobs.NewBroadcaster(a.repos, publisher, a.log),
		jobs.NewNotifier(a.repos, jobs.LogDeliverer{Log: a.log}, a.log),
	)
	return w
}

// runWorker requeues jobs abandoned by a previous run, then processes
// jobs until ctx is done.
func (a *app) runWorker(ctx context.Context, w *queue.Worker) error {
	if rq, ok := a.queue.(*queue.RedisQueue); ok {
		moved, err := rq.Recover(ctx)
		if err != nil {
			return fmt.Errorf("failed to recover jobs: %w", err)
		}
		if moved > 0 {
			a.log.Info("requeued unfinished jobs", "count", moved)
		}
	}
	return w.Run(ctx)
}

func (a *app) close() {
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.log.Error("failed to close redis pool", "error", err)
		}
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		a.log.Error("failed to get database handle", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Error("failed to close database", "error", err)
	}
}
