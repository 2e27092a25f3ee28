package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/trainrec/trainrec/internal/app"
	"github.com/trainrec/trainrec/internal/feed"
	jobmetrics "github.com/trainrec/trainrec/internal/jobs"
	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/platform/cache"
	"github.com/trainrec/trainrec/internal/platform/db"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/reconcile"
	"github.com/trainrec/trainrec/internal/roster"
	"github.com/trainrec/trainrec/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	deptStore := orghier.NewStore(orghier.NewRepository(pool))
	userRepo := roster.NewRepository(pool)
	groupRepo := rbac.NewRepository(pool)
	provisioner := rbac.NewProvisioner(groupRepo, rbac.DefaultMatrix(), logger)

	source := feed.NewClient(cfg.FeedBaseURL, cfg.FeedTimeout)

	engine := reconcile.NewEngine(reconcile.Config{
		Store:       deptStore,
		Users:       userRepo,
		Groups:      groupRepo,
		Provisioner: provisioner,
		Source:      source,
		Tables:      roster.NewTables(),
		Lock:        reconcile.NewRunLock(redisClient, cfg.ReconcileLockTTL),
		Reports:     reconcile.NewReportStore(redisClient),
		Logger:      logger,
	})

	metrics := jobmetrics.NewMetrics(nil)
	reconcileJob := jobs.NewReconcileRunJob(engine, logger, metrics)

	reconcileTask, err := jobs.NewReconcileRunTask("cron")
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileRun, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
