package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"curation-service/internal/config"
	"curation-service/internal/entity"
	"curation-service/internal/logger"
	"curation-service/internal/metrics"
	"curation-service/internal/repository/postgresql"
	"curation-service/internal/service"
	"curation-service/internal/worker"
)

const wakeupKeyPrefix = "curation:wake:"

func main() {
	cfg, errs := config.Load(os.Getenv("CONFIG_FILE"))
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("worker stopped with error", "error", err)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	var wake service.Waiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		wake = service.NewRedisWakeup(rdb, wakeupKeyPrefix)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	jobRepo := postgresql.NewJobRepository(pool)
	scoreRepo := postgresql.NewScoreRepository(pool)
	settings := service.NewSettingsService(postgresql.NewSettingsRepository(pool), scoreRepo, log)

	processor := worker.NewProcessor(jobRepo, m, log)
	processor.Handle(entity.JobTypeRecomputeFinalScores, worker.NewRecompute(scoreRepo, settings, log).Run)
	processor.Handle(entity.JobTypeRunScraper, worker.NewCommand(cfg.ScraperCommand, worker.ScraperTimeout, log).Run)
	processor.Handle(entity.JobTypeFetchPermalink, worker.NewCommand(cfg.PermalinkCommand, worker.PermalinkTimeout, log).Run)
	processor.Handle(entity.JobTypeBackfillDimension, worker.NewCommand(cfg.BackfillCommand, worker.BackfillTimeout, log).Run)

	runner := worker.NewRunner(jobRepo, processor, wake, cfg.WorkerJobTypes, cfg.WorkerPollInterval, log)

	log.Info("worker starting",
		"postgres", logger.RedactDSN(cfg.PostgresDSN),
		"redis", cfg.RedisAddr != "",
		"metrics_addr", cfg.HTTPAddr,
	)

	metricsSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
