// @title Curation Service API
// @version 1.0
// @description Post curation core: weight configurations, ranked listings, bulk actions, semantic search and background jobs.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "curation-service/docs"
	"curation-service/internal/auth"
	"curation-service/internal/cache"
	"curation-service/internal/config"
	"curation-service/internal/embedding"
	"curation-service/internal/logger"
	"curation-service/internal/metrics"
	"curation-service/internal/repository/postgresql"
	"curation-service/internal/service"
	httptransport "curation-service/internal/transport/http"
)

const (
	cacheKeyPrefix   = "curation:"
	wakeupKeyPrefix  = "curation:wake:"
	shutdownTimeout  = 15 * time.Second
	embeddingTimeout = 30 * time.Second
)

func main() {
	cfg, errs := config.Load(os.Getenv("CONFIG_FILE"))
	if cfg != nil {
		errs = append(errs, cfg.ValidateAPI()...)
	}
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
		log.Fatal("api stopped with error", "error", err)
	}
	log.Info("api stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	checkers := map[string]httptransport.HealthChecker{
		"postgres": httptransport.CheckFunc(pool.Ping),
	}

	// Redis backs the shared cache tier and the worker wake-up list; without it
	// both degrade to process-local behaviour.
	var (
		shared         cache.Store = cache.Noop{}
		embeddingStore cache.Store = cache.NewMemory()
		wake           service.Wakeup
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		shared = cache.NewRedis(rdb, cacheKeyPrefix)
		embeddingStore = shared
		wake = service.NewRedisWakeup(rdb, wakeupKeyPrefix)
		checkers["redis"] = httptransport.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("REDIS_ADDR not set: shared cache tier and worker wake-ups disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	jobRepo := postgresql.NewJobRepository(pool)
	configRepo := postgresql.NewConfigRepository(pool)
	postRepo := postgresql.NewPostRepository(pool)
	scoreRepo := postgresql.NewScoreRepository(pool)
	settingsRepo := postgresql.NewSettingsRepository(pool)

	// a nil *embedding.Client must not end up inside the interface
	var embedder service.Embedder
	if c := embedding.New(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, &http.Client{Timeout: embeddingTimeout}); c != nil {
		embedder = c
	} else {
		log.Warn("EMBEDDING_API_KEY not set: semantic search disabled")
	}

	resolver := service.NewActiveConfigResolver(configRepo, cache.NewMemory(), shared, cfg.ActiveConfigTTL, log, m)
	configs := service.NewConfigService(configRepo, resolver, log)
	jobs := service.NewJobService(jobRepo, configRepo, wake, log)
	posts := service.NewPostService(postRepo, configs)
	settings := service.NewSettingsService(settingsRepo, scoreRepo, log)
	embeddings := service.NewEmbeddingCache(embedder, embeddingStore, cfg.EmbeddingCacheTTL, log, m)

	h := httptransport.NewHandler(httptransport.Services{
		Jobs:     jobs,
		Rescore:  service.NewRescoreService(configs, jobs),
		Configs:  configs,
		Posts:    posts,
		Bulk:     service.NewBulkService(posts, postRepo, cfg.BulkMaxIDs, log),
		Search:   service.NewSearchService(postRepo, embeddings, settings),
		Settings: settings,
	}, log)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httptransport.Routes(h, httptransport.RouterDeps{
			ServiceName: "curation-api",
			Verifier:    auth.NewVerifier(cfg.AuthSecret),
			Gatherer:    reg,
			Checkers:    checkers,
			Log:         log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", cfg.HTTPAddr, "postgres", logger.RedactDSN(cfg.PostgresDSN))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
