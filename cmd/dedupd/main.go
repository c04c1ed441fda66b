package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/api"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/archive"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/events"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/session"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/snapshotcache"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/querydedup/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and QD_* env vars when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting dedup service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	deps := session.Deps{Metrics: m, MaxQuerySets: cfg.Analysis.MaxQuerySets}

	if cfg.Postgres.Host != "" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(db, false))
		deps.Loader = loader.NewPostgresLoader(db.DB, cfg.Analysis.MaxQuerySets)
		slog.Info("cluster loader enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		if cfg.Analysis.ArchiveEnabled {
			deps.Archive = archive.NewStore(db)
			slog.Info("snapshot archive enabled")
		}
	} else {
		slog.Warn("postgres not configured, only inline query sets can be analyzed")
	}

	var snapshots *snapshotcache.SnapshotCache
	if cfg.Analysis.CacheEnabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, snapshot caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			snapshots = snapshotcache.New(redisClient, cfg.Redis, m)
			deps.Cache = snapshots
			checker.Register("redis", health.PingCheck(redisClient, true))
			slog.Info("snapshot cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.SnapshotTTL)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalysisEvents)
		defer producer.Close()
		emitter := events.NewEmitter(producer, m, 10000)
		emitter.Start(ctx)
		defer emitter.Close()
		deps.Emitter = emitter
		slog.Info("event emitter started", "topic", cfg.Kafka.Topics.AnalysisEvents)

		if snapshots != nil {
			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SubclusterUpdated,
				events.SubclusterUpdateHandler(snapshots))
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("subcluster update consumer error", "error", err)
				}
			}()
			slog.Info("subcluster update consumer started", "topic", cfg.Kafka.Topics.SubclusterUpdated)
		}
	}

	registry := session.NewRegistry(cfg.Session.TTL, cfg.Session.CleanupInterval, m,
		dedup.WithRetainOverrides(cfg.Session.RetainOverrides))
	svc := session.NewService(registry, deps)

	routerCfg := api.RouterConfig{
		Metrics:        m,
		Health:         checker,
		AllowOrigins:   cfg.Server.AllowOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.Server.AnalyzeRateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.AnalyzeRateLimit, time.Minute)
		go limiter.RunCleanup(ctx, 5*time.Minute)
		routerCfg.AnalyzeLimiter = limiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandler(svc), routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("dedup service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("dedup service stopped")
}
