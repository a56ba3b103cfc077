package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"paylog/internal/events"
	"paylog/internal/events/kafka"
	"paylog/internal/events/outbox"
	"paylog/internal/ledger"
	"paylog/internal/ledger/cache"
	"paylog/internal/ledger/handler"
	ledgermetrics "paylog/internal/ledger/metrics"
	"paylog/internal/platform/config"
	"paylog/internal/platform/httpserver"
	"paylog/internal/platform/logger"
	platformmetrics "paylog/internal/platform/metrics"
	"paylog/internal/platform/middleware"
	platformredis "paylog/internal/platform/redis"
	"paylog/internal/platform/token"
	authmw "paylog/pkg/platform/middleware/auth"

	_ "github.com/lib/pq"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	lm := ledgermetrics.New()
	opts := []ledger.Option{
		ledger.WithMetrics(lm),
		ledger.WithLogger(log),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, ledger.WithCache(
			cache.NewMilestoneCache(redisClient.Client, cfg.Redis.CacheTTL, log),
		))
		log.Info("milestone view cache enabled")
	}

	service := ledger.NewService(store, opts...)

	sink, closeSink, err := buildSink(cfg, log)
	if err != nil {
		log.Error("event sink setup failed", "error", err)
		os.Exit(1)
	}
	defer closeSink()

	publisher := outbox.NewPublisher(store, sink,
		cfg.Outbox.Interval, cfg.Outbox.BatchSize, log, lm)

	jwtService := token.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	requireAuth := authmw.RequireAuth(token.NewAdapter(jwtService), log)

	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(httpMetrics.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	handler.New(service, log).Register(router, requireAuth)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting paylog server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := publisher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStore selects the persistence backend. Without a postgres URL the
// in-memory store keeps local development dependency-free.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (ledger.Store, func(), error) {
	if cfg.PostgresURL == "" {
		log.Info("using in-memory ledger store")
		return ledger.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	store := ledger.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using postgres ledger store")
	return store, func() { db.Close() }, nil
}

// buildSink selects the event destination. Without brokers events still flow
// through the outbox into the process log.
func buildSink(cfg config.Server, log *slog.Logger) (events.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("no kafka brokers configured, logging events")
		return events.NewLogSink(log), func() {}, nil
	}
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	return producer, producer.Close, nil
}
