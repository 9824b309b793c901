package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/event-etl/internal/api"
	"github.com/ignite/event-etl/internal/config"
	"github.com/ignite/event-etl/internal/document"
	"github.com/ignite/event-etl/internal/extract"
	"github.com/ignite/event-etl/internal/metrics"
	"github.com/ignite/event-etl/internal/migrations"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/repository/postgres"
	"github.com/ignite/event-etl/internal/service/events"
	"github.com/ignite/event-etl/internal/service/ingest"
	"github.com/ignite/event-etl/internal/status"
	"github.com/ignite/event-etl/internal/transform"
	"github.com/ignite/event-etl/internal/worker"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	defer logger.Sync()

	cfg, err := config.LoadFromEnv(config.DefaultPath())
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.RedactPII != nil {
		logger.SetRedactPII(*cfg.Log.RedactPII)
	}
	logger.Info("[Server] starting", "addr", cfg.Server.Addr())

	db, err := openDB(cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()
	logger.Info("[Server] connected to database")

	if cfg.Database.MigrateOnStart {
		if err := migrations.Up(context.Background(), db); err != nil {
			fatal("Failed to apply migrations", err)
		}
	}

	rdb, err := openRedis(cfg.Redis.URL)
	if err != nil {
		fatal("Failed to connect to redis", err)
	}
	defer rdb.Close()

	if err := os.MkdirAll(cfg.Document.UploadDir, 0o755); err != nil {
		fatal("Failed to create upload directory", err)
	}

	store := status.New(rdb,
		status.WithKey(cfg.Status.Key),
		status.WithRunningTTL(cfg.Status.RunningTTL()),
	)
	eventService := events.NewService(postgres.NewEventRepo(db), cfg.Server.PageSize)

	// The server only dispatches; chain steps and document tasks run in
	// cmd/worker against the same queue.
	loader := ingest.NewLoader(postgres.NewIngestRepo(db), transform.New(transform.Options{DefaultCity: cfg.Document.DefaultCity}))
	orch := worker.New(
		worker.NewQueue(rdb, cfg.Worker.QueueName),
		store,
		extract.NewRegistry(),
		loader,
		document.Parse,
		worker.Config{
			DocumentTimeout: cfg.Document.Timeout(),
			DocumentRetries: cfg.Document.MaxRetries(),
			RetryDelay:      cfg.Document.RetryDelay(),
		},
	)

	mw := metrics.NewMiddleware("event-etl")
	prometheus.MustRegister(mw.Collectors()...)

	srv, err := api.NewServer(eventService, store, orch, api.NewHealthChecker(db, rdb), mw, api.Config{
		UploadDir:      cfg.Document.UploadDir,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	if err != nil {
		fatal("Failed to build server", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("[Server] listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Server error", err)
		}
	}()

	<-done
	logger.Info("[Server] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] shutdown error", "error", err)
	}
	logger.Info("[Server] stopped")
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func fatal(msg string, err error) {
	logger.Error("[Server] "+msg, "error", err)
	logger.Sync()
	os.Exit(1)
}
