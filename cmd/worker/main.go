package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ignite/event-etl/internal/config"
	"github.com/ignite/event-etl/internal/document"
	"github.com/ignite/event-etl/internal/extract"
	"github.com/ignite/event-etl/internal/inbox"
	"github.com/ignite/event-etl/internal/migrations"
	"github.com/ignite/event-etl/internal/pkg/distlock"
	"github.com/ignite/event-etl/internal/pkg/httpretry"
	"github.com/ignite/event-etl/internal/pkg/logger"
	"github.com/ignite/event-etl/internal/repository/postgres"
	"github.com/ignite/event-etl/internal/service/ingest"
	"github.com/ignite/event-etl/internal/status"
	"github.com/ignite/event-etl/internal/transform"
	"github.com/ignite/event-etl/internal/worker"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	logger.Info("[Worker] starting", "concurrency", cfg.Worker.Concurrency, "queue", cfg.Worker.QueueName)

	db, err := openDB(cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()
	logger.Info("[Worker] connected to database")

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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := status.New(rdb,
		status.WithKey(cfg.Status.Key),
		status.WithRunningTTL(cfg.Status.RunningTTL()),
	)
	ingestRepo := postgres.NewIngestRepo(db)
	loader := ingest.NewLoader(ingestRepo, transform.New(transform.Options{DefaultCity: cfg.Document.DefaultCity}))
	queue := worker.NewQueue(rdb, cfg.Worker.QueueName)

	orch := worker.New(queue, store, buildExtractors(cfg), loader, document.Parse, worker.Config{
		DocumentTimeout: cfg.Document.Timeout(),
		DocumentRetries: cfg.Document.MaxRetries(),
		RetryDelay:      cfg.Document.RetryDelay(),
		SkipExtractors:  cfg.Extractors.Skip,
	})

	pool := worker.NewPool(queue, cfg.Worker.Concurrency)
	orch.Register(pool)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
		logger.Info("[Worker] started " + name)
	}

	run("task pool", pool.Start)
	run("data cleanup", worker.NewDataCleanupWorker(ingestRepo, cfg.Document.UploadDir).Start)

	if cfg.Schedule.Enabled {
		interval := cfg.Schedule.Interval()
		sched := worker.NewScheduler(orch, func(name string) distlock.Lock {
			return distlock.New(rdb, db, name, interval)
		}, interval)
		run("batch scheduler", sched.Start)
	}

	if cfg.Inbox.Enabled {
		s3Client, err := inbox.NewS3Client(ctx, cfg.Inbox.Region)
		if err != nil {
			fatal("Failed to create S3 client", err)
		}
		poller := inbox.New(s3Client, orch, distlock.New(rdb, db, "etl:inbox", cfg.Inbox.Interval()), inbox.Config{
			Bucket:    cfg.Inbox.Bucket,
			Prefix:    cfg.Inbox.Prefix,
			UploadDir: cfg.Document.UploadDir,
			Interval:  cfg.Inbox.Interval(),
		})
		run("inbox poller", poller.Start)
	}

	var metricsServer *http.Server
	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("[Worker] metrics server error", "error", err)
			}
		}()
	}

	logger.Info("[Worker] running")
	<-ctx.Done()
	logger.Info("[Worker] shutting down")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	wg.Wait()
	logger.Info("[Worker] stopped")
}

// buildExtractors registers every configured source.
func buildExtractors(cfg *config.Config) *extract.Registry {
	reg := extract.NewRegistry()
	httpClient := &http.Client{Timeout: cfg.Extractors.Timeout()}

	for _, f := range cfg.Extractors.Feeds {
		reg.Register(extract.NewFeedExtractor(f.Name, f.URL, httpClient).WithUserAgent(cfg.Extractors.UserAgent))
	}

	if p := cfg.Extractors.Places; p.Enabled {
		reg.Register(extract.NewPlacesExtractor(extract.PlacesConfig{
			APIKey:     p.APIKey,
			BaseURL:    p.BaseURL,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			RadiusM:    p.RadiusMeters,
			City:       cfg.Document.DefaultCity,
			Categories: p.Categories,
			MaxPages:   p.MaxPages,
			PageDelay:  time.Duration(p.PageDelayMS) * time.Millisecond,
		}, httpretry.New(httpClient, cfg.Extractors.MaxRetries)))
	}

	logger.Info("[Worker] extractors registered", "names", reg.Names())
	return reg
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
	logger.Error("[Worker] "+msg, "error", err)
	logger.Sync()
	os.Exit(1)
}
