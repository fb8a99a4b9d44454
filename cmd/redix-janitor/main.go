// Redix Janitor — фоновая уборка системы по cron-расписанию:
// возврат истёкших lease, retention завершённых jobs, чистка
// dedup-маркеров. Один инстанс на установку.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omnibrowser/redix-core/internal/config"
	"github.com/omnibrowser/redix-core/internal/janitor"
	"github.com/omnibrowser/redix-core/internal/queue"
	"github.com/omnibrowser/redix-core/internal/repo"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting redix-janitor")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = telemetry.SetupLoggerAt(telemetry.ParseLevel(cfg.Server.LogLevel))

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	jobRepo := repo.NewJobRepo(pool)
	markerRepo := repo.NewMarkerRepo(pool)

	q := queue.New(queue.Config{
		Store:        jobRepo,
		LeaseTimeout: cfg.Queue.LeaseTimeout,
		Logger:       logger,
	})

	j := janitor.New(janitor.Config{
		Queue:         q,
		QueueName:     cfg.Queue.Name,
		Sweeper:       jobRepo,
		Markers:       markerRepo,
		ReapSpec:      cfg.Janitor.ReapSpec,
		RetentionSpec: cfg.Janitor.RetentionSpec,
		Retention:     cfg.Janitor.Retention,
		Logger:        logger,
	})

	if err := j.Start(ctx); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	j.Stop()
	logger.Info("redix-janitor stopped")
}
