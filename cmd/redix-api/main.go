// Redix API — HTTP-срез системы: компиляция планов, постановка jobs,
// replay событий и WebSocket-стриминг.
//
// Процесс держит in-memory event bus, наполняемый из RabbitMQ
// (events.stream), так что history и live-стрим доступны даже когда
// выполнение идёт в отдельных worker-процессах.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omnibrowser/redix-core/internal/api"
	"github.com/omnibrowser/redix-core/internal/config"
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/failsafe"
	"github.com/omnibrowser/redix-core/internal/gateway"
	"github.com/omnibrowser/redix-core/internal/mq"
	"github.com/omnibrowser/redix-core/internal/planner"
	"github.com/omnibrowser/redix-core/internal/queue"
	"github.com/omnibrowser/redix-core/internal/repo"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redix_api_http_requests_total",
		Help: "Total HTTP requests handled by redix_api",
	})
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting redix-api")

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

	planRepo := repo.NewPlanRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

	// Event bus: history ring + fan-out для replay и WebSocket.
	bus := eventbus.New(eventbus.Config{Logger: logger})

	// RabbitMQ. Недоступность не фатальна: нотификации и ingest
	// событий отключаются, воркеры живут на polling.
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	if cfg.MQ.URL != "" {
		mqConn, err = mq.NewConnection(cfg.MQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}

			publisher = mq.NewPublisher(mqConn, logger)

			// Ingest worker-событий в локальный bus.
			ingest := mq.NewEventIngestConsumer(mqConn, logger, bus)
			if err := ingest.Start(ctx); err != nil {
				logger.Warn("failed to start event ingest", "error", err)
			} else {
				defer ingest.Stop()
			}
		}
	}

	q := queue.New(queue.Config{
		Store:         jobRepo,
		DeadLetters:   failsafe.NewDeadLetterRing(cfg.Queue.DeadLetterCap),
		LeaseTimeout:  cfg.Queue.LeaseTimeout,
		MaxAttempts:   cfg.Queue.MaxAttempts,
		RetryDelay:    cfg.Queue.RetryDelay,
		MaxRetryDelay: cfg.Queue.MaxRetryDelay,
		Concurrency:   cfg.Queue.Concurrency,
		RateLimit:     cfg.Queue.RateLimit,
		Logger:        logger,
	})

	gw := gateway.New(gateway.Config{
		Bus:           bus,
		FlushInterval: cfg.Gateway.FlushInterval,
		MaxBurstSize:  cfg.Gateway.MaxBurstSize,
		Logger:        logger,
	})

	handler := api.NewHandler(api.Config{
		Planner:   planner.New(planner.Config{Logger: logger}),
		Plans:     planRepo,
		Queue:     q,
		Bus:       bus,
		Gateway:   gw,
		Publisher: publisher,
		QueueName: cfg.Queue.Name,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
