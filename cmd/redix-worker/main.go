// Redix Worker — выполняет планы.
//
// Worker:
//   - Лизует jobs из очереди (MQ-нотификации + polling fallback)
//   - Выполняет DAG плана через Executor
//   - Кооперативно реагирует на отмену
//   - Публикует события прогресса в event bus с ретрансляцией в MQ
//
// Workers масштабируются горизонтально.
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
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/failsafe"
	"github.com/omnibrowser/redix-core/internal/handlers"
	"github.com/omnibrowser/redix-core/internal/mq"
	"github.com/omnibrowser/redix-core/internal/queue"
	"github.com/omnibrowser/redix-core/internal/repo"
	"github.com/omnibrowser/redix-core/internal/telemetry"
	"github.com/omnibrowser/redix-core/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting redix-worker")

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

	// RabbitMQ
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
		}
	}

	// События прогресса ретранслируются в MQ, чтобы API-процесс
	// собирал history и стримил их клиентам.
	busCfg := eventbus.Config{Logger: logger}
	if publisher != nil {
		busCfg.Relay = mq.NewEventRelay(publisher)
	}
	bus := eventbus.New(busCfg)

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

	exec := executor.New(executor.Config{
		TaskTimeout: cfg.Worker.TaskTimeout,
		Bus:         bus,
		Logger:      logger,
	})
	handlers.RegisterDefaults(exec)

	w := worker.New(worker.Config{
		Queue:        q,
		Executor:     exec,
		Bus:          bus,
		Publisher:    publisher,
		Conn:         mqConn,
		QueueName:    cfg.Queue.Name,
		WorkerID:     cfg.Worker.ID,
		Slots:        cfg.Worker.Slots,
		PollInterval: cfg.Worker.PollInterval,
		Logger:       logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
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

	w.Stop()
	logger.Info("redix-worker stopped")
}
