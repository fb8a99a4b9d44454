package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/mq"
	"github.com/omnibrowser/redix-core/internal/queue"
)

// Default configuration values.
const (
	defaultPollInterval   = 5 * time.Second
	defaultSlots          = 4
	defaultCancelInterval = time.Second
	defaultPrefetch       = 5
)

// Worker выполняет jobs из очереди.
//
// Worker — stateless компонент системы, который:
//   - Берёт jobs в lease из очереди (приоритет, rate limit, concurrency cap)
//   - Просыпается по нотификации из RabbitMQ (event-driven)
//   - Периодически опрашивает очередь сам (polling fallback)
//   - Выполняет план job через Executor, публикуя события прогресса
//   - Подтверждает результат ack/nack; retry и dead-letter решает очередь
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут брать lease из одной очереди.
type Worker struct {
	queue     *queue.Queue
	executor  *executor.Executor
	bus       *eventbus.Bus
	publisher *mq.Publisher
	conn      *mq.Connection

	queueName string
	workerID  string
	slots     int

	pollInterval   time.Duration
	cancelInterval time.Duration

	consumer *mq.Consumer
	wake     chan struct{}

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Queue — очередь jobs (обязательно).
	Queue *queue.Queue

	// Executor — исполнитель планов (обязательно).
	Executor *executor.Executor

	// Bus — шина событий прогресса (обязательно).
	Bus *eventbus.Bus

	// Publisher / Conn — MQ для нотификаций. nil допустим:
	// воркер живёт на одном polling fallback.
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// QueueName — имя обслуживаемой очереди.
	QueueName string

	// WorkerID — идентификатор воркера для lease-учёта.
	WorkerID string

	// Slots — количество параллельных lease-циклов (default: 4).
	// Фактический параллелизм дополнительно ограничен
	// concurrency cap очереди.
	Slots int

	// PollInterval — интервал polling fallback (default: 5s).
	PollInterval time.Duration

	// CancelInterval — период проверки кооперативной отмены (default: 1s).
	CancelInterval time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	cancelInterval := cfg.CancelInterval
	if cancelInterval <= 0 {
		cancelInterval = defaultCancelInterval
	}

	slots := cfg.Slots
	if slots <= 0 {
		slots = defaultSlots
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:          cfg.Queue,
		executor:       cfg.Executor,
		bus:            cfg.Bus,
		publisher:      cfg.Publisher,
		conn:           cfg.Conn,
		queueName:      cfg.QueueName,
		workerID:       cfg.WorkerID,
		slots:          slots,
		pollInterval:   pollInterval,
		cancelInterval: cancelInterval,
		wake:           make(chan struct{}, 1),
		logger:         logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для jobs.enqueued (будит lease-циклы без ожидания poll)
//   - Slots параллельных lease-циклов
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"worker_id", w.workerID,
		"queue", w.queueName,
		"slots", w.slots,
		"poll_interval", w.pollInterval,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsEnqueued),
			Handler:  w.handleJobEnqueued,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("job consumer error", "error", err)
			}
		}()
	}

	for i := 0; i < w.slots; i++ {
		w.wg.Add(1)
		go func(slot int) {
			defer w.wg.Done()
			w.leaseLoop(ctx, slot)
		}(i)
	}

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается текущих jobs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleJobEnqueued будит lease-циклы по нотификации о новом job.
func (w *Worker) handleJobEnqueued(_ context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobEnqueuedPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.enqueued payload", "error", err)
		return err
	}

	if payload.Queue != w.queueName {
		return nil
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// leaseLoop — один слот: lease → выполнение → ack/nack, по кругу.
//
// ErrNoJobAvailable / ErrRateLimited / ErrConcurrencyLimit — штатные
// исходы; слот засыпает до poll-тика или нотификации из MQ.
func (w *Worker) leaseLoop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Lease(ctx, w.queueName, w.workerID)
		switch {
		case err == nil:
			w.runJob(ctx, job)
			continue

		case errors.Is(err, queue.ErrNoJobAvailable),
			errors.Is(err, queue.ErrRateLimited),
			errors.Is(err, queue.ErrConcurrencyLimit):
			// ждём работу

		default:
			w.logger.Error("lease failed", "slot", slot, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}
