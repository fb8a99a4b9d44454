package queue

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/failsafe"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// Default configuration values.
const (
	defaultLeaseTimeout  = 60 * time.Second
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 2 * time.Second
	defaultMaxRetryDelay = time.Minute
	defaultConcurrency   = 4
	defaultRateWindow    = time.Second
	defaultDedupBucket   = time.Minute
)

// Config — конфигурация Queue.
type Config struct {
	// Store — хранилище записей job. nil — in-memory.
	Store JobStore

	// DeadLetters — приёмник payload'ов, исчерпавших retry-бюджет.
	// nil — собственный ring ёмкостью по умолчанию.
	DeadLetters *failsafe.DeadLetterRing

	// LeaseTimeout — таймаут видимости lease. Не подтверждённый
	// за это время job становится доступен другому воркеру.
	// Должен быть больше task timeout'а Executor'а.
	LeaseTimeout time.Duration

	// MaxAttempts — максимум попыток выполнения (включая первую).
	MaxAttempts int

	// RetryDelay — начальная задержка retry после nack.
	RetryDelay time.Duration

	// MaxRetryDelay — потолок экспоненциальной задержки retry.
	MaxRetryDelay time.Duration

	// Concurrency — максимум одновременных lease'ов на один workerID.
	Concurrency int

	// RateLimit — максимум lease'ов на очередь за RateWindow (0 — без лимита).
	RateLimit int

	// RateWindow — окно rate limit'а.
	RateWindow time.Duration

	// DedupBucket — гранулярность временной компоненты производного jobID.
	DedupBucket time.Duration

	// Logger
	Logger *slog.Logger
}

// EnqueueOptions — необязательные параметры постановки в очередь.
type EnqueueOptions struct {
	// JobID — явный идентификатор. Пустой — детерминированный
	// вывод из payload и временного bucket'а.
	JobID string

	// Priority — приоритет (больше — раньше).
	Priority int

	// Delay — отложенный старт.
	Delay time.Duration

	// UserID — владелец job.
	UserID string

	// PlanID — ссылка на план.
	PlanID *uuid.UUID

	// Metadata — произвольные метаданные.
	Metadata map[string]any
}

// lease — действующее владение job воркером.
type lease struct {
	jobID     string
	queue     string
	workerID  string
	expiresAt time.Time
}

// queueState — состояние одной именованной очереди.
type queueState struct {
	pending      pendingHeap
	recentLeases []time.Time
}

// Queue — долговечная очередь работ с lease-семантикой.
//
// Доставка at-least-once: не подтверждённый в течение lease timeout'а
// job перевыдаётся другому воркеру. Single-writer инвариант: пока lease
// действует, запись job мутирует только его держатель (ack/nack/progress
// проверяют наличие lease). Идемпотентная повторная постановка гасится
// детерминированным jobID, пока живёт предыдущий экземпляр.
type Queue struct {
	cfg    Config
	store  JobStore
	dl     *failsafe.DeadLetterRing
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string]*queueState
	leases map[string]*lease
	seq    uint64
}

// New создаёт новую Queue.
func New(cfg Config) *Queue {
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = defaultLeaseTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.DedupBucket <= 0 {
		cfg.DedupBucket = defaultDedupBucket
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryJobStore()
	}
	dl := cfg.DeadLetters
	if dl == nil {
		dl = failsafe.NewDeadLetterRing(0)
	}

	return &Queue{
		cfg:    cfg,
		store:  store,
		dl:     dl,
		logger: cfg.Logger,
		queues: make(map[string]*queueState),
		leases: make(map[string]*lease),
	}
}

// Store возвращает хранилище job'ов (для read-only запросов API).
func (q *Queue) Store() JobStore {
	return q.store
}

// DeadLetters возвращает dead-letter ring очереди.
func (q *Queue) DeadLetters() *failsafe.DeadLetterRing {
	return q.dl
}

// DeriveJobID детерминированно выводит jobID из очереди, payload
// и временного bucket'а. Повторный enqueue того же payload внутри
// bucket'а даёт тот же ID — основа дедупликации.
func (q *Queue) DeriveJobID(queueName string, payload []byte, now time.Time) string {
	h := sha256.New()
	h.Write([]byte(queueName))
	h.Write([]byte{0})
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(now.UTC().Truncate(q.cfg.DedupBucket).Format(time.RFC3339)))
	return "job-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Enqueue ставит payload в именованную очередь.
//
// Возвращает jobID и признак дедупликации: если job с тем же
// (производным или явным) ID ещё жив, второй экземпляр не создаётся.
func (q *Queue) Enqueue(ctx context.Context, queueName string, payload []byte, opts EnqueueOptions) (string, bool, error) {
	now := time.Now()

	jobID := opts.JobID
	if jobID == "" {
		jobID = q.DeriveJobID(queueName, payload, now)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.store.GetJob(ctx, jobID)
	if err == nil && !existing.IsFinished() {
		q.logger.Debug("enqueue deduplicated", "job_id", jobID, "queue", queueName)
		return jobID, true, nil
	}

	job := &domain.Job{
		ID:        jobID,
		UserID:    opts.UserID,
		Queue:     queueName,
		PlanID:    opts.PlanID,
		Payload:   payload,
		Priority:  opts.Priority,
		Status:    domain.JobStatusQueued,
		Metadata:  opts.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		return "", false, err
	}

	q.pushLocked(queueName, jobID, opts.Priority, now.Add(opts.Delay))

	q.logger.Debug("job enqueued",
		"job_id", jobID,
		"queue", queueName,
		"priority", opts.Priority,
		"delay", opts.Delay,
	)
	return jobID, false, nil
}

// Lease выдаёт воркеру готовый job с наивысшим приоритетом.
//
// Соблюдает лимит одновременных lease'ов воркера и rate limit очереди.
// ErrNoJobAvailable / ErrRateLimited / ErrConcurrencyLimit — штатные
// исходы, воркер просто повторяет попытку позже.
func (q *Queue) Lease(ctx context.Context, queueName, workerID string) (*domain.Job, error) {
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapExpiredLocked(ctx, now)

	held := 0
	for _, l := range q.leases {
		if l.workerID == workerID {
			held++
		}
	}
	if held >= q.cfg.Concurrency {
		return nil, ErrConcurrencyLimit
	}

	qs := q.stateLocked(queueName)

	if q.cfg.RateLimit > 0 {
		cutoff := now.Add(-q.cfg.RateWindow)
		recent := qs.recentLeases[:0]
		for _, ts := range qs.recentLeases {
			if ts.After(cutoff) {
				recent = append(recent, ts)
			}
		}
		qs.recentLeases = recent
		if len(qs.recentLeases) >= q.cfg.RateLimit {
			return nil, ErrRateLimited
		}
	}

	for {
		item := qs.pending.popReady(now)
		if item == nil {
			return nil, ErrNoJobAvailable
		}

		job, err := q.store.GetJob(ctx, item.jobID)
		if err != nil {
			continue
		}
		// Отменённый или иначе завершённый до lease job пропускается
		if job.IsFinished() {
			continue
		}

		job.Attempts++
		job.MarkRunning()
		if err := q.store.UpdateJob(ctx, job); err != nil {
			return nil, err
		}

		q.leases[job.ID] = &lease{
			jobID:     job.ID,
			queue:     queueName,
			workerID:  workerID,
			expiresAt: now.Add(q.cfg.LeaseTimeout),
		}
		qs.recentLeases = append(qs.recentLeases, now)

		q.logger.Debug("job leased",
			"job_id", job.ID,
			"queue", queueName,
			"worker_id", workerID,
			"attempt", job.Attempts,
		)
		return job, nil
	}
}

// Ack подтверждает успешное выполнение job держателем lease.
func (q *Queue) Ack(ctx context.Context, jobID string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.leases[jobID]
	if !ok {
		return ErrNotLeased
	}
	delete(q.leases, jobID)

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.MarkCompleted(result)
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	telemetry.JobsProcessed.WithLabelValues(l.queue, "completed").Inc()
	q.logger.Info("job completed", "job_id", jobID, "queue", l.queue, "attempts", job.Attempts)
	return nil
}

// Nack сообщает о неудаче выполнения.
//
// Пока retry-бюджет не исчерпан, job возвращается в очередь
// с экспоненциальной задержкой; после — payload с последней ошибкой
// уходит в dead-letter, job терминально FAILED.
func (q *Queue) Nack(ctx context.Context, jobID string, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.leases[jobID]
	if !ok {
		return ErrNotLeased
	}
	delete(q.leases, jobID)

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Attempts >= q.cfg.MaxAttempts {
		q.dl.Append(failsafe.Entry{
			Payload:   job.Payload,
			LastError: errMsg,
			Attempts:  job.Attempts,
			FailedAt:  time.Now(),
		})
		telemetry.DeadLetters.Inc()

		job.MarkFailed(errMsg)
		if err := q.store.UpdateJob(ctx, job); err != nil {
			return err
		}

		telemetry.JobsProcessed.WithLabelValues(l.queue, "failed").Inc()
		q.logger.Warn("job dead-lettered",
			"job_id", jobID,
			"queue", l.queue,
			"attempts", job.Attempts,
			"error", errMsg,
		)
		return nil
	}

	delay := failsafe.Backoff(job.Attempts, q.cfg.RetryDelay, q.cfg.MaxRetryDelay)
	job.Error = errMsg
	job.MarkQueued()
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	q.pushLocked(l.queue, jobID, job.Priority, time.Now().Add(delay))
	telemetry.JobRetries.WithLabelValues(l.queue).Inc()

	q.logger.Info("job retry scheduled",
		"job_id", jobID,
		"queue", l.queue,
		"attempt", job.Attempts,
		"delay", delay,
		"error", errMsg,
	)
	return nil
}

// ConfirmCancel финализирует кооперативную отмену держателем lease.
func (q *Queue) ConfirmCancel(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.leases[jobID]
	if !ok {
		return ErrNotLeased
	}
	delete(q.leases, jobID)

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.MarkCancelled()
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	telemetry.JobsProcessed.WithLabelValues(l.queue, "cancelled").Inc()
	q.logger.Info("job cancelled", "job_id", jobID, "queue", l.queue)
	return nil
}

// UpdateProgress сохраняет status checkpoint выполняющегося job.
//
// Это checkpoint статуса, не точка возобновления: рестарт job
// запускает handler заново. Требует действующего lease.
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, percent int, sequence int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.leases[jobID]; !ok {
		return ErrNotLeased
	}

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	job.Progress = percent
	if sequence > job.LastSequence {
		job.LastSequence = sequence
	}
	return q.store.UpdateJob(ctx, job)
}

// Cancel запрашивает отмену job.
//
// Ожидающий job отменяется немедленно; выполняющийся помечается
// CANCELLED, и держатель lease замечает это на ближайшей
// checkpoint-границе (отмена кооперативная, не preemptive).
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsFinished() {
		return ErrJobTerminal
	}

	if qs, ok := q.queues[job.Queue]; ok {
		qs.pending.remove(jobID)
	}

	job.MarkCancelled()
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return err
	}

	q.logger.Info("job cancellation requested", "job_id", jobID, "queue", job.Queue)
	return nil
}

// IsCancelled возвращает true, если для job запрошена отмена.
// Вызывается воркером на checkpoint-границах.
func (q *Queue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == domain.JobStatusCancelled, nil
}

// Pause убирает ожидающий job из очереди до явного resume.
func (q *Queue) Pause(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusQueued {
		return ErrJobTerminal
	}

	if qs, ok := q.queues[job.Queue]; ok {
		qs.pending.remove(jobID)
	}
	job.MarkPaused()
	return q.store.UpdateJob(ctx, job)
}

// Resume возвращает приостановленный job в очередь.
func (q *Queue) Resume(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusPaused {
		return ErrNotPaused
	}

	job.MarkQueued()
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	q.pushLocked(job.Queue, jobID, job.Priority, time.Now())
	return nil
}

// ReapExpired возвращает в очередь jobs с истёкшим lease.
// Вызывается периодически (janitor) и лениво перед каждым Lease.
func (q *Queue) ReapExpired(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reapExpiredLocked(ctx, time.Now())
}

// reapExpiredLocked — тело ReapExpired. Под q.mu.
func (q *Queue) reapExpiredLocked(ctx context.Context, now time.Time) int {
	reaped := 0
	for jobID, l := range q.leases {
		if now.Before(l.expiresAt) {
			continue
		}
		delete(q.leases, jobID)

		job, err := q.store.GetJob(ctx, jobID)
		if err != nil || job.IsFinished() {
			continue
		}

		job.MarkQueued()
		if err := q.store.UpdateJob(ctx, job); err != nil {
			q.logger.Warn("failed to requeue expired lease", "job_id", jobID, "error", err)
			continue
		}

		q.pushLocked(l.queue, jobID, job.Priority, now)
		telemetry.LeasesExpired.WithLabelValues(l.queue).Inc()
		reaped++

		q.logger.Warn("lease expired, job requeued",
			"job_id", jobID,
			"queue", l.queue,
			"worker_id", l.workerID,
		)
	}
	return reaped
}

// stateLocked возвращает (создавая) состояние именованной очереди. Под q.mu.
func (q *Queue) stateLocked(queueName string) *queueState {
	qs, ok := q.queues[queueName]
	if !ok {
		qs = &queueState{}
		heap.Init(&qs.pending)
		q.queues[queueName] = qs
	}
	return qs
}

// pushLocked ставит job в кучу ожидания. Под q.mu.
func (q *Queue) pushLocked(queueName, jobID string, priority int, readyAt time.Time) {
	qs := q.stateLocked(queueName)
	q.seq++
	heap.Push(&qs.pending, &pendingItem{
		jobID:    jobID,
		priority: priority,
		readyAt:  readyAt,
		seq:      q.seq,
	})
}
