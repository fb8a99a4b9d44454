package failsafe

import (
	"context"
	"log/slog"
	"time"

	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxRetries    = 3
	defaultRetryDelay    = time.Second
	defaultMaxDelay      = 30 * time.Second
	defaultTimeout       = 60 * time.Second
	defaultDeadLetterCap = 1000
)

// Op — операция, выполняемая под защитой FailSafe.
type Op func(ctx context.Context) (any, error)

// Outcome — результат выполнения операции через FailSafe.
type Outcome struct {
	// Success — операция завершилась успешно.
	Success bool

	// Result — результат успешного выполнения.
	Result any

	// Err — ошибка последней попытки при неудаче.
	Err error

	// Attempts — количество выполненных попыток.
	Attempts int

	// Deduplicated — операция не выполнялась: маркер по ключу уже есть.
	Deduplicated bool
}

// Config — конфигурация FailSafe.
type Config struct {
	// MaxRetries — количество повторных попыток после первой.
	MaxRetries int

	// RetryDelay — начальная задержка перед retry.
	// Растёт экспоненциально: RetryDelay * 2^(attempt-1).
	RetryDelay time.Duration

	// MaxDelay — потолок задержки между попытками.
	MaxDelay time.Duration

	// Timeout — таймаут одной попытки.
	Timeout time.Duration

	// DeadLetterCap — ёмкость dead-letter ring (старые записи вытесняются).
	DeadLetterCap int

	// Markers — хранилище маркеров дедупликации.
	// Если nil — используется in-memory реализация.
	Markers MarkerStore

	// Logger
	Logger *slog.Logger
}

// FailSafe — generic retry/timeout/backoff обёртка с дедупликацией
// и dead-letter store. Используется JobQueue и command-dispatch слоями,
// чтобы at-least-once доставка была безопасна для неидемпотентных handler'ов.
type FailSafe struct {
	cfg     Config
	markers MarkerStore
	dl      *DeadLetterRing
	logger  *slog.Logger
}

// New создаёт новый FailSafe.
func New(cfg Config) *FailSafe {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DeadLetterCap <= 0 {
		cfg.DeadLetterCap = defaultDeadLetterCap
	}

	markers := cfg.Markers
	if markers == nil {
		markers = NewMemoryMarkerStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FailSafe{
		cfg:     cfg,
		markers: markers,
		dl:      NewDeadLetterRing(cfg.DeadLetterCap),
		logger:  logger,
	}
}

// DeadLetters возвращает dead-letter ring.
func (f *FailSafe) DeadLetters() *DeadLetterRing {
	return f.dl
}

// ExecuteWithRetry выполняет op с таймаутом и экспоненциальным backoff.
//
// Каждая попытка ограничена cfg.Timeout (race через горутину — op может
// не уважать ctx). Таймауты и инфраструктурные ошибки ретраятся,
// NonRetryable ошибки прекращают попытки сразу. При исчерпании бюджета
// payload с последней ошибкой попадает в dead-letter ring.
func (f *FailSafe) ExecuteWithRetry(ctx context.Context, name string, op Op) Outcome {
	if op == nil {
		return Outcome{Err: ErrNoOperation}
	}

	maxAttempts := f.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := f.runAttempt(ctx, op)
		if err == nil {
			return Outcome{Success: true, Result: result, Attempts: attempt}
		}
		lastErr = err

		if !IsRetryable(err) {
			f.logger.Debug("non-retryable error, giving up",
				"op", name,
				"attempt", attempt,
				"error", err,
			)
			return Outcome{Err: err, Attempts: attempt}
		}

		// Родительский контекст отменён — ретраить бессмысленно.
		if ctx.Err() != nil {
			return Outcome{Err: ctx.Err(), Attempts: attempt}
		}

		if attempt == maxAttempts {
			break
		}

		delay := Backoff(attempt, f.cfg.RetryDelay, f.cfg.MaxDelay)

		f.logger.Debug("retrying operation",
			"op", name,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Outcome{Err: ctx.Err(), Attempts: attempt}
		}
	}

	// Бюджет исчерпан — в dead-letter для offline recovery.
	f.dl.Append(Entry{
		Payload:   name,
		LastError: lastErr.Error(),
		Attempts:  maxAttempts,
		FailedAt:  time.Now(),
	})
	telemetry.DeadLetters.Inc()

	f.logger.Warn("retry budget exhausted, dead-lettered",
		"op", name,
		"attempts", maxAttempts,
		"error", lastErr,
	)

	return Outcome{Err: lastErr, Attempts: maxAttempts}
}

// runAttempt выполняет одну попытку op под таймаутом.
func (f *FailSafe) runAttempt(ctx context.Context, op Op) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	type opResult struct {
		result any
		err    error
	}

	done := make(chan opResult, 1)
	go func() {
		result, err := op(attemptCtx)
		done <- opResult{result: result, err: err}
	}()

	select {
	case r := <-done:
		return r.result, r.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}
}

// Deduplicate выполняет op ровно один раз в пределах окна ttl.
//
// Перед запуском атомарно ставит маркер по key; если маркер уже стоит,
// op не выполняется и возвращается Outcome{Deduplicated: true}.
// Это механизм, которым at-least-once доставка делается безопасной.
func (f *FailSafe) Deduplicate(ctx context.Context, key string, ttl time.Duration, op Op) Outcome {
	fresh, err := f.markers.SetIfAbsent(ctx, key, ttl)
	if err != nil {
		return Outcome{Err: err}
	}
	if !fresh {
		return Outcome{Deduplicated: true, Success: true}
	}

	result, err := op(ctx)
	if err != nil {
		return Outcome{Err: err, Attempts: 1}
	}
	return Outcome{Success: true, Result: result, Attempts: 1}
}

// Backoff вычисляет экспоненциальную задержку: base * 2^(attempt-1), не выше max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = defaultRetryDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
