package failsafe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteWithRetry_SucceedsFirstAttempt(t *testing.T) {
	fs := New(Config{MaxRetries: 3, RetryDelay: time.Millisecond})

	outcome := fs.ExecuteWithRetry(context.Background(), "op", func(ctx context.Context) (any, error) {
		return "done", nil
	})

	if !outcome.Success {
		t.Fatalf("expected success, got error: %v", outcome.Err)
	}
	if outcome.Result != "done" {
		t.Errorf("expected result 'done', got %v", outcome.Result)
	}
	if outcome.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", outcome.Attempts)
	}
}

func TestExecuteWithRetry_SucceedsAfterRetries(t *testing.T) {
	fs := New(Config{MaxRetries: 3, RetryDelay: time.Millisecond})

	var calls int32
	outcome := fs.ExecuteWithRetry(context.Background(), "op", func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("transient failure")
		}
		return 42, nil
	})

	if !outcome.Success {
		t.Fatalf("expected success after retries, got error: %v", outcome.Err)
	}
	if outcome.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", outcome.Attempts)
	}
}

func TestExecuteWithRetry_ExhaustsBudget(t *testing.T) {
	fs := New(Config{MaxRetries: 2, RetryDelay: time.Millisecond})

	opErr := errors.New("persistent failure")
	var calls int32
	outcome := fs.ExecuteWithRetry(context.Background(), "op", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, opErr
	})

	if outcome.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	// Первая попытка + 2 retry
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
	if !errors.Is(outcome.Err, opErr) {
		t.Errorf("expected last error %v, got %v", opErr, outcome.Err)
	}

	// Исчерпанная операция должна попасть в dead-letter ring
	if fs.DeadLetters().Len() != 1 {
		t.Errorf("expected 1 dead letter, got %d", fs.DeadLetters().Len())
	}
	entry := fs.DeadLetters().Entries()[0]
	if entry.Attempts != 3 {
		t.Errorf("expected 3 attempts in dead letter, got %d", entry.Attempts)
	}
	if entry.LastError != opErr.Error() {
		t.Errorf("expected last error %q, got %q", opErr.Error(), entry.LastError)
	}
}

func TestExecuteWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	fs := New(Config{MaxRetries: 5, RetryDelay: time.Millisecond})

	var calls int32
	outcome := fs.ExecuteWithRetry(context.Background(), "op", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, NonRetryable(errors.New("invalid payload"))
	})

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", got)
	}
	if !errors.Is(outcome.Err, ErrNonRetryable) {
		t.Errorf("expected ErrNonRetryable, got %v", outcome.Err)
	}

	// Non-retryable не попадает в dead-letter
	if fs.DeadLetters().Len() != 0 {
		t.Errorf("expected no dead letters, got %d", fs.DeadLetters().Len())
	}
}

func TestExecuteWithRetry_AttemptTimeout(t *testing.T) {
	fs := New(Config{MaxRetries: 0, RetryDelay: time.Millisecond, Timeout: 20 * time.Millisecond})

	outcome := fs.ExecuteWithRetry(context.Background(), "op", func(ctx context.Context) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	if outcome.Success {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(outcome.Err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", outcome.Err)
	}
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	fs := New(Config{MaxRetries: 10, RetryDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	var calls int32
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	outcome := fs.ExecuteWithRetry(ctx, "op", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("transient")
	})

	if outcome.Success {
		t.Fatal("expected failure after cancellation")
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", outcome.Err)
	}
	// Отмена не должна порождать полный бюджет попыток
	if got := atomic.LoadInt32(&calls); got >= 11 {
		t.Errorf("expected early stop, got %d calls", got)
	}
}

func TestExecuteWithRetry_NilOperation(t *testing.T) {
	fs := New(Config{})

	outcome := fs.ExecuteWithRetry(context.Background(), "op", nil)
	if !errors.Is(outcome.Err, ErrNoOperation) {
		t.Errorf("expected ErrNoOperation, got %v", outcome.Err)
	}
}

func TestDeduplicate_SecondCallSkipped(t *testing.T) {
	fs := New(Config{})

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "result", nil
	}

	first := fs.Deduplicate(context.Background(), "job-1", time.Minute, op)
	if !first.Success || first.Deduplicated {
		t.Fatalf("first call should execute: %+v", first)
	}

	second := fs.Deduplicate(context.Background(), "job-1", time.Minute, op)
	if !second.Deduplicated {
		t.Error("second call with same key should be deduplicated")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 execution, got %d", got)
	}
}

func TestDeduplicate_DifferentKeysBothRun(t *testing.T) {
	fs := New(Config{})

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	fs.Deduplicate(context.Background(), "job-1", time.Minute, op)
	fs.Deduplicate(context.Background(), "job-2", time.Minute, op)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 executions, got %d", got)
	}
}

func TestDeduplicate_MarkerExpires(t *testing.T) {
	fs := New(Config{})

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	fs.Deduplicate(context.Background(), "job-1", 10*time.Millisecond, op)
	time.Sleep(20 * time.Millisecond)

	// После истечения TTL операция выполняется снова
	outcome := fs.Deduplicate(context.Background(), "job-1", time.Minute, op)
	if outcome.Deduplicated {
		t.Error("expired marker should not deduplicate")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 executions, got %d", got)
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tc := range cases {
		got := Backoff(tc.attempt, base, max)
		if got != tc.want {
			t.Errorf("Backoff(%d): expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestDeadLetterRing_EvictsOldest(t *testing.T) {
	ring := NewDeadLetterRing(3)

	for i := 0; i < 5; i++ {
		ring.Append(Entry{Payload: i, FailedAt: time.Now()})
	}

	if ring.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", ring.Len())
	}

	// Остались три последних записи
	entries := ring.Entries()
	for i, entry := range entries {
		if entry.Payload != i+2 {
			t.Errorf("entry %d: expected payload %d, got %v", i, i+2, entry.Payload)
		}
	}
}

func TestRecoverDeadLetters_RemovesProcessed(t *testing.T) {
	ring := NewDeadLetterRing(10)
	ring.Append(Entry{Payload: "ok-1"})
	ring.Append(Entry{Payload: "bad"})
	ring.Append(Entry{Payload: "ok-2"})

	recovered, err := ring.RecoverDeadLetters(context.Background(), func(ctx context.Context, entry Entry) error {
		if entry.Payload == "bad" {
			return errors.New("still failing")
		}
		return nil
	})

	if recovered != 2 {
		t.Errorf("expected 2 recovered, got %d", recovered)
	}
	if err == nil {
		t.Error("expected first processor error to be returned")
	}

	// Неудачная запись остаётся в ring
	if ring.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", ring.Len())
	}
	if ring.Entries()[0].Payload != "bad" {
		t.Errorf("expected 'bad' to remain, got %v", ring.Entries()[0].Payload)
	}
}

func TestRecoverDeadLetters_AppendDuringRecoverKeepsUnprocessed(t *testing.T) {
	ring := NewDeadLetterRing(2)
	ring.Append(Entry{Payload: "stale"})
	ring.Append(Entry{Payload: "failing"})

	recovered, err := ring.RecoverDeadLetters(context.Background(), func(ctx context.Context, entry Entry) error {
		if entry.Payload == "stale" {
			// Параллельная запись вытесняет "stale" из переполненного
			// ring, сдвигая позиции оставшихся записей
			ring.Append(Entry{Payload: "fresh"})
			return nil
		}
		return errors.New("still failing")
	})

	if recovered != 1 {
		t.Errorf("expected 1 recovered, got %d", recovered)
	}
	if err == nil {
		t.Error("expected first processor error to be returned")
	}

	// Необработанная запись переживает recovery, несмотря на сдвиг позиций
	var payloads []string
	for _, entry := range ring.Entries() {
		payloads = append(payloads, entry.Payload.(string))
	}
	if len(payloads) != 2 || payloads[0] != "failing" || payloads[1] != "fresh" {
		t.Errorf("expected [failing fresh] to remain, got %v", payloads)
	}
}

func TestRecoverDeadLetters_StopsOnContextCancel(t *testing.T) {
	ring := NewDeadLetterRing(10)
	for i := 0; i < 5; i++ {
		ring.Append(Entry{Payload: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recovered, err := ring.RecoverDeadLetters(ctx, func(ctx context.Context, entry Entry) error {
		return nil
	})

	if recovered != 0 {
		t.Errorf("expected 0 recovered with cancelled context, got %d", recovered)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
