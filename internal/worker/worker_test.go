package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/queue"
)

// testHarness — собранный воркер с in-memory очередью и шиной.
type testHarness struct {
	worker *Worker
	queue  *queue.Queue
	bus    *eventbus.Bus
}

func newHarness(t *testing.T, qcfg queue.Config, register func(e *executor.Executor)) *testHarness {
	t.Helper()

	bus := eventbus.New(eventbus.Config{})
	q := queue.New(qcfg)

	ex := executor.New(executor.Config{Bus: bus})
	if register != nil {
		register(ex)
	}

	w := New(Config{
		Queue:          q,
		Executor:       ex,
		Bus:            bus,
		QueueName:      "plans",
		WorkerID:       "worker-1",
		CancelInterval: 10 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	})

	return &testHarness{worker: w, queue: q, bus: bus}
}

func planPayload(t *testing.T, tasks ...domain.Task) []byte {
	t.Helper()
	payload, err := json.Marshal(JobPayload{Plan: &domain.Plan{Tasks: tasks}})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func okHandler(outputs map[string]any) executor.HandlerFunc {
	return func(ctx context.Context, task *domain.Task, ec executor.ExecContext) (map[string]any, error) {
		return outputs, nil
	}
}

func hasEvent(events []domain.Event, et domain.EventType) bool {
	for _, ev := range events {
		if ev.EventType == et {
			return true
		}
	}
	return false
}

func TestRunJob_Success(t *testing.T) {
	h := newHarness(t, queue.Config{}, func(e *executor.Executor) {
		e.Register(domain.TaskTypeSearch, okHandler(map[string]any{"url": "https://example.com"}))
		e.Register(domain.TaskTypeSummarize, okHandler(map[string]any{"text": "summary"}))
	})
	ctx := context.Background()

	payload := planPayload(t,
		domain.Task{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		domain.Task{ID: "summarize-1", Type: domain.TaskTypeSummarize, Status: domain.TaskStatusPending, Dependencies: []string{"search-1"}},
	)

	jobID, _, err := h.queue.Enqueue(ctx, "plans", payload, queue.EnqueueOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := h.queue.Lease(ctx, "plans", "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.worker.runJob(ctx, job)

	stored, err := h.queue.Store().GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", stored.Status)
	}
	if stored.Progress != 100 {
		t.Errorf("expected progress 100, got %d", stored.Progress)
	}
	if stored.Result["success"] != true {
		t.Errorf("expected success in result, got %v", stored.Result)
	}

	// История: job:started, 2×(task:started + task:completed), done
	history := h.bus.History(jobID, 0)
	if !hasEvent(history, domain.EventJobStarted) {
		t.Error("expected job:started event")
	}
	if !hasEvent(history, domain.EventJobDone) {
		t.Error("expected done event")
	}
	if stored.LastSequence == 0 {
		t.Error("expected progress checkpoint to record last sequence")
	}
}

func TestRunJob_BadPayloadDeadLetters(t *testing.T) {
	h := newHarness(t, queue.Config{MaxAttempts: 1}, nil)
	ctx := context.Background()

	jobID, _, err := h.queue.Enqueue(ctx, "plans", []byte("not json"), queue.EnqueueOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := h.queue.Lease(ctx, "plans", "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.worker.runJob(ctx, job)

	stored, _ := h.queue.Store().GetJob(ctx, jobID)
	if stored.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if h.queue.DeadLetters().Len() != 1 {
		t.Errorf("expected 1 dead letter, got %d", h.queue.DeadLetters().Len())
	}
	if !hasEvent(h.bus.History(jobID, 0), domain.EventJobFailed) {
		t.Error("expected terminal failed event")
	}
}

func TestRunJob_FailureSchedulesRetry(t *testing.T) {
	h := newHarness(t, queue.Config{MaxAttempts: 3, RetryDelay: time.Millisecond}, func(e *executor.Executor) {
		e.Register(domain.TaskTypeFetch, executor.HandlerFunc(
			func(ctx context.Context, task *domain.Task, ec executor.ExecContext) (map[string]any, error) {
				return nil, context.DeadlineExceeded
			}))
	})
	ctx := context.Background()

	payload := planPayload(t, domain.Task{ID: "fetch-1", Type: domain.TaskTypeFetch, Status: domain.TaskStatusPending})
	jobID, _, _ := h.queue.Enqueue(ctx, "plans", payload, queue.EnqueueOptions{})

	job, err := h.queue.Lease(ctx, "plans", "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.worker.runJob(ctx, job)

	// Retry-бюджет не исчерпан: job снова в очереди, не терминален
	stored, _ := h.queue.Store().GetJob(ctx, jobID)
	if stored.Status != domain.JobStatusQueued {
		t.Errorf("expected QUEUED for retry, got %s", stored.Status)
	}

	history := h.bus.History(jobID, 0)
	if hasEvent(history, domain.EventJobFailed) {
		t.Error("terminal failed event must not be published before retry exhaustion")
	}
	if !hasEvent(history, domain.EventJobProgress) {
		t.Error("expected retry progress event")
	}
}

func TestRunJob_CancelBeforeStart(t *testing.T) {
	h := newHarness(t, queue.Config{}, func(e *executor.Executor) {
		e.Register(domain.TaskTypeSearch, okHandler(nil))
	})
	ctx := context.Background()

	payload := planPayload(t, domain.Task{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending})
	jobID, _, _ := h.queue.Enqueue(ctx, "plans", payload, queue.EnqueueOptions{})

	job, err := h.queue.Lease(ctx, "plans", "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Отмена приходит между lease и выполнением
	if err := h.queue.Cancel(ctx, jobID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.worker.runJob(ctx, job)

	stored, _ := h.queue.Store().GetJob(ctx, jobID)
	if stored.Status != domain.JobStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", stored.Status)
	}
	if !hasEvent(h.bus.History(jobID, 0), domain.EventJobCancelled) {
		t.Error("expected cancelled event")
	}
}

func TestRunJob_CancelMidRun(t *testing.T) {
	blocked := make(chan struct{})
	h := newHarness(t, queue.Config{}, func(e *executor.Executor) {
		e.Register(domain.TaskTypeSearch, executor.HandlerFunc(
			func(ctx context.Context, task *domain.Task, ec executor.ExecContext) (map[string]any, error) {
				close(blocked)
				<-ctx.Done()
				return nil, ctx.Err()
			}))
	})
	ctx := context.Background()

	payload := planPayload(t, domain.Task{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending})
	jobID, _, _ := h.queue.Enqueue(ctx, "plans", payload, queue.EnqueueOptions{})

	job, err := h.queue.Lease(ctx, "plans", "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() {
		<-blocked
		h.queue.Cancel(context.Background(), jobID)
	}()

	h.worker.runJob(ctx, job)

	stored, _ := h.queue.Store().GetJob(ctx, jobID)
	if stored.Status != domain.JobStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", stored.Status)
	}
}

func TestWorker_EndToEndPolling(t *testing.T) {
	h := newHarness(t, queue.Config{}, func(e *executor.Executor) {
		e.Register(domain.TaskTypeSearch, okHandler(map[string]any{"done": true}))
	})
	ctx := context.Background()

	if err := h.worker.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer h.worker.Stop()

	payload := planPayload(t, domain.Task{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending})
	jobID, _, err := h.queue.Enqueue(ctx, "plans", payload, queue.EnqueueOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ждём, пока polling fallback подхватит и выполнит job
	deadline := time.After(3 * time.Second)
	for {
		stored, err := h.queue.Store().GetJob(ctx, jobID)
		if err == nil && stored.Status == domain.JobStatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job not completed in time, status: %v", stored.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_StopIsIdempotentSignal(t *testing.T) {
	h := newHarness(t, queue.Config{}, nil)

	if err := h.worker.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.worker.Stop()
	if !h.worker.IsStopped() {
		t.Error("expected worker to report stopped")
	}
}
