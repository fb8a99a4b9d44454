package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
	"github.com/omnibrowser/redix-core/internal/queue"
)

func TestReapOnce_RequeuesExpiredLeases(t *testing.T) {
	q := queue.New(queue.Config{LeaseTimeout: time.Millisecond})
	ctx := context.Background()

	jobID, _, err := q.Enqueue(ctx, "plans", []byte(`{}`), queue.EnqueueOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.Lease(ctx, "plans", "worker-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	j := New(Config{Queue: q, QueueName: "plans"})
	if reaped := j.ReapOnce(ctx); reaped != 1 {
		t.Errorf("expected 1 reaped lease, got %d", reaped)
	}

	stored, _ := q.Store().GetJob(ctx, jobID)
	if stored.Status != domain.JobStatusQueued {
		t.Errorf("expected QUEUED after reap, got %s", stored.Status)
	}
}

func TestSweepOnce_RemovesOldTerminalJobs(t *testing.T) {
	q := queue.New(queue.Config{})
	bus := eventbus.New(eventbus.Config{})
	ctx := context.Background()

	// Завершённый давно job
	oldID, _, _ := q.Enqueue(ctx, "plans", []byte(`{"v":1}`), queue.EnqueueOptions{JobID: "job-old"})
	if _, err := q.Lease(ctx, "plans", "worker-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Ack(ctx, oldID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bus.Publish(oldID, domain.EventJobDone, nil)

	// Отодвигаем время завершения за retention-окно
	stored, _ := q.Store().GetJob(ctx, oldID)
	past := time.Now().Add(-2 * time.Hour)
	stored.CompletedAt = &past
	if err := q.Store().UpdateJob(ctx, stored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Свежий ожидающий job — не трогается
	freshID, _, _ := q.Enqueue(ctx, "plans", []byte(`{"v":2}`), queue.EnqueueOptions{JobID: "job-fresh"})

	j := New(Config{Queue: q, Bus: bus, QueueName: "plans", Retention: time.Hour})
	if removed := j.SweepOnce(ctx); removed != 1 {
		t.Errorf("expected 1 removed job, got %d", removed)
	}

	if _, err := q.Store().GetJob(ctx, oldID); err == nil {
		t.Error("expected old job to be deleted")
	}
	if len(bus.History(oldID, 0)) != 0 {
		t.Error("expected event history to be purged with the job")
	}
	if _, err := q.Store().GetJob(ctx, freshID); err != nil {
		t.Errorf("fresh job must survive retention: %v", err)
	}
}

func TestSweepOnce_KeepsRecentTerminalJobs(t *testing.T) {
	q := queue.New(queue.Config{})
	ctx := context.Background()

	jobID, _, _ := q.Enqueue(ctx, "plans", []byte(`{}`), queue.EnqueueOptions{})
	if _, err := q.Lease(ctx, "plans", "worker-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Ack(ctx, jobID, nil)

	j := New(Config{Queue: q, QueueName: "plans", Retention: time.Hour})
	if removed := j.SweepOnce(ctx); removed != 0 {
		t.Errorf("expected 0 removed, got %d", removed)
	}

	if _, err := q.Store().GetJob(ctx, jobID); err != nil {
		t.Errorf("recently finished job must survive: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	q := queue.New(queue.Config{})
	j := New(Config{
		Queue:         q,
		QueueName:     "plans",
		ReapSpec:      "@every 1h",
		RetentionSpec: "@every 1h",
	})

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j.Stop()
}

func TestStart_InvalidSpec(t *testing.T) {
	q := queue.New(queue.Config{})
	j := New(Config{Queue: q, ReapSpec: "not a cron spec"})

	if err := j.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}
