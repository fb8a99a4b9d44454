package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
)

// echoHandler возвращает фиксированный output.
func echoHandler(outputs map[string]any) Handler {
	return HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		return outputs, nil
	})
}

// failHandler всегда возвращает ошибку.
func failHandler(msg string) Handler {
	return HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		return nil, errors.New(msg)
	})
}

func registerAll(e *Executor, handler Handler, types ...domain.TaskType) {
	for _, t := range types {
		e.Register(t, handler)
	}
}

func linearPlan() *domain.Plan {
	// Сценарий: search → fetch → summarize → format
	return &domain.Plan{Tasks: []domain.Task{
		{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		{ID: "fetch-1", Type: domain.TaskTypeFetch, Dependencies: []string{"search-1"}, Status: domain.TaskStatusPending},
		{ID: "summarize-1", Type: domain.TaskTypeSummarize, Dependencies: []string{"fetch-1"}, Status: domain.TaskStatusPending},
		{ID: "format-1", Type: domain.TaskTypeFormat, Dependencies: []string{"summarize-1"}, Status: domain.TaskStatusPending},
	}}
}

func TestRun_LinearPlanAllSucceed(t *testing.T) {
	bus := eventbus.New(eventbus.Config{HistorySize: 100})
	e := New(Config{Bus: bus})
	registerAll(e, echoHandler(map[string]any{"ok": true}),
		domain.TaskTypeSearch, domain.TaskTypeFetch, domain.TaskTypeSummarize, domain.TaskTypeFormat)

	result, err := e.Run(context.Background(), "job-1", linearPlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if len(result.CompletedTaskIDs) != 4 {
		t.Errorf("expected 4 completed tasks, got %d", len(result.CompletedTaskIDs))
	}

	// Каждый task публикует started + completed, строго по sequence
	history := bus.History("job-1", 0)
	if len(history) != 8 {
		t.Fatalf("expected 8 events, got %d", len(history))
	}

	var completed []string
	for _, event := range history {
		if event.EventType == domain.EventTaskCompleted {
			completed = append(completed, event.Data["task_id"].(string))
		}
	}
	want := []string{"search-1", "fetch-1", "summarize-1", "format-1"}
	for i, id := range want {
		if completed[i] != id {
			t.Errorf("completion order %d: expected %s, got %s", i, id, completed[i])
		}
	}
}

func TestRun_FailurePropagatesToDependents(t *testing.T) {
	// Сценарий: fetch падает ⇒ summarize и format не достигают Running
	e := New(Config{})
	e.Register(domain.TaskTypeSearch, echoHandler(nil))
	e.Register(domain.TaskTypeFetch, failHandler("connection refused"))
	e.Register(domain.TaskTypeSummarize, echoHandler(nil))
	e.Register(domain.TaskTypeFormat, echoHandler(nil))

	result, err := e.Run(context.Background(), "job-1", linearPlan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("expected failure")
	}

	if result.Errors["fetch-1"] != "connection refused" {
		t.Errorf("expected fetch error, got %q", result.Errors["fetch-1"])
	}

	// Зависимые помечены missing-dependency, но StartedAt не тронут
	for _, id := range []string{"summarize-1", "format-1"} {
		if result.Errors[id] != "missing or circular dependency" {
			t.Errorf("task %s: expected missing dependency error, got %q", id, result.Errors[id])
		}
		for _, task := range result.Tasks {
			if task.ID == id && task.StartedAt != nil {
				t.Errorf("task %s should never reach Running", id)
			}
		}
	}

	// search завершился успешно: сбой изолирован
	if result.Errors["search-1"] != "" {
		t.Errorf("search should not be affected: %q", result.Errors["search-1"])
	}
}

func TestRun_SiblingBranchUnaffectedByFailure(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "root", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		{ID: "left", Type: domain.TaskTypeFetch, Dependencies: []string{"root"}, Status: domain.TaskStatusPending},
		{ID: "right", Type: domain.TaskTypeSummarize, Dependencies: []string{"root"}, Status: domain.TaskStatusPending},
		{ID: "left-child", Type: domain.TaskTypeFormat, Dependencies: []string{"left"}, Status: domain.TaskStatusPending},
	}}

	e := New(Config{})
	e.Register(domain.TaskTypeSearch, echoHandler(nil))
	e.Register(domain.TaskTypeFetch, failHandler("boom"))
	e.Register(domain.TaskTypeSummarize, echoHandler(map[string]any{"summary": "ok"}))
	e.Register(domain.TaskTypeFormat, echoHandler(nil))

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// right завершился несмотря на сбой left
	found := false
	for _, id := range result.CompletedTaskIDs {
		if id == "right" {
			found = true
		}
	}
	if !found {
		t.Error("sibling branch should complete despite failure in the other branch")
	}

	// left-child добрался веткой missing-dependency
	if result.Errors["left-child"] != "missing or circular dependency" {
		t.Errorf("left-child: expected missing dependency, got %q", result.Errors["left-child"])
	}
}

func TestRun_CycleFailsAllCycleTasks(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "root", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		{ID: "a", Type: domain.TaskTypeFetch, Dependencies: []string{"root", "c"}, Status: domain.TaskStatusPending},
		{ID: "b", Type: domain.TaskTypeFetch, Dependencies: []string{"a"}, Status: domain.TaskStatusPending},
		{ID: "c", Type: domain.TaskTypeFetch, Dependencies: []string{"b"}, Status: domain.TaskStatusPending},
	}}

	e := New(Config{})
	registerAll(e, echoHandler(nil), domain.TaskTypeSearch, domain.TaskTypeFetch)

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// root вне цикла — завершён
	if len(result.CompletedTaskIDs) != 1 || result.CompletedTaskIDs[0] != "root" {
		t.Errorf("expected only root completed, got %v", result.CompletedTaskIDs)
	}

	// Все участники цикла упали с одной и той же ошибкой
	for _, id := range []string{"a", "b", "c"} {
		if result.Errors[id] != "missing or circular dependency" {
			t.Errorf("task %s: expected missing dependency error, got %q", id, result.Errors[id])
		}
	}
}

func TestRun_UnknownStepType(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: "teleport", Status: domain.TaskStatusPending},
	}}

	e := New(Config{})

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("expected failure for unregistered type")
	}
	if result.Errors["a"] != "unknown step type" {
		t.Errorf("expected unknown step type error, got %q", result.Errors["a"])
	}
}

func TestRun_ReadyTasksRunConcurrently(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeFetch, Status: domain.TaskStatusPending},
		{ID: "b", Type: domain.TaskTypeFetch, Status: domain.TaskStatusPending},
		{ID: "c", Type: domain.TaskTypeFetch, Status: domain.TaskStatusPending},
	}}

	var mu sync.Mutex
	running := 0
	peak := 0

	e := New(Config{})
	e.Register(domain.TaskTypeFetch, HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil, nil
	}))

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	if peak < 2 {
		t.Errorf("ready tasks should run concurrently, peak parallelism was %d", peak)
	}
}

func TestRun_DependencyOutputsVisible(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		{ID: "fetch-1", Type: domain.TaskTypeFetch, Dependencies: []string{"search-1"}, Status: domain.TaskStatusPending},
	}}

	e := New(Config{})
	e.Register(domain.TaskTypeSearch, echoHandler(map[string]any{"url": "https://example.com"}))

	var gotURL any
	e.Register(domain.TaskTypeFetch, HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		gotURL = ec.Outputs["search-1"]["url"]
		return nil, nil
	}))

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}

	if gotURL != "https://example.com" {
		t.Errorf("fetch should see search output, got %v", gotURL)
	}
}

func TestRun_TaskTimeout(t *testing.T) {
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeFetch, Status: domain.TaskStatusPending},
	}}

	e := New(Config{TaskTimeout: 20 * time.Millisecond})
	e.Register(domain.TaskTypeFetch, HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		select {
		case <-time.After(5 * time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	result, err := e.Run(context.Background(), "job-1", plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Errors["a"], "deadline") {
		t.Errorf("expected deadline error, got %q", result.Errors["a"])
	}
}

func TestRun_CancelledAtFrontierBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := New(Config{})
	e.Register(domain.TaskTypeSearch, HandlerFunc(func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
		cancel() // отмена приходит во время первого task'а
		return nil, nil
	}))
	e.Register(domain.TaskTypeFetch, echoHandler(nil))

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "search-1", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
		{ID: "fetch-1", Type: domain.TaskTypeFetch, Dependencies: []string{"search-1"}, Status: domain.TaskStatusPending},
	}}

	result, err := e.Run(ctx, "job-1", plan)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Запущенный task доработал, следующий frontier не стартовал
	if len(result.CompletedTaskIDs) != 1 {
		t.Errorf("expected 1 completed task, got %v", result.CompletedTaskIDs)
	}
	for _, task := range result.Tasks {
		if task.ID == "fetch-1" && task.StartedAt != nil {
			t.Error("fetch-1 should not start after cancellation")
		}
	}
}

func TestRun_DoesNotMutatePlan(t *testing.T) {
	plan := linearPlan()

	e := New(Config{})
	registerAll(e, echoHandler(nil),
		domain.TaskTypeSearch, domain.TaskTypeFetch, domain.TaskTypeSummarize, domain.TaskTypeFormat)

	if _, err := e.Run(context.Background(), "job-1", plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// План не тронут: повторный запуск стартует с чистых статусов
	for i := range plan.Tasks {
		if plan.Tasks[i].Status != domain.TaskStatusPending {
			t.Errorf("task %s: plan mutated to %s", plan.Tasks[i].ID, plan.Tasks[i].Status)
		}
	}
}
