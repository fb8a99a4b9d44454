package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// Тексты синтетических ошибок task'ов.
const (
	errMissingDependency = "missing or circular dependency"
	errUnknownStepType   = "unknown step type"
)

// Handler выполняет task конкретного типа.
//
// Handler'ы регистрируются по строке типа; Executor'у безразлично,
// что handler делает внутри. Ошибка handler'а изолируется в task
// и его транзитивных зависимых, соседние ветки продолжаются.
type Handler interface {
	Execute(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error)
}

// HandlerFunc — адаптер функции к интерфейсу Handler.
type HandlerFunc func(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error)

// Execute реализует Handler.
func (f HandlerFunc) Execute(ctx context.Context, task *domain.Task, ec ExecContext) (map[string]any, error) {
	return f(ctx, task, ec)
}

// ExecContext — контекст выполнения, передаваемый handler'у.
type ExecContext struct {
	// JobID — job, в рамках которого выполняется план.
	JobID string

	// Outputs — результаты завершённых зависимостей, по ID task'а.
	Outputs map[string]map[string]any
}

// Publisher — приёмник событий прогресса (обычно *eventbus.Bus).
type Publisher interface {
	Publish(jobID string, eventType domain.EventType, data map[string]any) int64
}

// Result — итог выполнения плана.
type Result struct {
	// Success — ни один task не завершился с ошибкой.
	Success bool `json:"success"`

	// Results — outputs завершённых task'ов по ID.
	Results map[string]map[string]any `json:"results"`

	// Errors — тексты ошибок упавших task'ов по ID.
	Errors map[string]string `json:"errors,omitempty"`

	// ExecutionTimeMs — суммарное время выполнения плана.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// CompletedTaskIDs — ID успешно завершённых task'ов.
	CompletedTaskIDs []string `json:"completed_task_ids"`

	// FailedTaskIDs — ID упавших task'ов.
	FailedTaskIDs []string `json:"failed_task_ids"`

	// Tasks — финальное состояние всех task'ов запуска.
	Tasks []*domain.Task `json:"tasks"`
}

// Config — конфигурация Executor.
type Config struct {
	// TaskTimeout — таймаут одного вызова handler'а.
	// Должен быть меньше lease timeout очереди, иначе живой task
	// может быть молча перевыдан другому воркеру.
	TaskTimeout time.Duration

	// Bus — приёмник событий прогресса. nil допустим (без событий).
	Bus Publisher

	// Logger
	Logger *slog.Logger
}

// Executor выполняет план: frontier-планирование по топологии DAG,
// параллельный диспатч готовых task'ов, изоляция сбоев.
//
// Машина состояний task'а: Pending → Running → {Completed | Failed}.
// Готовность требует Completed-зависимостей: зависимые упавшего task'а
// никогда не становятся ready и добираются веткой missing-dependency —
// сбой распространяется транзитивно без явного обхода графа.
type Executor struct {
	cfg      Config
	logger   *slog.Logger
	handlers map[domain.TaskType]Handler
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg,
		logger:   cfg.Logger,
		handlers: make(map[domain.TaskType]Handler),
	}
}

// Register регистрирует handler для типа task'а.
// Повторная регистрация замещает предыдущий handler.
func (e *Executor) Register(taskType domain.TaskType, handler Handler) {
	e.handlers[taskType] = handler
}

// Run выполняет план в рамках job.
//
// Работает с глубокой копией task'ов плана: retry стартует с чистого
// набора статусов, сам план не мутируется. Отмена кооперативная —
// проверяется на границе frontier'а; уже запущенные task'и дорабатывают.
func (e *Executor) Run(ctx context.Context, jobID string, plan *domain.Plan) (*Result, error) {
	start := time.Now()

	tasks := plan.CloneTasks()
	byID := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	executed := make(map[string]bool, len(tasks))
	completed := make(map[string]bool, len(tasks))
	outputs := make(map[string]map[string]any, len(tasks))
	taskErrors := make(map[string]string)

	for len(executed) < len(tasks) {
		// Граница frontier'а — checkpoint отмены
		if err := ctx.Err(); err != nil {
			return e.buildResult(tasks, outputs, taskErrors, start), err
		}

		ready := readyTasks(tasks, executed, completed)

		if len(ready) == 0 {
			// Ready-set пуст при незавершённой работе: все оставшиеся
			// task'и разом помечаются упавшими (цикл или зависимость
			// от упавшего/несуществующего task'а)
			for _, t := range tasks {
				if !executed[t.ID] {
					t.MarkFailed(errMissingDependency)
					taskErrors[t.ID] = errMissingDependency
					executed[t.ID] = true
					e.publishTaskFailed(jobID, t, 0)
				}
			}
			break
		}

		var wg sync.WaitGroup
		for _, t := range ready {
			wg.Add(1)
			go func(task *domain.Task) {
				defer wg.Done()
				e.runTask(ctx, jobID, task, ExecContext{
					JobID:   jobID,
					Outputs: dependencyOutputs(task, outputs),
				})
			}(t)
		}
		wg.Wait()

		for _, t := range ready {
			executed[t.ID] = true
			switch t.Status {
			case domain.TaskStatusCompleted:
				completed[t.ID] = true
				outputs[t.ID] = t.Outputs
			case domain.TaskStatusFailed:
				taskErrors[t.ID] = t.Error
			}
		}
	}

	return e.buildResult(tasks, outputs, taskErrors, start), nil
}

// runTask выполняет один task: событие task:started, вызов handler'а
// под таймаутом, терминальный статус и событие с elapsed time.
func (e *Executor) runTask(ctx context.Context, jobID string, task *domain.Task, ec ExecContext) {
	logger := telemetry.WithTaskID(telemetry.WithJobID(e.logger, jobID), task.ID)

	e.publish(jobID, domain.EventTaskStarted, map[string]any{
		"task_id": task.ID,
		"type":    string(task.Type),
	})

	task.MarkRunning()
	start := time.Now()

	handler, ok := e.handlers[task.Type]
	if !ok {
		task.MarkFailed(errUnknownStepType)
		logger.Warn("no handler registered", "type", task.Type)
		e.publishTaskFailed(jobID, task, time.Since(start))
		return
	}

	taskCtx := ctx
	if e.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
		defer cancel()
	}

	out, err := handler.Execute(taskCtx, task, ec)
	elapsed := time.Since(start)
	telemetry.TaskDuration.WithLabelValues(string(task.Type)).Observe(elapsed.Seconds())

	if err != nil {
		task.MarkFailed(err.Error())
		logger.Warn("task failed", "elapsed", elapsed, "error", err)
		e.publishTaskFailed(jobID, task, elapsed)
		return
	}

	task.MarkCompleted(out)
	logger.Debug("task completed", "elapsed", elapsed)
	e.publish(jobID, domain.EventTaskCompleted, map[string]any{
		"task_id":    task.ID,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (e *Executor) publishTaskFailed(jobID string, task *domain.Task, elapsed time.Duration) {
	e.publish(jobID, domain.EventTaskFailed, map[string]any{
		"task_id":    task.ID,
		"error":      task.Error,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (e *Executor) publish(jobID string, eventType domain.EventType, data map[string]any) {
	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(jobID, eventType, data)
	}
}

// buildResult собирает итог запуска из финального состояния task'ов.
func (e *Executor) buildResult(tasks []*domain.Task, outputs map[string]map[string]any, taskErrors map[string]string, start time.Time) *Result {
	result := &Result{
		Results:          outputs,
		Errors:           taskErrors,
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
		CompletedTaskIDs: make([]string, 0, len(outputs)),
		FailedTaskIDs:    make([]string, 0, len(taskErrors)),
		Tasks:            tasks,
	}

	for _, t := range tasks {
		switch t.Status {
		case domain.TaskStatusCompleted:
			result.CompletedTaskIDs = append(result.CompletedTaskIDs, t.ID)
		case domain.TaskStatusFailed:
			result.FailedTaskIDs = append(result.FailedTaskIDs, t.ID)
		}
	}

	result.Success = len(result.FailedTaskIDs) == 0
	return result
}

// FirstError возвращает ошибку первого (по порядку плана) упавшего task'а.
func (r *Result) FirstError() error {
	for _, t := range r.Tasks {
		if t.Status == domain.TaskStatusFailed {
			return fmt.Errorf("task %s: %s", t.ID, t.Error)
		}
	}
	return nil
}

// readyTasks возвращает task'и, все зависимости которых Completed.
// Упавшая зависимость не удовлетворяет готовность: её зависимые
// остаются заблокированными и сметаются веткой missing-dependency.
func readyTasks(tasks []*domain.Task, executed, completed map[string]bool) []*domain.Task {
	var ready []*domain.Task
	for _, t := range tasks {
		if executed[t.ID] {
			continue
		}
		ok := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// dependencyOutputs собирает outputs завершённых зависимостей task'а.
func dependencyOutputs(task *domain.Task, outputs map[string]map[string]any) map[string]map[string]any {
	deps := make(map[string]map[string]any, len(task.Dependencies))
	for _, dep := range task.Dependencies {
		if out, ok := outputs[dep]; ok {
			deps[dep] = out
		}
	}
	return deps
}
