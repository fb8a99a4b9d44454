package domain

import "time"

// TaskType — тип шага плана.
//
// Планировщик собирает pipeline из этих типов, Executor диспатчит
// их по реестру handler'ов. Набор расширяем: handler'ы регистрируются
// строкой, неизвестный тип — это упавший task, а не panic.
type TaskType string

const (
	TaskTypeFetch      TaskType = "fetch"
	TaskTypeSearch     TaskType = "search"
	TaskTypeExtract    TaskType = "extract"
	TaskTypeSummarize  TaskType = "summarize"
	TaskTypeAnalyze    TaskType = "analyze"
	TaskTypeSynthesize TaskType = "synthesize"
	TaskTypeFormat     TaskType = "format"
)

// Task — отдельная единица работы внутри плана.
//
// Task создаётся Planner'ом и мутируется только Executor'ом.
// После достижения терминального статуса в рамках одного запуска
// task неизменяем; retry работает с глубокой копией списка tasks.
type Task struct {
	// ID — уникальный идентификатор task внутри плана.
	ID string `json:"id"`

	// Type — тип шага: "fetch", "search", "summarize" и т.д.
	Type TaskType `json:"type"`

	// Description — человекочитаемое описание шага.
	Description string `json:"description,omitempty"`

	// Dependencies — ID шагов, от которых зависит этот шаг.
	// Шаг становится готовым только после завершения всех зависимостей.
	Dependencies []string `json:"dependencies,omitempty"`

	// Optional — шаг можно выбросить при превышении MaxSteps
	// (trailing optional шаги отбрасываются первыми).
	Optional bool `json:"optional,omitempty"`

	// Inputs — входные данные шага.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Outputs — результаты выполнения. Заполняется Executor'ом.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// IsRoot возвращает true, если у task нет зависимостей (точка входа).
func (t *Task) IsRoot() bool {
	return len(t.Dependencies) == 0
}

// DependsOnSelf возвращает true, если task зависит от самого себя.
func (t *Task) DependsOnSelf() bool {
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return true
		}
	}
	return false
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkCompleted переводит task в статус COMPLETED с результатами.
func (t *Task) MarkCompleted(outputs map[string]any) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.Outputs = outputs
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// Clone возвращает глубокую копию task.
// Executor работает с копиями, чтобы retry стартовал с чистых статусов.
func (t *Task) Clone() *Task {
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Inputs = cloneMap(t.Inputs)
	c.Outputs = cloneMap(t.Outputs)
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		c.FinishedAt = &finished
	}
	return &c
}

// cloneMap — неглубокая копия map (значения разделяются).
// Достаточно: Executor никогда не мутирует значения inputs.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
