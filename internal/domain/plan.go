package domain

import (
	"time"

	"github.com/google/uuid"
)

// Intent — разобранный запрос пользователя, вход Planner'а.
type Intent struct {
	// Query — исходный текст запроса.
	Query string `json:"query"`

	// Type — тип задачи: "research", "summarize", "compare" и т.д.
	// Определяет скелет pipeline.
	Type string `json:"type"`

	// Complexity — оценка сложности запроса.
	Complexity Complexity `json:"complexity,omitempty"`

	// Counterpoints — пользователь запросил альтернативные точки зрения.
	// Добавляет counterpoint-ветку поиска в pipeline.
	Counterpoints bool `json:"counterpoints,omitempty"`

	// Context — дополнительный контекст (текущая вкладка, выделение и т.д.).
	Context map[string]any `json:"context,omitempty"`
}

// Plan — DAG типизированных шагов, скомпилированный из intent'а.
//
// Plan принадлежит Planner'у при создании. Executor его не мутирует:
// каждый запуск работает с глубокой копией списка tasks, поэтому
// retry стартует с чистого набора статусов.
type Plan struct {
	// ID — уникальный идентификатор плана.
	ID uuid.UUID `json:"id"`

	// UserID — владелец запроса.
	UserID string `json:"user_id,omitempty"`

	// OriginQuery — исходный запрос, из которого собран план.
	OriginQuery string `json:"origin_query"`

	// Tasks — упорядоченный список шагов.
	Tasks []Task `json:"tasks"`

	// EstimatedTimeSeconds — суммарная оценка времени выполнения.
	EstimatedTimeSeconds float64 `json:"estimated_time_seconds"`

	// EstimatedCost — суммарная оценка стоимости
	// (search/fetch в request units, LLM-шаги в token units).
	EstimatedCost float64 `json:"estimated_cost"`

	// RiskLevel — уровень риска: low/medium/high.
	RiskLevel RiskLevel `json:"risk_level"`

	// RequiresApproval — план содержит side-effecting шаги
	// и требует явного одобрения перед постановкой в очередь.
	RequiresApproval bool `json:"requires_approval"`

	// CreatedAt — время создания плана.
	CreatedAt time.Time `json:"created_at"`
}

// TaskByID возвращает task по ID (nil, если не найден).
func (p *Plan) TaskByID(id string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// RootTasks возвращает ID шагов без зависимостей (точки входа).
func (p *Plan) RootTasks() []string {
	roots := make([]string, 0)
	for i := range p.Tasks {
		if p.Tasks[i].IsRoot() {
			roots = append(roots, p.Tasks[i].ID)
		}
	}
	return roots
}

// CloneTasks возвращает глубокую копию списка tasks.
func (p *Plan) CloneTasks() []*Task {
	tasks := make([]*Task, len(p.Tasks))
	for i := range p.Tasks {
		tasks[i] = p.Tasks[i].Clone()
	}
	return tasks
}

// Clone возвращает глубокую копию плана.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Tasks = make([]Task, len(p.Tasks))
	for i := range p.Tasks {
		c.Tasks[i] = *p.Tasks[i].Clone()
	}
	return &c
}
