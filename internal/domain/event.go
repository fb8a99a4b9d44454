package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — конкретный тип события прогресса.
type EventType string

const (
	// EventJobStarted — воркер начал выполнение job.
	EventJobStarted EventType = "job:started"

	// EventJobProgress — промежуточный прогресс job (percent в data).
	EventJobProgress EventType = "job:progress"

	// EventTaskStarted — отдельный task начал выполняться.
	EventTaskStarted EventType = "task:started"

	// EventTaskCompleted — task успешно завершён.
	EventTaskCompleted EventType = "task:completed"

	// EventTaskFailed — task завершился с ошибкой.
	EventTaskFailed EventType = "task:failed"

	// EventJobDone — терминальное событие успешного завершения.
	EventJobDone EventType = "done"

	// EventJobFailed — терминальное событие неудачи.
	EventJobFailed EventType = "failed"

	// EventJobCancelled — терминальное событие отмены.
	EventJobCancelled EventType = "cancelled"
)

// IsTerminal возвращает true для терминальных типов событий.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventJobDone, EventJobFailed, EventJobCancelled:
		return true
	default:
		return false
	}
}

// EventCategory — грубая категория события: task-уровень или job-уровень.
type EventCategory string

const (
	EventCategoryTask EventCategory = "task"
	EventCategoryJob  EventCategory = "job"
)

// Event — запись в append-only журнале прогресса job.
//
// Sequence строго монотонен в рамках одного job и назначается
// под per-job блокировкой; клиенты используют его для replay
// и отбрасывания уже применённых событий после реконнекта.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// JobID — job, к которому относится событие.
	JobID string `json:"job_id"`

	// Sequence — монотонный номер события в рамках job.
	Sequence int64 `json:"sequence"`

	// Type — категория: "task" или "job".
	Type EventCategory `json:"type"`

	// EventType — конкретный тип: "task:started", "done" и т.д.
	EventType EventType `json:"event_type"`

	// Data — полезная нагрузка события.
	Data map[string]any `json:"data,omitempty"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// Category возвращает категорию для типа события.
func (t EventType) Category() EventCategory {
	switch t {
	case EventTaskStarted, EventTaskCompleted, EventTaskFailed:
		return EventCategoryTask
	default:
		return EventCategoryJob
	}
}
