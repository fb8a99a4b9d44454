package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — долговечная запись о выполнении плана.
//
// Job создаётся когда одобренный Plan ставится в очередь.
// Мутируется исключительно воркером, держащим lease
// (single-writer инвариант обеспечивается механизмом lease очереди),
// плюс кооперативная отмена (status → CANCELLED, воркер замечает
// на ближайшей checkpoint-границе).
type Job struct {
	// ID — уникальный идентификатор job.
	// Может быть детерминированно выведен из payload для дедупликации.
	ID string `json:"id"`

	// UserID — владелец job.
	UserID string `json:"user_id,omitempty"`

	// Queue — имя очереди, в которой живёт job.
	Queue string `json:"queue"`

	// PlanID — ссылка на план, если job выполняет план.
	PlanID *uuid.UUID `json:"plan_id,omitempty"`

	// Payload — полезная нагрузка (сериализованный план либо
	// произвольная задача для зарегистрированного handler'а).
	Payload []byte `json:"payload,omitempty"`

	// Priority — приоритет в очереди (больше — раньше).
	Priority int `json:"priority,omitempty"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Progress — прогресс выполнения, 0..100.
	// Это status checkpoint, не точка возобновления выполнения:
	// рестарт job запускает handler заново.
	Progress int `json:"progress"`

	// LastSequence — sequence последнего опубликованного события.
	// Клиент использует его для дозапроса history после реконнекта.
	LastSequence int64 `json:"last_sequence"`

	// Attempts — количество выполненных попыток.
	Attempts int `json:"attempts"`

	// Result — результат успешного выполнения.
	Result map[string]any `json:"result,omitempty"`

	// Error — ошибка последней попытки при терминальном FAILED.
	Error string `json:"error,omitempty"`

	// Metadata — произвольные метаданные job.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt — время достижения терминального статуса.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsFinished возвращает true, если job в терминальном статусе.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkQueued переводит job в статус QUEUED.
func (j *Job) MarkQueued() {
	j.Status = JobStatusQueued
	j.UpdatedAt = time.Now()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	j.Status = JobStatusRunning
	j.UpdatedAt = time.Now()
}

// MarkPaused переводит job в статус PAUSED.
func (j *Job) MarkPaused() {
	j.Status = JobStatusPaused
	j.UpdatedAt = time.Now()
}

// MarkCompleted переводит job в статус COMPLETED с результатом.
func (j *Job) MarkCompleted(result map[string]any) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Result = result
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkFailed переводит job в статус FAILED с ошибкой последней попытки.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = err
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkCancelled переводит job в статус CANCELLED.
// Отмена — это отдельный терминальный статус, не ошибка.
func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.UpdatedAt = now
	j.CompletedAt = &now
}
