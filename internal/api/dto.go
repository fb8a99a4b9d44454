package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/planner"
	"github.com/omnibrowser/redix-core/internal/repo"
)

// Plan DTOs

// CreatePlanRequest — запрос на компиляцию intent'а в план.
type CreatePlanRequest struct {
	Intent domain.Intent `json:"intent"`
	UserID string        `json:"user_id,omitempty"`
}

// PlanResponse — ответ с планом, результатом валидации и одобрением.
type PlanResponse struct {
	Plan       domain.Plan              `json:"plan"`
	Validation planner.ValidationResult `json:"validation"`
	Approved   bool                     `json:"approved"`
}

// PlanFromRecord конвертирует repo.PlanRecord в PlanResponse.
func PlanFromRecord(record *repo.PlanRecord, validation planner.ValidationResult) PlanResponse {
	return PlanResponse{
		Plan:       record.Plan,
		Validation: validation,
		Approved:   record.Approved,
	}
}

// Job DTOs

// CreateJobRequest — запрос на постановку плана в очередь.
type CreateJobRequest struct {
	PlanID   uuid.UUID `json:"plan_id"`
	Priority int       `json:"priority,omitempty"`
	DelayMs  int64     `json:"delay_ms,omitempty"`
	UserID   string    `json:"user_id,omitempty"`

	// JobID — явный идентификатор для клиентской идемпотентности.
	// Пустой — ID выводится из плана детерминированно.
	JobID string `json:"job_id,omitempty"`
}

// CreateJobResponse — ответ на постановку в очередь.
type CreateJobResponse struct {
	JobID        string `json:"job_id"`
	Deduplicated bool   `json:"deduplicated"`
}

// JobResponse — статусное представление job.
type JobResponse struct {
	ID           string           `json:"id"`
	Queue        string           `json:"queue"`
	PlanID       *uuid.UUID       `json:"plan_id,omitempty"`
	Status       domain.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	LastSequence int64            `json:"last_sequence"`
	Attempts     int              `json:"attempts"`
	Result       map[string]any   `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j *domain.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Queue:        j.Queue,
		PlanID:       j.PlanID,
		Status:       j.Status,
		Progress:     j.Progress,
		LastSequence: j.LastSequence,
		Attempts:     j.Attempts,
		Result:       j.Result,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// DLQ DTOs

// DeadLetterResponse — запись dead-letter.
type DeadLetterResponse struct {
	LastError string    `json:"last_error"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
}

// RecoverResponse — результат восстановления dead-letters.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
	Remaining int `json:"remaining"`
}
