package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/omnibrowser/redix-core/internal/queue"
	"github.com/omnibrowser/redix-core/internal/worker"
)

// CreateJob ставит одобренный план в очередь выполнения.
// POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	record, err := h.plans.GetByID(r.Context(), req.PlanID)
	if HandleStoreError(w, h.logger, err, "plan not found") {
		return
	}

	// Approval gate: план с side-effecting шагами не попадает
	// в очередь без явного одобрения
	if !record.Approved {
		InvalidState(w, "plan requires approval before execution")
		return
	}

	payload, err := json.Marshal(worker.JobPayload{Plan: &record.Plan})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	planID := record.Plan.ID
	jobID, deduplicated, err := h.queue.Enqueue(r.Context(), h.queueName, payload, queue.EnqueueOptions{
		JobID:    req.JobID,
		Priority: req.Priority,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
		UserID:   req.UserID,
		PlanID:   &planID,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Best-effort нотификация воркеров; без неё job подхватится polling'ом
	if h.publisher != nil && !deduplicated {
		if err := h.publisher.PublishJobEnqueued(r.Context(), jobID, h.queueName); err != nil {
			h.logger.Warn("failed to publish job.enqueued", "job_id", jobID, "error", err)
		}
	}

	resp := CreateJobResponse{JobID: jobID, Deduplicated: deduplicated}
	if deduplicated {
		Success(w, resp)
		return
	}
	Created(w, resp)
}

// GetJob возвращает статусное представление job.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Store().GetJob(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job))
}

// CancelJob запрашивает отмену job.
// PATCH /api/v1/jobs/{id}/cancel
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.queue.Cancel(r.Context(), jobID); HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	job, err := h.queue.Store().GetJob(r.Context(), jobID)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job))
}

// PauseJob убирает ожидающий job из очереди.
// POST /api/v1/jobs/{id}/pause
func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.queue.Pause(r.Context(), jobID); HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	job, err := h.queue.Store().GetJob(r.Context(), jobID)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job))
}

// ResumeJob возвращает приостановленный job в очередь.
// POST /api/v1/jobs/{id}/resume
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	if err := h.queue.Resume(r.Context(), jobID); HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishJobEnqueued(r.Context(), jobID, h.queueName); err != nil {
			h.logger.Warn("failed to publish job.enqueued", "job_id", jobID, "error", err)
		}
	}

	job, err := h.queue.Store().GetJob(r.Context(), jobID)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job))
}

// ListJobEvents возвращает history событий job.
// GET /api/v1/jobs/{id}/events?after_sequence=...&limit=...
//
// after_sequence — дозапрос после реконнекта: отдаются только события
// с sequence строго больше указанного.
func (h *Handler) ListJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	// Несуществующий job — 404, а не пустая history
	if _, err := h.queue.Store().GetJob(r.Context(), jobID); HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	var afterSequence int64
	if v := r.URL.Query().Get("after_sequence"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			BadRequest(w, "invalid after_sequence")
			return
		}
		afterSequence = n
	}

	events := h.bus.History(jobID, 0)
	if afterSequence > 0 {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Sequence > afterSequence {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	List(w, events, len(events))
}
