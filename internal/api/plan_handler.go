package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// CreatePlan компилирует intent в план и сохраняет его.
// POST /api/v1/plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	plan, err := h.planner.CreatePlan(req.Intent, req.UserID)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	validation := h.planner.ValidatePlan(plan)
	if !validation.Valid {
		// Скелеты планировщика всегда валидны; невалидный план —
		// внутренняя ошибка, а не вина клиента
		h.logger.Error("planner produced invalid plan", "plan_id", plan.ID, "errors", validation.Errors)
		InternalError(w, h.logger, nil)
		return
	}

	if err := h.plans.Create(r.Context(), plan); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, PlanResponse{
		Plan:       *plan,
		Validation: validation,
		Approved:   !plan.RequiresApproval,
	})
}

// GetPlan возвращает план по ID.
// GET /api/v1/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid plan id")
		return
	}

	record, err := h.plans.GetByID(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "plan not found") {
		return
	}

	Success(w, PlanFromRecord(record, h.planner.ValidatePlan(&record.Plan)))
}

// ApprovePlan одобряет план с side-effecting шагами.
// POST /api/v1/plans/{id}/approve
func (h *Handler) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid plan id")
		return
	}

	if err := h.plans.Approve(r.Context(), id); HandleStoreError(w, h.logger, err, "plan not found") {
		return
	}

	record, err := h.plans.GetByID(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "plan not found") {
		return
	}

	Success(w, PlanFromRecord(record, h.planner.ValidatePlan(&record.Plan)))
}
