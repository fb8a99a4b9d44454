package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Plans
	mux.Handle("POST /api/v1/plans", chain(http.HandlerFunc(h.CreatePlan)))
	mux.Handle("GET /api/v1/plans/{id}", chain(http.HandlerFunc(h.GetPlan)))
	mux.Handle("POST /api/v1/plans/{id}/approve", chain(http.HandlerFunc(h.ApprovePlan)))

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("PATCH /api/v1/jobs/{id}/cancel", chain(http.HandlerFunc(h.CancelJob)))
	mux.Handle("POST /api/v1/jobs/{id}/pause", chain(http.HandlerFunc(h.PauseJob)))
	mux.Handle("POST /api/v1/jobs/{id}/resume", chain(http.HandlerFunc(h.ResumeJob)))
	mux.Handle("GET /api/v1/jobs/{id}/events", chain(http.HandlerFunc(h.ListJobEvents)))

	// Dead letters
	mux.Handle("GET /api/v1/dlq", chain(http.HandlerFunc(h.ListDeadLetters)))
	mux.Handle("POST /api/v1/dlq/recover", chain(http.HandlerFunc(h.RecoverDeadLetters)))

	// WebSocket-стрим без Logging: Logging-обёртка прячет http.Hijacker,
	// нужный апгрейду
	if h.gateway != nil {
		mux.Handle("GET /ws", h.gateway)
	}
}
