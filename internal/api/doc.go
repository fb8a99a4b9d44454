// Package api реализует REST API redix-core.
//
// Endpoints:
//
//	POST  /api/v1/plans               — компиляция intent'а в план
//	GET   /api/v1/plans/{id}          — план с валидацией и одобрением
//	POST  /api/v1/plans/{id}/approve  — одобрение рискованного плана
//	POST  /api/v1/jobs                — постановка плана в очередь
//	GET   /api/v1/jobs/{id}           — статус/прогресс/результат job
//	PATCH /api/v1/jobs/{id}/cancel    — кооперативная отмена
//	POST  /api/v1/jobs/{id}/pause     — пауза ожидающего job
//	POST  /api/v1/jobs/{id}/resume    — возврат в очередь
//	GET   /api/v1/jobs/{id}/events    — history событий (replay)
//	GET   /api/v1/dlq                 — dead-letter записи
//	POST  /api/v1/dlq/recover         — повторная постановка dead-letters
//	GET   /ws                         — WebSocket-стрим событий
package api
