package api

import (
	"context"
	"net/http"

	"github.com/omnibrowser/redix-core/internal/failsafe"
	"github.com/omnibrowser/redix-core/internal/queue"
)

// ListDeadLetters возвращает содержимое dead-letter ring.
// GET /api/v1/dlq
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries := h.queue.DeadLetters().Entries()

	result := make([]DeadLetterResponse, len(entries))
	for i, e := range entries {
		result[i] = DeadLetterResponse{
			LastError: e.LastError,
			Attempts:  e.Attempts,
			FailedAt:  e.FailedAt,
		}
	}

	List(w, result, len(result))
}

// RecoverDeadLetters возвращает dead-letter payload'ы в очередь.
// POST /api/v1/dlq/recover
//
// Повторная постановка идёт со свежим retry-бюджетом; обработанные
// записи убираются из ring, необработанные остаются.
func (h *Handler) RecoverDeadLetters(w http.ResponseWriter, r *http.Request) {
	dl := h.queue.DeadLetters()

	recovered, err := dl.RecoverDeadLetters(r.Context(), func(ctx context.Context, entry failsafe.Entry) error {
		payload, ok := entry.Payload.([]byte)
		if !ok {
			// Не-байтовый payload (из других FailSafe-путей) не наш
			return failsafe.ErrNonRetryable
		}
		_, _, err := h.queue.Enqueue(ctx, h.queueName, payload, queue.EnqueueOptions{})
		return err
	})
	if err != nil {
		h.logger.Warn("dead-letter recovery partially failed", "recovered", recovered, "error", err)
	}

	Success(w, RecoverResponse{
		Recovered: recovered,
		Remaining: dl.Len(),
	})
}
