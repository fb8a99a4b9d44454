package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/executor"
	"github.com/omnibrowser/redix-core/internal/mq"
	"github.com/omnibrowser/redix-core/internal/telemetry"
)

// JobPayload — сериализованная полезная нагрузка job.
type JobPayload struct {
	// Plan — план, который надо выполнить.
	Plan *domain.Plan `json:"plan"`
}

// runJob выполняет один взятый в lease job от начала до ack/nack.
//
// Отмена кооперативная: параллельная горутина опрашивает статус job
// и снимает контекст выполнения, Executor замечает это на границе
// frontier'а. Прогресс фиксируется checkpoint'ами по терминальным
// событиям task'ов.
func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	logger := telemetry.WithJobID(w.logger, job.ID)

	var payload JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.Plan == nil {
		// Нечитаемый payload не лечится retry
		w.finishFailed(ctx, job, fmt.Sprintf("%v: %v", ErrBadPayload, err))
		return
	}

	logger.Info("job started",
		"plan_id", payload.Plan.ID,
		"tasks", len(payload.Plan.Tasks),
		"attempt", job.Attempts,
	)

	w.bus.Publish(job.ID, domain.EventJobStarted, map[string]any{
		"attempt": job.Attempts,
		"tasks":   len(payload.Plan.Tasks),
	})

	// Checkpoint до старта: отмена могла прийти между lease и выполнением
	if w.confirmIfCancelled(ctx, job) {
		return
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		w.watchCancellation(runCtx, job.ID, cancelRun)
	}()

	stopProgress := w.trackProgress(ctx, job.ID, len(payload.Plan.Tasks))

	result, runErr := w.executor.Run(runCtx, job.ID, payload.Plan)

	cancelRun()
	<-watchDone
	stopProgress()

	// Отмена могла прийти во время выполнения. Handler'ы видят её как
	// ошибку контекста, поэтому итог запуска здесь не важен: job
	// финализируется как CANCELLED, а не как retry-кандидат.
	if w.confirmIfCancelled(ctx, job) {
		logger.Info("job cancelled mid-run",
			"completed", len(result.CompletedTaskIDs),
			"remaining", len(payload.Plan.Tasks)-len(result.CompletedTaskIDs),
		)
		return
	}

	if runErr != nil {
		// Выполнение прервано остановкой воркера — lease просто истечёт
		logger.Warn("job interrupted", "error", runErr)
		return
	}

	if result.Success {
		w.finishCompleted(ctx, job, result)
		return
	}
	w.finishFailed(ctx, job, result.FirstError().Error())
}

// trackProgress подписывается на события job и фиксирует checkpoint
// прогресса в очереди по каждому терминальному событию task'а.
//
// percent = завершённые task'и / всего; sequence — номер последнего
// увиденного события, по нему клиент дозапрашивает history.
//
// Возвращённый stop снимает подписку и дожидается трекера. Закрытие
// канала подписки не выбрасывает буфер: уже опубликованные события
// дообрабатываются, checkpoint финального task'а не теряется.
func (w *Worker) trackProgress(ctx context.Context, jobID string, total int) (stop func()) {
	events, cancel := w.bus.Subscribe(jobID)
	done := make(chan struct{})

	go func() {
		defer close(done)

		completed := 0
		for ev := range events {
			if ev.EventType != domain.EventTaskCompleted && ev.EventType != domain.EventTaskFailed {
				continue
			}
			completed++
			percent := 100
			if total > 0 {
				percent = completed * 100 / total
			}
			if err := w.queue.UpdateProgress(ctx, jobID, percent, ev.Sequence); err != nil {
				// Lease потерян — прогресс больше не наш
				w.logger.Debug("progress checkpoint skipped", "job_id", jobID, "error", err)
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// watchCancellation опрашивает статус job и снимает контекст
// выполнения при запрошенной отмене.
func (w *Worker) watchCancellation(ctx context.Context, jobID string, cancelRun context.CancelFunc) {
	ticker := time.NewTicker(w.cancelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cancelled, err := w.queue.IsCancelled(ctx, jobID)
			if err != nil {
				continue
			}
			if cancelled {
				cancelRun()
				return
			}
		}
	}
}

// confirmIfCancelled финализирует отмену, если она запрошена.
func (w *Worker) confirmIfCancelled(ctx context.Context, job *domain.Job) bool {
	cancelled, err := w.queue.IsCancelled(ctx, job.ID)
	if err != nil || !cancelled {
		return false
	}

	if err := w.queue.ConfirmCancel(ctx, job.ID); err != nil {
		w.logger.Warn("failed to confirm cancel", "job_id", job.ID, "error", err)
	}
	w.bus.Publish(job.ID, domain.EventJobCancelled, nil)
	w.notifyCompleted(ctx, job.ID, domain.JobStatusCancelled, "")
	return true
}

// finishCompleted подтверждает успешный job.
func (w *Worker) finishCompleted(ctx context.Context, job *domain.Job, result *executor.Result) {
	summary := map[string]any{
		"success":           true,
		"results":           result.Results,
		"completed_tasks":   result.CompletedTaskIDs,
		"execution_time_ms": result.ExecutionTimeMs,
	}

	if err := w.queue.Ack(ctx, job.ID, summary); err != nil {
		// Lease истёк во время выполнения — job уже перевыдан,
		// наш результат отбрасывается
		w.logger.Warn("ack failed", "job_id", job.ID, "error", err)
		return
	}

	w.bus.Publish(job.ID, domain.EventJobDone, map[string]any{
		"execution_time_ms": result.ExecutionTimeMs,
		"completed_tasks":   len(result.CompletedTaskIDs),
	})
	w.notifyCompleted(ctx, job.ID, domain.JobStatusCompleted, "")
}

// finishFailed отклоняет job; очередь решает retry или dead-letter.
func (w *Worker) finishFailed(ctx context.Context, job *domain.Job, errMsg string) {
	if err := w.queue.Nack(ctx, job.ID, errMsg); err != nil {
		w.logger.Warn("nack failed", "job_id", job.ID, "error", err)
		return
	}

	// Терминальное событие публикуется только когда retry-бюджет
	// исчерпан; иначе клиент видит промежуточный retry-прогресс
	stored, err := w.queue.Store().GetJob(ctx, job.ID)
	if err == nil && stored.Status == domain.JobStatusFailed {
		w.bus.Publish(job.ID, domain.EventJobFailed, map[string]any{
			"error":    errMsg,
			"attempts": stored.Attempts,
		})
		w.notifyCompleted(ctx, job.ID, domain.JobStatusFailed, errMsg)
		return
	}

	w.bus.Publish(job.ID, domain.EventJobProgress, map[string]any{
		"retry_scheduled": true,
		"attempt":         job.Attempts,
		"error":           errMsg,
	})
}

// notifyCompleted best-effort публикует терминальный статус в MQ.
func (w *Worker) notifyCompleted(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) {
	if w.publisher == nil {
		return
	}
	err := w.publisher.PublishJobCompleted(ctx, mq.JobCompletedPayload{
		JobID:  jobID,
		Status: status,
		Error:  errMsg,
	})
	if err != nil {
		// Статус уже в хранилище, API подхватит оттуда
		w.logger.Warn("failed to publish job.completed", "job_id", jobID, "error", err)
	}
}
