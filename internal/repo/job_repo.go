package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/queue"
)

// JobRepo — Postgres-реализация queue.JobStore.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// CreateJob сохраняет новую запись job. Повторная вставка того же ID
// перезаписывает терминальную запись (идемпотентный re-enqueue).
func (r *JobRepo) CreateJob(ctx context.Context, job *domain.Job) error {
	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	metadataJSON, err := marshalNullable(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO jobs (id, user_id, queue, plan_id, payload, priority, status,
		                  progress, last_sequence, attempts, result, error, metadata,
		                  created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			queue = EXCLUDED.queue,
			plan_id = EXCLUDED.plan_id,
			payload = EXCLUDED.payload,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			last_sequence = EXCLUDED.last_sequence,
			attempts = EXCLUDED.attempts,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		nullString(job.UserID),
		job.Queue,
		job.PlanID,
		job.Payload,
		job.Priority,
		job.Status,
		job.Progress,
		job.LastSequence,
		job.Attempts,
		resultJSON,
		nullString(job.Error),
		metadataJSON,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob возвращает job по ID.
func (r *JobRepo) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT id, user_id, queue, plan_id, payload, priority, status,
		       progress, last_sequence, attempts, result, error, metadata,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, jobID))
}

// UpdateJob перезаписывает существующую запись job.
func (r *JobRepo) UpdateJob(ctx context.Context, job *domain.Job) error {
	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, progress = $3, last_sequence = $4, attempts = $5,
		    result = $6, error = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.LastSequence,
		job.Attempts,
		resultJSON,
		nullString(job.Error),
		time.Now(),
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// ListJobs возвращает jobs очереди с данным статусом.
func (r *JobRepo) ListJobs(ctx context.Context, queueName string, status domain.JobStatus) ([]*domain.Job, error) {
	query := `
		SELECT id, user_id, queue, plan_id, payload, priority, status,
		       progress, last_sequence, attempts, result, error, metadata,
		       created_at, updated_at, completed_at
		FROM jobs
		WHERE queue = $1 AND status = $2
		ORDER BY priority DESC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, queueName, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob удаляет запись job.
func (r *JobRepo) DeleteJob(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// DeleteFinishedBefore удаляет терминальные jobs, завершённые
// до cutoff (retention-очистка). Возвращает количество удалённых.
func (r *JobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND completed_at < $1
	`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// scanJob сканирует одну строку в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var userID, jobError *string
	var resultJSON, metadataJSON []byte

	err := row.Scan(
		&job.ID,
		&userID,
		&job.Queue,
		&job.PlanID,
		&job.Payload,
		&job.Priority,
		&job.Status,
		&job.Progress,
		&job.LastSequence,
		&job.Attempts,
		&resultJSON,
		&jobError,
		&metadataJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if userID != nil {
		job.UserID = *userID
	}
	if jobError != nil {
		job.Error = *jobError
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &job, nil
}

// marshalNullable возвращает nil для пустой map (NULL в БД).
func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
