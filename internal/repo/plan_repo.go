package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnibrowser/redix-core/internal/domain"
)

// PlanRecord — план вместе с состоянием одобрения.
type PlanRecord struct {
	Plan     domain.Plan
	Approved bool
}

// PlanRepo — репозиторий планов.
type PlanRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepo создаёт новый PlanRepo.
func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// Create сохраняет план. План, не требующий одобрения,
// сразу помечается approved.
func (r *PlanRepo) Create(ctx context.Context, plan *domain.Plan) error {
	tasksJSON, err := json.Marshal(plan.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	query := `
		INSERT INTO plans (id, user_id, origin_query, tasks, estimated_time_seconds,
		                   estimated_cost, risk_level, requires_approval, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		plan.ID,
		nullString(plan.UserID),
		plan.OriginQuery,
		tasksJSON,
		plan.EstimatedTimeSeconds,
		plan.EstimatedCost,
		plan.RiskLevel,
		plan.RequiresApproval,
		!plan.RequiresApproval,
		plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// GetByID возвращает план по ID.
func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*PlanRecord, error) {
	query := `
		SELECT id, user_id, origin_query, tasks, estimated_time_seconds,
		       estimated_cost, risk_level, requires_approval, approved, created_at
		FROM plans
		WHERE id = $1
	`

	var record PlanRecord
	var userID *string
	var tasksJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&record.Plan.ID,
		&userID,
		&record.Plan.OriginQuery,
		&tasksJSON,
		&record.Plan.EstimatedTimeSeconds,
		&record.Plan.EstimatedCost,
		&record.Plan.RiskLevel,
		&record.Plan.RequiresApproval,
		&record.Approved,
		&record.Plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	if userID != nil {
		record.Plan.UserID = *userID
	}
	if err := json.Unmarshal(tasksJSON, &record.Plan.Tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}

	return &record, nil
}

// Approve помечает план одобренным.
func (r *PlanRepo) Approve(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE plans SET approved = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("approve plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
