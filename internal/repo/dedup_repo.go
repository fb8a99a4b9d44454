package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MarkerRepo — Postgres-реализация failsafe.MarkerStore.
// Используется вместо in-memory маркеров в распределённых
// развёртываниях, где дедупликация должна переживать рестарт.
type MarkerRepo struct {
	pool *pgxpool.Pool
}

// NewMarkerRepo создаёт новый MarkerRepo.
func NewMarkerRepo(pool *pgxpool.Pool) *MarkerRepo {
	return &MarkerRepo{pool: pool}
}

// SetIfAbsent атомарно ставит маркер по ключу с TTL.
// Истёкший маркер перезаписывается; живой — конфликт, false.
func (r *MarkerRepo) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO dedup_markers (key, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE dedup_markers.expires_at < now()
	`
	result, err := r.pool.Exec(ctx, query, key, time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("set marker: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// PurgeExpired удаляет истёкшие маркеры. Возвращает количество удалённых.
func (r *MarkerRepo) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM dedup_markers WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge markers: %w", err)
	}
	return result.RowsAffected(), nil
}
