package failsafe

import (
	"context"
	"sync"
	"time"
)

// MarkerStore — хранилище маркеров дедупликации.
//
// Реализации: in-memory (MemoryMarkerStore) для single-process
// развёртываний и Postgres-backed для распределённых (internal/repo).
type MarkerStore interface {
	// SetIfAbsent атомарно ставит маркер по ключу с TTL.
	// Возвращает true, если маркера не было (операцию можно выполнять),
	// и false, если маркер уже стоит и не истёк.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryMarkerStore — in-memory реализация MarkerStore.
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

// NewMemoryMarkerStore создаёт пустое in-memory хранилище маркеров.
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{
		markers: make(map[string]time.Time),
	}
}

// SetIfAbsent реализует MarkerStore.
func (s *MemoryMarkerStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.markers[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	s.markers[key] = now.Add(ttl)
	s.purgeLocked(now)

	return true, nil
}

// purgeLocked удаляет истёкшие маркеры. Вызывается под mu.
func (s *MemoryMarkerStore) purgeLocked(now time.Time) {
	for key, expiresAt := range s.markers {
		if now.After(expiresAt) {
			delete(s.markers, key)
		}
	}
}

// Len возвращает количество маркеров, включая истёкшие до следующего purge.
func (s *MemoryMarkerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}
