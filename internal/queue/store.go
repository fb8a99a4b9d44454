package queue

import (
	"context"
	"sync"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
)

// JobStore — персистентное хранилище записей Job.
//
// Реализации: in-memory (здесь) и Postgres (internal/repo).
// Очередь обращается к хранилищу только операциями get/create/update
// по ID — структура backend'а ей безразлична.
type JobStore interface {
	// CreateJob сохраняет новую запись job.
	CreateJob(ctx context.Context, job *domain.Job) error

	// GetJob возвращает job по ID (ErrJobNotFound, если нет).
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// UpdateJob перезаписывает существующую запись job.
	UpdateJob(ctx context.Context, job *domain.Job) error

	// ListJobs возвращает jobs очереди с данным статусом.
	ListJobs(ctx context.Context, queueName string, status domain.JobStatus) ([]*domain.Job, error)

	// DeleteJob удаляет запись job (retention-очистка).
	DeleteJob(ctx context.Context, jobID string) error
}

// MemoryJobStore — in-memory реализация JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewMemoryJobStore создаёт пустое in-memory хранилище.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.Job)}
}

// CreateJob реализует JobStore.
func (s *MemoryJobStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob реализует JobStore.
func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

// UpdateJob реализует JobStore.
func (s *MemoryJobStore) UpdateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	job.UpdatedAt = time.Now()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// ListJobs реализует JobStore.
func (s *MemoryJobStore) ListJobs(_ context.Context, queueName string, status domain.JobStatus) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Job
	for _, job := range s.jobs {
		if job.Queue == queueName && job.Status == status {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

// DeleteJob реализует JobStore.
func (s *MemoryJobStore) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// cloneJob защищает хранилище от мутаций через разделяемый указатель.
func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	c.Payload = append([]byte(nil), job.Payload...)
	if job.Result != nil {
		c.Result = make(map[string]any, len(job.Result))
		for k, v := range job.Result {
			c.Result[k] = v
		}
	}
	if job.Metadata != nil {
		c.Metadata = make(map[string]any, len(job.Metadata))
		for k, v := range job.Metadata {
			c.Metadata[k] = v
		}
	}
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		c.CompletedAt = &completed
	}
	if job.PlanID != nil {
		planID := *job.PlanID
		c.PlanID = &planID
	}
	return &c
}
