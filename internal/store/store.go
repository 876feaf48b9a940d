package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

var ErrNotFound = errors.New("job not found")

// JobStore persists one record per job id. Set always overwrites the whole
// record; a missing job is indistinguishable from one that was never created.
type JobStore interface {
	Set(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

// MemoryJobStore is the process-local fallback used when no durable backend is
// configured or reachable. It is lost on restart and not shared across
// instances; callers must not assume durability while it is active.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *MemoryJobStore) Set(_ context.Context, job *domain.Job) error {
	clone, err := cloneJob(job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobKey(job.ID)] = clone
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobKey(jobID)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job)
}

// cloneJob deep-copies through the same JSON encoding the durable backends
// use, so all implementations round-trip records identically.
func cloneJob(job *domain.Job) (*domain.Job, error) {
	encoded, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job record: %w", err)
	}
	clone := &domain.Job{}
	if err := json.Unmarshal(encoded, clone); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return clone, nil
}
