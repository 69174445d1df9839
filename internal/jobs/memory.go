package jobs

import (
	"context"
	"sort"
	"sync"
)

// Compile-time interface compliance check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps jobs in process memory. Suitable for tests and
// single-instance deployments without a database path configured.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Job)}
}

func (s *MemoryStore) Put(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) GetByHash(_ context.Context, hash string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest Job
	found := false
	for _, job := range s.byID {
		if job.SourceHash != hash {
			continue
		}
		if !found || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
			found = true
		}
	}
	if !found {
		return Job{}, ErrNotFound
	}
	return newest, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.byID))
	for _, job := range s.byID {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
