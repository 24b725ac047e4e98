// Package memory provides in-memory store implementations for
// development and testing. They honor the same contracts as the
// filesystem stores, including not-found semantics.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// JobStore is a mutex-guarded map implementation of prospect.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]prospect.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]prospect.Job)}
}

// Put replaces the record for job.ID.
func (s *JobStore) Put(_ context.Context, job prospect.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// Get fetches a record by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (prospect.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return prospect.Job{}, prospect.ErrNotFound
	}
	return job, nil
}

// List returns all records ordered by CreatedAt descending.
func (s *JobStore) List(_ context.Context) ([]prospect.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]prospect.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Delete removes the record; deleting an unknown ID is not an error.
func (s *JobStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}
