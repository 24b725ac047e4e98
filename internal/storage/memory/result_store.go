package memory

import (
	"context"
	"sync"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// ResultStore is a map implementation of prospect.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	rows map[string][]prospect.Suggestion
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{rows: make(map[string][]prospect.Suggestion)}
}

// Save replaces the stored sequence for jobID.
func (s *ResultStore) Save(_ context.Context, jobID string, rows []prospect.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]prospect.Suggestion, len(rows))
	copy(stored, rows)
	s.rows[jobID] = stored
	return nil
}

// Load returns a copy of the stored sequence or prospect.ErrNotFound.
func (s *ResultStore) Load(_ context.Context, jobID string) ([]prospect.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.rows[jobID]
	if !ok {
		return nil, prospect.ErrNotFound
	}
	out := make([]prospect.Suggestion, len(stored))
	copy(out, stored)
	return out, nil
}

// Delete removes the stored rows; idempotent.
func (s *ResultStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, jobID)
	return nil
}

// PageStore is a map implementation of prospect.PageStore.
type PageStore struct {
	mu    sync.RWMutex
	pages map[string][]prospect.Page
}

// NewPageStore constructs a PageStore.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[string][]prospect.Page)}
}

// Save replaces the stored page table for jobID.
func (s *PageStore) Save(_ context.Context, jobID string, pages []prospect.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]prospect.Page, len(pages))
	copy(stored, pages)
	s.pages[jobID] = stored
	return nil
}

// Load returns a copy of the stored pages or prospect.ErrNotFound.
func (s *PageStore) Load(_ context.Context, jobID string) ([]prospect.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.pages[jobID]
	if !ok {
		return nil, prospect.ErrNotFound
	}
	out := make([]prospect.Page, len(stored))
	copy(out, stored)
	return out, nil
}

// Delete removes the stored pages; idempotent.
func (s *PageStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, jobID)
	return nil
}
