package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// PageStore persists the crawled input table for a job so that a
// worker can be relaunched from the record's checkpoint after a
// process restart.
type PageStore struct {
	baseDir string
}

// NewPageStore creates the base directory if needed.
func NewPageStore(cfg Config) (*PageStore, error) {
	baseDir, err := ensureDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return &PageStore{baseDir: baseDir}, nil
}

// Save atomically replaces the stored page table for jobID.
func (s *PageStore) Save(_ context.Context, jobID string, pages []prospect.Page) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshal pages %s: %w", jobID, err)
	}
	return atomicWrite(s.pagePath(jobID), data)
}

// Load returns the stored page table or prospect.ErrNotFound.
func (s *PageStore) Load(_ context.Context, jobID string) ([]prospect.Page, error) {
	data, err := os.ReadFile(s.pagePath(jobID))
	if err != nil {
		return nil, prospect.ErrNotFound
	}
	var pages []prospect.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, prospect.ErrNotFound
	}
	return pages, nil
}

// Delete removes the stored page table; idempotent.
func (s *PageStore) Delete(_ context.Context, jobID string) error {
	err := os.Remove(s.pagePath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete pages %s: %w", jobID, err)
	}
	return nil
}

func (s *PageStore) pagePath(jobID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_pages.json", jobID))
}
