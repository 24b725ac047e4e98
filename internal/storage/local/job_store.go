// Package local implements filesystem-backed job persistence. All
// writes go through a temp-file-then-rename cycle so readers never
// observe a partially written record, even across processes.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// Config captures the parameters for the local job store.
type Config struct {
	// BaseDir is the root directory where job state is stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// JobStore persists one JSON file per job under BaseDir.
type JobStore struct {
	baseDir string
}

// NewJobStore creates the base directory if needed and verifies it is
// writable.
func NewJobStore(cfg Config) (*JobStore, error) {
	baseDir, err := ensureDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return &JobStore{baseDir: baseDir}, nil
}

// Put atomically replaces the record for job.ID.
func (s *JobStore) Put(_ context.Context, job prospect.Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return fmt.Errorf("job id is required")
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return atomicWrite(s.recordPath(job.ID), data)
}

// Get returns the record for jobID. A missing, unreadable, or
// unparseable file yields prospect.ErrNotFound; corruption is never
// surfaced as a distinct error.
func (s *JobStore) Get(_ context.Context, jobID string) (prospect.Job, error) {
	data, err := os.ReadFile(s.recordPath(jobID))
	if err != nil {
		return prospect.Job{}, prospect.ErrNotFound
	}
	var job prospect.Job
	if err := json.Unmarshal(data, &job); err != nil || job.ID == "" {
		return prospect.Job{}, prospect.ErrNotFound
	}
	return job, nil
}

// List returns all extant records ordered by CreatedAt descending.
// Entries that fail to load are skipped.
func (s *JobStore) List(ctx context.Context) ([]prospect.Job, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read jobs dir: %w", err)
	}
	jobs := make([]prospect.Job, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		job, err := s.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Delete removes the record. Deleting a nonexistent ID is not an error.
func (s *JobStore) Delete(_ context.Context, jobID string) error {
	err := os.Remove(s.recordPath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStore) recordPath(jobID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s.json", jobID))
}
