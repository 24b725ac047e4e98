// Package jobs implements the job lifecycle state machine over the
// persistent stores. Controller operations are synchronous,
// non-blocking, and idempotent under concurrent control: transitions
// that do not apply to the record's current status are silent no-ops
// rather than errors, which tolerates races such as pausing a job that
// already completed.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// Controller mutates job records through the store. It holds no
// in-memory job state; every operation is a fresh read-modify-write so
// the record on disk stays the single source of truth for workers and
// observers alike.
type Controller struct {
	store   prospect.JobStore
	results prospect.ResultStore
	pages   prospect.PageStore
	clock   prospect.Clock
	logger  *zap.Logger
}

// NewController constructs a Controller.
func NewController(
	store prospect.JobStore,
	results prospect.ResultStore,
	pages prospect.PageStore,
	clock prospect.Clock,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   store,
		results: results,
		pages:   pages,
		clock:   clock,
		logger:  logger,
	}
}

// Create writes a fresh queued record. It fails with
// prospect.ErrDuplicateJob if a record with the ID already exists;
// callers are responsible for generating unique IDs.
func (c *Controller) Create(ctx context.Context, jobID string, totalPages int, cfg prospect.JobConfig) (prospect.Job, error) {
	if totalPages < 0 {
		return prospect.Job{}, fmt.Errorf("total pages must be >= 0")
	}
	if _, err := c.store.Get(ctx, jobID); err == nil {
		return prospect.Job{}, prospect.ErrDuplicateJob
	}
	now := c.clock.Now()
	job := prospect.Job{
		ID:          jobID,
		Status:      prospect.JobStatusQueued,
		TotalPages:  totalPages,
		CurrentPage: 0,
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Put(ctx, job); err != nil {
		return prospect.Job{}, fmt.Errorf("create job %s: %w", jobID, err)
	}
	return job, nil
}

// Get returns the record for jobID or prospect.ErrNotFound.
func (c *Controller) Get(ctx context.Context, jobID string) (prospect.Job, error) {
	return c.store.Get(ctx, jobID)
}

// List returns all records ordered by creation time descending.
func (c *Controller) List(ctx context.Context) ([]prospect.Job, error) {
	return c.store.List(ctx)
}

// Update applies mutate to the current record and persists the result
// with a refreshed UpdatedAt. Unknown IDs return prospect.ErrNotFound.
func (c *Controller) Update(ctx context.Context, jobID string, mutate func(*prospect.Job)) (prospect.Job, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return prospect.Job{}, err
	}
	mutate(&job)
	job.ID = jobID
	job.UpdatedAt = c.clock.Now()
	if err := c.store.Put(ctx, job); err != nil {
		return prospect.Job{}, fmt.Errorf("update job %s: %w", jobID, err)
	}
	return job, nil
}

// Pause transitions RUNNING to PAUSED. Any other current status makes
// the call a no-op; the refreshed record is returned either way.
func (c *Controller) Pause(ctx context.Context, jobID string) (prospect.Job, error) {
	return c.transition(ctx, jobID, prospect.JobStatusPaused, prospect.JobStatusRunning)
}

// Resume transitions PAUSED to RUNNING. The caller is responsible for
// relaunching a worker from the record's persisted CurrentPage.
func (c *Controller) Resume(ctx context.Context, jobID string) (prospect.Job, error) {
	return c.transition(ctx, jobID, prospect.JobStatusRunning, prospect.JobStatusPaused)
}

// Stop transitions RUNNING or PAUSED to STOPPED. The worker observes
// the transition within one page-processing unit and exits, keeping
// every checkpoint already written.
func (c *Controller) Stop(ctx context.Context, jobID string) (prospect.Job, error) {
	return c.transition(ctx, jobID, prospect.JobStatusStopped, prospect.JobStatusRunning, prospect.JobStatusPaused)
}

// Delete removes the record together with its result and page entries,
// regardless of status. It does not stop a live worker; a worker that
// outlives the delete exits on its next status poll, though a late
// checkpoint may briefly recreate files under the ID. Deleting an
// unknown ID is not an error.
func (c *Controller) Delete(ctx context.Context, jobID string) error {
	if err := c.store.Delete(ctx, jobID); err != nil {
		return err
	}
	if err := c.results.Delete(ctx, jobID); err != nil {
		return err
	}
	return c.pages.Delete(ctx, jobID)
}

// RecoverStale marks jobs left RUNNING by a dead process as PAUSED so
// they become resumable. Called once at startup, before any worker is
// launched.
func (c *Controller) RecoverStale(ctx context.Context) error {
	all, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	for _, job := range all {
		if job.Status != prospect.JobStatusRunning {
			continue
		}
		if _, err := c.Pause(ctx, job.ID); err != nil {
			return err
		}
		c.logger.Info("recovered stale running job",
			zap.String("job_id", job.ID),
			zap.Int("current_page", job.CurrentPage),
		)
	}
	return nil
}

func (c *Controller) transition(
	ctx context.Context,
	jobID string,
	to prospect.JobStatus,
	from ...prospect.JobStatus,
) (prospect.Job, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, prospect.ErrNotFound) {
			return prospect.Job{}, err
		}
		return prospect.Job{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	applies := false
	for _, status := range from {
		if job.Status == status {
			applies = true
			break
		}
	}
	if !applies {
		return job, nil
	}
	job.Status = to
	job.UpdatedAt = c.clock.Now()
	if err := c.store.Put(ctx, job); err != nil {
		return prospect.Job{}, fmt.Errorf("persist %s transition for %s: %w", to, jobID, err)
	}
	c.logger.Debug("job status transition",
		zap.String("job_id", jobID),
		zap.String("status", string(to)),
	)
	return job, nil
}
