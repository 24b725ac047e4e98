// Package worker implements the background execution engine: one
// goroutine per active job driving the page-by-page analysis loop.
//
// Workers coordinate with their controllers exclusively through the
// persisted job record. A worker checkpoints accumulated rows and
// progress after every page and then re-reads the record, so pause,
// stop, and delete requested by any observer take effect within one
// page-processing unit. There is no in-memory callback wiring between
// the caller and the worker; a process restart loses nothing but the
// advisory registry of live goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/progress"
	"github.com/seoforge/inlink-prospector/internal/prospect"
)

// ErrAlreadyRunning is returned by Start when this process already owns
// a live worker for the job ID.
var ErrAlreadyRunning = errors.New("job already has an active worker")

const defaultPollInterval = time.Second

// Config controls Runner behavior.
type Config struct {
	// PollInterval is the sleep between status polls while a job is
	// paused. Defaults to one second.
	PollInterval time.Duration
	// PageDelay is an optional fixed delay after each analyzed page,
	// used to stay under external rate limits.
	PageDelay time.Duration
	// MaxSuggestionsDefault applies when the job config leaves the
	// per-page limit unset.
	MaxSuggestionsDefault int
}

// Runner launches and tracks analysis workers. The registry of live
// workers is advisory only: it prevents double-starts within this
// process, but correctness never depends on it because every worker is
// restartable from the persisted record.
type Runner struct {
	jobs    prospect.JobStore
	results prospect.ResultStore
	analyze prospect.Analyzer
	clock   prospect.Clock
	emitter progress.Emitter
	cfg     Config
	logger  *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// New constructs a Runner.
func New(
	jobs prospect.JobStore,
	results prospect.ResultStore,
	analyze prospect.Analyzer,
	clock prospect.Clock,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxSuggestionsDefault <= 0 {
		cfg.MaxSuggestionsDefault = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		jobs:    jobs,
		results: results,
		analyze: analyze,
		clock:   clock,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches one worker goroutine that owns jobID until it exits,
// returning control to the caller immediately. The worker resumes from
// the record's persisted CurrentPage; pages is the job's full input
// table and also serves as the target catalog handed to the analyzer.
func (r *Runner) Start(ctx context.Context, jobID string, pages []prospect.Page) error {
	r.mu.Lock()
	if r.active == nil {
		r.active = make(map[string]struct{})
	}
	if _, exists := r.active[jobID]; exists {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.active[jobID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(jobID)
		r.runJob(ctx, jobID, pages)
	}()
	return nil
}

// Active reports whether this process currently owns a worker for jobID.
func (r *Runner) Active(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[jobID]
	return ok
}

// Wait blocks until every launched worker has exited. Intended for
// shutdown and tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, jobID)
}

// runJob drives one job to completion, interruption, or failure. No
// error escapes: every failure path lands in the record as a FAILED
// transition before the goroutine exits.
func (r *Runner) runJob(ctx context.Context, jobID string, pages []prospect.Page) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		r.logger.Warn("worker found no record, exiting", zap.String("job_id", jobID))
		return
	}
	if job.Status.IsTerminal() {
		r.logger.Warn("worker refused terminal job",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)),
		)
		return
	}

	if _, err := r.updateJob(ctx, jobID, func(j *prospect.Job) {
		j.Status = prospect.JobStatusRunning
	}); err != nil {
		r.logger.Error("mark job running failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobStart, Total: job.TotalPages})

	maxSuggestions := job.Config.MaxSuggestionsPerPage
	if maxSuggestions <= 0 {
		maxSuggestions = r.cfg.MaxSuggestionsDefault
	}

	// Resume from the checkpoint: CurrentPage pages are already done and
	// their rows are already in the result store.
	accumulated := r.loadCheckpoint(ctx, jobID, job.CurrentPage)
	start := job.CurrentPage
	total := job.TotalPages
	if total > len(pages) {
		total = len(pages)
	}

	for page := start; page < total; page++ {
		proceed, exitNote := r.awaitRunnable(ctx, jobID)
		if !proceed {
			r.finishInterrupted(jobID, exitNote, len(accumulated))
			return
		}

		began := r.clock.Now()
		rows, err := r.analyze.AnalyzePage(ctx, pages[page], pages, maxSuggestions)
		if err != nil {
			r.failJob(ctx, jobID, fmt.Errorf("analyze page %d: %w", page+1, err))
			return
		}
		accepted := 0
		for _, row := range rows {
			if !row.Valid() {
				continue
			}
			accumulated = append(accumulated, row)
			accepted++
		}

		// Checkpoint order matters: rows first, then the progress
		// counter. An observer that sees CurrentPage == N can rely on
		// the result store already covering pages 1..N.
		if err := r.results.Save(ctx, jobID, accumulated); err != nil {
			r.failJob(ctx, jobID, fmt.Errorf("checkpoint results after page %d: %w", page+1, err))
			return
		}
		updated, err := r.updateJob(ctx, jobID, func(j *prospect.Job) {
			j.CurrentPage = page + 1
		})
		if err != nil {
			if errors.Is(err, prospect.ErrNotFound) {
				// Deleted mid-run; checkpoints under this ID are orphaned
				// but harmless.
				return
			}
			r.failJob(ctx, jobID, fmt.Errorf("checkpoint progress after page %d: %w", page+1, err))
			return
		}
		r.emit(progress.Event{
			JobID:       jobID,
			Stage:       progress.StagePageDone,
			Page:        page + 1,
			Total:       job.TotalPages,
			Suggestions: accepted,
			Dur:         r.clock.Now().Sub(began),
		})
		r.logger.Debug("page analyzed",
			zap.String("job_id", jobID),
			zap.Int("page", page+1),
			zap.Int("total", job.TotalPages),
			zap.Int("suggestions", accepted),
		)

		// Status reaction follows the checkpoint, never precedes it.
		if updated.Status == prospect.JobStatusStopped {
			r.finishInterrupted(jobID, "stopped", len(accumulated))
			return
		}

		if r.cfg.PageDelay > 0 && page+1 < total {
			r.sleep(ctx, r.cfg.PageDelay)
		}
	}

	if err := r.results.Save(ctx, jobID, accumulated); err != nil {
		r.failJob(ctx, jobID, fmt.Errorf("final checkpoint: %w", err))
		return
	}
	final, err := r.updateJob(ctx, jobID, func(j *prospect.Job) {
		// A stop that lands between the last checkpoint and this write
		// stays terminal; completed must not override it.
		if j.Status == prospect.JobStatusStopped {
			return
		}
		j.Status = prospect.JobStatusCompleted
		j.CurrentPage = j.TotalPages
	})
	if err != nil {
		if !errors.Is(err, prospect.ErrNotFound) {
			r.logger.Error("mark job completed failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}
	if final.Status == prospect.JobStatusStopped {
		r.finishInterrupted(jobID, "stopped", len(accumulated))
		return
	}
	r.emit(progress.Event{
		JobID:       jobID,
		Stage:       progress.StageJobDone,
		Page:        job.TotalPages,
		Total:       job.TotalPages,
		Suggestions: len(accumulated),
		Note:        "completed",
	})
	r.logger.Info("job completed",
		zap.String("job_id", jobID),
		zap.Int("pages", job.TotalPages),
		zap.Int("suggestions", len(accumulated)),
	)
}

// awaitRunnable gates consumption of the next page. It blocks while the
// record says PAUSED, polling at the configured interval, and reports
// proceed=false when the worker must exit instead (stop, delete, or
// context cancellation). Pause and stop latency are bounded by the
// current page's analyzer latency plus one poll interval; that bound is
// accepted behavior, not a defect.
func (r *Runner) awaitRunnable(ctx context.Context, jobID string) (proceed bool, exitNote string) {
	paused := false
	for {
		if ctx.Err() != nil {
			if paused {
				r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobResume})
			}
			return false, "shutdown"
		}
		job, err := r.jobs.Get(ctx, jobID)
		if err != nil {
			// Record vanished: treat like stop, keep whatever was written.
			if paused {
				r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobResume})
			}
			return false, "deleted"
		}
		switch job.Status {
		case prospect.JobStatusPaused:
			if !paused {
				paused = true
				r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobPaused, Page: job.CurrentPage, Total: job.TotalPages})
				r.logger.Info("job paused", zap.String("job_id", jobID), zap.Int("current_page", job.CurrentPage))
			}
			r.sleep(ctx, r.cfg.PollInterval)
		case prospect.JobStatusStopped:
			if paused {
				r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobResume})
			}
			return false, "stopped"
		default:
			if paused {
				r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobResume, Page: job.CurrentPage, Total: job.TotalPages})
				r.logger.Info("job resumed", zap.String("job_id", jobID), zap.Int("current_page", job.CurrentPage))
			}
			return true, ""
		}
	}
}

// loadCheckpoint restores accumulated rows when resuming. A missing
// entry is valid (no results yet), never an error.
func (r *Runner) loadCheckpoint(ctx context.Context, jobID string, currentPage int) []prospect.Suggestion {
	if currentPage == 0 {
		return nil
	}
	rows, err := r.results.Load(ctx, jobID)
	if err != nil {
		return nil
	}
	return rows
}

func (r *Runner) finishInterrupted(jobID string, note string, accumulated int) {
	r.emit(progress.Event{
		JobID:       jobID,
		Stage:       progress.StageJobDone,
		Suggestions: accumulated,
		Note:        note,
	})
	r.logger.Info("job interrupted",
		zap.String("job_id", jobID),
		zap.String("reason", note),
	)
}

// failJob records the error and makes the FAILED transition. Partial
// results checkpointed before the failure remain on disk.
func (r *Runner) failJob(ctx context.Context, jobID string, cause error) {
	if _, err := r.updateJob(ctx, jobID, func(j *prospect.Job) {
		j.Status = prospect.JobStatusFailed
		j.ErrorText = cause.Error()
	}); err != nil && !errors.Is(err, prospect.ErrNotFound) {
		r.logger.Error("mark job failed errored", zap.String("job_id", jobID), zap.Error(err))
	}
	r.emit(progress.Event{JobID: jobID, Stage: progress.StageJobError, Note: cause.Error()})
	r.logger.Error("job failed", zap.String("job_id", jobID), zap.Error(cause))
}

func (r *Runner) updateJob(ctx context.Context, jobID string, mutate func(*prospect.Job)) (prospect.Job, error) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return prospect.Job{}, err
	}
	mutate(&job)
	job.UpdatedAt = r.clock.Now()
	if err := r.jobs.Put(ctx, job); err != nil {
		return prospect.Job{}, err
	}
	return job, nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = r.clock.Now()
	}
	r.emitter.Emit(evt)
}
