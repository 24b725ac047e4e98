// Package progress defines the event structures emitted by analysis
// workers, plus the Hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart  Stage = "JOB_START"
	StagePageDone  Stage = "PAGE_DONE"
	StageJobPaused Stage = "JOB_PAUSED"
	StageJobResume Stage = "JOB_RESUMED"
	StageJobDone   Stage = "JOB_DONE"
	StageJobError  Stage = "JOB_ERROR"
)

// Event captures a single milestone of an analysis job. Page and Total
// are always relative to the job's original page count: a worker that
// resumes from checkpoint k reports (k+1, Total) for the next page it
// processes, never a reset count.
type Event struct {
	// JobID identifies the job run.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or page milestone occurred.
	Stage Stage
	// Page is the count of pages fully processed so far.
	Page int
	// Total is the job's immutable page count.
	Total int
	// Suggestions carries the row count produced by the page, or the
	// accumulated count for terminal stages.
	Suggestions int
	// Dur captures execution latency for pages and job completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobPaused, StageJobResume, StageJobDone, StageJobError:
	case StagePageDone:
		if e.Total <= 0 {
			return errors.New("page done requires total")
		}
		if e.Page < 1 || e.Page > e.Total {
			return fmt.Errorf("page %d out of range 1..%d", e.Page, e.Total)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
