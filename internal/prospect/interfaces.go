package prospect

import (
	"context"
	"time"
)

// JobStore persists one record per job ID. Put must replace the record
// atomically: a concurrent reader never observes a partial write, and
// Get degrades an unreadable or malformed record to ErrNotFound.
type JobStore interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	List(ctx context.Context) ([]Job, error)
	Delete(ctx context.Context, jobID string) error
}

// ResultStore persists the accumulated suggestion rows for a job. Save
// replaces the stored sequence wholesale (last checkpoint wins).
type ResultStore interface {
	Save(ctx context.Context, jobID string, rows []Suggestion) error
	Load(ctx context.Context, jobID string) ([]Suggestion, error)
	Delete(ctx context.Context, jobID string) error
}

// PageStore persists the crawled input table so a worker can be
// relaunched after a process restart.
type PageStore interface {
	Save(ctx context.Context, jobID string, pages []Page) error
	Load(ctx context.Context, jobID string) ([]Page, error)
	Delete(ctx context.Context, jobID string) error
}

// Analyzer is the external analysis collaborator. Given one source page
// and the job's full target catalog it returns zero or more suggestion
// rows, or an error the worker treats as job failure. Calls may take
// seconds; the implementation owns its own time budget.
type Analyzer interface {
	AnalyzePage(ctx context.Context, page Page, catalog []Page, maxSuggestions int) ([]Suggestion, error)
}

// Crawler discovers same-site pages and extracts the fields the
// analyzer needs.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, maxPages int) ([]Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
