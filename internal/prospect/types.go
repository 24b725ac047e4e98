// Package prospect defines core types shared across subsystems.
package prospect

import "time"

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

// IsTerminal reports whether no further worker may process the job.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	default:
		return false
	}
}

// JobConfig carries caller-supplied analysis configuration. The
// orchestrator never inspects it beyond handing it to the analyzer.
type JobConfig struct {
	Model                 string            `json:"model,omitempty"`
	MaxSuggestionsPerPage int               `json:"max_suggestions_per_page,omitempty"`
	SourceURL             string            `json:"source_url,omitempty"`
	Tags                  map[string]string `json:"tags,omitempty"`
}

// Job is the metadata persisted for each submitted analysis run.
type Job struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	Config      JobConfig `json:"config"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ErrorText   string    `json:"error,omitempty"`
}

// Page is one crawled input row: the fields the analyzer sees.
type Page struct {
	URL       string `json:"url"`
	H1        string `json:"h1"`
	MetaTitle string `json:"meta_title"`
	Content   string `json:"content"`
}

// Suggestion is one discovered internal-link opportunity. Suggestions
// have no identity of their own; a job's result store entry holds the
// full ordered sequence and is replaced wholesale at each checkpoint.
type Suggestion struct {
	SourceURL      string `json:"source_url"`
	AnchorText     string `json:"anchor_text"`
	TargetURL      string `json:"target_url"`
	MatchRationale string `json:"match_rationale,omitempty"`
}

// Valid reports whether the suggestion carries the required fields.
// Rows produced by the analyzer that fail this check are dropped.
func (s Suggestion) Valid() bool {
	return s.SourceURL != "" && s.AnchorText != "" && s.TargetURL != ""
}
