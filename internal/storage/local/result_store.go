package local

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seoforge/inlink-prospector/internal/prospect"
)

var resultHeader = []string{"source_url", "anchor_text", "target_url", "match_rationale"}

// ResultStore persists the accumulated suggestion rows for a job as a
// CSV file next to the job record. Each Save replaces the whole file.
type ResultStore struct {
	baseDir string
}

// NewResultStore creates the base directory if needed.
func NewResultStore(cfg Config) (*ResultStore, error) {
	baseDir, err := ensureDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	return &ResultStore{baseDir: baseDir}, nil
}

// Save atomically replaces the stored row sequence for jobID.
func (s *ResultStore) Save(_ context.Context, jobID string, rows []prospect.Suggestion) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(resultHeader); err != nil {
		return fmt.Errorf("write result header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.SourceURL, row.AnchorText, row.TargetURL, row.MatchRationale}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write result row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush result rows: %w", err)
	}
	return atomicWrite(s.resultPath(jobID), buf.Bytes())
}

// Load returns the most recently saved sequence, or prospect.ErrNotFound
// if nothing was ever saved. A corrupt file degrades to ErrNotFound.
func (s *ResultStore) Load(_ context.Context, jobID string) ([]prospect.Suggestion, error) {
	f, err := os.Open(s.resultPath(jobID))
	if err != nil {
		return nil, prospect.ErrNotFound
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(resultHeader)
	records, err := r.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, prospect.ErrNotFound
	}
	rows := make([]prospect.Suggestion, 0, len(records)-1)
	for _, record := range records[1:] {
		rows = append(rows, prospect.Suggestion{
			SourceURL:      record[0],
			AnchorText:     record[1],
			TargetURL:      record[2],
			MatchRationale: record[3],
		})
	}
	return rows, nil
}

// Delete removes the stored rows; idempotent.
func (s *ResultStore) Delete(_ context.Context, jobID string) error {
	err := os.Remove(s.resultPath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete results %s: %w", jobID, err)
	}
	return nil
}

func (s *ResultStore) resultPath(jobID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_results.csv", jobID))
}
