package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/prospect"
	"github.com/seoforge/inlink-prospector/internal/worker"
)

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

type submitJobRequest struct {
	URL                   string `json:"url"`
	MaxPages              int    `json:"max_pages"`
	Model                 string `json:"model"`
	MaxSuggestionsPerPage int    `json:"max_suggestions_per_page"`
}

// submitJob crawls the target site, creates the job record, persists
// the page table, and launches the worker. The crawl happens inside
// the request because the job's total page count must be known at
// creation time; the analysis itself runs in the background.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	pages, err := s.crawler.Crawl(r.Context(), req.URL, req.MaxPages)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("crawl failed: %v", err))
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate job id failed")
		return
	}
	cfg := prospect.JobConfig{
		Model:                 req.Model,
		MaxSuggestionsPerPage: req.MaxSuggestionsPerPage,
		SourceURL:             req.URL,
	}
	job, err := s.controller.Create(r.Context(), jobID, len(pages), cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.pages.Save(r.Context(), jobID, pages); err != nil {
		writeError(w, http.StatusInternalServerError, "persist page table failed")
		return
	}
	// The worker must outlive this request; detach its context from the
	// request's cancellation.
	if err := s.runner.Start(context.WithoutCancel(r.Context()), jobID, pages); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	all, err := s.controller.List(r.Context())
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": all})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.controller.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// getResults serves the accumulated suggestion rows. A job that has
// not checkpointed yet returns an empty list, not an error. With
// ?format=csv the raw table is returned as a download.
func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.controller.Get(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	rows, err := s.results.Load(r.Context(), jobID)
	if err != nil {
		if !errors.Is(err, prospect.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load results")
			return
		}
		rows = nil
	}
	if r.URL.Query().Get("format") == "csv" {
		s.writeResultsCSV(w, jobID, rows)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rows})
}

func (s *Server) writeResultsCSV(w http.ResponseWriter, jobID string, rows []prospect.Suggestion) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_results.csv", jobID))
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"source_url", "anchor_text", "target_url", "match_rationale"})
	for _, row := range rows {
		_ = cw.Write([]string{row.SourceURL, row.AnchorText, row.TargetURL, row.MatchRationale})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("write results csv failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.controller.Pause(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// resumeJob flips the record back to RUNNING and relaunches a worker if
// this process does not already own one (the worker survives a pause in
// place; relaunch covers resumes after a restart).
func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.controller.Resume(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status == prospect.JobStatusRunning && !s.runner.Active(jobID) {
		pages, err := s.pages.Load(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusConflict, "page table missing; job cannot be resumed")
			return
		}
		if err := s.runner.Start(context.WithoutCancel(r.Context()), jobID, pages); err != nil && !errors.Is(err, worker.ErrAlreadyRunning) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.controller.Stop(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.controller.Delete(r.Context(), jobID); err != nil {
		s.logger.Error("delete job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
