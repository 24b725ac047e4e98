package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/api"
	"github.com/seoforge/inlink-prospector/internal/clock/system"
	"github.com/seoforge/inlink-prospector/internal/config"
	"github.com/seoforge/inlink-prospector/internal/jobs"
	"github.com/seoforge/inlink-prospector/internal/prospect"
	"github.com/seoforge/inlink-prospector/internal/storage/memory"
	"github.com/seoforge/inlink-prospector/internal/worker"
)

// stubCrawler returns a fixed page table without touching the network.
type stubCrawler struct {
	pages []prospect.Page
	err   error
}

func (c *stubCrawler) Crawl(context.Context, string, int) ([]prospect.Page, error) {
	return c.pages, c.err
}

// stubAnalyzer returns one row per page.
type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzePage(_ context.Context, page prospect.Page, _ []prospect.Page, _ int) ([]prospect.Suggestion, error) {
	return []prospect.Suggestion{{
		SourceURL:  page.URL,
		AnchorText: "anchor",
		TargetURL:  "https://example.com/target",
	}}, nil
}

type seqIDs struct {
	n int
}

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

type env struct {
	server  *api.Server
	store   *memory.JobStore
	results *memory.ResultStore
	pages   *memory.PageStore
	runner  *worker.Runner
}

func newEnv(t *testing.T, siteCrawler prospect.Crawler) *env {
	t.Helper()
	store := memory.NewJobStore()
	results := memory.NewResultStore()
	pages := memory.NewPageStore()
	clk := system.New()
	controller := jobs.NewController(store, results, pages, clk, zap.NewNop())
	runner := worker.New(store, results, stubAnalyzer{}, clk, nil, worker.Config{
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())
	server := api.NewServer(controller, runner, siteCrawler, results, pages, &seqIDs{}, config.Config{}, zap.NewNop())
	return &env{server: server, store: store, results: results, pages: pages, runner: runner}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func twoPages() []prospect.Page {
	return []prospect.Page{
		{URL: "https://example.com/a", H1: "A"},
		{URL: "https://example.com/b", H1: "B"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t, &stubCrawler{})
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestSubmitJob(t *testing.T) {
	e := newEnv(t, &stubCrawler{pages: twoPages()})

	rec := e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"url": "https://example.com", "max_pages": 10})
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "job-1", body["job_id"])

	e.runner.Wait()

	job, err := e.store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.TotalPages)
	assert.Equal(t, 2, job.CurrentPage)

	// The page table persists for resume-after-restart.
	stored, err := e.pages.Load(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSubmitJobValidation(t *testing.T) {
	e := newEnv(t, &stubCrawler{pages: twoPages()})

	t.Run("BadJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		e.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingURL", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"max_pages": 3})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitJobCrawlFailure(t *testing.T) {
	e := newEnv(t, &stubCrawler{err: fmt.Errorf("site unreachable")})
	rec := e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"url": "https://example.com"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetAndListJobs(t *testing.T) {
	e := newEnv(t, &stubCrawler{pages: twoPages()})
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"url": "https://example.com"}).Code)
	e.runner.Wait()

	rec := e.do(t, http.MethodGet, "/v1/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	job := body["job"].(map[string]any)
	assert.Equal(t, "job-1", job["job_id"])
	assert.Equal(t, string(prospect.JobStatusCompleted), job["status"])

	rec = e.do(t, http.MethodGet, "/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Len(t, body["jobs"], 1)

	rec = e.do(t, http.MethodGet, "/v1/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetResults(t *testing.T) {
	e := newEnv(t, &stubCrawler{pages: twoPages()})
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"url": "https://example.com"}).Code)
	e.runner.Wait()

	rec := e.do(t, http.MethodGet, "/v1/jobs/job-1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["results"], 2)

	t.Run("CSVDownload", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/jobs/job-1/results?format=csv", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "source_url,anchor_text,target_url,match_rationale")
		assert.Contains(t, rec.Body.String(), "https://example.com/a")
	})

	t.Run("UnknownJob", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/v1/jobs/unknown/results", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("NoCheckpointYet", func(t *testing.T) {
		require.NoError(t, e.store.Put(context.Background(), prospect.Job{
			ID:         "fresh",
			Status:     prospect.JobStatusQueued,
			TotalPages: 2,
			CreatedAt:  time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
		}))
		rec := e.do(t, http.MethodGet, "/v1/jobs/fresh/results", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Empty(t, body["results"])
	})
}

func TestLifecycleEndpoints(t *testing.T) {
	e := newEnv(t, &stubCrawler{})
	now := time.Now().UTC()
	require.NoError(t, e.store.Put(context.Background(), prospect.Job{
		ID:         "job-x",
		Status:     prospect.JobStatusRunning,
		TotalPages: 4,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	rec := e.do(t, http.MethodPost, "/v1/jobs/job-x/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decodeBody(t, rec)["job"].(map[string]any)
	assert.Equal(t, string(prospect.JobStatusPaused), job["status"])

	rec = e.do(t, http.MethodPost, "/v1/jobs/job-x/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job = decodeBody(t, rec)["job"].(map[string]any)
	assert.Equal(t, string(prospect.JobStatusStopped), job["status"])

	// Stopping a stopped job is a no-op, not an error.
	rec = e.do(t, http.MethodPost, "/v1/jobs/job-x/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/jobs/unknown/pause", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeRelaunchesWorker(t *testing.T) {
	e := newEnv(t, &stubCrawler{})
	now := time.Now().UTC()
	require.NoError(t, e.store.Put(context.Background(), prospect.Job{
		ID:          "job-x",
		Status:      prospect.JobStatusPaused,
		TotalPages:  2,
		CurrentPage: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	require.NoError(t, e.pages.Save(context.Background(), "job-x", twoPages()))
	require.NoError(t, e.results.Save(context.Background(), "job-x", []prospect.Suggestion{
		{SourceURL: "https://example.com/a", AnchorText: "anchor", TargetURL: "https://example.com/target"},
	}))

	rec := e.do(t, http.MethodPost, "/v1/jobs/job-x/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	e.runner.Wait()

	job, err := e.store.Get(context.Background(), "job-x")
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.CurrentPage)

	rows, err := e.results.Load(context.Background(), "job-x")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestResumeWithoutPageTable(t *testing.T) {
	e := newEnv(t, &stubCrawler{})
	now := time.Now().UTC()
	require.NoError(t, e.store.Put(context.Background(), prospect.Job{
		ID:         "job-x",
		Status:     prospect.JobStatusPaused,
		TotalPages: 2,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	rec := e.do(t, http.MethodPost, "/v1/jobs/job-x/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteJob(t *testing.T) {
	e := newEnv(t, &stubCrawler{pages: twoPages()})
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/v1/jobs", map[string]any{"url": "https://example.com"}).Code)
	e.runner.Wait()

	rec := e.do(t, http.MethodDelete, "/v1/jobs/job-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := e.store.Get(context.Background(), "job-1")
	assert.ErrorIs(t, err, prospect.ErrNotFound)
	_, err = e.results.Load(context.Background(), "job-1")
	assert.ErrorIs(t, err, prospect.ErrNotFound)

	// Idempotent.
	rec = e.do(t, http.MethodDelete, "/v1/jobs/job-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	e := newEnv(t, &stubCrawler{})
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
