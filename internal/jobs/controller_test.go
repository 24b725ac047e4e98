package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seoforge/inlink-prospector/internal/jobs"
	"github.com/seoforge/inlink-prospector/internal/prospect"
	"github.com/seoforge/inlink-prospector/internal/storage/memory"
)

// fakeClock ticks forward one second per Now call so UpdatedAt
// refreshes are observable.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	controller *jobs.Controller
	store      *memory.JobStore
	results    *memory.ResultStore
	pages      *memory.PageStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewJobStore()
	results := memory.NewResultStore()
	pages := memory.NewPageStore()
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		controller: jobs.NewController(store, results, pages, clock, zap.NewNop()),
		store:      store,
		results:    results,
		pages:      pages,
	}
}

func TestControllerCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.controller.Create(ctx, "job-1", 10, prospect.JobConfig{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusQueued, job.Status)
	assert.Equal(t, 10, job.TotalPages)
	assert.Equal(t, 0, job.CurrentPage)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)

	stored, err := f.controller.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job, stored)
}

func TestControllerCreateDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.Create(ctx, "job-1", 10, prospect.JobConfig{})
	require.NoError(t, err)

	_, err = f.controller.Create(ctx, "job-1", 4, prospect.JobConfig{})
	assert.ErrorIs(t, err, prospect.ErrDuplicateJob)
}

func TestControllerCreateNegativePages(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Create(context.Background(), "job-1", -1, prospect.JobConfig{})
	assert.Error(t, err)
}

func setStatus(t *testing.T, f *fixture, jobID string, status prospect.JobStatus) {
	t.Helper()
	_, err := f.controller.Update(context.Background(), jobID, func(j *prospect.Job) {
		j.Status = status
	})
	require.NoError(t, err)
}

func TestControllerTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    prospect.JobStatus
		op      string
		want    prospect.JobStatus
		applied bool
	}{
		{"PauseRunning", prospect.JobStatusRunning, "pause", prospect.JobStatusPaused, true},
		{"PauseQueued", prospect.JobStatusQueued, "pause", prospect.JobStatusQueued, false},
		{"PauseCompleted", prospect.JobStatusCompleted, "pause", prospect.JobStatusCompleted, false},
		{"PauseStopped", prospect.JobStatusStopped, "pause", prospect.JobStatusStopped, false},
		{"ResumePaused", prospect.JobStatusPaused, "resume", prospect.JobStatusRunning, true},
		{"ResumeRunning", prospect.JobStatusRunning, "resume", prospect.JobStatusRunning, false},
		{"ResumeFailed", prospect.JobStatusFailed, "resume", prospect.JobStatusFailed, false},
		{"StopRunning", prospect.JobStatusRunning, "stop", prospect.JobStatusStopped, true},
		{"StopPaused", prospect.JobStatusPaused, "stop", prospect.JobStatusStopped, true},
		{"StopQueued", prospect.JobStatusQueued, "stop", prospect.JobStatusQueued, false},
		{"StopCompleted", prospect.JobStatusCompleted, "stop", prospect.JobStatusCompleted, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.controller.Create(ctx, "job-1", 10, prospect.JobConfig{})
			require.NoError(t, err)
			setStatus(t, f, "job-1", tc.from)
			before, err := f.controller.Get(ctx, "job-1")
			require.NoError(t, err)

			var job prospect.Job
			switch tc.op {
			case "pause":
				job, err = f.controller.Pause(ctx, "job-1")
			case "resume":
				job, err = f.controller.Resume(ctx, "job-1")
			case "stop":
				job, err = f.controller.Stop(ctx, "job-1")
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, job.Status)
			if tc.applied {
				assert.True(t, job.UpdatedAt.After(before.UpdatedAt))
			} else {
				assert.Equal(t, before.UpdatedAt, job.UpdatedAt)
			}
		})
	}
}

func TestControllerTransitionUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Pause(context.Background(), "nope")
	assert.ErrorIs(t, err, prospect.ErrNotFound)
}

func TestControllerDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.Create(ctx, "job-1", 2, prospect.JobConfig{})
	require.NoError(t, err)
	require.NoError(t, f.results.Save(ctx, "job-1", []prospect.Suggestion{
		{SourceURL: "a", AnchorText: "t", TargetURL: "b"},
	}))
	require.NoError(t, f.pages.Save(ctx, "job-1", []prospect.Page{{URL: "a"}}))

	require.NoError(t, f.controller.Delete(ctx, "job-1"))

	_, err = f.controller.Get(ctx, "job-1")
	assert.ErrorIs(t, err, prospect.ErrNotFound)
	_, err = f.results.Load(ctx, "job-1")
	assert.ErrorIs(t, err, prospect.ErrNotFound)
	_, err = f.pages.Load(ctx, "job-1")
	assert.ErrorIs(t, err, prospect.ErrNotFound)

	// Unknown IDs delete cleanly.
	require.NoError(t, f.controller.Delete(ctx, "job-1"))
}

func TestControllerRecoverStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for id, status := range map[string]prospect.JobStatus{
		"orphaned":  prospect.JobStatusRunning,
		"finished":  prospect.JobStatusCompleted,
		"untouched": prospect.JobStatusQueued,
	} {
		_, err := f.controller.Create(ctx, id, 5, prospect.JobConfig{})
		require.NoError(t, err)
		setStatus(t, f, id, status)
	}

	require.NoError(t, f.controller.RecoverStale(ctx))

	job, err := f.controller.Get(ctx, "orphaned")
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusPaused, job.Status)

	job, err = f.controller.Get(ctx, "finished")
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusCompleted, job.Status)

	job, err = f.controller.Get(ctx, "untouched")
	require.NoError(t, err)
	assert.Equal(t, prospect.JobStatusQueued, job.Status)
}
