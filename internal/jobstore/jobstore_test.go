package jobstore_test

import (
	"os"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/jobmodel"
	"github.com/rohmanhakim/docs-crawler/internal/jobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"
)

// newTestStore opens a badgerhold database in a fresh temp directory,
// mirroring ternarybob-quaero/internal/storage/badger's test setup.
func newTestStore(t *testing.T) *badgerhold.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "jobstore-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil

	db, err := badgerhold.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestJob(jobType string, priority int) *jobmodel.Job {
	cfg := jobmodel.JobConfig{JobType: jobType, RetryPolicy: jobmodel.RetryPolicy{MaxRetries: 3}}
	return jobmodel.NewJob("user-1", "tenant-1", cfg, priority)
}

func TestJobStore_SaveGetRoundTrip(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	job := newTestJob("crawl", 5)
	require.NoError(t, js.SaveJob(job))

	got, err := js.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, jobmodel.StatusQueued, got.Status)
}

func TestJobStore_GetJobNotFound(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	_, err := js.GetJob("missing")
	assert.Error(t, err)
}

func TestJobStore_DequeuePicksHighestPriorityThenOldest(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	low := newTestJob("crawl", 1)
	require.NoError(t, js.SaveJob(low))
	time.Sleep(2 * time.Millisecond)
	high := newTestJob("crawl", 10)
	require.NoError(t, js.SaveJob(high))

	next, err := js.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, high.ID, next.ID)
	assert.Equal(t, jobmodel.StatusProcessing, next.Status)

	again, err := js.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, low.ID, again.ID)

	_, err = js.Dequeue()
	assert.ErrorIs(t, err, jobstore.ErrNoJobsQueued)
}

func TestJobStore_ListByStatus(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	job := newTestJob("crawl", 1)
	require.NoError(t, js.SaveJob(job))

	queued, err := js.ListByStatus(jobmodel.StatusQueued)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, job.ID, queued[0].ID)

	processing, err := js.ListByStatus(jobmodel.StatusProcessing)
	require.NoError(t, err)
	assert.Empty(t, processing)
}

func TestJobStore_DeleteJob(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	job := newTestJob("crawl", 1)
	require.NoError(t, js.SaveJob(job))
	require.NoError(t, js.DeleteJob(job.ID))

	_, err := js.GetJob(job.ID)
	assert.Error(t, err)
}

func TestJobStore_CleanupRemovesOldTerminalJobs(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	job := newTestJob("crawl", 1)
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete())
	job.CompletedAt = timePtr(time.Now().Add(-48 * time.Hour))
	require.NoError(t, js.SaveJob(job))

	recent := newTestJob("crawl", 1)
	require.NoError(t, js.SaveJob(recent))

	removed, err := js.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = js.GetJob(job.ID)
	assert.Error(t, err)
	_, err = js.GetJob(recent.ID)
	assert.NoError(t, err)
}

func TestJobStore_RegisterRecurringRejectsNonRecurringConfig(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)

	cfg := jobmodel.JobConfig{JobType: "nightly-recrawl"}
	err := js.RegisterRecurring(cfg, func(jobmodel.JobConfig) {})
	assert.Error(t, err)
}

func TestJobStore_RegisterRecurringStartsAndStops(t *testing.T) {
	db := newTestStore(t)
	js := jobstore.New(db)
	js.Start()
	defer js.Stop()

	cfg := jobmodel.JobConfig{
		JobType: "nightly-recrawl",
		ScheduleConfig: jobmodel.ScheduleConfig{
			Recurring:      true,
			CronExpression: "@every 1h",
		},
	}
	require.NoError(t, js.RegisterRecurring(cfg, func(jobmodel.JobConfig) {}))

	next, ok := js.NextRun("nightly-recrawl")
	assert.True(t, ok)
	assert.True(t, next.After(time.Now()))

	js.UnregisterRecurring("nightly-recrawl")
	_, ok = js.NextRun("nightly-recrawl")
	assert.False(t, ok)
}

func timePtr(t time.Time) *time.Time { return &t }
