package jobstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rohmanhakim/docs-crawler/internal/jobmodel"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNoJobsQueued is returned by Dequeue when no job is ready to run.
var ErrNoJobsQueued = errors.New("jobstore: no queued jobs")

// JobStore persists jobmodel.Job records and drives robfig/cron/v3-based
// recurring dispatch for JobConfig.ScheduleConfig.CronExpression entries.
// It shares its badgerhold handle with internal/store's Store so both
// collections live in one badger database (badger allows only one process
// to hold the directory's file lock).
type JobStore struct {
	db   *badgerhold.Store
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New wraps db. Call Start to begin evaluating registered cron schedules.
func New(db *badgerhold.Store) *JobStore {
	return &JobStore{
		db:      db,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins the cron scheduler goroutine.
func (s *JobStore) Start() {
	s.cron.Start()
}

// Stop halts the cron scheduler and blocks until any in-flight cron funcs
// return.
func (s *JobStore) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SaveJob validates and upserts j, keyed by its ID.
func (s *JobStore) SaveJob(j *jobmodel.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	record := jobRecord{
		ID:        j.ID,
		Status:    string(j.Status),
		TenantId:  j.TenantId,
		JobType:   j.JobType,
		Priority:  j.Priority,
		CreatedAt: j.CreatedAt,
		Job:       *j,
	}
	if err := s.db.Upsert(j.ID, &record); err != nil {
		return fmt.Errorf("jobstore: upsert job: %w", err)
	}
	return nil
}

// GetJob loads a job by id.
func (s *JobStore) GetJob(id string) (*jobmodel.Job, error) {
	var record jobRecord
	if err := s.db.Get(id, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("jobstore: job not found: %s", id)
		}
		return nil, fmt.Errorf("jobstore: get job: %w", err)
	}
	job := record.Job
	return &job, nil
}

// UpdateJob re-saves j, overwriting the stored record.
func (s *JobStore) UpdateJob(j *jobmodel.Job) error {
	return s.SaveJob(j)
}

// DeleteJob removes a job by id. Deleting a missing job is not an error.
func (s *JobStore) DeleteJob(id string) error {
	if err := s.db.Delete(id, &jobRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("jobstore: delete job: %w", err)
	}
	return nil
}

// ListByStatus returns every job in the given status, oldest first.
func (s *JobStore) ListByStatus(status jobmodel.Status) ([]jobmodel.Job, error) {
	var records []jobRecord
	if err := s.db.Find(&records, badgerhold.Where("Status").Eq(string(status)).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("jobstore: list by status: %w", err)
	}
	return recordsToJobs(records), nil
}

// ListByTenant returns every job owned by tenantId, newest first.
func (s *JobStore) ListByTenant(tenantId string) ([]jobmodel.Job, error) {
	var records []jobRecord
	if err := s.db.Find(&records, badgerhold.Where("TenantId").Eq(tenantId).SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("jobstore: list by tenant: %w", err)
	}
	return recordsToJobs(records), nil
}

// Dequeue picks the highest-priority, then oldest, QUEUED job, transitions
// it to PROCESSING, persists the transition, and returns it. Returns
// ErrNoJobsQueued if nothing is ready.
func (s *JobStore) Dequeue() (*jobmodel.Job, error) {
	var records []jobRecord
	if err := s.db.Find(&records, badgerhold.Where("Status").Eq(string(jobmodel.StatusQueued))); err != nil {
		return nil, fmt.Errorf("jobstore: dequeue find: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoJobsQueued
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority > records[j].Priority
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	next := records[0].Job
	if err := next.Start(); err != nil {
		return nil, fmt.Errorf("jobstore: dequeue start: %w", err)
	}
	if err := s.SaveJob(&next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Cleanup deletes terminal (COMPLETED/FAILED/CANCELLED) jobs whose
// CompletedAt is older than retention, returning the count removed.
func (s *JobStore) Cleanup(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	query := badgerhold.Where("Status").Eq(string(jobmodel.StatusCompleted)).
		Or(badgerhold.Where("Status").Eq(string(jobmodel.StatusFailed))).
		Or(badgerhold.Where("Status").Eq(string(jobmodel.StatusCancelled)))

	var records []jobRecord
	if err := s.db.Find(&records, query); err != nil {
		return 0, fmt.Errorf("jobstore: cleanup find: %w", err)
	}

	removed := 0
	for _, r := range records {
		if r.Job.CompletedAt == nil || r.Job.CompletedAt.After(cutoff) {
			continue
		}
		if err := s.db.Delete(r.ID, &jobRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return removed, fmt.Errorf("jobstore: cleanup delete %s: %w", r.ID, err)
		}
		removed++
	}
	return removed, nil
}

// RegisterRecurring arms cfg's cron expression, invoking dispatch(cfg) on
// every firing (skipped once ScheduleConfig.ExpiresAt has passed).
// Re-registering an already-armed JobType replaces its entry.
func (s *JobStore) RegisterRecurring(cfg jobmodel.JobConfig, dispatch func(jobmodel.JobConfig)) error {
	if !cfg.ScheduleConfig.Recurring || cfg.ScheduleConfig.CronExpression == "" {
		return fmt.Errorf("jobstore: job type %s has no cron expression to register", cfg.JobType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[cfg.JobType]; ok {
		s.cron.Remove(existing)
	}

	entryID, err := s.cron.AddFunc(cfg.ScheduleConfig.CronExpression, func() {
		if cfg.ScheduleConfig.ExpiresAt != nil && time.Now().After(*cfg.ScheduleConfig.ExpiresAt) {
			return
		}
		dispatch(cfg)
	})
	if err != nil {
		return fmt.Errorf("jobstore: register cron job %s: %w", cfg.JobType, err)
	}
	s.entries[cfg.JobType] = entryID
	return nil
}

// UnregisterRecurring disarms jobType's cron entry, if any.
func (s *JobStore) UnregisterRecurring(jobType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[jobType]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, jobType)
	}
}

// NextRun reports jobType's next scheduled firing, if it is registered.
func (s *JobStore) NextRun(jobType string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.entries[jobType]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(entryID).Next, true
}

func recordsToJobs(records []jobRecord) []jobmodel.Job {
	jobs := make([]jobmodel.Job, len(records))
	for i, r := range records {
		jobs[i] = r.Job
	}
	return jobs
}
