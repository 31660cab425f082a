package jobmodel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewJob creates a new QUEUED job from a JobConfig. Grounded on
// ternarybob-quaero's NewJobModel (uuid.New().String() id, CreatedAt set at
// construction).
func NewJob(userId, tenantId string, cfg JobConfig, priority int) *Job {
	return &Job{
		ID:         uuid.New().String(),
		UserId:     userId,
		TenantId:   tenantId,
		JobType:    cfg.JobType,
		Status:     StatusQueued,
		Priority:   priority,
		Progress:   0,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: cfg.RetryPolicy.MaxRetries,
		Timeout:    &cfg.Timeout,
	}
}

// Start transitions QUEUED/RETRYING -> PROCESSING.
func (j *Job) Start() error {
	if j.Status != StatusQueued && j.Status != StatusRetrying {
		return fmt.Errorf("jobmodel: cannot start job %s from status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = StatusProcessing
	j.StartedAt = &now
	return nil
}

// Complete transitions PROCESSING -> COMPLETED, setting Progress to 100.
func (j *Job) Complete() error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("jobmodel: cannot complete job %s from status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
	return nil
}

// Fail transitions PROCESSING -> FAILED, recording message.
func (j *Job) Fail(message string) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("jobmodel: cannot fail job %s from status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}

// Cancel transitions any non-terminal status to CANCELLED.
func (j *Job) Cancel() error {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("jobmodel: cannot cancel job %s from terminal status %s", j.ID, j.Status)
	}
	now := time.Now()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	return nil
}

// IncrementRetry moves a FAILED job to RETRYING if RetryCount < MaxRetries,
// and reports whether the move happened (the Job Store re-enqueues only
// when it does).
func (j *Job) IncrementRetry() bool {
	if j.Status != StatusFailed {
		return false
	}
	if j.RetryCount >= j.MaxRetries {
		return false
	}
	j.RetryCount++
	j.Status = StatusRetrying
	j.ErrorMessage = ""
	j.CompletedAt = nil
	return true
}

// Validate checks the required fields before a Job is admitted to the store.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("jobmodel: job id is required")
	}
	if j.JobType == "" {
		return fmt.Errorf("jobmodel: job type is required")
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("jobmodel: max retries cannot be negative")
	}
	return nil
}

// Clone returns a deep copy, used when re-enqueuing a retrying job so the
// queued snapshot doesn't alias the caller's in-memory Job.
func (j *Job) Clone() *Job {
	clone := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	if j.ScheduledAt != nil {
		t := *j.ScheduledAt
		clone.ScheduledAt = &t
	}
	if j.Timeout != nil {
		d := *j.Timeout
		clone.Timeout = &d
	}
	if j.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(j.Metadata))
		for k, v := range j.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// ToJSON serializes the job for queue/store persistence.
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("jobmodel: marshal job: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a persisted job.
func FromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("jobmodel: unmarshal job: %w", err)
	}
	return &j, nil
}

// NewJobResult builds an empty JobResult for jobId, ready to be populated as
// the job's session/work completes.
func NewJobResult(jobId, userId, tenantId string) *JobResult {
	return &JobResult{
		ID:        uuid.New().String(),
		JobId:     jobId,
		UserId:    userId,
		TenantId:  tenantId,
		CreatedAt: time.Now(),
	}
}
