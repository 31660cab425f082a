package jobmodel

import "time"

/*
Package jobmodel defines the Job/JobConfig/JobResult triad (§3, §4.13).
Grounded on ternarybob-quaero's internal/models.JobModel for the struct
shape (immutable core fields, Validate/Clone/ToJSON/FromJSON) and
google/uuid for id generation, adapted to this spec's richer status/
retry/schedule lifecycle rather than the teacher's generic Config map.
*/

// Status is the Job lifecycle state.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusRetrying   Status = "RETRYING"
)

// Job is one unit of scheduled or on-demand work (a crawl session launch,
// a re-index sweep, ...). Reused by both the scheduler (C14) and crawl
// sessions (C10).
type Job struct {
	ID       string `json:"id"`
	UserId   string `json:"userId"`
	TenantId string `json:"tenantId"`
	JobType  string `json:"jobType"`

	Status   Status `json:"status"`
	Priority int    `json:"priority"`
	Progress int    `json:"progress"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`

	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	RetryCount int            `json:"retryCount"`
	MaxRetries int            `json:"maxRetries"`
	Timeout    *time.Duration `json:"timeout,omitempty"`
}

// RetryPolicy is JobConfig's backoff shape, mirroring pkg/classify.Config's
// initial/multiplier/max triad so job retries and crawl retries share one
// mental model even though they're computed independently.
type RetryPolicy struct {
	MaxRetries        int           `json:"maxRetries"`
	InitialDelay      time.Duration `json:"initialDelay"`
	MaxDelay          time.Duration `json:"maxDelay"`
	BackoffMultiplier float64       `json:"backoffMultiplier"`
	ExponentialBackoff bool         `json:"exponentialBackoff"`
}

// ResourceRequirements is an opaque resource-sizing hint the scheduler may
// use to bound concurrent job execution; unused fields are left zero.
type ResourceRequirements struct {
	CPUShares   int `json:"cpuShares,omitempty"`
	MemoryMB    int `json:"memoryMb,omitempty"`
	Concurrency int `json:"concurrency,omitempty"`
}

// ScheduleConfig describes when a JobConfig should fire. CronExpression,
// when set, is evaluated with robfig/cron/v3 by the Job Store (C14) to
// compute the next ScheduledAt for recurring jobs.
type ScheduleConfig struct {
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	CronExpression string     `json:"cronExpression,omitempty"`
	Recurring      bool       `json:"recurring"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// JobConfig is the reusable template a Job is instantiated from.
type JobConfig struct {
	JobType     string `json:"jobType"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Timeout              time.Duration        `json:"timeout"`
	DefaultPriority      int                  `json:"defaultPriority"`
	RetryPolicy          RetryPolicy          `json:"retryPolicy"`
	ResourceRequirements ResourceRequirements `json:"resourceRequirements"`
	ScheduleConfig       ScheduleConfig       `json:"scheduleConfig"`

	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Tags       map[string]string      `json:"tags,omitempty"`

	Enabled          bool `json:"enabled"`
	ConcurrencyLimit *int `json:"concurrencyLimit,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobResultError is the structured failure detail attached to a JobResult
// whose FinalStatus is FAILED.
type JobResultError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	StackTrace     string                 `json:"stackTrace,omitempty"`
	Category       string                 `json:"category,omitempty"`
	HTTPStatusCode int                    `json:"httpStatusCode,omitempty"`
	Context        map[string]interface{} `json:"context,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// JobResultMetrics is the opaque execution-metrics bag attached to a
// completed JobResult.
type JobResultMetrics struct {
	ExecutionDuration time.Duration      `json:"executionDuration"`
	PeakMemory        int64              `json:"peakMemory,omitempty"`
	CPUUsage          float64            `json:"cpuUsage,omitempty"`
	NetBytesIn        int64              `json:"netBytesIn,omitempty"`
	NetBytesOut       int64              `json:"netBytesOut,omitempty"`
	DiskBytesRead     int64              `json:"diskBytesRead,omitempty"`
	DiskBytesWritten  int64              `json:"diskBytesWritten,omitempty"`
	ItemsProcessed    int64              `json:"itemsProcessed,omitempty"`
	Throughput        float64            `json:"throughput,omitempty"`
	CustomMetrics     map[string]float64 `json:"customMetrics,omitempty"`
}

// maxLogMessages bounds JobResult.LogMessages' ring buffer.
const maxLogMessages = 1000

// JobResult is the terminal record produced when a Job finishes.
type JobResult struct {
	ID       string `json:"id"`
	JobId    string `json:"jobId"`
	UserId   string `json:"userId"`
	TenantId string `json:"tenantId"`

	FinalStatus Status `json:"finalStatus"`

	ResultData []byte          `json:"resultData,omitempty"`
	Error      *JobResultError `json:"error,omitempty"`
	Metrics    JobResultMetrics `json:"metrics"`

	OutputFiles []string               `json:"outputFiles,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	LogMessages []string               `json:"logMessages,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// AppendLog appends message to the ring buffer, dropping the oldest entry
// once maxLogMessages is reached.
func (r *JobResult) AppendLog(message string) {
	r.LogMessages = append(r.LogMessages, message)
	if len(r.LogMessages) > maxLogMessages {
		r.LogMessages = r.LogMessages[len(r.LogMessages)-maxLogMessages:]
	}
}
