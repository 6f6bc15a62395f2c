package jobqueue

import (
	"encoding/json"
	"time"
)

type JobType string

const JobTypeInvoiceArchive JobType = "invoice_archive"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	// JobStatusScheduled is a failed job waiting for its next attempt.
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusFailed    JobStatus = "failed"
)

const (
	DefaultMaxAttempts = 5
	baseRetryDelay     = time.Minute
	maxRetryDelay      = 30 * time.Minute
)

// Job is stored as JSON under its own key while it is queued, running or
// waiting for a retry. Completed jobs are deleted.
type Job struct {
	ID   string  `json:"id"`
	Type JobType `json:"type"`
	// Key identifies the subject of the job (an invoice id). At most one
	// live job exists per type and key.
	Key         string          `json:"key,omitempty"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	QueuedAt    time.Time       `json:"queued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	RunAt       *time.Time      `json:"run_at,omitempty"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

func (j *Job) start(now time.Time) {
	j.Status = JobStatusProcessing
	j.StartedAt = &now
}

func (j *Job) requeue(now time.Time) {
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.RunAt = nil
	j.QueuedAt = now
}

// fail records a failed attempt. It returns the time of the next attempt, or
// false once the job has used all of its attempts.
func (j *Job) fail(err error, now time.Time) (time.Time, bool) {
	j.Attempts++
	j.LastError = err.Error()
	j.StartedAt = nil
	if j.Attempts >= j.MaxAttempts {
		j.Status = JobStatusFailed
		j.RunAt = nil
		return time.Time{}, false
	}
	next := now.Add(RetryDelay(j.Attempts))
	j.Status = JobStatusScheduled
	j.RunAt = &next
	return next, true
}

// RetryDelay doubles from one minute per failed attempt, capped at 30 minutes.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseRetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// Stats is a snapshot of the queue. Completed, Retried and Failed are
// running totals.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Scheduled  int64 `json:"scheduled"`
	Completed  int64 `json:"completed"`
	Retried    int64 `json:"retried"`
	Failed     int64 `json:"failed"`
}
