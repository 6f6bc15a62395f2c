package jobqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{5, 16 * time.Minute},
		{6, 30 * time.Minute},
		{40, 30 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestJob_FailSchedulesUntilAttemptsRunOut(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	job := &Job{ID: "j1", Type: JobTypeInvoiceArchive, Key: "inv-1", MaxAttempts: 3}
	job.start(now)

	next, retry := job.fail(errors.New("bucket unavailable"), now)
	require.True(t, retry)
	assert.Equal(t, now.Add(time.Minute), next)
	assert.Equal(t, JobStatusScheduled, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "bucket unavailable", job.LastError)
	assert.Nil(t, job.StartedAt)
	require.NotNil(t, job.RunAt)
	assert.Equal(t, next, *job.RunAt)

	next, retry = job.fail(errors.New("bucket unavailable"), now)
	require.True(t, retry)
	assert.Equal(t, now.Add(2*time.Minute), next)

	_, retry = job.fail(errors.New("access denied"), now)
	assert.False(t, retry)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, "access denied", job.LastError)
	assert.Nil(t, job.RunAt)
}

func TestJob_Requeue(t *testing.T) {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	job := &Job{Status: JobStatusScheduled, RunAt: &start, StartedAt: &start}

	later := start.Add(time.Hour)
	job.requeue(later)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.RunAt)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, later, job.QueuedAt)
}

func TestJob_DecodeInvoiceArchivePayload(t *testing.T) {
	job := &Job{Payload: []byte(`{"invoice_id":"inv-42"}`)}
	var p InvoiceArchivePayload
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, "inv-42", p.InvoiceID)

	job.Payload = []byte(`[1,2]`)
	assert.Error(t, job.Decode(&p))
}
