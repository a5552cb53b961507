package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType(t *testing.T) {
	tests := []struct {
		name     string
		jobType  JobType
		expected string
	}{
		{"Sync Activities", JobTypeSyncActivities, "sync_activities"},
		{"Update Activity", JobTypeUpdateActivity, "update_activity"},
		{"Delete Activity", JobTypeDeleteActivity, "delete_activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.jobType))
		})
	}
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name:      "retries remaining",
			job:       &Job{RetryCount: 1, MaxRetries: 3},
			retryable: true,
		},
		{
			name:      "budget exhausted",
			job:       &Job{RetryCount: 3, MaxRetries: 3},
			retryable: false,
		},
		{
			name:      "fresh job",
			job:       &Job{RetryCount: 0, MaxRetries: 3},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_MarkAsProcessing(t *testing.T) {
	job := &Job{Status: JobStatusPending}

	before := time.Now()
	job.MarkAsProcessing()
	after := time.Now()

	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.True(t, !job.ProcessedAt.Before(before) && !job.ProcessedAt.After(after))
}

func TestJob_MarkAsCompleted(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}

	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestJob_MarkAsFailed(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, RetryCount: 1}

	job.MarkAsFailed("sync failed")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "sync failed", job.ErrorMsg)
	assert.Equal(t, 2, job.RetryCount)
}

func TestSyncJobPayload_ToMap(t *testing.T) {
	payload := SyncJobPayload{
		UserID:     1,
		AccountID:  10,
		ActivityID: 42,
	}

	expected := map[string]interface{}{
		"user_id":     uint(1),
		"account_id":  uint(10),
		"activity_id": int64(42),
	}

	assert.Equal(t, expected, payload.ToMap())
}

func TestSyncJobPayloadFromMap(t *testing.T) {
	data := map[string]interface{}{
		"user_id":     float64(1), // JSON numbers are float64
		"account_id":  float64(10),
		"activity_id": float64(42),
	}

	payload, err := SyncJobPayloadFromMap(data)
	require.NoError(t, err)

	assert.Equal(t, &SyncJobPayload{UserID: 1, AccountID: 10, ActivityID: 42}, payload)
}

func TestSyncJobPayloadFromMap_InvalidData(t *testing.T) {
	data := map[string]interface{}{
		"user_id": make(chan int), // channels can't be marshaled to JSON
	}

	payload, err := SyncJobPayloadFromMap(data)
	assert.Error(t, err)
	assert.Nil(t, payload)
}

func TestSyncJobPayloadRoundTrip(t *testing.T) {
	original := SyncJobPayload{UserID: 7, AccountID: 70, ActivityID: 4242}

	result, err := SyncJobPayloadFromMap(original.ToMap())
	require.NoError(t, err)
	assert.Equal(t, &original, result)
}
