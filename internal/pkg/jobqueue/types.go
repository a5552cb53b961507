package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSyncActivities JobType = "sync_activities"
	JobTypeUpdateActivity JobType = "update_activity"
	JobTypeDeleteActivity JobType = "delete_activity"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background sync job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkAsProcessing marks the job as currently being processed
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted marks the job as successfully completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed marks the job as failed with the given error message
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying marks the job for another attempt
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job has retry budget left
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// SyncJobPayload contains the payload for all sync job types. ActivityID is
// only set for single-activity update/delete jobs.
type SyncJobPayload struct {
	UserID     uint  `json:"user_id"`
	AccountID  uint  `json:"account_id"` // strava provider account
	ActivityID int64 `json:"activity_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p SyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     p.UserID,
		"account_id":  p.AccountID,
		"activity_id": p.ActivityID,
	}
}

// SyncJobPayloadFromMap creates a payload from a stored map
func SyncJobPayloadFromMap(data map[string]interface{}) (*SyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
