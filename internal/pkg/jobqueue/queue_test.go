package jobqueue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

func TestShouldRetry(t *testing.T) {
	withBudget := &Job{RetryCount: 1, MaxRetries: 3}
	exhausted := &Job{RetryCount: 3, MaxRetries: 3}

	tests := []struct {
		name  string
		err   error
		job   *Job
		retry bool
	}{
		{
			name:  "transient with budget",
			err:   syncerr.Transient("upstream failure", nil),
			job:   withBudget,
			retry: true,
		},
		{
			name:  "transient with budget exhausted",
			err:   syncerr.Transient("upstream failure", nil),
			job:   exhausted,
			retry: false,
		},
		{
			name:  "unauthorized fails permanently",
			err:   syncerr.Unauthorized("google_unauthorized: token refresh failed", nil),
			job:   withBudget,
			retry: false,
		},
		{
			name:  "invalid fails permanently",
			err:   syncerr.Invalid("no_calendar_link", nil),
			job:   withBudget,
			retry: false,
		},
		{
			name:  "ignore never retries",
			err:   syncerr.Ignored("not_activity"),
			job:   withBudget,
			retry: false,
		},
		{
			name:  "upstream 500 retries",
			err:   &syncerr.UpstreamError{Provider: "google", StatusCode: 500},
			job:   withBudget,
			retry: true,
		},
		{
			name:  "upstream 401 fails permanently",
			err:   &syncerr.UpstreamError{Provider: "strava", StatusCode: 401},
			job:   withBudget,
			retry: false,
		},
		{
			name:  "unclassified error defaults to transient",
			err:   errors.New("connection reset"),
			job:   withBudget,
			retry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retry, shouldRetry(tt.err, tt.job))
		})
	}
}
