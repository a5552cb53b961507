package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/activitysync/ActivitySync/internal/pkg/cache"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

// syncLockTTL bounds how long a crashed worker can hold an account lock.
const syncLockTTL = 5 * time.Minute

// processSyncJob dispatches one job to the orchestrator. Operations for the
// same account are serialized through a Redis lock so two concurrent syncs
// cannot race on the cursor or double-create the calendar; a held lock is a
// transient outcome and the job comes back later.
func (q *Queue) processSyncJob(ctx context.Context, job *Job) error {
	payload, err := SyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return syncerr.Invalid("bad job payload", err)
	}

	lockKey := fmt.Sprintf("sync_lock:%d", payload.AccountID)
	acquired, err := cache.AcquireLock(lockKey, syncLockTTL)
	if err != nil {
		return syncerr.Transient("acquiring sync lock", err)
	}
	if !acquired {
		return syncerr.Transient("account sync already in progress", nil)
	}
	defer cache.ReleaseLock(lockKey)

	bundle, err := q.orchestrator.LoadBundle(payload.UserID)
	if err != nil {
		return err
	}

	switch job.Type {
	case JobTypeSyncActivities:
		return q.orchestrator.SyncActivities(ctx, bundle)
	case JobTypeUpdateActivity:
		return q.orchestrator.UpdateActivity(ctx, bundle, payload.ActivityID)
	case JobTypeDeleteActivity:
		return q.orchestrator.DeleteActivity(ctx, bundle, payload.ActivityID)
	default:
		return syncerr.Invalid(fmt.Sprintf("unknown job type: %s", job.Type), nil)
	}
}
