package syncengine

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

// ActionType selects the orchestrator operation a webhook maps to.
type ActionType string

const (
	ActionSyncActivities ActionType = "sync_activities"
	ActionUpdateActivity ActionType = "update_activity"
	ActionDeleteActivity ActionType = "delete_activity"
)

// WebhookEvent is the decoded Strava push notification body.
type WebhookEvent struct {
	ObjectType string `json:"object_type"`
	AspectType string `json:"aspect_type" validate:"required"`
	OwnerID    *int64 `json:"owner_id" validate:"required"`
	ObjectID   *int64 `json:"object_id" validate:"required"`
}

// SyncAction is a classified webhook, ready to dispatch.
type SyncAction struct {
	Type       ActionType
	Account    *models.ProviderAccount
	ActivityID int64
}

// AccountLookup resolves linked accounts during classification.
type AccountLookup interface {
	GetByProviderUserID(provider, providerUserID string) (*models.ProviderAccount, error)
	GetByUserAndProvider(userID uint, provider string) (*models.ProviderAccount, error)
}

// Classifier validates inbound change notifications and routes them to the
// correct orchestrator operation.
type Classifier struct {
	accounts AccountLookup
	creds    CredentialSource
	validate *validator.Validate
}

// NewClassifier creates a webhook classifier. creds may be nil; when set,
// the fitness credential is refreshed before dispatch since webhooks can
// arrive after long idle periods.
func NewClassifier(accounts AccountLookup, creds CredentialSource) *Classifier {
	return &Classifier{
		accounts: accounts,
		creds:    creds,
		validate: validator.New(),
	}
}

// Classify turns a webhook event into a SyncAction or a typed rejection:
// KindIgnore for payloads deliberately skipped (treated as permanent
// success) and KindInvalid for malformed or unserviceable ones (signaled
// back as a client error so the sender retries delivery).
func (c *Classifier) Classify(ctx context.Context, event WebhookEvent) (*SyncAction, error) {
	// Only activity payloads are considered; athlete and other object
	// types are a permanent skip.
	if event.ObjectType != "activity" {
		return nil, syncerr.Ignored("not_activity")
	}

	if err := c.validate.Struct(event); err != nil {
		return nil, syncerr.Invalid("missing required webhook fields", err)
	}

	account, err := c.accounts.GetByProviderUserID(models.PROVIDER_STRAVA, strconv.FormatInt(*event.OwnerID, 10))
	if err != nil {
		// The webhook may reference an athlete known to Strava but never
		// connected here; not an error.
		return nil, syncerr.Ignored("no_user")
	}
	if !account.Connected {
		// Strava keeps delivering events after a disconnect until the
		// subscription catches up; a disconnected link is treated the same
		// as no link at all.
		return nil, syncerr.Ignored("no_user")
	}

	googleAccount, err := c.accounts.GetByUserAndProvider(account.UserID, models.PROVIDER_GOOGLE)
	if err != nil {
		return nil, syncerr.Invalid("no_calendar_link", err)
	}
	if !googleAccount.Connected {
		return nil, syncerr.Invalid("no_calendar_link", nil)
	}

	action := &SyncAction{Account: account, ActivityID: *event.ObjectID}
	switch event.AspectType {
	case "create":
		action.Type = ActionSyncActivities
	case "update":
		action.Type = ActionUpdateActivity
	case "delete":
		action.Type = ActionDeleteActivity
	default:
		return nil, syncerr.Ignored("unhandled_aspect_type")
	}

	if c.creds != nil {
		if _, err := c.creds.EnsureValid(ctx, account); err != nil {
			return nil, classifyRemote(err)
		}
	}

	return action, nil
}
