// Package syncengine drives the three sync operations between the fitness
// provider and the calendar provider: full/incremental sync, single-activity
// update and single-activity delete. It owns the sync cursor and the
// retry/failure policy; the low-level clients never retry on their own.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"google.golang.org/api/calendar/v3"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/internal/pkg/mapper"
	"github.com/activitysync/ActivitySync/internal/pkg/strava"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

// CredentialSource ensures an account's access token is valid before use.
type CredentialSource interface {
	EnsureValid(ctx context.Context, account *models.ProviderAccount) (string, error)
}

// ActivitySource fetches activities from the fitness provider.
type ActivitySource interface {
	ListActivities(ctx context.Context, accessToken string, after *int64) ([]strava.Activity, error)
	GetActivity(ctx context.Context, accessToken string, id int64) (*strava.Activity, error)
}

// CalendarSink mutates events on the calendar provider.
type CalendarSink interface {
	GetOrCreateCalendar(ctx context.Context, accessToken string) (string, error)
	FindEventByActivityID(ctx context.Context, accessToken, calendarID string, activityID int64) (string, error)
	CreateEvent(ctx context.Context, accessToken, calendarID string, event *calendar.Event) (string, error)
	UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, event *calendar.Event) (string, error)
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// UserStore reads users and caches the resolved calendar handle.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
	UpdateCalendarID(userID uint, calendarID string) error
}

// AccountStore reads linked accounts and persists the sync cursor.
type AccountStore interface {
	GetByUserAndProvider(userID uint, provider string) (*models.ProviderAccount, error)
	UpdateCursor(id uint, lastSyncedAt time.Time) error
}

// Bundle aggregates one user's linked accounts. Passed explicitly into
// every operation instead of being lazily traversed from the user row.
type Bundle struct {
	User   *models.User
	Strava *models.ProviderAccount
	Google *models.ProviderAccount
}

// Orchestrator coordinates credentials, activity source, mapper and
// calendar sink for one logical sync operation at a time.
type Orchestrator struct {
	users      UserStore
	accounts   AccountStore
	creds      CredentialSource
	activities ActivitySource
	calendar   CalendarSink
	now        func() time.Time
}

// NewOrchestrator wires the engine from its collaborators
func NewOrchestrator(users UserStore, accounts AccountStore, creds CredentialSource, activities ActivitySource, calendar CalendarSink) *Orchestrator {
	return &Orchestrator{
		users:      users,
		accounts:   accounts,
		creds:      creds,
		activities: activities,
		calendar:   calendar,
		now:        time.Now,
	}
}

// LoadBundle resolves the user and both linked accounts. A missing or
// disconnected link is a setup problem, classified invalid.
func (o *Orchestrator) LoadBundle(userID uint) (*Bundle, error) {
	user, err := o.users.GetByID(userID)
	if err != nil {
		return nil, syncerr.Invalid("no_user", err)
	}

	stravaAccount, err := o.accounts.GetByUserAndProvider(userID, models.PROVIDER_STRAVA)
	if err != nil {
		return nil, syncerr.Invalid("no_strava_link", err)
	}
	if !stravaAccount.Connected {
		return nil, syncerr.Invalid("no_strava_link", nil)
	}

	googleAccount, err := o.accounts.GetByUserAndProvider(userID, models.PROVIDER_GOOGLE)
	if err != nil {
		return nil, syncerr.Invalid("no_calendar_link", err)
	}
	if !googleAccount.Connected {
		return nil, syncerr.Invalid("no_calendar_link", nil)
	}

	return &Bundle{User: user, Strava: stravaAccount, Google: googleAccount}, nil
}

// SyncActivities runs a full or incremental sync: list activities after the
// cursor, upsert each into the calendar, then advance the cursor. The
// cursor is persisted only after every remote write succeeded; a mid-batch
// failure fails the whole operation and the caller retries it entirely.
// Re-running is safe because the per-activity lookup-then-upsert is
// idempotent.
func (o *Orchestrator) SyncActivities(ctx context.Context, b *Bundle) error {
	// The calendar credential is refreshed first: without it nothing can be
	// written and a new cursor must not be persisted.
	googleToken, err := o.creds.EnsureValid(ctx, b.Google)
	if err != nil {
		return classifyRemote(err)
	}
	stravaToken, err := o.creds.EnsureValid(ctx, b.Strava)
	if err != nil {
		return classifyRemote(err)
	}

	calendarID, err := o.resolveCalendar(ctx, b, googleToken)
	if err != nil {
		return classifyRemote(err)
	}

	var after *int64
	if b.Strava.LastSyncedAt != nil {
		ts := b.Strava.LastSyncedAt.Unix()
		after = &ts
	}

	activities, err := o.activities.ListActivities(ctx, stravaToken, after)
	if err != nil {
		return classifyRemote(err)
	}
	if len(activities) == 0 {
		return nil
	}

	// New cursor = max(previous cursor, latest activity end seen), in UTC.
	// Never moves backward.
	cursor := b.Strava.LastSyncedAt
	for _, activity := range activities {
		if err := o.upsertActivity(ctx, googleToken, calendarID, activity); err != nil {
			return classifyRemote(err)
		}
		end := mapper.EventEnd(activity).UTC()
		if cursor == nil || end.After(*cursor) {
			e := end
			cursor = &e
		}
	}

	if err := o.accounts.UpdateCursor(b.Strava.ID, *cursor); err != nil {
		return fmt.Errorf("persisting sync cursor: %w", err)
	}
	b.Strava.LastSyncedAt = cursor

	log.Infof("[SyncEngine] Synced %d activities for user %d, cursor now %s", len(activities), b.User.ID, cursor.Format(time.RFC3339))
	return nil
}

// UpdateActivity fetches one activity and upserts its event. The cursor is
// never touched: a single-activity update is sync-window-neutral.
func (o *Orchestrator) UpdateActivity(ctx context.Context, b *Bundle, activityID int64) error {
	googleToken, err := o.creds.EnsureValid(ctx, b.Google)
	if err != nil {
		return classifyRemote(err)
	}
	stravaToken, err := o.creds.EnsureValid(ctx, b.Strava)
	if err != nil {
		return classifyRemote(err)
	}

	calendarID, err := o.resolveCalendar(ctx, b, googleToken)
	if err != nil {
		return classifyRemote(err)
	}

	activity, err := o.activities.GetActivity(ctx, stravaToken, activityID)
	if err != nil {
		return classifyRemote(err)
	}

	if err := o.upsertActivity(ctx, googleToken, calendarID, *activity); err != nil {
		return classifyRemote(err)
	}
	return nil
}

// DeleteActivity removes the event mirroring the given activity. The cursor
// is reset to the start of the current day (UTC) before the remote delete
// and stays reset even if the delete fails: the next incremental sync then
// re-examines the whole day instead of silently missing the state change.
func (o *Orchestrator) DeleteActivity(ctx context.Context, b *Bundle, activityID int64) error {
	reset := startOfDayUTC(o.now())
	if err := o.accounts.UpdateCursor(b.Strava.ID, reset); err != nil {
		return fmt.Errorf("resetting sync cursor: %w", err)
	}
	b.Strava.LastSyncedAt = &reset

	googleToken, err := o.creds.EnsureValid(ctx, b.Google)
	if err != nil {
		return classifyRemote(err)
	}

	calendarID, err := o.resolveCalendar(ctx, b, googleToken)
	if err != nil {
		return classifyRemote(err)
	}

	eventID, err := o.calendar.FindEventByActivityID(ctx, googleToken, calendarID, activityID)
	if err != nil {
		return classifyRemote(err)
	}
	if eventID == "" {
		// Nothing to delete, already absent
		return nil
	}

	if err := o.calendar.DeleteEvent(ctx, googleToken, calendarID, eventID); err != nil {
		return classifyRemote(err)
	}

	log.Infof("[SyncEngine] Deleted event %s for activity %d (user %d)", eventID, activityID, b.User.ID)
	return nil
}

// resolveCalendar returns the cached calendar handle, resolving and caching
// it on first use.
func (o *Orchestrator) resolveCalendar(ctx context.Context, b *Bundle, googleToken string) (string, error) {
	if b.User.CalendarID != "" {
		return b.User.CalendarID, nil
	}

	calendarID, err := o.calendar.GetOrCreateCalendar(ctx, googleToken)
	if err != nil {
		return "", err
	}
	if err := o.users.UpdateCalendarID(b.User.ID, calendarID); err != nil {
		return "", fmt.Errorf("caching calendar id: %w", err)
	}
	b.User.CalendarID = calendarID
	return calendarID, nil
}

// upsertActivity maps the activity and creates or updates its event, keyed
// by the private activity id property.
func (o *Orchestrator) upsertActivity(ctx context.Context, googleToken, calendarID string, activity strava.Activity) error {
	event := mapper.BuildEvent(activity)

	existingID, err := o.calendar.FindEventByActivityID(ctx, googleToken, calendarID, activity.ID)
	if err != nil {
		return err
	}

	if existingID != "" {
		if _, err := o.calendar.UpdateEvent(ctx, googleToken, calendarID, existingID, event); err != nil {
			return err
		}
		log.Debugf("[SyncEngine] Updated event for activity %d", activity.ID)
		return nil
	}

	if _, err := o.calendar.CreateEvent(ctx, googleToken, calendarID, event); err != nil {
		return err
	}
	log.Debugf("[SyncEngine] Created event for activity %d", activity.ID)
	return nil
}

// classifyRemote folds upstream and refresh failures into the taxonomy.
// Already-classified errors pass through unchanged.
func classifyRemote(err error) error {
	if err == nil {
		return nil
	}

	var se *syncerr.Error
	if errors.As(err, &se) {
		return err
	}

	switch syncerr.KindOf(err) {
	case syncerr.KindUnauthorized:
		return syncerr.Unauthorized(providerOf(err)+"_unauthorized: token refresh failed", err)
	default:
		return syncerr.Transient("upstream failure", err)
	}
}

func providerOf(err error) string {
	var ue *syncerr.UpstreamError
	if errors.As(err, &ue) {
		return ue.Provider
	}
	var ce *syncerr.CredentialRefreshError
	if errors.As(err, &ce) {
		return ce.Provider
	}
	return "google"
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
