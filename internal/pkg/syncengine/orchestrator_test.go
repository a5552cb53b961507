package syncengine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activitysync/ActivitySync/app/models"
	"github.com/activitysync/ActivitySync/internal/pkg/strava"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
	"google.golang.org/api/calendar/v3"
)

type fakeUsers struct {
	user            *models.User
	err             error
	calendarWrites  []string
	calendarWriteTo uint
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeUsers) UpdateCalendarID(userID uint, calendarID string) error {
	f.calendarWriteTo = userID
	f.calendarWrites = append(f.calendarWrites, calendarID)
	return nil
}

type cursorWrite struct {
	accountID uint
	at        time.Time
}

type fakeAccounts struct {
	byProvider   map[string]*models.ProviderAccount
	cursorWrites []cursorWrite
	cursorErr    error
}

func (f *fakeAccounts) GetByUserAndProvider(userID uint, provider string) (*models.ProviderAccount, error) {
	account, ok := f.byProvider[provider]
	if !ok {
		return nil, errors.New("record not found")
	}
	return account, nil
}

func (f *fakeAccounts) UpdateCursor(id uint, lastSyncedAt time.Time) error {
	if f.cursorErr != nil {
		return f.cursorErr
	}
	f.cursorWrites = append(f.cursorWrites, cursorWrite{id, lastSyncedAt})
	return nil
}

type fakeCreds struct {
	errByProvider map[string]error
	calls         []string
}

func (f *fakeCreds) EnsureValid(ctx context.Context, account *models.ProviderAccount) (string, error) {
	f.calls = append(f.calls, account.Provider)
	if err := f.errByProvider[account.Provider]; err != nil {
		return "", err
	}
	return account.Provider + "-token", nil
}

type fakeActivities struct {
	list      []strava.Activity
	listErr   error
	afterSeen []*int64
	single    map[int64]*strava.Activity
}

func (f *fakeActivities) ListActivities(ctx context.Context, accessToken string, after *int64) ([]strava.Activity, error) {
	f.afterSeen = append(f.afterSeen, after)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeActivities) GetActivity(ctx context.Context, accessToken string, id int64) (*strava.Activity, error) {
	activity, ok := f.single[id]
	if !ok {
		return nil, &syncerr.UpstreamError{Provider: "strava", StatusCode: 404, Body: "not found"}
	}
	return activity, nil
}

type fakeCalendar struct {
	calendarID       string
	events           map[int64]string // activity id -> event id
	getOrCreateCalls int
	created          []int64
	updated          []string
	deleted          []string
	failCreateAfter  int // fail the n+1-th create when >= 0
	deleteErr        error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{calendarID: "cal-1", events: map[int64]string{}, failCreateAfter: -1}
}

func (f *fakeCalendar) GetOrCreateCalendar(ctx context.Context, accessToken string) (string, error) {
	f.getOrCreateCalls++
	return f.calendarID, nil
}

func (f *fakeCalendar) FindEventByActivityID(ctx context.Context, accessToken, calendarID string, activityID int64) (string, error) {
	return f.events[activityID], nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, accessToken, calendarID string, event *calendar.Event) (string, error) {
	if f.failCreateAfter >= 0 && len(f.created) >= f.failCreateAfter {
		return "", &syncerr.UpstreamError{Provider: "google", StatusCode: 500, Body: "backend error"}
	}
	activityID, _ := strconv.ParseInt(event.ExtendedProperties.Private["strava_activity_id"], 10, 64)
	eventID := fmt.Sprintf("evt-%d", activityID)
	f.events[activityID] = eventID
	f.created = append(f.created, activityID)
	return eventID, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, event *calendar.Event) (string, error) {
	f.updated = append(f.updated, eventID)
	return eventID, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

type engineFixture struct {
	users      *fakeUsers
	accounts   *fakeAccounts
	creds      *fakeCreds
	activities *fakeActivities
	calendar   *fakeCalendar
	o          *Orchestrator
	bundle     *Bundle
}

func engineNow() time.Time {
	return time.Date(2024, 5, 2, 15, 30, 0, 0, time.UTC)
}

func newFixture() *engineFixture {
	user := &models.User{ID: 1, Name: "Test User", CalendarID: "cal-1"}
	stravaAccount := &models.ProviderAccount{ID: 10, UserID: 1, Provider: models.PROVIDER_STRAVA, Connected: true}
	googleAccount := &models.ProviderAccount{ID: 11, UserID: 1, Provider: models.PROVIDER_GOOGLE, Connected: true}

	f := &engineFixture{
		users: &fakeUsers{user: user},
		accounts: &fakeAccounts{byProvider: map[string]*models.ProviderAccount{
			models.PROVIDER_STRAVA: stravaAccount,
			models.PROVIDER_GOOGLE: googleAccount,
		}},
		creds:      &fakeCreds{errByProvider: map[string]error{}},
		activities: &fakeActivities{single: map[int64]*strava.Activity{}},
		calendar:   newFakeCalendar(),
	}
	f.o = NewOrchestrator(f.users, f.accounts, f.creds, f.activities, f.calendar)
	f.o.now = engineNow
	f.bundle = &Bundle{User: user, Strava: stravaAccount, Google: googleAccount}
	return f
}

func testActivity(id int64, start time.Time, elapsed int64) strava.Activity {
	return strava.Activity{
		ID:          id,
		Name:        fmt.Sprintf("Activity %d", id),
		Distance:    1609.34,
		ElapsedTime: elapsed,
		StartDate:   start,
		Timezone:    "(GMT-06:00) America/Chicago",
	}
}

func TestLoadBundle(t *testing.T) {
	f := newFixture()

	bundle, err := f.o.LoadBundle(1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), bundle.User.ID)
	assert.Equal(t, models.PROVIDER_STRAVA, bundle.Strava.Provider)
	assert.Equal(t, models.PROVIDER_GOOGLE, bundle.Google.Provider)
}

func TestLoadBundle_MissingLinks(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		f := newFixture()
		f.users.err = errors.New("record not found")

		_, err := f.o.LoadBundle(1)
		require.Error(t, err)
		assert.Equal(t, syncerr.KindInvalid, syncerr.KindOf(err))
		assert.Equal(t, "no_user", syncerr.Reason(err))
	})

	t.Run("no strava link", func(t *testing.T) {
		f := newFixture()
		delete(f.accounts.byProvider, models.PROVIDER_STRAVA)

		_, err := f.o.LoadBundle(1)
		require.Error(t, err)
		assert.Equal(t, "no_strava_link", syncerr.Reason(err))
	})

	t.Run("no calendar link", func(t *testing.T) {
		f := newFixture()
		delete(f.accounts.byProvider, models.PROVIDER_GOOGLE)

		_, err := f.o.LoadBundle(1)
		require.Error(t, err)
		assert.Equal(t, "no_calendar_link", syncerr.Reason(err))
	})

	t.Run("disconnected strava link", func(t *testing.T) {
		f := newFixture()
		f.accounts.byProvider[models.PROVIDER_STRAVA].Connected = false

		_, err := f.o.LoadBundle(1)
		require.Error(t, err)
		assert.Equal(t, syncerr.KindInvalid, syncerr.KindOf(err))
		assert.Equal(t, "no_strava_link", syncerr.Reason(err))
	})

	t.Run("disconnected google link", func(t *testing.T) {
		f := newFixture()
		f.accounts.byProvider[models.PROVIDER_GOOGLE].Connected = false

		_, err := f.o.LoadBundle(1)
		require.Error(t, err)
		assert.Equal(t, syncerr.KindInvalid, syncerr.KindOf(err))
		assert.Equal(t, "no_calendar_link", syncerr.Reason(err))
	})
}

func TestSyncActivities_FirstSync(t *testing.T) {
	f := newFixture()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.activities.list = []strava.Activity{
		testActivity(42, start, 1800),
		testActivity(43, start.Add(6*time.Hour), 3600),
	}

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)

	// No cursor yet: after must be omitted
	require.Len(t, f.activities.afterSeen, 1)
	assert.Nil(t, f.activities.afterSeen[0])

	assert.Equal(t, []int64{42, 43}, f.calendar.created)

	// Cursor lands on the latest activity end, in UTC
	wantCursor := start.Add(6*time.Hour + time.Hour)
	require.Len(t, f.accounts.cursorWrites, 1)
	assert.Equal(t, uint(10), f.accounts.cursorWrites[0].accountID)
	assert.Equal(t, wantCursor, f.accounts.cursorWrites[0].at)

	require.NotNil(t, f.bundle.Strava.LastSyncedAt)
	assert.Equal(t, wantCursor, *f.bundle.Strava.LastSyncedAt)
}

func TestSyncActivities_IncrementalUsesCursor(t *testing.T) {
	f := newFixture()
	cursor := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	f.bundle.Strava.LastSyncedAt = &cursor

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)

	require.Len(t, f.activities.afterSeen, 1)
	require.NotNil(t, f.activities.afterSeen[0])
	assert.Equal(t, cursor.Unix(), *f.activities.afterSeen[0])
}

func TestSyncActivities_EmptyWindowLeavesCursor(t *testing.T) {
	f := newFixture()
	cursor := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	f.bundle.Strava.LastSyncedAt = &cursor

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)
	assert.Empty(t, f.accounts.cursorWrites)
	assert.Equal(t, cursor, *f.bundle.Strava.LastSyncedAt)
}

func TestSyncActivities_MidBatchFailureFailsWholeBatch(t *testing.T) {
	f := newFixture()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.activities.list = []strava.Activity{
		testActivity(42, start, 1800),
		testActivity(43, start.Add(6*time.Hour), 3600),
	}
	f.calendar.failCreateAfter = 1 // second create fails

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.Error(t, err)
	assert.Equal(t, syncerr.KindTransient, syncerr.KindOf(err))

	// Cursor untouched so the retry re-examines the whole window
	assert.Empty(t, f.accounts.cursorWrites)
	assert.Nil(t, f.bundle.Strava.LastSyncedAt)

	// Retry: the first activity's event already exists, so it is updated,
	// not duplicated; the second gets created.
	f.calendar.failCreateAfter = -1
	err = f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)

	assert.Equal(t, []string{"evt-42"}, f.calendar.updated)
	assert.Equal(t, []int64{42, 43}, f.calendar.created)
	require.Len(t, f.accounts.cursorWrites, 1)
}

func TestSyncActivities_CursorNeverMovesBackward(t *testing.T) {
	f := newFixture()
	cursor := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	f.bundle.Strava.LastSyncedAt = &cursor

	// Activity ends before the existing cursor
	f.activities.list = []strava.Activity{
		testActivity(42, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 1800),
	}

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)

	require.Len(t, f.accounts.cursorWrites, 1)
	assert.Equal(t, cursor, f.accounts.cursorWrites[0].at)
}

func TestSyncActivities_CalendarRefreshFailureAborts(t *testing.T) {
	f := newFixture()
	f.creds.errByProvider[models.PROVIDER_GOOGLE] = &syncerr.CredentialRefreshError{
		Provider:   models.PROVIDER_GOOGLE,
		StatusCode: 400,
		Err:        errors.New("invalid_grant"),
	}
	f.activities.list = []strava.Activity{
		testActivity(42, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 1800),
	}

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.Error(t, err)
	assert.Equal(t, syncerr.KindUnauthorized, syncerr.KindOf(err))
	assert.Contains(t, err.Error(), "google_unauthorized: token refresh failed")

	// Nothing listed, nothing written, cursor untouched
	assert.Empty(t, f.activities.afterSeen)
	assert.Empty(t, f.calendar.created)
	assert.Empty(t, f.accounts.cursorWrites)
}

func TestUpdateActivity(t *testing.T) {
	f := newFixture()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	activity := testActivity(42, start, 1800)
	f.activities.single[42] = &activity
	f.calendar.events[42] = "evt-42"

	err := f.o.UpdateActivity(context.Background(), f.bundle, 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"evt-42"}, f.calendar.updated)
	assert.Empty(t, f.calendar.created)

	// Single-activity update is sync-window-neutral
	assert.Empty(t, f.accounts.cursorWrites)
	assert.Nil(t, f.bundle.Strava.LastSyncedAt)
}

func TestUpdateActivity_CreatesWhenMissing(t *testing.T) {
	f := newFixture()
	activity := testActivity(42, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 1800)
	f.activities.single[42] = &activity

	err := f.o.UpdateActivity(context.Background(), f.bundle, 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, f.calendar.created)
}

func TestDeleteActivity(t *testing.T) {
	f := newFixture()
	f.calendar.events[42] = "evt-42"

	err := f.o.DeleteActivity(context.Background(), f.bundle, 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"evt-42"}, f.calendar.deleted)

	// Cursor rewound to start of the current day, UTC
	wantReset := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	require.Len(t, f.accounts.cursorWrites, 1)
	assert.Equal(t, wantReset, f.accounts.cursorWrites[0].at)
	require.NotNil(t, f.bundle.Strava.LastSyncedAt)
	assert.Equal(t, wantReset, *f.bundle.Strava.LastSyncedAt)
}

func TestDeleteActivity_NoEventIsSuccess(t *testing.T) {
	f := newFixture()

	err := f.o.DeleteActivity(context.Background(), f.bundle, 42)
	require.NoError(t, err)
	assert.Empty(t, f.calendar.deleted)

	// The cursor reset still happened
	require.Len(t, f.accounts.cursorWrites, 1)
}

func TestDeleteActivity_CursorResetSurvivesRemoteFailure(t *testing.T) {
	f := newFixture()
	f.calendar.events[42] = "evt-42"
	f.calendar.deleteErr = &syncerr.UpstreamError{Provider: "google", StatusCode: 500, Body: "backend error"}

	err := f.o.DeleteActivity(context.Background(), f.bundle, 42)
	require.Error(t, err)
	assert.Equal(t, syncerr.KindTransient, syncerr.KindOf(err))

	// Reset persisted before the delete was attempted
	wantReset := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	require.Len(t, f.accounts.cursorWrites, 1)
	assert.Equal(t, wantReset, f.accounts.cursorWrites[0].at)
}

func TestResolveCalendar_ResolvedOnceThenCached(t *testing.T) {
	f := newFixture()
	f.bundle.User.CalendarID = ""

	err := f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calendar.getOrCreateCalls)
	assert.Equal(t, []string{"cal-1"}, f.users.calendarWrites)
	assert.Equal(t, "cal-1", f.bundle.User.CalendarID)

	err = f.o.SyncActivities(context.Background(), f.bundle)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calendar.getOrCreateCalls)
}
