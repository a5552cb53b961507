// Package gcal implements the Google Calendar sink: find, create, update
// and delete calendar events tagged with the originating activity id.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/activitysync/ActivitySync/internal/pkg/mapper"
	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

// Config carries the explicit sink configuration. Endpoint and HTTPClient
// exist so tests can point the client at a local fake.
type Config struct {
	CalendarName     string
	CalendarTimezone string
	CalendarColorID  string
	Endpoint         string
	HTTPClient       *http.Client
}

// Client wraps the Calendar API for a single target calendar name.
type Client struct {
	cfg Config
}

// NewClient creates a calendar sink client
func NewClient(cfg Config) *Client {
	if cfg.CalendarName == "" {
		cfg.CalendarName = "Strava"
	}
	if cfg.CalendarTimezone == "" {
		cfg.CalendarTimezone = "America/Chicago"
	}
	if cfg.CalendarColorID == "" {
		cfg.CalendarColorID = "4" // tangerine
	}
	return &Client{cfg: cfg}
}

func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}
	if c.cfg.HTTPClient != nil {
		opts = []option.ClientOption{option.WithHTTPClient(c.cfg.HTTPClient)}
	}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

// GetOrCreateCalendar returns the id of the target calendar, creating it on
// first use. The list-then-create sequence is not atomic; two racing callers
// can both create, and the per-account sync lock is what keeps that from
// happening in practice (last write wins otherwise).
func (c *Client) GetOrCreateCalendar(ctx context.Context, accessToken string) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}
	for _, entry := range list.Items {
		if strings.EqualFold(entry.Summary, c.cfg.CalendarName) {
			return entry.Id, nil
		}
	}

	created, err := svc.Calendars.Insert(&calendar.Calendar{
		Summary:  c.cfg.CalendarName,
		TimeZone: c.cfg.CalendarTimezone,
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}

	// The insert API does not accept a color; patch it afterwards,
	// best-effort.
	_, _ = svc.CalendarList.Patch(created.Id, &calendar.CalendarListEntry{
		ColorId: c.cfg.CalendarColorID,
	}).Context(ctx).Do()

	return created.Id, nil
}

// FindEventByActivityID returns the id of the event tagged with the given
// activity id, or "" when no such event exists.
func (c *Client) FindEventByActivityID(ctx context.Context, accessToken, calendarID string, activityID int64) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	events, err := svc.Events.List(calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%d", mapper.ActivityIDProperty, activityID)).
		SingleEvents(true).
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}
	if len(events.Items) == 0 {
		return "", nil
	}
	return events.Items[0].Id, nil
}

// CreateEvent inserts a new event and returns its id
func (c *Client) CreateEvent(ctx context.Context, accessToken, calendarID string, event *calendar.Event) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}
	return created.Id, nil
}

// UpdateEvent patches an existing event in place and returns its id
func (c *Client) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, event *calendar.Event) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	updated, err := svc.Events.Patch(calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}
	return updated.Id, nil
}

// DeleteEvent removes an event. Deleting an id that is already gone is
// treated as success.
func (c *Client) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return nil
		}
		return wrapGoogleError(err)
	}
	return nil
}

func wrapGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &syncerr.UpstreamError{Provider: "google", StatusCode: gerr.Code, Body: body}
	}
	return fmt.Errorf("calling google calendar: %w", err)
}
