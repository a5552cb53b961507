package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activitysync/ActivitySync/internal/pkg/strava"
)

func TestBuildEvent(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	activity := strava.Activity{
		ID:          42,
		Name:        "Morning Run",
		Distance:    1609.34,
		ElapsedTime: 1800,
		StartDate:   start,
		Timezone:    "(GMT-06:00) America/Chicago",
	}

	event := BuildEvent(activity)

	assert.Equal(t, "(1.0 mi) Morning Run", event.Summary)
	assert.Equal(t, "1.0 miles\nDuration: 0h 30m 0s\n\nView on Strava: https://www.strava.com/activities/42", event.Description)

	require.NotNil(t, event.Start)
	require.NotNil(t, event.End)
	assert.Equal(t, start.Format(time.RFC3339), event.Start.DateTime)
	assert.Equal(t, start.Add(30*time.Minute).Format(time.RFC3339), event.End.DateTime)
	assert.Equal(t, "America/Chicago", event.Start.TimeZone)
	assert.Equal(t, "America/Chicago", event.End.TimeZone)

	require.NotNil(t, event.ExtendedProperties)
	assert.Equal(t, "42", event.ExtendedProperties.Private[ActivityIDProperty])

	// UseDefault is a zero-value bool; without ForceSendFields the API
	// client would drop it from the request entirely.
	require.NotNil(t, event.Reminders)
	assert.True(t, event.Reminders.UseDefault)
	assert.Contains(t, event.Reminders.ForceSendFields, "UseDefault")
}

func TestBuildEvent_Deterministic(t *testing.T) {
	activity := strava.Activity{
		ID:          7,
		Name:        "Evening Ride",
		Distance:    32186.8,
		ElapsedTime: 5400,
		StartDate:   time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC),
		Timezone:    "(GMT+02:00) Europe/Berlin",
	}

	assert.Equal(t, BuildEvent(activity), BuildEvent(activity))
}

func TestEventEnd(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	activity := strava.Activity{StartDate: start, ElapsedTime: 3661}

	assert.Equal(t, start.Add(3661*time.Second), EventEnd(activity))
}

func TestFormatMiles(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0.0"},
		{1609.34, "1.0"},
		{2414.01, "1.5"},
		{3218.68, "2.0"},
		{8046.7, "5.0"},
		{1700, "1.06"},
		{100, "0.06"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMiles(tt.meters), "meters=%v", tt.meters)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0h 0m 0s"},
		{59, "0h 0m 59s"},
		{1800, "0h 30m 0s"},
		{3661, "1h 1m 1s"},
		{86400, "24h 0m 0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestNormalizeTimezone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(GMT-06:00) America/Chicago", "America/Chicago"},
		{"(GMT+02:00) Europe/Berlin", "Europe/Berlin"},
		{"America/Chicago", "America/Chicago"},
		{"", ""},
		{"(broken", "(broken"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTimezone(tt.in), "in=%q", tt.in)
	}
}
