// Package mapper converts Strava activities into Google Calendar events.
// Pure transformations only: no network access, no side effects.
package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/activitysync/ActivitySync/internal/pkg/strava"
)

const (
	metersPerMile = 1609.34

	// ActivityIDProperty is the private extended property carrying the
	// originating activity id. It is the sole correlation key between the
	// two systems; there is no local activity->event table.
	ActivityIDProperty = "strava_activity_id"

	activityLinkBase = "https://www.strava.com/activities/"
)

// BuildEvent maps a Strava activity to its calendar event representation.
// Deterministic: the same activity always yields the same event.
func BuildEvent(a strava.Activity) *calendar.Event {
	miles := FormatMiles(a.Distance)
	start := a.StartDate
	end := EventEnd(a)
	tz := NormalizeTimezone(a.Timezone)

	return &calendar.Event{
		Summary: fmt.Sprintf("(%s mi) %s", miles, a.Name),
		Description: fmt.Sprintf(
			"%s miles\nDuration: %s\n\nView on Strava: %s%d",
			miles, FormatDuration(a.ElapsedTime), activityLinkBase, a.ID,
		),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: tz,
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      true,
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				ActivityIDProperty: strconv.FormatInt(a.ID, 10),
			},
		},
	}
}

// EventEnd returns the end of the activity's time window
func EventEnd(a strava.Activity) time.Time {
	return a.StartDate.Add(time.Duration(a.ElapsedTime) * time.Second)
}

// FormatMiles converts a distance in meters to miles rounded to two
// decimals, keeping at least one decimal place ("1.0", not "1").
func FormatMiles(meters float64) string {
	miles := math.Round(meters/metersPerMile*100) / 100
	s := strconv.FormatFloat(miles, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatDuration renders elapsed seconds as "<H>h <M>m <S>s"
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	remainder := seconds % 3600
	minutes := remainder / 60
	secs := remainder % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
}

// NormalizeTimezone strips Strava's offset prefix, e.g.
// "(GMT-06:00) America/Chicago" -> "America/Chicago". Google rejects the
// prefixed form.
func NormalizeTimezone(tz string) string {
	if strings.HasPrefix(tz, "(") {
		if idx := strings.Index(tz, ") "); idx >= 0 {
			return tz[idx+2:]
		}
	}
	return tz
}
