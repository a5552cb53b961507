package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/activitysync/ActivitySync/internal/pkg/syncerr"
)

const (
	DefaultBaseURL = "https://www.strava.com/api/v3"

	// Strava returns the most recent activities first; one page is enough
	// for the incremental pull because the cursor bounds the window.
	defaultPerPage = 10
)

// Activity is the subset of the Strava activity resource the engine needs.
// Read-only to this system.
type Activity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Distance    float64   `json:"distance"`     // meters
	ElapsedTime int64     `json:"elapsed_time"` // seconds
	StartDate   time.Time `json:"start_date"`
	Timezone    string    `json:"timezone"`
}

// Config carries the explicit client configuration; no package-level state.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Strava REST API. It performs no local retries; retry
// policy lives in the orchestrator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Strava API client
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: base, http: httpClient}
}

// ListActivities fetches the athlete's recent activities, newest first.
// after is a Unix timestamp (seconds) and is omitted on the first-ever sync.
func (c *Client) ListActivities(ctx context.Context, accessToken string, after *int64) ([]Activity, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(defaultPerPage))
	if after != nil {
		params.Set("after", strconv.FormatInt(*after, 10))
	}

	var activities []Activity
	if err := c.get(ctx, accessToken, "/athlete/activities?"+params.Encode(), &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity fetches full details of a single activity by its ID
func (c *Client) GetActivity(ctx context.Context, accessToken string, id int64) (*Activity, error) {
	var activity Activity
	if err := c.get(ctx, accessToken, fmt.Sprintf("/activities/%d", id), &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building strava request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling strava: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &syncerr.UpstreamError{Provider: "strava", StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding strava response: %w", err)
	}
	return nil
}
