package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Enabled        bool
	BaseURL        string
	CalendarID     string
	AccessToken    string
	RequestTimeout time.Duration
}

// Event is the subset of a Google Calendar event the clinic cares about.
type Event struct {
	Summary     string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	Attendees   []string
}

// Client wraps the Google Calendar REST API. All calls are best-effort
// from the caller's point of view: appointment state never depends on
// calendar success.
type Client struct {
	enabled        bool
	baseURL        string
	calendarID     string
	accessToken    string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		enabled:        config.Enabled,
		baseURL:        strings.TrimRight(config.BaseURL, "/"),
		calendarID:     config.CalendarID,
		accessToken:    config.AccessToken,
		requestTimeout: timeout,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// InsertEvent creates a calendar event and returns its id.
func (c *Client) InsertEvent(ctx context.Context, event *Event) (string, error) {
	if !c.enabled {
		return "", nil
	}

	attendees := make([]map[string]string, 0, len(event.Attendees))
	for _, email := range event.Attendees {
		attendees = append(attendees, map[string]string{"email": email})
	}

	payload := map[string]interface{}{
		"summary":     event.Summary,
		"description": event.Description,
		"start":       map[string]string{"dateTime": event.StartsAt.Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": event.EndsAt.Format(time.RFC3339)},
		"attendees":   attendees,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal calendar event: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	path := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, path, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var eventResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eventResp); err != nil {
		return "", fmt.Errorf("failed to decode calendar response: %w", err)
	}

	c.logger.Info("calendar event created", "event_id", eventResp.ID, "summary", event.Summary)

	return eventResp.ID, nil
}

// DeleteEvent removes a previously created event. A 404/410 from the API
// counts as success since the event is already gone.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if !c.enabled || eventID == "" {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	path := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		c.logger.Warn("calendar event already deleted", "event_id", eventID)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("calendar event deleted", "event_id", eventID)

	return nil
}
