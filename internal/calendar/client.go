package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Client is a JSON REST client for the calendar backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a calendar API client.
func NewClient(baseURL, apiKey string, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Service = (*Client)(nil)

// ListBusy returns occupied intervals between from and to.
func (c *Client) ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]BusyInterval, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	path := fmt.Sprintf("/v1/calendars/%s/busy?%s", url.PathEscape(calendarID), q.Encode())

	var resp struct {
		Busy []BusyInterval `json:"busy"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("calendar: list busy: %w", err)
	}
	return resp.Busy, nil
}

// InsertEvent books a job on the calendar.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev Event) (Event, error) {
	path := fmt.Sprintf("/v1/calendars/%s/events", url.PathEscape(calendarID))

	var created Event
	if err := c.do(ctx, http.MethodPost, path, ev, &created); err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	return created, nil
}

// DeleteEvent removes a booked job from the calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	path := fmt.Sprintf("/v1/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

// SearchEvents returns events between from and to, optionally narrowed by a
// free-text query.
func (c *Client) SearchEvents(ctx context.Context, calendarID string, from, to time.Time, query string) ([]Event, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	if query != "" {
		q.Set("q", query)
	}
	path := fmt.Sprintf("/v1/calendars/%s/events?%s", url.PathEscape(calendarID), q.Encode())

	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("calendar: search events: %w", err)
	}
	return resp.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		c.logger.Warn("calendar backend error", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
