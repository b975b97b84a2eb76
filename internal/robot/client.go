// Package robot is the client for the spy robot's control backend.
// A Client is constructed explicitly and passed to whoever needs it.
package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// APIError is a non-2xx response from the robot backend.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("robot: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the robot backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how many times 429 and 5xx responses are retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff overrides the delay before retry attempt n (1-based).
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = f }
}

// New creates a client for the backend at baseURL (e.g. http://spyrobot:5000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		maxRetries: 3,
		backoff:    exponentialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Logs returns the full mission log (spy_logs.json).
func (c *Client) Logs(ctx context.Context) ([]*model.Event, error) {
	var events []*model.Event
	if err := c.do(ctx, http.MethodGet, "/logs", nil, &events); err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}
	return events, nil
}

// Events returns the operator-created events (events.json).
func (c *Client) Events(ctx context.Context) ([]*model.Event, error) {
	var events []*model.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &events); err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	return events, nil
}

// AddEvent records an operator annotation and returns the stored event.
func (c *Client) AddEvent(ctx context.Context, description string) (*model.Event, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("adding event: empty description")
	}
	var resp struct {
		Message string       `json:"message"`
		Event   *model.Event `json:"event"`
	}
	if err := c.do(ctx, http.MethodPost, "/events", map[string]string{"description": description}, &resp); err != nil {
		return nil, fmt.Errorf("adding event: %w", err)
	}
	if resp.Event == nil {
		return nil, fmt.Errorf("adding event: response carried no event")
	}
	return resp.Event, nil
}

// Move sends a movement action at the given speed.
func (c *Client) Move(ctx context.Context, action Action, speed int) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	var resp messageResponse
	body := map[string]any{"action": string(action), "speed": speed}
	if err := c.do(ctx, http.MethodPost, "/movement", body, &resp); err != nil {
		return "", fmt.Errorf("sending %s: %w", action, err)
	}
	return resp.Message, nil
}

// SetSpeed changes the default movement speed.
func (c *Client) SetSpeed(ctx context.Context, speed int) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/speed", map[string]int{"speed": speed}, &resp); err != nil {
		return "", fmt.Errorf("setting speed: %w", err)
	}
	return resp.Message, nil
}

// Distance reads the ultrasonic sensor in centimetres.
func (c *Client) Distance(ctx context.Context) (float64, error) {
	var resp struct {
		Distance float64 `json:"distance"`
	}
	if err := c.do(ctx, http.MethodGet, "/distance", nil, &resp); err != nil {
		return 0, fmt.Errorf("reading distance: %w", err)
	}
	return resp.Distance, nil
}

// Status reports whether the robot has shut itself down.
func (c *Client) Status(ctx context.Context) (shutdown bool, err error) {
	var resp struct {
		Shutdown bool `json:"shutdown"`
	}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return false, fmt.Errorf("reading status: %w", err)
	}
	return resp.Shutdown, nil
}

// Latest returns the newest recording file name, or "" when there is none.
func (c *Client) Latest(ctx context.Context) (string, error) {
	var resp struct {
		Latest *string `json:"latest"`
	}
	if err := c.do(ctx, http.MethodGet, "/latest", nil, &resp); err != nil {
		return "", fmt.Errorf("reading latest recording: %w", err)
	}
	if resp.Latest == nil {
		return "", nil
	}
	return *resp.Latest, nil
}

// RecordingURL is where the backend serves a recording file.
func (c *Client) RecordingURL(name string) string {
	return c.baseURL + "/recordings/" + name
}

// PlaySound plays a random distraction sound on the robot.
func (c *Client) PlaySound(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/play-sound", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("playing sound: %w", err)
	}
	return resp.Message, nil
}

// Dead puts all legs up.
func (c *Client) Dead(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/dead", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("playing dead: %w", err)
	}
	return resp.Message, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// do sends a request and decodes a JSON response into dest.
// 429 responses are retried honouring Retry-After. 5xx responses are
// retried for GET only; commands may have partly run on the robot.
func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	var lastErr *APIError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			if lastErr != nil && lastErr.retryAfter != "" {
				if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if dest == nil || len(bytes.TrimSpace(data)) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, dest); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			return nil
		}

		bodyStr := string(data)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 && method == http.MethodGet {
			lastErr = apiErr
			continue
		}
		return apiErr
	}
	return lastErr
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}
