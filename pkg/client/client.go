// Package client is a Go client for the taskflow notification endpoints
// together with a local inbox mirror that stays consistent with the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	maxRetryWait      = 30 * time.Second
)

type tokenKey struct{}

// WithToken returns a context carrying the bearer token used for requests
// issued with it. Credentials never live on the Client itself.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Notification mirrors the server notification payload.
type Notification struct {
	ID          string         `json:"id"`
	Sender      *Person        `json:"sender"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	RelatedTask *TaskRef       `json:"related_task"`
	Read        bool           `json:"read"`
	ReadAt      *time.Time     `json:"read_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Person is the display projection of a user.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// TaskRef is the display projection of the task a notification refers to.
type TaskRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Page is one page of the inbox.
type Page struct {
	Items []Notification `json:"items"`
	Count int            `json:"count"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// HasMore reports whether pages after this one exist.
func (p *Page) HasMore() bool {
	return p != nil && p.Page < p.Pages
}

// ListOptions filters and paginates an inbox listing.
type ListOptions struct {
	Page  int
	Limit int
	Read  *bool
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("taskflow: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("taskflow: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

// Client talks to the notification endpoints of a taskflow server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets how often rate-limited or retryable failures are retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a client for the server rooted at baseURL
// (e.g. https://tasks.example.com).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListNotifications fetches one page of the caller's inbox.
func (c *Client) ListNotifications(ctx context.Context, opts ListOptions) (*Page, error) {
	query := url.Values{}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Read != nil {
		query.Set("read", strconv.FormatBool(*opts.Read))
	}

	path := "/api/notifications"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UnreadCount returns the authoritative unread count.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead marks one notification read and returns the server copy.
func (c *Client) MarkRead(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	if err := c.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkAllRead marks every unread notification read and returns how many changed.
func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/notifications/mark-all-read", nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := tokenFromContext(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return decodeData(respBody, result, method, path)
		}

		apiErr := decodeError(resp.StatusCode, respBody)
		if !shouldRetry(method, apiErr) || attempt == c.maxRetries {
			return apiErr
		}
		lastErr = apiErr

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfterDuration(resp, attempt)):
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func decodeData(body []byte, result any, method, path string) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("unmarshaling data from %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Retryable = env.Error.Retryable
	}
	if status == http.StatusTooManyRequests {
		apiErr.Retryable = true
	}
	return apiErr
}

// shouldRetry retries rate-limited requests for any method, since the server
// rejected them before doing work. A 503 may follow a committed write, so it
// is retried only for methods whose repetition is harmless.
func shouldRetry(method string, err *APIError) bool {
	if !err.Retryable {
		return false
	}
	switch err.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return method == http.MethodGet || method == http.MethodPut
	default:
		return false
	}
}

// retryAfterDuration honours Retry-After and otherwise backs off exponentially.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxRetryWait)
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	return min(backoff, maxRetryWait)
}
