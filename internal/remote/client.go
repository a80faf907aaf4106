// Package remote drives a narrator daemon over its HTTP API.
package remote

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

	"github.com/dgnsrekt/narrator/internal/api"
	"github.com/dgnsrekt/narrator/internal/narration"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("narrator api: status %d", e.Status)
	}
	return fmt.Sprintf("narrator api: status %d: %s", e.Status, e.Message)
}

// IsConflict reports whether err is a 409 from the daemon, which it returns
// for commands that do not apply in the current phase.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// Client talks to the narrator HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Start begins narrating a stored document or inline text.
func (c *Client) Start(ctx context.Context, req api.StartRequest) (narration.Snapshot, error) {
	var snap narration.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/narration/start", req, &snap)
	return snap, err
}

// Toggle pauses or resumes playback.
func (c *Client) Toggle(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "toggle")
}

// Stop ends the session.
func (c *Client) Stop(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "stop")
}

// SkipForward moves to the next chunk.
func (c *Client) SkipForward(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "skip-forward")
}

// SkipBackward moves to the previous chunk.
func (c *Client) SkipBackward(ctx context.Context) (narration.Snapshot, error) {
	return c.command(ctx, "skip-backward")
}

// Snapshot returns the current narration state.
func (c *Client) Snapshot(ctx context.Context) (narration.Snapshot, error) {
	var snap narration.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/narration", nil, &snap)
	return snap, err
}

// Events returns the recorded timeline of a session, or of the latest one
// when sessionID is empty.
func (c *Client) Events(ctx context.Context, sessionID string, limit int) (api.EventsResponse, error) {
	q := url.Values{}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/narration/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp api.EventsResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) command(ctx context.Context, name string) (narration.Snapshot, error) {
	var snap narration.Snapshot
	err := c.do(ctx, http.MethodPost, "/v1/narration/"+name, nil, &snap)
	return snap, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
