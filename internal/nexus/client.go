package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userAgent = "nexus-console/1.0"

// Endpoint paths on the status service.
const (
	PathStart        = "/api/start"
	PathStop         = "/api/stop"
	PathStatus       = "/api/status"
	PathQuery        = "/api/query"
	PathActivities   = "/api/activities"
	PathToggleFocus  = "/api/toggle_focus"
	PathDismissAlert = "/api/dismiss_alert"
	PathSynthesis    = "/api/synthesis"
)

// ErrNotOK is returned when a start/stop call answers without status "ok".
var ErrNotOK = errors.New("service did not acknowledge request")

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Body)
}

// Client talks to a NEXUS status service over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a Client for baseURL. token may be empty; timeout bounds
// every individual request.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Start(ctx context.Context) error {
	return c.postAck(ctx, PathStart)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.postAck(ctx, PathStop)
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, PathStatus, nil, &resp)
	return resp, err
}

func (c *Client) Query(ctx context.Context, query string) (string, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, PathQuery, QueryRequest{Query: query}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Client) Activities(ctx context.Context) ([]ActivityRecord, error) {
	var resp ActivitiesResponse
	if err := c.do(ctx, http.MethodGet, PathActivities, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

// ToggleFocus flips focus mode and returns the server's new value.
func (c *Client) ToggleFocus(ctx context.Context) (bool, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, PathToggleFocus, nil, &resp); err != nil {
		return false, err
	}
	return resp.IsFocusMode, nil
}

func (c *Client) DismissAlert(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathDismissAlert, nil, nil)
}

func (c *Client) Synthesis(ctx context.Context) (Synthesis, error) {
	var resp Synthesis
	err := c.do(ctx, http.MethodGet, PathSynthesis, nil, &resp)
	return resp, err
}

func (c *Client) postAck(ctx context.Context, path string) error {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("%s: %w (status %q)", path, ErrNotOK, resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}
