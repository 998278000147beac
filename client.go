package portero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/luventi/portero/token"
)

// Client defines a public type used by portero APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	config   Config
	base     *url.URL
	httpc    *http.Client
	tokens   token.Store
	audit    *auditDispatcher
	metrics  *Metrics
	deviceID string

	onSessionExpired func()

	mu      sync.Mutex
	session Session

	// refresh single-flight state. All requests that hit 401 concurrently
	// wait on the same in-flight refresh instead of racing the rotating
	// refresh token against itself.
	refreshMu       sync.Mutex
	refreshInFlight chan struct{}
	refreshedAccess string
	refreshErr      error
}

// APIError is a structured error decoded from a non-2xx API response.
// Details carries the per-field messages of a 400 validation response.
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]string
}

// Error describes the error operation and its observable behavior.
//
// Error may return an error when input validation, dependency calls, or security checks fail.
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, k := range sortedKeys(e.Details) {
			parts = append(parts, e.Details[k])
		}
		return fmt.Sprintf("api status %d: %s", e.StatusCode, strings.Join(parts, ", "))
	}
	if e.Message != "" {
		return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api status %d", e.StatusCode)
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap may return an error when input validation, dependency calls, or security checks fail.
// Unwrap does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// Session describes the session operation and its observable behavior.
//
// Session may return an error when input validation, dependency calls, or security checks fail.
// Session does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// DeviceID describes the deviceid operation and its observable behavior.
//
// DeviceID may return an error when input validation, dependency calls, or security checks fail.
// DeviceID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

// ready guards against zero-value or nil clients that skipped Builder.Build.
func (c *Client) ready() error {
	if c == nil || c.httpc == nil || c.base == nil {
		return ErrClientNotReady
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	ref := &url.URL{Path: path}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.API.UserAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.config.API.ServiceToken != "" {
		// Anonymous default credential; the transport replaces it with a
		// bearer token once a session exists.
		req.Header.Set("Authorization", c.config.API.ServiceToken)
	}

	return req, nil
}

// do issues a JSON request through the authenticated transport and decodes
// a 2xx body into out (when out is non-nil). Non-2xx responses are
// returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.ready(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrapURLError strips the *url.Error layer added by http.Client so that
// sentinel errors raised inside the transport (ErrSessionExpired and
// friends) survive errors.Is checks and read cleanly in messages.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		switch {
		case errors.Is(uerr.Err, ErrSessionExpired),
			errors.Is(uerr.Err, ErrRefreshTokenMissing):
			return uerr.Err
		}
	}
	return err
}

type apiErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		var body apiErrorBody
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Message = body.Message
			if apiErr.Message == "" {
				apiErr.Message = body.Error
			}
			apiErr.Details = body.Errors
		}
	}

	return apiErr
}
