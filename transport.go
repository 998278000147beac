package portero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luventi/portero/token"
)

// authTransport implements the session contract around every outbound
// request: bearer injection from the durable token store, a single
// transparent refresh-and-retry on 401, and forced logout when the refresh
// itself fails. Requests that never carried a bearer token (login,
// registration, the refresh call itself) pass through untouched so an
// invalid-credentials 401 is never mistaken for an expired session.
type authTransport struct {
	next   http.RoundTripper
	client *Client
}

// RoundTrip describes the roundtrip operation and its observable behavior.
//
// RoundTrip may return an error when input validation, dependency calls, or security checks fail.
// RoundTrip does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client

	pair, err := c.tokens.Load(req.Context())
	hasToken := err == nil && pair.Access != ""
	if hasToken && c.config.Auth.ProactiveRefresh && accessExpired(pair.Access, c.config.Auth.ExpirySkew) {
		fresh, rerr := c.refreshTokens(req.Context())
		if rerr != nil {
			// Refresh already forced logout; surface the expiry here
			// instead of issuing a request that is known to fail.
			return nil, ErrSessionExpired
		}
		pair.Access = fresh
	}
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+pair.Access)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || !hasToken {
		return resp, nil
	}

	// At most one retry per original request.
	access, err := c.refreshTokens(req.Context())
	if err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, ErrSessionExpired
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	retry.Header.Set("Authorization", "Bearer "+access)
	c.metricInc(MetricRequestRetried)
	return t.next.RoundTrip(retry)
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody == nil {
		return retry, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func accessExpired(access string, skew time.Duration) bool {
	exp, err := token.AccessExpiry(access)
	if err != nil {
		return false
	}
	return time.Now().Add(skew).After(exp)
}

// refreshTokens rotates the stored credential pair. Concurrent callers
// share one in-flight refresh; every waiter observes the same outcome.
func (c *Client) refreshTokens(ctx context.Context) (string, error) {
	c.refreshMu.Lock()
	if ch := c.refreshInFlight; ch != nil {
		c.refreshMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		c.refreshMu.Lock()
		access, err := c.refreshedAccess, c.refreshErr
		c.refreshMu.Unlock()
		return access, err
	}
	ch := make(chan struct{})
	c.refreshInFlight = ch
	c.refreshMu.Unlock()

	access, err := c.doRefresh(ctx)

	c.refreshMu.Lock()
	c.refreshedAccess, c.refreshErr = access, err
	c.refreshInFlight = nil
	c.refreshMu.Unlock()
	close(ch)

	return access, err
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	pair, err := c.tokens.Load(ctx)
	if err != nil || pair.Refresh == "" {
		// No refresh token: fail immediately, no network call.
		c.expireSession(ctx, ErrRefreshTokenMissing)
		return "", ErrRefreshTokenMissing
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.config.Auth.RefreshPath, refreshRequest{RefreshToken: pair.Refresh})
	if err != nil {
		return "", err
	}

	// The refresh call bypasses the auth transport: it must not carry the
	// stale bearer token and must never trigger a nested refresh.
	resp, err := (&http.Client{
		Transport: baseTransport(c.httpc),
		Timeout:   c.httpc.Timeout,
	}).Do(req)
	if err != nil {
		c.metricInc(MetricRefreshFailure)
		c.expireSession(ctx, err)
		return "", ErrSessionExpired
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.metricInc(MetricRefreshFailure)
		c.expireSession(ctx, fmt.Errorf("refresh rejected with status %d", resp.StatusCode))
		return "", ErrSessionExpired
	}

	var rotated refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil || rotated.AccessToken == "" || rotated.RefreshToken == "" {
		c.metricInc(MetricRefreshFailure)
		c.expireSession(ctx, fmt.Errorf("refresh returned malformed token pair"))
		return "", ErrSessionExpired
	}

	if err := c.tokens.Save(ctx, token.Pair{Access: rotated.AccessToken, Refresh: rotated.RefreshToken}); err != nil {
		c.metricInc(MetricRefreshFailure)
		c.expireSession(ctx, err)
		return "", ErrSessionExpired
	}

	c.mu.Lock()
	c.session.AccessToken = rotated.AccessToken
	c.session.RefreshToken = rotated.RefreshToken
	c.mu.Unlock()

	c.metricInc(MetricRefreshSuccess)
	c.emitAudit(ctx, auditEventRefreshSuccess, true, c.sessionUserID(), nil, nil)

	return rotated.AccessToken, nil
}

// expireSession clears durable credentials and dispatches the logged-out
// transition. The single-flight refresh guarantees at most one expiry per
// failed rotation, no matter how many requests hit 401 together.
func (c *Client) expireSession(ctx context.Context, cause error) {
	userID := c.sessionUserID()

	if err := c.tokens.Clear(ctx); err != nil {
		logf("token clear failed during session expiry")
	}

	c.mu.Lock()
	wasLoggedIn := c.session.LoggedIn() || c.session.User != nil
	c.session = Session{}
	c.mu.Unlock()

	if !wasLoggedIn {
		return
	}

	c.metricInc(MetricSessionExpired)
	c.emitAudit(ctx, auditEventSessionExpired, false, userID, cause, nil)
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (c *Client) sessionUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.User == nil {
		return ""
	}
	return c.session.User.ID
}

func baseTransport(httpc *http.Client) http.RoundTripper {
	if at, ok := httpc.Transport.(*authTransport); ok {
		return at.next
	}
	if httpc.Transport != nil {
		return httpc.Transport
	}
	return http.DefaultTransport
}
