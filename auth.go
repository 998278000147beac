package portero

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/luventi/portero/token"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if err := c.ready(); err != nil {
		return LoginResult{}, err
	}

	var result LoginResult

	err := c.do(ctx, http.MethodPost, "/login", loginRequest{
		Email:    strings.TrimSpace(strings.ToLower(email)),
		Password: password,
	}, &result)
	if err != nil {
		mapped := mapLoginError(err)
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLogin, false, "", mapped, nil)
		return LoginResult{}, mapped
	}

	if result.AccessToken == "" || result.RefreshToken == "" {
		c.metricInc(MetricLoginFailure)
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := c.tokens.Save(ctx, token.Pair{
		Access:  result.AccessToken,
		Refresh: result.RefreshToken,
	}); err != nil {
		c.metricInc(MetricLoginFailure)
		return LoginResult{}, err
	}

	c.mu.Lock()
	c.session = Session{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
	c.mu.Unlock()

	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLogin, true, c.sessionUserID(), nil, nil)

	return result, nil
}

// mapLoginError folds the server's free-text login rejections onto the
// sentinel taxonomy. Matching is by substring because the API reports all
// three cases with the same status code.
func mapLoginError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case strings.Contains(apiErr.Message, "Usuário bloqueado"):
		return ErrUserBlocked
	case strings.Contains(apiErr.Message, "Conta inativa"):
		return ErrAccountInactive
	case strings.Contains(apiErr.Message, "Credenciais inválidas"):
		return ErrInvalidCredentials
	case apiErr.StatusCode == http.StatusUnauthorized,
		apiErr.StatusCode == http.StatusForbidden:
		return ErrInvalidCredentials
	default:
		return err
	}
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}

	userID := c.sessionUserID()

	if err := c.tokens.Clear(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()

	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)

	return nil
}

// Refresh forces an immediate token rotation outside the transport's 401
// path. Most callers never need it; it exists for warm-up after restoring
// a persisted session.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	_, err := c.refreshTokens(ctx)
	return err
}

// RestoreSession rehydrates the in-memory session from the durable token
// store, then loads the profile for the given user id. Used on process
// start when a previous login persisted its pair.
func (c *Client) RestoreSession(ctx context.Context, userID string) (Session, error) {
	if err := c.ready(); err != nil {
		return Session{}, err
	}

	pair, err := c.tokens.Load(ctx)
	if err != nil {
		if errors.Is(err, token.ErrNoCredentials) {
			return Session{}, ErrNotLoggedIn
		}
		return Session{}, err
	}

	c.mu.Lock()
	c.session = Session{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}
	c.mu.Unlock()

	user, err := c.User(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	c.mu.Lock()
	c.session.User = &user
	restored := c.session
	c.mu.Unlock()

	return restored, nil
}
