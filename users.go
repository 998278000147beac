package portero

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/luventi/portero/form"
)

// EmailExists describes the emailexists operation and its observable behavior.
//
// EmailExists may return an error when input validation, dependency calls, or security checks fail.
// EmailExists does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) EmailExists(ctx context.Context, email string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/usuarios/email/"+url.PathEscape(email), nil, nil)
	if err == nil {
		c.metricInc(MetricEmailCheckTaken)
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		// 404 means the address is free to register.
		c.metricInc(MetricEmailCheckAvailable)
		return false, nil
	}
	c.metricInc(MetricEmailCheckFailure)
	return false, fmt.Errorf("%w: %v", ErrEmailCheckFailed, err)
}

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Account creation and the follow-up activation code request run strictly
// in sequence. A failed code request does not fail the registration: the
// account already exists server-side and the code can be re-requested.
func (c *Client) Register(ctx context.Context, reg form.Registration) (RegisterResult, error) {
	var created User

	err := c.do(ctx, http.MethodPost, "/usuarios/", reg, &created)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			err = ErrEmailTaken
		}
		c.metricInc(MetricRegistrationFailure)
		c.emitAudit(ctx, auditEventRegistration, false, "", err, nil)
		return RegisterResult{}, err
	}

	c.metricInc(MetricRegistrationSuccess)
	c.emitAudit(ctx, auditEventRegistration, true, created.ID, nil, nil)

	result := RegisterResult{
		User:  created,
		Email: reg.Email,
	}

	if c.config.Registration.RequestActivationCode {
		if err := c.RequestActivationCode(ctx, reg.Email); err != nil {
			logf("activation code request failed after registration: %v", err)
		} else {
			result.CodeSent = true
		}
	}

	return result, nil
}

// NewRegistrationWizard builds a wizard wired to this client: the email
// availability gate runs through EmailExists and Finish submits through
// Register. Options are applied after the client defaults.
func (c *Client) NewRegistrationWizard(opts ...form.Option) *form.Wizard {
	base := []form.Option{
		form.WithMinimumAge(c.config.Registration.MinimumAge),
		form.WithSubmitter(form.SubmitterFunc(func(ctx context.Context, reg form.Registration) error {
			_, err := c.Register(ctx, reg)
			return err
		})),
	}
	return form.NewWizard(c, append(base, opts...)...)
}

type emailPayload struct {
	Email string `json:"email"`
}

// RequestActivationCode describes the requestactivationcode operation and its observable behavior.
//
// RequestActivationCode may return an error when input validation, dependency calls, or security checks fail.
// RequestActivationCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) RequestActivationCode(ctx context.Context, email string) error {
	if err := c.do(ctx, http.MethodPost, "/codigo-ativacao", emailPayload{Email: email}, nil); err != nil {
		c.metricInc(MetricActivationCodeSendFailed)
		c.emitAudit(ctx, auditEventActivationCode, false, "", err, nil)
		return err
	}
	c.metricInc(MetricActivationCodeRequested)
	c.emitAudit(ctx, auditEventActivationCode, true, "", nil, nil)
	return nil
}

type activationRequest struct {
	Email string `json:"email"`
	Code  string `json:"codigoAtivacao"`
}

// ActivateAccount describes the activateaccount operation and its observable behavior.
//
// ActivateAccount may return an error when input validation, dependency calls, or security checks fail.
// ActivateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) ActivateAccount(ctx context.Context, email, code string) error {
	err := c.do(ctx, http.MethodPost, "/ativar-usuario", activationRequest{Email: email, Code: code}, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			err = ErrActivationInvalid
		}
		c.metricInc(MetricActivationFailure)
		c.emitAudit(ctx, auditEventActivation, false, "", err, nil)
		return err
	}
	c.metricInc(MetricActivationSuccess)
	c.emitAudit(ctx, auditEventActivation, true, "", nil, nil)
	return nil
}

// RequestPasswordCode describes the requestpasswordcode operation and its observable behavior.
//
// RequestPasswordCode may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) RequestPasswordCode(ctx context.Context, email string) error {
	if err := c.do(ctx, http.MethodPost, "/codigo-senha", emailPayload{Email: email}, nil); err != nil {
		c.metricInc(MetricPasswordResetFailure)
		return err
	}
	c.metricInc(MetricPasswordResetRequest)
	return nil
}

type passwordCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"codigoSenha"`
}

// ConfirmPasswordCode describes the confirmpasswordcode operation and its observable behavior.
//
// ConfirmPasswordCode may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) ConfirmPasswordCode(ctx context.Context, email, code string) error {
	err := c.do(ctx, http.MethodPut, "/confirmar-codigo-senha", passwordCodeRequest{Email: email, Code: code}, nil)
	if err != nil {
		c.metricInc(MetricPasswordResetFailure)
		return err
	}
	return nil
}

type recoverPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// RecoverPassword describes the recoverpassword operation and its observable behavior.
//
// RecoverPassword may return an error when input validation, dependency calls, or security checks fail.
// RecoverPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) RecoverPassword(ctx context.Context, email, newPassword string) error {
	err := c.do(ctx, http.MethodPut, "/recuperar-senha", recoverPasswordRequest{Email: email, Password: newPassword}, nil)
	if err != nil {
		c.metricInc(MetricPasswordResetFailure)
		c.emitAudit(ctx, auditEventPasswordReset, false, "", err, nil)
		return err
	}
	c.metricInc(MetricPasswordResetSuccess)
	c.emitAudit(ctx, auditEventPasswordReset, true, "", nil, nil)
	return nil
}

type updatePasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"senhaAtual"`
	NewPassword string `json:"novaSenha"`
}

// UpdatePassword describes the updatepassword operation and its observable behavior.
//
// UpdatePassword may return an error when input validation, dependency calls, or security checks fail.
// UpdatePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) UpdatePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	err := c.do(ctx, http.MethodPut, "/atualizar-senha", updatePasswordRequest{
		Email:       email,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	}, nil)
	if err != nil {
		c.metricInc(MetricPasswordResetFailure)
		c.emitAudit(ctx, auditEventPasswordReset, false, c.sessionUserID(), err, nil)
		return err
	}
	c.metricInc(MetricPasswordResetSuccess)
	c.emitAudit(ctx, auditEventPasswordReset, true, c.sessionUserID(), nil, nil)
	return nil
}

// User describes the user operation and its observable behavior.
//
// User may return an error when input validation, dependency calls, or security checks fail.
// User does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) User(ctx context.Context, id string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/usuarios/"+url.PathEscape(id), nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUser describes the updateuser operation and its observable behavior.
//
// UpdateUser may return an error when input validation, dependency calls, or security checks fail.
// UpdateUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) UpdateUser(ctx context.Context, id string, update UserUpdate) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/usuarios/"+url.PathEscape(id), update, &user); err != nil {
		return User{}, err
	}

	c.mu.Lock()
	if c.session.User != nil && c.session.User.ID == user.ID {
		refreshed := user
		c.session.User = &refreshed
	}
	c.mu.Unlock()

	return user, nil
}

// DeleteUser describes the deleteuser operation and its observable behavior.
//
// DeleteUser may return an error when input validation, dependency calls, or security checks fail.
// DeleteUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Deletion is soft server-side; the ack message states the retention
// window before the account is purged.
func (c *Client) DeleteUser(ctx context.Context, id string) (DeletionAck, error) {
	var ack DeletionAck
	if err := c.do(ctx, http.MethodDelete, "/usuarios/"+url.PathEscape(id), nil, &ack); err != nil {
		return DeletionAck{}, err
	}
	return ack, nil
}

type updateImageRequest struct {
	Email string `json:"email"`
	Image string `json:"imgUsuario"`
}

// UpdateImage describes the updateimage operation and its observable behavior.
//
// UpdateImage may return an error when input validation, dependency calls, or security checks fail.
// UpdateImage does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) UpdateImage(ctx context.Context, email, image string) error {
	return c.do(ctx, http.MethodPut, "/atualizar-imagem", updateImageRequest{
		Email: email,
		Image: image,
	}, nil)
}
