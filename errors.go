package portero

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the access client.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionExpired is an exported constant or variable used by the access client.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrRefreshTokenMissing is an exported constant or variable used by the access client.
	ErrRefreshTokenMissing = errors.New("refresh token not found")
	// ErrInvalidCredentials is an exported constant or variable used by the access client.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserBlocked is an exported constant or variable used by the access client.
	ErrUserBlocked = errors.New("user blocked")
	// ErrAccountInactive is an exported constant or variable used by the access client.
	ErrAccountInactive = errors.New("account pending activation")
	// ErrEmailTaken is an exported constant or variable used by the access client.
	ErrEmailTaken = errors.New("email already registered")
	// ErrEmailCheckFailed is an exported constant or variable used by the access client.
	ErrEmailCheckFailed = errors.New("email availability check failed")
	// ErrNotFound is an exported constant or variable used by the access client.
	ErrNotFound = errors.New("resource not found")
	// ErrNotLoggedIn is an exported constant or variable used by the access client.
	ErrNotLoggedIn = errors.New("no active session")
	// ErrActivationInvalid is an exported constant or variable used by the access client.
	ErrActivationInvalid = errors.New("invalid activation code")
	// ErrDoorRejected is an exported constant or variable used by the access client.
	ErrDoorRejected = errors.New("door access rejected")
	// ErrClientNotReady is an exported constant or variable used by the access client.
	ErrClientNotReady = errors.New("client not initialized")
)
