package portero

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines a public type used by portero APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API          APIConfig
	Auth         AuthConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig defines a public type used by portero APIs.
//
// APIConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
	// ServiceToken is the static authorization value sent on anonymous
	// requests (login, refresh, registration) before a bearer token exists.
	ServiceToken string
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig defines a public type used by portero APIs.
//
// AuthConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuthConfig struct {
	RefreshPath string
	// ProactiveRefresh refreshes before issuing a request whose stored
	// access token is already expired, instead of waiting for the 401.
	ProactiveRefresh bool
	// ExpirySkew widens the ProactiveRefresh expiry check.
	ExpirySkew time.Duration
}

// RegistrationConfig defines a public type used by portero APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	MinimumAge int
	// RequestActivationCode controls the best-effort code request issued
	// after a successful account creation.
	RequestActivationCode bool
}

// AuditConfig defines a public type used by portero APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by portero APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			RequestTimeout: 30 * time.Second,
			UserAgent:      "portero-go",
		},
		Auth: AuthConfig{
			RefreshPath:      "/login/refresh",
			ProactiveRefresh: false,
			ExpirySkew:       10 * time.Second,
		},
		Registration: RegistrationConfig{
			MinimumAge:            12,
			RequestActivationCode: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if c.API.RequestTimeout < 0 {
		return errors.New("API RequestTimeout must not be negative")
	}
	if strings.TrimSpace(c.Auth.RefreshPath) == "" {
		return errors.New("Auth RefreshPath is required")
	}
	if !strings.HasPrefix(c.Auth.RefreshPath, "/") {
		return errors.New("Auth RefreshPath must be rooted")
	}
	if c.Auth.ExpirySkew < 0 {
		return errors.New("Auth ExpirySkew must not be negative")
	}
	if c.Registration.MinimumAge < 0 {
		return errors.New("Registration MinimumAge must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone exists so later slice or
	// map fields cannot alias caller state.
	return cfg
}
