package portero

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/luventi/portero/token"
)

// Builder defines a public type used by portero APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	httpc  *http.Client
	tokens token.Store

	auditSink        AuditSink
	onSessionExpired func()
	deviceID         string

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL describes the withbaseurl operation and its observable behavior.
//
// WithBaseURL may return an error when input validation, dependency calls, or security checks fail.
// WithBaseURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient may return an error when input validation, dependency calls, or security checks fail.
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(httpc *http.Client) *Builder {
	b.httpc = httpc
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore may return an error when input validation, dependency calls, or security checks fail.
// WithTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenStore(store token.Store) *Builder {
	b.tokens = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithSessionExpiredHandler registers the callback fired exactly once per
// forced logout (refresh failure or missing refresh token).
func (b *Builder) WithSessionExpiredHandler(fn func()) *Builder {
	b.onSessionExpired = fn
	return b
}

// WithDeviceID describes the withdeviceid operation and its observable behavior.
//
// WithDeviceID may return an error when input validation, dependency calls, or security checks fail.
// WithDeviceID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithDeviceID(id string) *Builder {
	b.deviceID = id
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	deviceID := b.deviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	tokens := b.tokens
	if tokens == nil {
		tokens = token.NewMemoryStore()
	}

	client := &Client{
		config:           cfg,
		base:             base,
		tokens:           tokens,
		deviceID:         deviceID,
		onSessionExpired: b.onSessionExpired,
	}

	httpc := b.httpc
	if httpc == nil {
		httpc = &http.Client{}
	}
	next := httpc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	timeout := httpc.Timeout
	if timeout == 0 {
		timeout = cfg.API.RequestTimeout
	}
	client.httpc = &http.Client{
		Transport: &authTransport{next: next, client: client},
		Timeout:   timeout,
	}

	client.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	client.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return client, nil
}
