// Package portero is a client SDK for a door-access control REST API:
// registration with wizard-style field validation, bearer-token sessions
// with rotating refresh tokens, and QR-driven door-open requests.
//
// The package is designed for concurrent callers: Client methods are safe
// to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// portero is the public surface. It exposes [Client], [Builder], [Config],
// and value types (Session, AccessRecord, etc.). Field validation lives in
// the validate subpackage, display/wire formatting in format, the
// registration wizard state machine in form, and durable credential
// storage in token. Subpackages never import portero (no import cycles).
//
// # What this package must NOT do
//
//   - Render UI, drive navigation, or capture images — it is the network
//     and validation layer only.
//   - Hash or otherwise interpret passwords; they pass through to the API.
//   - Perform I/O outside of Client methods (construction via Builder is
//     allocation-only until Build).
//
// # Session contract
//
// Every request carries the stored access token as a bearer credential.
// A 401 response triggers at most one transparent refresh-and-retry per
// request; concurrent 401s share a single in-flight refresh. When refresh
// itself fails the stored credentials are cleared, the session transitions
// to logged-out exactly once, and callers receive [ErrSessionExpired].
package portero
