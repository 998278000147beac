// Package token persists the access/refresh credential pair between
// process runs. The pair is stored and cleared atomically: callers never
// observe an access token without its refresh counterpart.
package token

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredentials is an exported constant or variable used by the access client.
var ErrNoCredentials = errors.New("no stored credentials")

// ErrHalfPair is an exported constant or variable used by the access client.
var ErrHalfPair = errors.New("token pair requires both access and refresh tokens")

// Pair defines a public type used by portero APIs.
//
// Pair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Pair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Store defines a public type used by portero APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Load returns ErrNoCredentials when nothing is stored. Save rejects
// half-pairs. Clear is idempotent.
type Store interface {
	Load(ctx context.Context) (Pair, error)
	Save(ctx context.Context, pair Pair) error
	Clear(ctx context.Context) error
}

// MemoryStore defines a public type used by portero APIs.
//
// MemoryStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MemoryStore struct {
	mu   sync.Mutex
	pair Pair
	set  bool
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore may return an error when input validation, dependency calls, or security checks fail.
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load describes the load operation and its observable behavior.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) Load(ctx context.Context) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Pair{}, ErrNoCredentials
	}
	return s.pair, nil
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) Save(ctx context.Context, pair Pair) error {
	if pair.Access == "" || pair.Refresh == "" {
		return ErrHalfPair
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.set = true
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.set = false
	return nil
}
