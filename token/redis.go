package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the access client.
var ErrRedisUnavailable = errors.New("token redis unavailable")

// RedisStore defines a public type used by portero APIs.
//
// RedisStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The whole pair is one JSON value under one key, so Save and Clear stay
// atomic without transactions.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
//
// NewRedisStore may return an error when input validation, dependency calls, or security checks fail.
// NewRedisStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A zero ttl stores the pair without expiry.
func NewRedisStore(redisClient redis.UniversalClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "portero:tokens"
	}
	return &RedisStore{
		redis: redisClient,
		key:   key,
		ttl:   ttl,
	}
}

// Load describes the load operation and its observable behavior.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Load(ctx context.Context) (Pair, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Pair{}, ErrNoCredentials
		}
		return Pair{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		return Pair{}, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return Pair{}, ErrNoCredentials
	}
	return pair, nil
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Save(ctx context.Context, pair Pair) error {
	if pair.Access == "" || pair.Refresh == "" {
		return ErrHalfPair
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
