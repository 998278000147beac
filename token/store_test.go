package token

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func testPair() Pair {
	return Pair{Access: "access-token", Refresh: "refresh-token"}
}

func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Load on empty store = %v, want ErrNoCredentials", err)
	}

	if err := store.Save(ctx, Pair{Access: "only-access"}); !errors.Is(err, ErrHalfPair) {
		t.Fatalf("Save half pair = %v, want ErrHalfPair", err)
	}
	if err := store.Save(ctx, Pair{Refresh: "only-refresh"}); !errors.Is(err, ErrHalfPair) {
		t.Fatalf("Save half pair = %v, want ErrHalfPair", err)
	}

	if err := store.Save(ctx, testPair()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pair, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pair != testPair() {
		t.Fatalf("Load = %+v, want %+v", pair, testPair())
	}

	rotated := Pair{Access: "access-2", Refresh: "refresh-2"}
	if err := store.Save(ctx, rotated); err != nil {
		t.Fatalf("Save rotation failed: %v", err)
	}
	pair, err = store.Load(ctx)
	if err != nil || pair != rotated {
		t.Fatalf("Load after rotation = %+v, %v", pair, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear not idempotent: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Load after Clear = %v, want ErrNoCredentials", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.bin"), []byte("device-secret"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	runStoreContract(t, store)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.bin")
	secret := []byte("device-secret")
	ctx := context.Background()

	first, err := NewFileStore(path, secret)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := first.Save(ctx, testPair()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second, err := NewFileStore(path, secret)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	pair, err := second.Load(ctx)
	if err != nil || pair != testPair() {
		t.Fatalf("Load via second instance = %+v, %v", pair, err)
	}
}

func TestFileStoreWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.bin")
	ctx := context.Background()

	store, err := NewFileStore(path, []byte("right-secret"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save(ctx, testPair()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong, err := NewFileStore(path, []byte("wrong-secret"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := wrong.Load(ctx); !errors.Is(err, ErrFileCorrupt) {
		t.Fatalf("Load with wrong secret = %v, want ErrFileCorrupt", err)
	}
}

func TestFileStoreRejectsEmptyInputs(t *testing.T) {
	if _, err := NewFileStore("", []byte("secret")); err == nil {
		t.Fatal("empty path accepted")
	}
	if _, err := NewFileStore("/tmp/x", nil); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed to start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

func TestRedisStoreContract(t *testing.T) {
	_, rdb := newTestRedis(t)
	runStoreContract(t, NewRedisStore(rdb, "test:tokens", 0))
}

func TestRedisStoreTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisStore(rdb, "test:tokens", time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, testPair()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Load after TTL = %v, want ErrNoCredentials", err)
	}
}

func TestRedisStoreDefaultKey(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRedisStore(rdb, "", 0)
	if store.key != "portero:tokens" {
		t.Fatalf("default key = %q", store.key)
	}
}

func signedTestToken(t *testing.T, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	return signed
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, err := AccessExpiry(signedTestToken(t, exp))
	if err != nil {
		t.Fatalf("AccessExpiry failed: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("AccessExpiry = %v, want %v", got, exp)
	}
}

func TestAccessExpiryErrors(t *testing.T) {
	if _, err := AccessExpiry("not-a-jwt"); err == nil {
		t.Fatal("malformed token accepted")
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	if _, err := AccessExpiry(signed); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("token without exp = %v, want ErrNoExpiry", err)
	}
}
