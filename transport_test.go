package portero

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/luventi/portero/token"
)

// refreshableAPI is a fake access API whose protected endpoint accepts only
// the current access token and whose refresh endpoint rotates the pair.
type refreshableAPI struct {
	t *testing.T

	mu          sync.Mutex
	access      string
	refresh     string
	refreshHits int
	failRefresh bool
	profileHits int
}

func newRefreshableAPI(t *testing.T) *refreshableAPI {
	return &refreshableAPI{
		t:       t,
		access:  "access-1",
		refresh: "refresh-1",
	}
}

func (a *refreshableAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.refreshHits++
		fail := a.failRefresh
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeBody(r, &body); err != nil || body.RefreshToken != a.refresh {
			a.mu.Unlock()
			writeJSON(a.t, w, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
			return
		}
		if fail {
			a.mu.Unlock()
			writeJSON(a.t, w, http.StatusInternalServerError, map[string]string{"message": "refresh broken"})
			return
		}
		a.access = "access-2"
		a.refresh = "refresh-2"
		access, refresh := a.access, a.refresh
		a.mu.Unlock()

		writeJSON(a.t, w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	mux.HandleFunc("GET /usuarios/user-1", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.profileHits++
		current := a.access
		a.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+current {
			writeJSON(a.t, w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(a.t, w, http.StatusOK, User{ID: "user-1", Email: "ana@example.com"})
	})

	return mux
}

func (a *refreshableAPI) counts() (refreshHits, profileHits int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshHits, a.profileHits
}

func TestExpiredTokenRefreshedAndRetriedOnce(t *testing.T) {
	api := newRefreshableAPI(t)
	srv := newTestServer(t, api.handler())
	client := newTestClient(t, srv)
	seedSession(t, client, "access-stale", "refresh-1")

	user, err := client.User(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("user = %+v", user)
	}

	refreshHits, profileHits := api.counts()
	if refreshHits != 1 {
		t.Fatalf("refresh hits = %d, want 1", refreshHits)
	}
	if profileHits != 2 {
		t.Fatalf("profile hits = %d, want original + exactly one retry", profileHits)
	}

	pair, err := client.tokens.Load(context.Background())
	if err != nil || pair.Access != "access-2" || pair.Refresh != "refresh-2" {
		t.Fatalf("stored pair after rotation = %+v, %v", pair, err)
	}
	if got := client.MetricsSnapshot().Counters[MetricRequestRetried]; got != 1 {
		t.Fatalf("retry metric = %d, want 1", got)
	}
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	api := newRefreshableAPI(t)
	srv := newTestServer(t, api.handler())
	client := newTestClient(t, srv)
	seedSession(t, client, "access-stale", "refresh-1")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := client.User(context.Background(), "user-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
	}

	refreshHits, _ := api.counts()
	if refreshHits != 1 {
		t.Fatalf("refresh hits = %d, want single flight", refreshHits)
	}
}

func TestRefreshFailureForcesLogoutExactlyOnce(t *testing.T) {
	api := newRefreshableAPI(t)
	api.failRefresh = true
	srv := newTestServer(t, api.handler())

	var expirations atomic.Int64
	client := newTestClient(t, srv, func(b *Builder) {
		b.WithSessionExpiredHandler(func() {
			expirations.Add(1)
		})
	})
	seedSession(t, client, "access-stale", "refresh-1")

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := client.User(context.Background(), "user-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("request error = %v, want ErrSessionExpired", err)
		}
	}

	if got := expirations.Load(); got != 1 {
		t.Fatalf("session expired callbacks = %d, want exactly 1", got)
	}
	if _, err := client.tokens.Load(context.Background()); !errors.Is(err, token.ErrNoCredentials) {
		t.Fatalf("tokens after forced logout = %v, want cleared", err)
	}
	if client.Session().LoggedIn() {
		t.Fatal("session still logged in after forced logout")
	}
	if got := client.MetricsSnapshot().Counters[MetricSessionExpired]; got != 1 {
		t.Fatalf("session expired metric = %d, want 1", got)
	}
}

func TestRefreshWithoutStoredTokenFailsFast(t *testing.T) {
	api := newRefreshableAPI(t)
	srv := newTestServer(t, api.handler())
	client := newTestClient(t, srv)

	err := client.Refresh(context.Background())
	if !errors.Is(err, ErrRefreshTokenMissing) {
		t.Fatalf("Refresh = %v, want ErrRefreshTokenMissing", err)
	}

	refreshHits, _ := api.counts()
	if refreshHits != 0 {
		t.Fatalf("refresh endpoint hit %d times without a stored token", refreshHits)
	}
}

func TestAnonymous401DoesNotTriggerRefresh(t *testing.T) {
	api := newRefreshableAPI(t)
	srv := newTestServer(t, api.handler())
	client := newTestClient(t, srv)

	// No session: the 401 must surface as an API error, not as an expired
	// session, and the refresh endpoint must stay untouched.
	_, err := client.User(context.Background(), "user-1")
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous request error = %v, want ErrUnauthorized", err)
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("anonymous 401 mistaken for expired session")
	}

	refreshHits, _ := api.counts()
	if refreshHits != 0 {
		t.Fatalf("refresh hits = %d, want 0", refreshHits)
	}
}

func TestSecond401IsTerminal(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		})
	})
	mux.HandleFunc("GET /usuarios/user-1", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Rejects even the refreshed token.
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "still expired"})
	})

	srv := newTestServer(t, mux)
	client := newTestClient(t, srv)
	seedSession(t, client, "access-stale", "refresh-1")

	_, err := client.User(context.Background(), "user-1")
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized after terminal retry", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("protected endpoint hits = %d, want exactly 2", got)
	}
}

func TestRequestCarriesIdentityHeaders(t *testing.T) {
	var gotUA, gotReqID string
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get("X-Request-Id")
		writeJSON(t, w, http.StatusOK, User{ID: "user-1"})
	}))
	client := newTestClient(t, srv)

	if _, err := client.User(context.Background(), "user-1"); err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if gotUA != "portero-go" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if gotReqID == "" || strings.TrimSpace(gotReqID) == "" {
		t.Fatal("X-Request-Id missing")
	}
}
