// Command portero-loadtest hammers the session contract: many workers issue
// authenticated requests against a local fake API while the access token is
// repeatedly expired server-side. It verifies under load that every expiry
// causes exactly one refresh flight and that no request observes a torn
// token pair.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luventi/portero"
	"github.com/luventi/portero/token"
)

type tokenAuthority struct {
	mu      sync.Mutex
	access  string
	refresh string
	gen     int

	refreshCalls atomic.Int64
	expiries     atomic.Int64
}

func (ta *tokenAuthority) rotate() (string, string) {
	ta.gen++
	ta.access = fmt.Sprintf("access-%d", ta.gen)
	ta.refresh = fmt.Sprintf("refresh-%d", ta.gen)
	return ta.access, ta.refresh
}

// expire invalidates the current access token, forcing the next request
// into the 401-refresh-retry path.
func (ta *tokenAuthority) expire() {
	ta.mu.Lock()
	ta.access = "expired"
	ta.mu.Unlock()
	ta.expiries.Add(1)
}

func (ta *tokenAuthority) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login/refresh", func(w http.ResponseWriter, r *http.Request) {
		ta.refreshCalls.Add(1)

		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond(w, http.StatusBadRequest, nil)
			return
		}

		ta.mu.Lock()
		defer ta.mu.Unlock()
		if body.RefreshToken != ta.refresh {
			respond(w, http.StatusUnauthorized, map[string]string{"message": "refresh inválido"})
			return
		}
		access, refresh := ta.rotate()
		respond(w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	mux.HandleFunc("GET /acessos/usuario/{id}", func(w http.ResponseWriter, r *http.Request) {
		ta.mu.Lock()
		current := ta.access
		ta.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+current {
			respond(w, http.StatusUnauthorized, map[string]string{"message": "token expirado"})
			return
		}
		respond(w, http.StatusOK, []portero.AccessRecord{})
	})

	return mux
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func main() {
	var (
		workers     = flag.Int("workers", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "total requests to issue")
		expireEvery = flag.Duration("expire-every", 25*time.Millisecond, "interval between forced token expirations")
	)
	flag.Parse()

	if *workers <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "workers and ops must be > 0")
		os.Exit(2)
	}

	authority := &tokenAuthority{}
	access, refresh := authority.rotate()

	srv := httptest.NewServer(authority.handler())
	defer srv.Close()

	store := token.NewMemoryStore()
	ctx := context.Background()
	if err := store.Save(ctx, token.Pair{Access: access, Refresh: refresh}); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}

	var expirationsSeen atomic.Int64
	client, err := portero.New().
		WithBaseURL(srv.URL).
		WithTokenStore(store).
		WithSessionExpiredHandler(func() {
			expirationsSeen.Add(1)
		}).
		Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(1)
	}
	defer client.Close()

	// Background expirer: keeps invalidating the live access token so the
	// workers constantly race through the single-flight refresh.
	stopExpirer := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*expireEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				authority.expire()
			case <-stopExpirer:
				return
			}
		}
	}()

	var (
		wg        sync.WaitGroup
		issued    atomic.Int64
		failures  atomic.Int64
		latencies = make([][]time.Duration, *workers)
	)

	start := time.Now()
	wg.Add(*workers)
	for i := 0; i < *workers; i++ {
		go func(idx int) {
			defer wg.Done()
			for {
				n := issued.Add(1)
				if n > int64(*ops) {
					return
				}
				begin := time.Now()
				_, err := client.AccessHistory(ctx, "user-1")
				latencies[idx] = append(latencies[idx], time.Since(begin))
				if err != nil {
					failures.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()
	close(stopExpirer)
	elapsed := time.Since(start)

	var all []time.Duration
	for _, ws := range latencies {
		all = append(all, ws...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	pct := func(p float64) time.Duration {
		if len(all) == 0 {
			return 0
		}
		idx := int(float64(len(all)-1) * p)
		return all[idx]
	}

	snap := client.MetricsSnapshot()

	fmt.Printf("requests:        %d in %s (%.0f req/s)\n", len(all), elapsed.Round(time.Millisecond), float64(len(all))/elapsed.Seconds())
	fmt.Printf("failures:        %d\n", failures.Load())
	fmt.Printf("forced expiries: %d\n", authority.expiries.Load())
	fmt.Printf("refresh calls:   %d (single-flight: at most one per expiry)\n", authority.refreshCalls.Load())
	fmt.Printf("retried reqs:    %d\n", snap.Counters[portero.MetricRequestRetried])
	fmt.Printf("forced logouts:  %d\n", expirationsSeen.Load())
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n", pct(0.50), pct(0.95), pct(0.99), pct(1.0))

	if failures.Load() > 0 || expirationsSeen.Load() > 0 {
		os.Exit(1)
	}
}
