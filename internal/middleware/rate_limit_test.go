package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BasicFunctionality(t *testing.T) {
	rl := NewRateLimiter(2, 2) // 2 req/sec, burst 2
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, "request %d", i+1)
	}
}

func TestRateLimiter_KeysOnIPNotPort(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:2000"), "new source port must share the limiter")
	assert.Equal(t, http.StatusOK, send("192.168.1.2:1000"))
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "Rate limit exceeded")
}

func TestRateLimiter_CleanupRemovesIdle(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		rl.getLimiter(fmt.Sprintf("10.0.0.%d", i))
	}

	rl.mu.Lock()
	old := time.Now().Add(-2 * limiterTTL)
	for key, entry := range rl.limiters {
		if key != "10.0.0.0" {
			entry.lastAccess = old
		}
	}
	rl.mu.Unlock()

	rl.cleanup(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "10.0.0.0")
}

func TestRateLimiter_EvictsLeastRecentlyUsed(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	defer rl.Stop()

	now := time.Now()
	rl.mu.Lock()
	for i := 0; i < maxLimiters+10; i++ {
		rl.limiters[fmt.Sprintf("key-%d", i)] = &limiterEntry{
			limiter:    nil,
			lastAccess: now.Add(time.Duration(i) * time.Millisecond),
		}
	}
	rl.mu.Unlock()

	rl.cleanup(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.limiters, maxLimiters/2)
	assert.Contains(t, rl.limiters, fmt.Sprintf("key-%d", maxLimiters+9), "newest entry must survive")
	assert.NotContains(t, rl.limiters, "key-0")
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(1000, 1000)
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rl.getLimiter(fmt.Sprintf("10.1.%d.%d", i, j%5))
			}
		}(i)
	}
	wg.Wait()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.limiters, 250)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:1234", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"203.0.113.9", "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
