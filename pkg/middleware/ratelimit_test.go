package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(perWindow, burst int) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: perWindow, WindowDuration: time.Minute, BurstSize: burst})
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(10, 2)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 20; i++ {
		ok, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed)
	assert.Equal(t, 0, rl.Remaining("k"))

	// 10 per minute refills one token every 6 seconds
	*now = now.Add(6 * time.Second)
	ok, _ := rl.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "k")
	assert.False(t, ok)

	// other keys are independent
	ok, _ = rl.Allow(ctx, "other")
	assert.True(t, ok)
}

func TestRateLimiter_RefillCapped(t *testing.T) {
	rl, now := newTestLimiter(5, 0)
	ctx := context.Background()

	_, _ = rl.Allow(ctx, "k")
	*now = now.Add(time.Hour)
	_, _ = rl.Allow(ctx, "k")
	assert.Equal(t, 4, rl.Remaining("k"))
	assert.Equal(t, 5, rl.Remaining("unseen"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(5, 0)
	_, _ = rl.Allow(context.Background(), "k")

	*now = now.Add(3 * time.Minute)
	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.buckets)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1, 0)
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_rejected_total"})
	h := ClientKeyMiddleware(RateLimit(rl, time.Minute, rejected)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/content", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, http.StatusOK, serve(h, req).Code)
	w := serve(h, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected))

	other := httptest.NewRequest(http.MethodGet, "/content", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.6")
	assert.Equal(t, http.StatusOK, serve(h, other).Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:4444", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
