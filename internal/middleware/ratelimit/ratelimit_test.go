package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newLimiter(t *testing.T, perMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute}).WithClock(clock.Now)
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestAllowWindow(t *testing.T) {
	rl, clock := newLimiter(t, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are counted separately")

	clock.t = clock.t.Add(time.Minute)
	assert.True(t, rl.Allow("a"), "a new window resets the count")
	assert.Equal(t, int64(1), rl.Rejected())
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newLimiter(t, 5)
	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.ActiveClients())

	clock.t = clock.t.Add(2 * time.Minute)
	rl.cleanupStaleEntries()
	assert.Zero(t, rl.ActiveClients())
}

func TestMiddlewareOnlyLimitsMutating(t *testing.T) {
	rl, _ := newLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, Mutating)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
