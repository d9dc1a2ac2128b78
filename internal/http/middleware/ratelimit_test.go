package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func TestRateLimiterBurstPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys have separate buckets")

	fixed = fixed.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refills per second")
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	rl.Allow("a")
	rl.Allow("b")

	fixed = fixed.Add(11 * time.Minute)
	rl.Allow("b")
	assert.Equal(t, 1, rl.Prune())
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimitMiddlewareBySender(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := RateLimit(rl, BySender, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	post := func(from string) int {
		form := url.Values{"From": {from}, "Body": {"hi"}}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/messages", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("+911111111111"))
	assert.Equal(t, http.StatusTooManyRequests, post("+911111111111"))
	assert.Equal(t, http.StatusOK, post("+912222222222"))
}
