package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/ratelimit"
)

type countingRecorder struct {
	reasons []string
}

func (c *countingRecorder) RecordRejection(reason string) {
	c.reasons = append(c.reasons, reason)
}

func rateLimitedServer(limit int) (http.Handler, *int, *countingRecorder) {
	served := 0
	rejections := &countingRecorder{}
	limiter := ratelimit.NewLimiter(limit, time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter, rejections)(next), &served, rejections
}

func TestRateLimit_DeniesAfterLimit(t *testing.T) {
	h, served, rejections := rateLimitedServer(3)

	var last *httptest.ResponseRecorder
	for range 4 {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		req.RemoteAddr = "1.2.3.4:9999"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	assert.Equal(t, 3, *served)
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, []string{"rate_limited"}, rejections.reasons)

	retryAfter, err := strconv.Atoi(last.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 61)
}

func TestRateLimit_KeysByClientAddress(t *testing.T) {
	h, served, _ := rateLimitedServer(1)

	for i, addr := range []string{"1.2.3.4:1111", "5.6.7.8:2222", "9.9.9.9:3333"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "client %d should have its own window", i)
	}

	assert.Equal(t, 3, *served)
}

func TestRateLimit_HonorsForwardedFor(t *testing.T) {
	h, served, _ := rateLimitedServer(1)

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		req.RemoteAddr = "10.0.0.1:80" // the proxy
		req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
	}

	assert.Equal(t, 1, *served, "both requests share the forwarded client address")
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"socket peer", "1.2.3.4:9999", "", "1.2.3.4"},
		{"forwarded single", "10.0.0.1:80", "1.2.3.4", "1.2.3.4"},
		{"forwarded chain takes first hop", "10.0.0.1:80", "1.2.3.4, 10.0.0.2, 10.0.0.1", "1.2.3.4"},
		{"unparseable remote addr passes through", "bogus", "", "bogus"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, clientAddr(req))
		})
	}
}
