package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/handler"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/ratelimit"
)

// RateLimit gates a route behind a per-client-address window. It runs before
// the body is read so flood traffic is turned away as cheaply as possible.
func RateLimit(limiter *ratelimit.Limiter, rejections rejectionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddr(r)
			decision := limiter.Check(key)

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				logging.FromContext(r.Context()).Warn("request rate limited",
					"client", key,
					"reset_at", decision.ResetAt,
				)
				if rejections != nil {
					rejections.RecordRejection("rate_limited")
				}
				handler.RespondAppError(w, handler.ErrRateLimited, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the first X-Forwarded-For hop set by the edge proxy,
// falling back to the socket peer address.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
