package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/handler"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
)

type rejectionRecorder interface {
	RecordRejection(reason string)
}

// Recovery is the top-level catch for anything that escapes the layers
// below. The panic is logged with its stack, counted in the error bucket,
// and answered with a 500 so the provider redelivers; it never leaks past a
// short generic message.
func Recovery(rejections rejectionRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log := logging.FromContext(r.Context())
					log.Error("panic recovered", "error", err, "stack", string(debug.Stack()))
					if rejections != nil {
						rejections.RecordRejection("panic")
					}
					handler.RespondAppError(w, handler.ErrInternalError, nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
