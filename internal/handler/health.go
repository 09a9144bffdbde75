package handler

import (
	"crypto/subtle"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/metrics"
)

type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		dbStatus = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"database": dbStatus,
		},
	})
}

// WebhookHealthHandler serves the aggregated processing snapshot, gated by a
// static bearer token shared with the ops tooling.
type WebhookHealthHandler struct {
	metrics *metrics.Registry
	token   string
}

func NewWebhookHealthHandler(reg *metrics.Registry, token string) *WebhookHealthHandler {
	return &WebhookHealthHandler{metrics: reg, token: token}
}

func (h *WebhookHealthHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		slog.Error("health check token is not configured, failing closed")
		RespondAppError(w, ErrMissingSecret, nil)
		return
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		RespondAppError(w, ErrForbidden, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, h.metrics.Snapshot())
}
