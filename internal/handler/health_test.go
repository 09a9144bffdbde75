package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/metrics"
)

const testHealthToken = "tok_health_test"

func getSnapshot(h *WebhookHealthHandler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/webhooks/payment/health", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.Snapshot(rr, req)
	return rr
}

func TestWebhookHealth_Auth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid token",
			token:      testHealthToken,
			authHeader: "Bearer " + testHealthToken,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			token:      testHealthToken,
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "MISSING_TOKEN",
		},
		{
			name:       "wrong token",
			token:      testHealthToken,
			authHeader: "Bearer tok_wrong",
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "not a bearer header",
			token:      testHealthToken,
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "no token configured fails closed",
			token:      "",
			authHeader: "Bearer " + testHealthToken,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CONFIGURATION_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := metrics.NewRegistry(prometheus.NewRegistry())
			h := NewWebhookHealthHandler(reg, tc.token)

			rr := getSnapshot(h, tc.authHeader)
			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tc.wantCode == "" {
				assert.True(t, resp.Success)
			} else {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestWebhookHealth_ReturnsAggregates(t *testing.T) {
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	reg.Record(metrics.Sample{EventType: "payment_intent.succeeded", Success: true, Duration: 12 * time.Millisecond})
	reg.Record(metrics.Sample{EventType: "invoice.payment_failed", Success: false, Err: "card_declined"})

	h := NewWebhookHealthHandler(reg, testHealthToken)
	rr := getSnapshot(h, "Bearer "+testHealthToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    metrics.HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(2), resp.Data.TotalProcessed)
	assert.Equal(t, int64(1), resp.Data.TotalFailed)
	require.Len(t, resp.Data.EventTypes, 2)
	assert.Equal(t, "card_declined", resp.Data.EventTypes[0].LastError)
}
