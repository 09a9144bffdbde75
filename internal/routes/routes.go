// Package routes assembles the HTTP surface: the webhook pipeline, the
// authenticated processing snapshot, liveness probes, and Prometheus
// exposition.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/handler"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/metrics"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/middleware"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/ratelimit"
)

type Deps struct {
	Webhook       *handler.WebhookHandler
	WebhookHealth *handler.WebhookHealthHandler
	Health        *handler.HealthHandler
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Registry
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery(d.Metrics))

	// Only the webhook ingest is rate limited; probes and the snapshot
	// endpoint are not exposed to the provider.
	r.With(middleware.RateLimit(d.Limiter, d.Metrics)).
		Post("/webhooks/payment", d.Webhook.ReceivePaymentWebhook)
	r.Get("/webhooks/payment/health", d.WebhookHealth.Snapshot)

	r.Get("/health", d.Health.Liveness)
	r.Get("/health/ready", d.Health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
