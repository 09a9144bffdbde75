package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/metrics"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/processor"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/signature"
)

// SignatureHeader carries the provider's timestamped HMAC signatures.
const SignatureHeader = "X-Payment-Signature"

const maxBodyBytes = 1 << 20

type processingRecordStore interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, rec *domain.ProcessingRecord) (bool, error)
}

type eventDispatcher interface {
	Process(ctx context.Context, event *domain.InboundEvent) processor.Result
}

type WebhookHandler struct {
	records  processingRecordStore
	verifier *signature.Verifier
	dispatch eventDispatcher
	metrics  *metrics.Registry
}

func NewWebhookHandler(records processingRecordStore, verifier *signature.Verifier, dispatch eventDispatcher, reg *metrics.Registry) *WebhookHandler {
	return &WebhookHandler{records: records, verifier: verifier, dispatch: dispatch, metrics: reg}
}

// Body shapes for the 200-level acknowledgements. The provider retries on
// any non-2xx, so a business-level handler failure is still acknowledged.
type processedAck struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

type idempotentAck struct {
	Received   bool `json:"received"`
	Idempotent bool `json:"idempotent"`
}

// ReceivePaymentWebhook runs the processing pipeline: raw body → signature →
// freshness → dedupe → dispatch → durable record → metrics. Rate limiting
// happens upstream in middleware. The body must be read raw before any JSON
// parsing because the signature covers the exact bytes on the wire.
func (h *WebhookHandler) ReceivePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		h.metrics.RecordRejection("body_read")
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, signature.ErrNoSecret):
			log.Error("webhook shared secret is not configured, failing closed")
			h.metrics.RecordRejection("configuration")
			RespondAppError(w, ErrMissingSecret, nil)
		case errors.Is(err, domain.ErrInvalidPayload):
			// Signed by someone holding the secret, but not a parseable
			// event envelope.
			log.Warn("signed body is not a valid event", "error", err)
			h.metrics.RecordRejection("invalid_payload")
			RespondAppError(w, ErrInvalidRequest, nil)
		default:
			log.Warn("webhook signature rejected", "error", err)
			h.metrics.RecordRejection("invalid_signature")
			RespondAppError(w, ErrInvalidSignature, nil)
		}
		return
	}

	if !h.verifier.FreshEnough(event.CreatedAt()) {
		log.Warn("stale event rejected", "event_id", event.ID, "event_created", event.CreatedAt())
		h.metrics.RecordRejection("stale_timestamp")
		RespondAppError(w, ErrStaleEvent, nil)
		return
	}

	seen, err := h.records.HasProcessed(r.Context(), event.ID)
	if err != nil {
		log.Error("idempotency lookup failed", "event_id", event.ID, "error", err)
		h.metrics.RecordRejection("store_unavailable")
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	if seen {
		log.Info("duplicate delivery acknowledged", "event_id", event.ID, "event_type", event.Type)
		h.metrics.RecordDuplicate()
		RespondJSON(w, http.StatusOK, idempotentAck{Received: true, Idempotent: true})
		return
	}

	start := time.Now()
	result := h.dispatch.Process(r.Context(), event)
	elapsed := time.Since(start)

	rec := &domain.ProcessingRecord{
		EventID:          event.ID,
		EventType:        event.Type,
		EventCreatedAt:   event.CreatedAt(),
		Success:          result.Success,
		ProcessingTimeMs: elapsed.Milliseconds(),
		RecordedAt:       time.Now().UTC(),
	}
	var errDetail string
	if !result.Success {
		errDetail = result.Err
		if errDetail == "" {
			errDetail = result.Message
		}
		rec.ErrorDetail = &errDetail
	}

	inserted, err := h.records.Record(r.Context(), rec)
	if err != nil {
		// The event was not durably accounted for; a non-2xx tells the
		// provider to redeliver.
		log.Error("failed to write processing record", "event_id", event.ID, "error", err)
		h.metrics.RecordRejection("store_unavailable")
		RespondAppError(w, ErrInternalError, nil)
		return
	}
	if !inserted {
		log.Info("concurrent delivery won the record race", "event_id", event.ID)
		h.metrics.RecordDuplicate()
		RespondJSON(w, http.StatusOK, idempotentAck{Received: true, Idempotent: true})
		return
	}

	h.metrics.Record(metrics.Sample{
		EventType: event.Type,
		Success:   result.Success,
		Duration:  elapsed,
		Err:       errDetail,
	})

	log.Info("webhook event processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"success", result.Success,
		"duration_ms", elapsed.Milliseconds(),
	)
	RespondJSON(w, http.StatusOK, processedAck{Received: true, Processed: result.Success, Error: errDetail})
}
