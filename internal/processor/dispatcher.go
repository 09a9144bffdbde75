// Package processor routes verified events to their per-type handlers and
// normalizes every outcome into a Result. Nothing a handler does — error,
// panic, timeout — escapes past Process.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
)

type Result struct {
	Success bool
	Message string
	Err     string
}

type Handler func(ctx context.Context, event *domain.InboundEvent) error

type Dispatcher struct {
	handlers map[string]Handler
	timeout  time.Duration
}

// NewDispatcher wires the known event types to handlers backed by the given
// collaborators. receipts may be nil when no receipt endpoint is configured.
func NewDispatcher(subs SubscriptionStore, receipts ReceiptSender, timeout time.Duration) *Dispatcher {
	h := &eventHandlers{subs: subs, receipts: receipts}
	return &Dispatcher{
		timeout: timeout,
		handlers: map[string]Handler{
			domain.EventPaymentIntentSucceeded:  h.paymentIntentSucceeded,
			domain.EventPaymentIntentFailed:     h.paymentIntentFailed,
			domain.EventInvoicePaymentSucceeded: h.invoicePaymentSucceeded,
			domain.EventInvoicePaymentFailed:    h.invoicePaymentFailed,
			domain.EventSubscriptionDeleted:     h.subscriptionDeleted,
		},
	}
}

// Process dispatches on event.Type. Unknown types are acknowledged as a
// no-op success so the provider can add types without breaking us. Handler
// failures come back as Success=false, never as an error or panic.
func (d *Dispatcher) Process(ctx context.Context, event *domain.InboundEvent) (result Result) {
	log := logging.FromContext(ctx)

	handle, ok := d.handlers[event.Type]
	if !ok {
		log.Info("unhandled event type acknowledged", "event_id", event.ID, "event_type", event.Type)
		return Result{Success: true, Message: "event type not handled"}
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panic contained", "event_id", event.ID, "event_type", event.Type, "panic", rec)
			result = Result{Success: false, Message: "handler failure", Err: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	// A slow downstream dependency fails the handler, it does not stall
	// the request.
	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := handle(hctx, event); err != nil {
		log.Warn("handler failed", "event_id", event.ID, "event_type", event.Type, "error", err)
		return Result{Success: false, Message: "handler failure", Err: err.Error()}
	}
	return Result{Success: true, Message: "processed"}
}
