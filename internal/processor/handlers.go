package processor

import (
	"context"
	"fmt"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
)

// SubscriptionStore is the subscription state the handlers act on. Its
// implementations must be idempotent per customer: re-applying the same
// event converges on the same state.
type SubscriptionStore interface {
	ActivateSubscription(ctx context.Context, customerID, plan string) error
	MarkPastDue(ctx context.Context, customerID string) error
	CancelSubscription(ctx context.Context, customerID string) error
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, customerID string, amount int64, currency string) error
}

type eventHandlers struct {
	subs     SubscriptionStore
	receipts ReceiptSender
}

func (h *eventHandlers) paymentIntentSucceeded(ctx context.Context, event *domain.InboundEvent) error {
	p, err := domain.DecodePaymentIntent(event.Data.Object)
	if err != nil {
		return err
	}

	if err := h.subs.ActivateSubscription(ctx, p.Customer, p.Metadata["plan"]); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	if h.receipts != nil {
		if err := h.receipts.SendReceipt(ctx, p.Customer, p.Amount, p.Currency); err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}
	}
	return nil
}

func (h *eventHandlers) paymentIntentFailed(ctx context.Context, event *domain.InboundEvent) error {
	p, err := domain.DecodePaymentIntent(event.Data.Object)
	if err != nil {
		return err
	}

	// A failed one-off intent is not an account state change; the customer
	// simply was not charged. Classified and logged for support follow-up.
	kind := domain.ErrorKindFromProvider(p.LastPaymentError)
	logging.FromContext(ctx).Info("payment intent failed",
		"event_id", event.ID,
		"customer", p.Customer,
		"error_kind", string(kind),
	)
	return nil
}

func (h *eventHandlers) invoicePaymentSucceeded(ctx context.Context, event *domain.InboundEvent) error {
	inv, err := domain.DecodeInvoice(event.Data.Object)
	if err != nil {
		return err
	}

	if err := h.subs.ActivateSubscription(ctx, inv.Customer, ""); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	if h.receipts != nil {
		if err := h.receipts.SendReceipt(ctx, inv.Customer, inv.AmountDue, ""); err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}
	}
	return nil
}

func (h *eventHandlers) invoicePaymentFailed(ctx context.Context, event *domain.InboundEvent) error {
	inv, err := domain.DecodeInvoice(event.Data.Object)
	if err != nil {
		return err
	}

	kind := domain.ErrorKindFromProvider(inv.LastPaymentError)
	logging.FromContext(ctx).Info("invoice payment failed",
		"event_id", event.ID,
		"customer", inv.Customer,
		"attempt_count", inv.AttemptCount,
		"error_kind", string(kind),
	)

	if err := h.subs.MarkPastDue(ctx, inv.Customer); err != nil {
		return fmt.Errorf("mark past due: %w", err)
	}
	return nil
}

func (h *eventHandlers) subscriptionDeleted(ctx context.Context, event *domain.InboundEvent) error {
	sub, err := domain.DecodeSubscription(event.Data.Object)
	if err != nil {
		return err
	}

	if err := h.subs.CancelSubscription(ctx, sub.Customer); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}
