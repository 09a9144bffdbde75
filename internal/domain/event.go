package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types delivered by the payment provider. The provider may add new
// types at any time; anything not listed here is acknowledged as a no-op.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

// InboundEvent is the envelope the provider posts to the webhook endpoint.
// ID is assigned by the provider and preserved across redeliveries, which is
// what makes it usable as the idempotency key.
type InboundEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Created    int64     `json:"created"`
	APIVersion string    `json:"api_version,omitempty"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

func (e *InboundEvent) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// ProviderError is the provider's description of why a charge did not go
// through, embedded in failed payment-intent and invoice payloads.
type ProviderError struct {
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code,omitempty"`
	Message     string `json:"message,omitempty"`
}

type PaymentIntentPayload struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Customer         string            `json:"customer"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	LastPaymentError *ProviderError    `json:"last_payment_error,omitempty"`
}

type InvoicePayload struct {
	ID               string         `json:"id"`
	Customer         string         `json:"customer"`
	Subscription     string         `json:"subscription"`
	AmountDue        int64          `json:"amount_due"`
	AttemptCount     int            `json:"attempt_count"`
	LastPaymentError *ProviderError `json:"last_payment_error,omitempty"`
}

type SubscriptionPayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Plan     string `json:"plan,omitempty"`
}

// DecodePaymentIntent validates the payload shape for payment_intent.* events.
func DecodePaymentIntent(raw json.RawMessage) (*PaymentIntentPayload, error) {
	var p PaymentIntentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("DecodePaymentIntent: %w", ErrInvalidPayload)
	}
	if p.ID == "" || p.Customer == "" {
		return nil, fmt.Errorf("DecodePaymentIntent: missing id or customer: %w", ErrInvalidPayload)
	}
	return &p, nil
}

func DecodeInvoice(raw json.RawMessage) (*InvoicePayload, error) {
	var p InvoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("DecodeInvoice: %w", ErrInvalidPayload)
	}
	if p.ID == "" || p.Customer == "" {
		return nil, fmt.Errorf("DecodeInvoice: missing id or customer: %w", ErrInvalidPayload)
	}
	return &p, nil
}

func DecodeSubscription(raw json.RawMessage) (*SubscriptionPayload, error) {
	var p SubscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("DecodeSubscription: %w", ErrInvalidPayload)
	}
	if p.ID == "" || p.Customer == "" {
		return nil, fmt.Errorf("DecodeSubscription: missing id or customer: %w", ErrInvalidPayload)
	}
	return &p, nil
}
