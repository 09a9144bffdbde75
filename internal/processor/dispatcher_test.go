package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
)

type mockSubscriptionStore struct {
	activated  []string
	plans      []string
	pastDue    []string
	canceled   []string
	err        error
	panicValue any
}

func (m *mockSubscriptionStore) ActivateSubscription(_ context.Context, customerID, plan string) error {
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	m.activated = append(m.activated, customerID)
	m.plans = append(m.plans, plan)
	return m.err
}

func (m *mockSubscriptionStore) MarkPastDue(_ context.Context, customerID string) error {
	m.pastDue = append(m.pastDue, customerID)
	return m.err
}

func (m *mockSubscriptionStore) CancelSubscription(_ context.Context, customerID string) error {
	m.canceled = append(m.canceled, customerID)
	return m.err
}

type mockReceiptSender struct {
	sent int
	err  error
}

func (m *mockReceiptSender) SendReceipt(context.Context, string, int64, string) error {
	m.sent++
	return m.err
}

func makeEvent(t *testing.T, eventType string, object any) *domain.InboundEvent {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &domain.InboundEvent{
		ID:      "evt_test",
		Type:    eventType,
		Created: time.Now().Unix(),
		Data:    domain.EventData{Object: raw},
	}
}

func TestProcess_UnknownTypeIsNoOpSuccess(t *testing.T) {
	subs := &mockSubscriptionStore{}
	d := NewDispatcher(subs, nil, time.Second)

	result := d.Process(context.Background(), makeEvent(t, "charge.refund.updated", map[string]string{"id": "re_1"}))

	assert.True(t, result.Success)
	assert.Empty(t, subs.activated)
}

func TestProcess_PaymentIntentSucceeded(t *testing.T) {
	subs := &mockSubscriptionStore{}
	receipts := &mockReceiptSender{}
	d := NewDispatcher(subs, receipts, time.Second)

	event := makeEvent(t, domain.EventPaymentIntentSucceeded, domain.PaymentIntentPayload{
		ID:       "pi_1",
		Amount:   999,
		Currency: "usd",
		Customer: "cus_42",
		Metadata: map[string]string{"plan": "premium_monthly"},
	})
	result := d.Process(context.Background(), event)

	require.True(t, result.Success)
	assert.Equal(t, []string{"cus_42"}, subs.activated)
	assert.Equal(t, []string{"premium_monthly"}, subs.plans)
	assert.Equal(t, 1, receipts.sent)
}

func TestProcess_InvoicePaymentFailedMarksPastDue(t *testing.T) {
	subs := &mockSubscriptionStore{}
	d := NewDispatcher(subs, nil, time.Second)

	event := makeEvent(t, domain.EventInvoicePaymentFailed, domain.InvoicePayload{
		ID:           "in_1",
		Customer:     "cus_42",
		Subscription: "sub_1",
		AttemptCount: 2,
		LastPaymentError: &domain.ProviderError{
			Code:        "card_declined",
			DeclineCode: "insufficient_funds",
		},
	})
	result := d.Process(context.Background(), event)

	require.True(t, result.Success)
	assert.Equal(t, []string{"cus_42"}, subs.pastDue)
}

func TestProcess_SubscriptionDeletedCancels(t *testing.T) {
	subs := &mockSubscriptionStore{}
	d := NewDispatcher(subs, nil, time.Second)

	event := makeEvent(t, domain.EventSubscriptionDeleted, domain.SubscriptionPayload{
		ID:       "sub_1",
		Customer: "cus_42",
		Status:   "canceled",
	})
	result := d.Process(context.Background(), event)

	require.True(t, result.Success)
	assert.Equal(t, []string{"cus_42"}, subs.canceled)
}

func TestProcess_HandlerErrorIsContained(t *testing.T) {
	subs := &mockSubscriptionStore{err: errors.New("subscriptions table unreachable")}
	d := NewDispatcher(subs, nil, time.Second)

	event := makeEvent(t, domain.EventPaymentIntentSucceeded, domain.PaymentIntentPayload{
		ID: "pi_1", Customer: "cus_42",
	})
	result := d.Process(context.Background(), event)

	assert.False(t, result.Success)
	assert.Equal(t, "handler failure", result.Message)
	assert.Contains(t, result.Err, "subscriptions table unreachable")
}

func TestProcess_HandlerPanicIsContained(t *testing.T) {
	subs := &mockSubscriptionStore{panicValue: "nil map write"}
	d := NewDispatcher(subs, nil, time.Second)

	event := makeEvent(t, domain.EventPaymentIntentSucceeded, domain.PaymentIntentPayload{
		ID: "pi_1", Customer: "cus_42",
	})

	var result Result
	require.NotPanics(t, func() {
		result = d.Process(context.Background(), event)
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "panic")
}

func TestProcess_InvalidPayloadFails(t *testing.T) {
	d := NewDispatcher(&mockSubscriptionStore{}, nil, time.Second)

	// Payment intent without a customer fails shape validation.
	event := makeEvent(t, domain.EventPaymentIntentSucceeded, map[string]string{"id": "pi_1"})
	result := d.Process(context.Background(), event)

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "invalid event payload")
}

type blockingStore struct {
	mockSubscriptionStore
}

func (s *blockingStore) ActivateSubscription(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestProcess_TimeoutBecomesHandlerFailure(t *testing.T) {
	d := NewDispatcher(&blockingStore{}, nil, 20*time.Millisecond)

	event := makeEvent(t, domain.EventPaymentIntentSucceeded, domain.PaymentIntentPayload{
		ID: "pi_1", Customer: "cus_42",
	})

	start := time.Now()
	result := d.Process(context.Background(), event)

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "context deadline exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

func TestProcess_ReceiptFailureFailsHandler(t *testing.T) {
	subs := &mockSubscriptionStore{}
	receipts := &mockReceiptSender{err: errors.New("receipt service returned 503")}
	d := NewDispatcher(subs, receipts, time.Second)

	event := makeEvent(t, domain.EventPaymentIntentSucceeded, domain.PaymentIntentPayload{
		ID: "pi_1", Customer: "cus_42",
	})
	result := d.Process(context.Background(), event)

	assert.False(t, result.Success)
	assert.Contains(t, result.Err, "send receipt")
	// The subscription write happened before the receipt attempt; the
	// store upsert keeps a redelivered retry idempotent.
	assert.Equal(t, []string{"cus_42"}, subs.activated)
}
