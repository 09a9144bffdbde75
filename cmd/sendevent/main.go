// sendevent signs and posts a synthetic provider event to a running gateway.
// Useful for smoke-testing an environment without involving the real
// provider:
//
//	sendevent -url http://localhost:8080 -secret $WEBHOOK_SHARED_SECRET \
//	  -type payment_intent.succeeded -customer cus_123
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/handler"
	"github.com/Lemonhead0712/heartheals-webhooks/internal/signature"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "gateway base URL")
		secret    = flag.String("secret", os.Getenv("WEBHOOK_SHARED_SECRET"), "shared signing secret")
		eventType = flag.String("type", domain.EventPaymentIntentSucceeded, "event type to send")
		eventID   = flag.String("id", "", "event ID (random when empty; reuse one to test idempotency)")
		customer  = flag.String("customer", "cus_test", "customer ID in the payload")
		amount    = flag.Int64("amount", 999, "amount in minor units")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "a signing secret is required (-secret or WEBHOOK_SHARED_SECRET)")
		os.Exit(2)
	}

	id := *eventID
	if id == "" {
		id = "evt_" + uuid.NewString()
	}

	payload, _ := json.Marshal(map[string]any{
		"id":       "pi_" + uuid.NewString(),
		"amount":   *amount,
		"currency": "usd",
		"customer": *customer,
		"metadata": map[string]string{"plan": "premium_monthly"},
	})
	body, err := json.Marshal(domain.InboundEvent{
		ID:      id,
		Type:    *eventType,
		Created: time.Now().Unix(),
		Data:    domain.EventData{Object: payload},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal event:", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/webhooks/payment", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "build request:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.SignatureHeader, signature.Sign(body, *secret, time.Now()))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "send:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("event %s → %s\n%s", id, resp.Status, respBody)
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}
