// Package notify holds outbound side-effect clients invoked by event
// handlers. Failures here are business-level handler failures, contained at
// the dispatcher boundary.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/logging"
)

// ReceiptClient posts payment receipts to the main application, which owns
// email delivery. The short client timeout keeps a slow receipt service from
// stalling webhook processing.
type ReceiptClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewReceiptClient(baseURL string) *ReceiptClient {
	return &ReceiptClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type receiptPayload struct {
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency,omitempty"`
	SentAt     string `json:"sent_at"`
}

func (c *ReceiptClient) SendReceipt(ctx context.Context, customerID string, amount int64, currency string) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(receiptPayload{
		CustomerID: customerID,
		Amount:     amount,
		Currency:   currency,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("SendReceipt: marshal: %w", err)
	}

	url := c.baseURL + "/receipts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("SendReceipt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SendReceipt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SendReceipt: receipt service returned %d", resp.StatusCode)
	}

	log.Debug("receipt dispatched", "customer", customerID, "amount", amount)
	return nil
}
