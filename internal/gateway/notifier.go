package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/shopspring/decimal"
)

// Callback is the body posted to the merchant webhook.
type Callback struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Status    Status          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

type Notifier interface {
	Notify(ctx context.Context, cb Callback) error
}

// HTTPNotifier delivers callbacks once; there is no retry.
type HTTPNotifier struct {
	URL    string
	Client *http.Client
}

func (n *HTTPNotifier) Notify(ctx context.Context, cb Callback) error {
	body, err := json.Marshal(cb)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.Inject(ctx, req.Header)

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook rejected: %s", resp.Status)
	}
	return nil
}
