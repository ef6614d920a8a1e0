package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
)

// HTTPGateway posts settlement requests to the gateway's /payments/create.
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
}

func (g *HTTPGateway) Settle(ctx context.Context, req SettleRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := strings.TrimRight(g.BaseURL, "/") + "/payments/create"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	telemetry.Inject(ctx, httpReq.Header)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("gateway rejected settlement: %s", resp.Status)
	}
	return nil
}
