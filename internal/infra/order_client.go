package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// expiredPayload is the body the order service expects on its expiry
// endpoint.
type expiredPayload struct {
	OrderID string `json:"pedidoId"`
}

// OrderClient notifies the order service over HTTP. Calls go through a
// circuit breaker when one is configured.
type OrderClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewOrderClient(baseURL string, timeout time.Duration, breaker *CircuitBreaker) *OrderClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OrderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// NotifyExpired sends PUT {baseURL}/expired so the order service can close
// the order. 4xx answers are wrapped with ErrPermanent.
func (c *OrderClient) NotifyExpired(ctx context.Context, orderID string) error {
	call := func() error { return c.put(ctx, "/expired", expiredPayload{OrderID: orderID}) }
	if c.breaker == nil {
		return call()
	}
	return c.breaker.Execute(call)
}

func (c *OrderClient) put(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("order client: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("order client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("order client: order service unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("order client: order service returned %d: %w", resp.StatusCode, ErrPermanent)
	default:
		return fmt.Errorf("order client: order service returned %d", resp.StatusCode)
	}
}
