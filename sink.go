package newsharvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultWebhookTimeout bounds one delivery.
const DefaultWebhookTimeout = 15 * time.Second

// Sink receives site results that have at least one article.
type Sink interface {
	Deliver(ctx context.Context, endpoint string, result SiteResult) error
}

// WebhookSink POSTs results as JSON.
type WebhookSink struct {
	client  *http.Client
	timeout time.Duration
}

// NewWebhookSink creates a sink. client may be nil.
func NewWebhookSink(client *http.Client, timeout time.Duration) *WebhookSink {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &WebhookSink{client: client, timeout: timeout}
}

// Deliver POSTs result to endpoint. Any failure, including a non-2xx
// answer, is a *DeliveryError.
func (s *WebhookSink) Deliver(ctx context.Context, endpoint string, result SiteResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return &DeliveryError{URL: endpoint, Err: fmt.Errorf("failed to encode result: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	return nil
}
