package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/mealplan/internal/verify"
)

// webhookMessage is a Slack-compatible incoming webhook body. Receivers
// that only read "text" still get the summary.
type webhookMessage struct {
	Text   string        `json:"text"`
	Report verify.Report `json:"report"`
}

// WebhookSink posts reports as JSON to a webhook URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink creates a WebhookSink with a 10s client timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Publish implements verify.Sink. Any non-2xx response is an error.
func (s *WebhookSink) Publish(ctx context.Context, r verify.Report) error {
	body, err := json.Marshal(webhookMessage{Text: r.Summary(), Report: r})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

func marshalReport(r verify.Report) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}
