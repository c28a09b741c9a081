// Package notify delivers limiter alerts to external channels. The only
// channel is a user-configured webhook; alerts are best-effort and never
// block the control loop.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tame-app/tame/internal/util"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event      string  `json:"event"`
	CapPercent float64 `json:"cap_percent,omitempty"`
	Device     string  `json:"device,omitempty"`
	Error      string  `json:"error,omitempty"`
	Message    string  `json:"message,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// SendDegradedWebhook notifies the configured webhook that volume control
// has failed and the limiter went idle.
func SendDegradedWebhook(webhookURL string, capPercent float64, errMsg string) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:      "limiter_degraded",
		CapPercent: capPercent,
		Error:      errMsg,
		Message:    "Volume control is unavailable; the limiter is idle until re-enabled.",
		Timestamp:  timestampUTC(),
	})
}

// SendCaptureLostWebhook notifies the configured webhook that loudness
// metering stopped.
func SendCaptureLostWebhook(webhookURL, device, reason string) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "capture_lost",
		Device:    device,
		Error:     reason,
		Message:   "Audio capture stopped; the limiter assumes silence until it recovers.",
		Timestamp: timestampUTC(),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from tame",
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
