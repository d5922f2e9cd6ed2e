package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logpkg "github.com/jdertmann/herald/pkg/log"
)

// WebhookSender posts payloads to destinations whose IDs are http(s) URLs.
// Non-URL destinations are logged and treated as delivered, which keeps
// cursors moving for destinations wired up out of band.
type WebhookSender struct {
	client *http.Client
	logger logpkg.Logger
}

// NewWebhookSender builds a sender with a default 10s request timeout.
func NewWebhookSender(logger logpkg.Logger) *WebhookSender {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With(logpkg.Component("webhook")),
	}
}

func (s *WebhookSender) Send(ctx context.Context, destinationID string, payload []byte) error {
	if !strings.HasPrefix(destinationID, "http://") && !strings.HasPrefix(destinationID, "https://") {
		s.logger.Info("delivered",
			logpkg.Str("destination", destinationID),
			logpkg.Int("bytes", len(payload)))
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destinationID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s: status %d", destinationID, resp.StatusCode)
	}
	return nil
}
