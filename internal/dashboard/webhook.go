package dashboard

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Dashboard-Signature"

const maxErrorBodySize = 512

// WebhookSender POSTs updates to an HTTP endpoint, signing each body.
type WebhookSender struct {
	url    string
	secret string
	topic  string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookSender(url, secret, topic string, timeout time.Duration, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		url:    url,
		secret: secret,
		topic:  topic,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *WebhookSender) Send(ctx context.Context, target, eventType string, payload any) error {
	body, err := encodeUpdate(newUpdate(s.topic, target, eventType, payload))
	if err != nil {
		return err
	}

	signature, err := Sign(body, s.secret)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("dashboard webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug("Delivered dashboard update",
		zap.String("url", s.url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency),
	)
	return nil
}

// Sign returns the HMAC SHA256 of payload as "sha256=<hex>".
func Sign(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}
