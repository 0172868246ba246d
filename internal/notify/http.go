package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"adgate/internal/config"
	"adgate/internal/retry"
	"adgate/internal/types"
	"adgate/internal/version"

	"go.uber.org/zap"
)

// HTTPProvider sends email through a transactional email API
type HTTPProvider struct {
	config *config.EmailConfig
	logger *zap.Logger
	client *http.Client
}

type httpEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type httpEmailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// NewHTTPProvider creates new HTTP email provider
func NewHTTPProvider(cfg *config.EmailConfig, logger *zap.Logger) *HTTPProvider {
	timeout := cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		config: cfg,
		logger: logger.Named("email.http"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Name returns the provider name
func (p *HTTPProvider) Name() string { return config.EmailProviderHTTP }

// Send posts msg to the configured endpoint, retrying transient failures
func (p *HTTPProvider) Send(ctx context.Context, msg *types.EmailMessage) (string, error) {
	body, err := json.Marshal(httpEmailRequest{
		From:    sender(msg, p.config.From),
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("failed to marshal payload: %w", err))
	}

	var id string
	err = retry.Execute(ctx, &p.config.Retry, func(ctx context.Context) error {
		var sendErr error
		id, sendErr = p.post(ctx, body)
		return sendErr
	})
	if err != nil {
		return "", providerError(p.Name(), err)
	}

	p.logger.Debug("Email sent", zap.String("id", id), zap.String("to", msg.To))
	return id, nil
}

func (p *HTTPProvider) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.HTTP.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if p.config.HTTP.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.HTTP.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			p.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("provider responded with status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		// Client errors will not succeed on retry, except rate limiting
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.Permanent(statusErr)
		}
		return "", statusErr
	}

	var result httpEmailResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return result.ID, nil
}
