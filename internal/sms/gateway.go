// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/httputil"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Gateway sends outbound messages through an HTTP SMS provider. Rate
// limited sends retry with backoff before failing.
type Gateway struct {
	cfg    types.SMSConfig
	client *http.Client
	logger *zap.Logger
}

// NewGateway builds a gateway client from config.
func NewGateway(cfg types.SMSConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{}
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &Gateway{cfg: cfg, client: client, logger: logger}
}

// Send delivers one message to the recipient number. The body should
// already be formatted and within MaxMessageLength.
func (g *Gateway) Send(ctx context.Context, to, body string) error {
	if g.cfg.GatewayURL == "" {
		return fmt.Errorf("sms gateway URL not configured")
	}
	if len(body) > MaxMessageLength {
		return fmt.Errorf("message length %d exceeds limit %d", len(body), MaxMessageLength)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", g.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	if g.cfg.AccountSID != "" {
		req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	}

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("calling sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("sms gateway: %w", types.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, string(payload))
	}

	g.logger.Info("sms sent", zap.String("to", to), zap.Int("length", len(body)))
	return nil
}
