// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/pdiddy/research-agent/pkg/types"
)

// retryBaseDelay is the base backoff for rate-limited model calls.
// Package-level var for test substitution.
var retryBaseDelay = 500 * time.Millisecond

// Gemini calls the Gemini API through the official genai client.
type Gemini struct {
	client     *genai.Client
	model      string
	maxRetries int
}

// NewGemini builds a Gemini completer from the LLM configuration.
func NewGemini(ctx context.Context, cfg types.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{client: client, model: model, maxRetries: maxRetries}, nil
}

// Complete sends the prompt and returns the response text. Rate-limited
// calls are retried with exponential backoff; after the retry budget is
// exhausted the error wraps types.ErrRateLimited.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * retryBaseDelay
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			if isRateLimited(err) {
				lastErr = fmt.Errorf("gemini: %w", types.ErrRateLimited)
				continue
			}
			return "", fmt.Errorf("gemini: generating content: %w", err)
		}

		text := result.Text()
		if text == "" {
			return "", fmt.Errorf("gemini: empty completion")
		}
		return text, nil
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
