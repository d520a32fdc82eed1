// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language-model capability consumed by the
// planner, the reflection controller, and the synthesis engine. The model
// is an opaque text completer; components carry heuristic fallbacks and
// keep working when no completer is configured.
package llm

import "context"

// Completer turns a prompt into completion text. Implementations map
// provider rate limiting to types.ErrRateLimited so callers can retry.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
