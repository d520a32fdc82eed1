// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrRateLimited signals a provider or model rejected a call for rate
// reasons. It is retried internally and surfaced only after the retry
// budget is exhausted.
var ErrRateLimited = errors.New("rate limited")

// PlanningError indicates the question was unusable. It is the only hard
// failure with no partial result.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning: %s", e.Reason)
}

// ProviderError wraps a search backend failure. Transient failures are
// retried locally and degrade gracefully; the affected query simply
// contributes no evidence.
type ProviderError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SynthesisError indicates there was no evidence to synthesize from. The
// orchestrator degrades to a fallback answer rather than failing the run.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis: %s", e.Reason)
}

// SafetyBlockedError is terminal: the blocked content never proceeds past
// the filter that produced it.
type SafetyBlockedError struct {
	Stage  SafetyStage
	Filter string
	Reason string
}

func (e *SafetyBlockedError) Error() string {
	return fmt.Sprintf("safety blocked at %s stage by %s: %s", e.Stage, e.Filter, e.Reason)
}
