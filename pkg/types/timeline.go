// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Timeline step names, in the order the orchestrator emits them.
const (
	StepStart           = "start"
	StepSafetyInput     = "safety_input"
	StepQueryPlanning   = "query_planning"
	StepSearchStarted   = "search_started"
	StepSearchCompleted = "search_completed"
	StepCacheHit        = "cache_hit"
	StepReflection      = "reflection"
	StepSynthesis       = "synthesis"
	StepSafetyOutput    = "safety_output"
	StepBlocked         = "blocked"
	StepComplete        = "complete"
)

// Timeline event statuses.
const (
	EventSuccess = "success"
	EventError   = "error"
	EventBlocked = "blocked"
)

// TimelineEvent is one ordered progress record for a request. Events are
// append-only and never mutated after emission.
type TimelineEvent struct {
	// RequestID matches the originating ResearchRequest.
	RequestID string `json:"request_id" yaml:"request_id"`

	// Seq is the emission order within the request, starting at 0.
	Seq int `json:"seq" yaml:"seq"`

	// Step names the pipeline stage that emitted the event.
	Step string `json:"step" yaml:"step"`

	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`

	// Elapsed is the monotonic offset from request start.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`

	// Status is success, error, or blocked.
	Status string `json:"status" yaml:"status"`
}
