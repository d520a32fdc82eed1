// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SafetyStage identifies which end of the pipeline a filter pass covers.
type SafetyStage string

const (
	StageInput  SafetyStage = "input"
	StageOutput SafetyStage = "output"
)

// SafetyAction is a filter's decision for a piece of text.
type SafetyAction string

const (
	ActionPass   SafetyAction = "pass"
	ActionRedact SafetyAction = "redact"
	ActionBlock  SafetyAction = "block"
)

// SafetyVerdict is the outcome of one filter applied to one text.
type SafetyVerdict struct {
	// FilterName identifies the filter that produced the verdict.
	FilterName string `json:"filter_name" yaml:"filter_name"`

	// Action is pass, redact, or block.
	Action SafetyAction `json:"action" yaml:"action"`

	// RedactedText is the transformed text when Action is redact.
	RedactedText string `json:"redacted_text,omitempty" yaml:"redacted_text,omitempty"`

	// Reason explains a redact or block decision.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}
