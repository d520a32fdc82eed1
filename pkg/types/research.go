// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-agent
// pipeline: requests, search results, evidence, citations, timeline events,
// safety verdicts, and the configuration objects passed into each component.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the medium through which a request entered the core.
const (
	ChannelWeb = "web"
	ChannelSMS = "sms"
	ChannelAPI = "api"
	ChannelCLI = "cli"
)

// ResearchRequest is the immutable input to one research run.
type ResearchRequest struct {
	// ID uniquely identifies the request.
	ID string `json:"id" yaml:"id"`

	// QuestionText is the user's natural-language question.
	QuestionText string `json:"question_text" yaml:"question_text"`

	// Channel records where the request came from (web, sms, api, cli).
	Channel string `json:"channel" yaml:"channel"`

	// MaxIterations bounds the search/reflection loop.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// CreatedAt is the request creation time.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewResearchRequest builds a request with a fresh UUID. A non-positive
// maxIterations falls back to DefaultMaxIterations.
func NewResearchRequest(question, channel string, maxIterations int) ResearchRequest {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if channel == "" {
		channel = ChannelAPI
	}
	return ResearchRequest{
		ID:            uuid.NewString(),
		QuestionText:  question,
		Channel:       channel,
		MaxIterations: maxIterations,
		CreatedAt:     time.Now().UTC(),
	}
}

// Status classifies the outcome of a research run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusBlocked   Status = "blocked"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Citation links one answer to a supporting evidence entry. The URL must
// exist in the request's evidence pool.
type Citation struct {
	// URL is the cited source location.
	URL string `json:"url" yaml:"url"`

	// Title is the cited source title.
	Title string `json:"title" yaml:"title"`

	// RelevanceScore is how much of the answer draws on this source, in [0,1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`
}

// ReflectionVerdict is the outcome of one reflection pass. Produced once per
// iteration and never retroactively changed.
type ReflectionVerdict struct {
	// Sufficient reports whether the gathered evidence answers the question.
	Sufficient bool `json:"sufficient" yaml:"sufficient"`

	// ConfidenceScore estimates answer confidence so far, in [0,1].
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`

	// FollowUpQueries suggests searches for the next iteration.
	FollowUpQueries []string `json:"follow_up_queries,omitempty" yaml:"follow_up_queries,omitempty"`
}

// ResearchResult is the final output of one research run.
type ResearchResult struct {
	// RequestID matches the originating ResearchRequest.
	RequestID string `json:"request_id" yaml:"request_id"`

	// AnswerText is the synthesized, safety-filtered answer.
	AnswerText string `json:"answer_text" yaml:"answer_text"`

	// Citations lists the sources the answer draws on.
	Citations []Citation `json:"citations" yaml:"citations"`

	// IterationsUsed counts completed search/reflection iterations.
	IterationsUsed int `json:"iterations_used" yaml:"iterations_used"`

	// ConfidenceScore is the overall answer confidence, in [0,1].
	ConfidenceScore float64 `json:"confidence_score" yaml:"confidence_score"`

	// Status classifies the outcome.
	Status Status `json:"status" yaml:"status"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`

	// Duration is the total wall-clock time of the run.
	Duration time.Duration `json:"duration" yaml:"duration"`
}
