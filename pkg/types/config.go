// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Pipeline defaults.
const (
	DefaultMaxIterations          = 3
	DefaultMaxQueries             = 3
	DefaultWorkerLimit            = 5
	DefaultMaxResultsPerIteration = 8
	DefaultMaxResultsPerQuery     = 5
	DefaultRetryAttempts          = 3
	DefaultConfidenceThreshold    = 0.75
	DefaultRequestTimeout         = 60 * time.Second
	DefaultCacheTTL               = time.Hour
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-call HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-agent/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search connector and its providers.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the search backend: mock, brave, or serpapi.
	Provider string `json:"provider" yaml:"provider"`

	// BraveAPIKey authenticates against the Brave Search API.
	BraveAPIKey string `json:"brave_api_key,omitempty" yaml:"brave_api_key,omitempty"`

	// SerpAPIKey authenticates against SerpAPI.
	SerpAPIKey string `json:"serpapi_key,omitempty" yaml:"serpapi_key,omitempty"`

	// MaxResultsPerQuery caps results requested from a provider per call (default 5).
	MaxResultsPerQuery int `json:"max_results_per_query" yaml:"max_results_per_query"`

	// MaxResultsPerIteration caps the merged batch returned per iteration (default 8).
	MaxResultsPerIteration int `json:"max_results_per_iteration" yaml:"max_results_per_iteration"`

	// WorkerLimit bounds concurrent provider calls in a fan-out batch (default 5).
	WorkerLimit int `json:"worker_limit" yaml:"worker_limit"`

	// RetryAttempts caps retries for a rate-limited provider call (default 3).
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RatePerSecond refills the per-provider token bucket (default 5).
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`

	// RateBurst is the token bucket capacity (default 5).
	RateBurst int `json:"rate_burst" yaml:"rate_burst"`

	// CacheTTL is how long search responses stay cached (default 1h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// FilterPII drops results whose title or snippet contains PII.
	FilterPII bool `json:"filter_pii" yaml:"filter_pii"`
}

// PlannerConfig holds settings for query planning.
type PlannerConfig struct {
	// MaxQueries caps the queries generated per iteration (default 3).
	MaxQueries int `json:"max_queries" yaml:"max_queries"`
}

// ReflectionConfig holds settings for the iteration controller.
type ReflectionConfig struct {
	// ConfidenceThreshold is the sufficiency cutoff (default 0.75).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// MaxIterations bounds the search/reflection loop (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MinEvidence is the evidence count below which the heuristic verdict
	// always asks for another round (default 3).
	MinEvidence int `json:"min_evidence" yaml:"min_evidence"`
}

// SafetyConfig toggles individual filters in the safety pipeline.
type SafetyConfig struct {
	EnablePII           bool `json:"enable_pii" yaml:"enable_pii"`
	EnableInjection     bool `json:"enable_injection" yaml:"enable_injection"`
	EnableToxicity      bool `json:"enable_toxicity" yaml:"enable_toxicity"`
	EnableBias          bool `json:"enable_bias" yaml:"enable_bias"`
	EnableHallucination bool `json:"enable_hallucination" yaml:"enable_hallucination"`

	// StrictHallucination turns hallucination flags into output-stage blocks.
	StrictHallucination bool `json:"strict_hallucination" yaml:"strict_hallucination"`
}

// SynthesisConfig holds settings for answer synthesis.
type SynthesisConfig struct {
	// MaxSources caps the evidence entries included in the prompt (default 10).
	MaxSources int `json:"max_sources" yaml:"max_sources"`

	// MinCitationRelevance is the score below which a source is not cited (default 0.05).
	MinCitationRelevance float64 `json:"min_citation_relevance" yaml:"min_citation_relevance"`
}

// LLMConfig holds settings for the language-model capability.
type LLMConfig struct {
	// Model is the model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries caps retries for rate-limited model calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SMSConfig holds settings for the SMS channel: the inbound webhook and
// the outbound gateway.
type SMSConfig struct {
	HTTPConfig `yaml:",inline"`

	// GatewayURL is the outbound SMS provider endpoint.
	GatewayURL string `json:"gateway_url" yaml:"gateway_url"`

	// AccountSID identifies the gateway account.
	AccountSID string `json:"account_sid,omitempty" yaml:"account_sid,omitempty"`

	// AuthToken authenticates against the gateway.
	AuthToken string `json:"auth_token,omitempty" yaml:"auth_token,omitempty"`

	// FromNumber is the sender number for outbound messages.
	FromNumber string `json:"from_number" yaml:"from_number"`

	// MaxRetries caps retries for rate-limited gateway calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StoreConfig holds settings for the persistence collaborator.
type StoreConfig struct {
	// Path is the SQLite database file (default "research-agent.db").
	Path string `json:"path" yaml:"path"`
}

// Config groups all component configurations for the orchestrator.
type Config struct {
	Search     SearchConfig     `json:"search" yaml:"search"`
	Planner    PlannerConfig    `json:"planner" yaml:"planner"`
	Reflection ReflectionConfig `json:"reflection" yaml:"reflection"`
	Safety     SafetyConfig     `json:"safety" yaml:"safety"`
	Synthesis  SynthesisConfig  `json:"synthesis" yaml:"synthesis"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	SMS        SMSConfig        `json:"sms" yaml:"sms"`
	Store      StoreConfig      `json:"store" yaml:"store"`

	// RequestTimeout is the overall per-request deadline (default 60s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// DefaultConfig returns the documented defaults with all safety filters on.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   10 * time.Second,
				UserAgent: "research-agent/0.1",
			},
			Provider:               "mock",
			MaxResultsPerQuery:     DefaultMaxResultsPerQuery,
			MaxResultsPerIteration: DefaultMaxResultsPerIteration,
			WorkerLimit:            DefaultWorkerLimit,
			RetryAttempts:          DefaultRetryAttempts,
			RatePerSecond:          5,
			RateBurst:              5,
			CacheTTL:               DefaultCacheTTL,
			FilterPII:              true,
		},
		Planner: PlannerConfig{MaxQueries: DefaultMaxQueries},
		Reflection: ReflectionConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
			MaxIterations:       DefaultMaxIterations,
			MinEvidence:         3,
		},
		Safety: SafetyConfig{
			EnablePII:           true,
			EnableInjection:     true,
			EnableToxicity:      true,
			EnableBias:          true,
			EnableHallucination: true,
		},
		Synthesis: SynthesisConfig{
			MaxSources:           10,
			MinCitationRelevance: 0.05,
		},
		LLM: LLMConfig{Model: "gemini-2.0-flash", MaxRetries: 3},
		SMS: SMSConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   10 * time.Second,
				UserAgent: "research-agent/0.1",
			},
			MaxRetries: DefaultRetryAttempts,
		},
		Store:          StoreConfig{Path: "research-agent.db"},
		RequestTimeout: DefaultRequestTimeout,
	}
}
