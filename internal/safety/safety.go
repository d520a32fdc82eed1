// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package safety applies an ordered filter pipeline to user input and to
// synthesized answers: PII detection, prompt-injection detection, toxicity
// filtering, bias flagging, and an output-stage hallucination check.
package safety

import (
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Context carries the request state a filter may consult. Evidence and
// Citations are populated on the output stage only.
type Context struct {
	Stage     types.SafetyStage
	Evidence  []types.SearchResult
	Citations []types.Citation
}

// Filter is one ordered check in the pipeline. Each evaluation returns
// exactly one verdict.
type Filter interface {
	Name() string
	AppliesTo(stage types.SafetyStage) bool
	Evaluate(text string, sctx Context) types.SafetyVerdict
}

// Outcome is the result of running the pipeline over one text.
type Outcome struct {
	// Text is the input after all redactions were applied in order.
	Text string

	// Verdicts lists one verdict per filter that ran, in pipeline order.
	Verdicts []types.SafetyVerdict

	// Blocked reports that a filter short-circuited the pipeline.
	Blocked bool

	// BlockedBy names the blocking filter when Blocked is set.
	BlockedBy string

	// HallucinationConfidence is the hallucination check's answer-confidence
	// estimate in [0,1], or -1 when the check did not run. Flags lower the
	// result's confidence; they do not fail the request.
	HallucinationConfidence float64
}

// Pipeline runs its filters in a fixed order. A block verdict returns
// immediately; redact verdicts transform the text for subsequent filters.
type Pipeline struct {
	filters []Filter
	logger  *zap.Logger
}

// NewPipeline assembles the filter chain from the configuration toggles,
// keeping the canonical order: PII, injection, toxicity, bias,
// hallucination.
func NewPipeline(cfg types.SafetyConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	var filters []Filter
	if cfg.EnablePII {
		filters = append(filters, &piiFilter{})
	}
	if cfg.EnableInjection {
		filters = append(filters, &injectionFilter{})
	}
	if cfg.EnableToxicity {
		filters = append(filters, &toxicityFilter{})
	}
	if cfg.EnableBias {
		filters = append(filters, &biasFilter{})
	}
	if cfg.EnableHallucination {
		filters = append(filters, &hallucinationFilter{strict: cfg.StrictHallucination})
	}
	return &Pipeline{filters: filters, logger: logger}
}

// Evaluate runs every applicable filter over text for the given stage.
func (p *Pipeline) Evaluate(text string, sctx Context) Outcome {
	out := Outcome{Text: text, HallucinationConfidence: -1}

	for _, f := range p.filters {
		if !f.AppliesTo(sctx.Stage) {
			continue
		}

		verdict := f.Evaluate(out.Text, sctx)
		out.Verdicts = append(out.Verdicts, verdict)

		switch verdict.Action {
		case types.ActionBlock:
			p.logger.Warn("safety filter blocked text",
				zap.String("filter", f.Name()),
				zap.String("stage", string(sctx.Stage)),
				zap.String("reason", verdict.Reason))
			out.Blocked = true
			out.BlockedBy = f.Name()
			return out
		case types.ActionRedact:
			p.logger.Info("safety filter redacted text",
				zap.String("filter", f.Name()),
				zap.String("stage", string(sctx.Stage)),
				zap.String("reason", verdict.Reason))
			out.Text = verdict.RedactedText
		}

		if _, ok := f.(*hallucinationFilter); ok {
			out.HallucinationConfidence = assessAnswerConfidence(out.Text, sctx)
		}
	}
	return out
}
