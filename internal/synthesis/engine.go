// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis produces the final answer text, a citation list, and a
// confidence score from the accumulated evidence pool. Answers are built
// strictly from pool content; every citation URL exists in the pool.
package synthesis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Synthesis is one synthesized answer with its citations.
type Synthesis struct {
	AnswerText      string
	Citations       []types.Citation
	ConfidenceScore float64
}

// Confidence blend weights: evidence volume, citation coverage, and the
// latest reflection verdict.
const (
	weightEvidence   = 0.4
	weightCoverage   = 0.3
	weightReflection = 0.3

	// evidenceSaturation is the pool size considered "plenty".
	evidenceSaturation = 5
)

// Engine synthesizes answers, via the model when available and through a
// deterministic extractive fallback otherwise.
type Engine struct {
	completer llm.Completer
	cfg       types.SynthesisConfig
	logger    *zap.Logger
}

// NewEngine builds a synthesis engine. completer may be nil.
func NewEngine(completer llm.Completer, cfg types.SynthesisConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 10
	}
	if cfg.MinCitationRelevance <= 0 {
		cfg.MinCitationRelevance = 0.05
	}
	return &Engine{completer: completer, cfg: cfg, logger: logger}
}

// Synthesize answers the question from the evidence pool. It fails with
// SynthesisError only when the pool is empty; latest carries the most
// recent reflection verdict, nil when none was produced.
func (e *Engine) Synthesize(ctx context.Context, question string, pool *types.EvidencePool, latest *types.ReflectionVerdict) (Synthesis, error) {
	if pool == nil || pool.Len() == 0 {
		return Synthesis{}, &types.SynthesisError{Reason: "evidence pool is empty"}
	}

	sources := pool.Results()
	if len(sources) > e.cfg.MaxSources {
		sources = sources[:e.cfg.MaxSources]
	}

	answer := e.generateAnswer(ctx, question, sources)
	citations := e.extractCitations(answer, sources)
	confidence := e.scoreConfidence(pool.Len(), len(citations), len(sources), latest)

	return Synthesis{
		AnswerText:      answer,
		Citations:       citations,
		ConfidenceScore: confidence,
	}, nil
}

// FallbackNoEvidence is the graceful answer for a run that gathered
// nothing usable.
func FallbackNoEvidence(question string) string {
	return fmt.Sprintf("I couldn't find sufficient information to answer your question about %q. "+
		"The topic may be very recent, or the phrasing may need different keywords. "+
		"Try rephrasing the question or breaking it into smaller parts.", question)
}

// generateAnswer prefers the model and falls back to an extractive
// summary when no completer is configured or the call fails.
func (e *Engine) generateAnswer(ctx context.Context, question string, sources []types.SearchResult) string {
	if e.completer != nil {
		prompt, err := renderSynthesisPrompt(question, sources)
		if err == nil {
			if answer, err := e.completer.Complete(ctx, prompt); err == nil {
				return strings.TrimSpace(answer)
			} else {
				e.logger.Warn("model synthesis failed, using extractive fallback", zap.Error(err))
			}
		}
	}
	return extractiveAnswer(question, sources)
}

// extractiveAnswer composes a deterministic answer directly from the top
// source snippets, attributing each.
func extractiveAnswer(question string, sources []types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d sources, here is what was found about %q:\n", len(sources), question)
	limit := 3
	if len(sources) < limit {
		limit = len(sources)
	}
	for i := 0; i < limit; i++ {
		s := sources[i]
		snippet := strings.TrimSpace(s.Snippet)
		if snippet == "" {
			snippet = strings.TrimSpace(s.Title)
		}
		fmt.Fprintf(&b, "\n- %s (%s)", snippet, s.Title)
	}
	return b.String()
}

// extractCitations maps each source the answer draws on to a citation.
// Relevance is the share of a source's significant terms that appear in
// the answer, rounded to two decimals; deterministic for identical input.
func (e *Engine) extractCitations(answer string, sources []types.SearchResult) []types.Citation {
	answerTerms := termSet(answer)

	var citations []types.Citation
	for _, s := range sources {
		score := overlapScore(answerTerms, termSet(s.Title+" "+s.Snippet))
		if score < e.cfg.MinCitationRelevance {
			continue
		}
		citations = append(citations, types.Citation{
			URL:            s.URL,
			Title:          s.Title,
			RelevanceScore: score,
		})
	}
	return citations
}

// scoreConfidence blends evidence volume, citation coverage, and the
// latest reflection confidence into [0,1].
func (e *Engine) scoreConfidence(evidenceCount, cited, sourceCount int, latest *types.ReflectionVerdict) float64 {
	evidence := float64(evidenceCount) / evidenceSaturation
	if evidence > 1 {
		evidence = 1
	}

	coverage := 0.0
	if sourceCount > 0 {
		coverage = float64(cited) / float64(sourceCount)
	}

	// No reflection ran (timeout before the first verdict); stay neutral.
	reflection := 0.5
	if latest != nil {
		reflection = latest.ConfidenceScore
	}

	score := weightEvidence*evidence + weightCoverage*coverage + weightReflection*reflection
	return math.Min(1, math.Max(0, score))
}

// termSet tokenizes text into lowercase terms of four or more characters,
// dropping short glue words.
func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) >= 4 {
			terms[w] = true
		}
	}
	return terms
}

// overlapScore is |source ∩ answer| / |source|, rounded to two decimals.
func overlapScore(answer, source map[string]bool) float64 {
	if len(source) == 0 {
		return 0
	}
	shared := 0
	for t := range source {
		if answer[t] {
			shared++
		}
	}
	return math.Round(float64(shared)/float64(len(source))*100) / 100
}
