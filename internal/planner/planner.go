// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner turns a research question, and on later iterations the
// reflection verdict's follow-up suggestions, into a bounded set of
// distinct search queries.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/search"
	"github.com/pdiddy/research-agent/pkg/types"
)

// Planner generates queries for one request. Create one per request: it
// remembers every query it has issued so the query space stays idempotent
// across iterations.
type Planner struct {
	completer llm.Completer
	cfg       types.PlannerConfig
	logger    *zap.Logger
	issued    map[string]bool
}

// New builds a request-scoped planner. completer may be nil; the planner
// then falls back to deterministic reformulations.
func New(completer llm.Completer, cfg types.PlannerConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = types.DefaultMaxQueries
	}
	return &Planner{
		completer: completer,
		cfg:       cfg,
		logger:    logger,
		issued:    make(map[string]bool),
	}
}

// Plan produces up to MaxQueries distinct queries for the iteration. On
// iteration 0 it reformulates the question; afterwards it consumes the
// latest verdict's follow-up queries, dropping any query already issued
// for this request. It fails only when the question is empty after
// normalization, and otherwise always returns at least one query.
func (p *Planner) Plan(ctx context.Context, question string, feedback []string, iteration int) ([]types.SearchQuery, error) {
	if search.NormalizeQuery(question) == "" {
		return nil, &types.PlanningError{Reason: "question is empty"}
	}

	var candidates []string
	if iteration == 0 {
		candidates = p.reformulate(ctx, question)
	} else {
		candidates = append(candidates, feedback...)
	}

	// Deterministic fallbacks keep the contract of at least one query even
	// when every candidate was already issued.
	candidates = append(candidates, heuristicReformulations(question)...)
	candidates = append(candidates, fmt.Sprintf("%s follow-up %d", question, iteration))

	queries := make([]types.SearchQuery, 0, p.cfg.MaxQueries)
	for _, c := range candidates {
		normalized := search.NormalizeQuery(c)
		if normalized == "" || p.issued[normalized] {
			continue
		}
		p.issued[normalized] = true
		queries = append(queries, types.SearchQuery{Text: strings.TrimSpace(c), IterationIndex: iteration})
		if len(queries) == p.cfg.MaxQueries {
			break
		}
	}

	p.logger.Debug("planned queries",
		zap.Int("iteration", iteration),
		zap.Int("count", len(queries)))
	return queries, nil
}

// reformulate asks the model for distinct reformulations, falling back to
// the heuristics when no completer is configured or the call fails.
func (p *Planner) reformulate(ctx context.Context, question string) []string {
	if p.completer == nil {
		return heuristicReformulations(question)
	}

	prompt, err := renderPlannerPrompt(question, p.cfg.MaxQueries)
	if err != nil {
		return heuristicReformulations(question)
	}

	completion, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("query generation via model failed, using heuristics", zap.Error(err))
		return heuristicReformulations(question)
	}

	lines := parseQueryLines(completion)
	if len(lines) == 0 {
		return heuristicReformulations(question)
	}
	return lines
}

// heuristicReformulations covers distinct facets of the question without a
// model: the question itself, background, and recency.
func heuristicReformulations(question string) []string {
	q := strings.TrimSpace(question)
	return []string{
		q,
		q + " overview",
		q + " latest developments",
	}
}

// parseQueryLines extracts one query per non-empty line, stripping list
// markers the model tends to emit.
func parseQueryLines(completion string) []string {
	var out []string
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.Trim(line, `"`)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
