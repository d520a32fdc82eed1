// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent wires the pipeline together: safety screening, query
// planning, search fan-out, reflection, synthesis, and persistence, in
// that order, for one research request at a time. The agent itself is
// shared; all per-request state lives in request-scoped collaborators.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/internal/planner"
	"github.com/pdiddy/research-agent/internal/reflection"
	"github.com/pdiddy/research-agent/internal/safety"
	"github.com/pdiddy/research-agent/internal/search"
	"github.com/pdiddy/research-agent/internal/synthesis"
	"github.com/pdiddy/research-agent/internal/timeline"
	"github.com/pdiddy/research-agent/pkg/types"
)

// blockedAnswer replaces the synthesized answer when a safety filter
// blocks the request or the response.
const blockedAnswer = "I can't process this request because it conflicts with the content safety policy. Please rephrase and try again."

// Saver persists completed runs. The store satisfies it; tests substitute
// a recorder.
type Saver interface {
	Save(ctx context.Context, req types.ResearchRequest, result types.ResearchResult, events []types.TimelineEvent) error
}

// Agent orchestrates research runs. Safe for concurrent Run calls; the
// connector, safety pipeline, and synthesizer are shared, everything
// request-scoped is created inside Run.
type Agent struct {
	connector   *search.Connector
	completer   llm.Completer
	safety      *safety.Pipeline
	synthesizer *synthesis.Engine
	saver       Saver
	cfg         types.Config
	logger      *zap.Logger
}

// New builds an agent. completer and saver may be nil: without a
// completer every stage uses its deterministic fallback, and without a
// saver runs are not persisted.
func New(connector *search.Connector, completer llm.Completer, safetyPipeline *safety.Pipeline, synthesizer *synthesis.Engine, saver Saver, cfg types.Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = types.DefaultRequestTimeout
	}
	return &Agent{
		connector:   connector,
		completer:   completer,
		safety:      safetyPipeline,
		synthesizer: synthesizer,
		saver:       saver,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one research request end to end and returns the result
// together with the run's timeline. Degraded, blocked, timed out, and
// cancelled runs are results, not errors; Run fails only when the request
// itself is unusable.
func (a *Agent) Run(ctx context.Context, req types.ResearchRequest, opts ...timeline.Option) (types.ResearchResult, []types.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	em := timeline.NewEmitter(req.ID, a.logger, opts...)
	logger := a.logger.With(zap.String("request_id", req.ID))

	em.Emit(types.StepStart, fmt.Sprintf("research started on channel %s", req.Channel), types.EventSuccess)
	logger.Info("research run started",
		zap.String("channel", req.Channel),
		zap.Int("max_iterations", req.MaxIterations))

	// Input screening runs before anything can reach a provider.
	question := req.QuestionText
	if a.safety != nil {
		in := a.safety.Evaluate(question, safety.Context{Stage: types.StageInput})
		if in.Blocked {
			em.Emit(types.StepSafetyInput, fmt.Sprintf("input blocked by %s", in.BlockedBy), types.EventBlocked)
			em.Emit(types.StepBlocked, "request rejected before search", types.EventBlocked)
			result := a.finish(ctx, em, req, types.ResearchResult{
				RequestID:  req.ID,
				AnswerText: blockedAnswer,
				Status:     types.StatusBlocked,
			})
			return result, em.Events(), nil
		}
		question = in.Text
		em.Emit(types.StepSafetyInput, "input passed safety screening", types.EventSuccess)
	}

	ctl := reflection.New(a.completer, a.reflectionConfig(req), logger)
	plan := planner.New(a.completer, a.cfg.Planner, logger)
	pool := types.NewEvidencePool()

	var feedback []string
	interrupted := false

	for {
		if err := ctl.BeginSearch(); err != nil {
			ctl.Fail()
			return types.ResearchResult{}, em.Events(), err
		}

		queries, err := plan.Plan(ctx, question, feedback, ctl.Iteration())
		if err != nil {
			ctl.Fail()
			em.Emit(types.StepQueryPlanning, err.Error(), types.EventError)
			return types.ResearchResult{}, em.Events(), err
		}
		em.Emit(types.StepQueryPlanning, fmt.Sprintf("planned %d queries for iteration %d", len(queries), ctl.Iteration()), types.EventSuccess)

		batch := a.connector.SearchAll(ctx, queries, em.Sink())
		pool.Add(batch.Results...)

		if ctx.Err() != nil {
			interrupted = true
			ctl.ForceSynthesize()
			break
		}

		verdict, err := ctl.Reflect(ctx, question, pool)
		if err != nil {
			ctl.Fail()
			return types.ResearchResult{}, em.Events(), err
		}
		em.Emit(types.StepReflection,
			fmt.Sprintf("iteration %d confidence %.2f sufficient %t", ctl.Iteration(), verdict.ConfidenceScore, verdict.Sufficient),
			types.EventSuccess)

		if verdict.Sufficient {
			break
		}
		feedback = verdict.FollowUpQueries
	}

	result := a.synthesize(ctx, em, logger, req, question, pool, ctl, interrupted)
	result = a.finish(ctx, em, req, result)
	return result, em.Events(), nil
}

// synthesize builds the answer from whatever evidence exists and applies
// output screening.
func (a *Agent) synthesize(ctx context.Context, em *timeline.Emitter, logger *zap.Logger, req types.ResearchRequest, question string, pool *types.EvidencePool, ctl *reflection.Controller, interrupted bool) types.ResearchResult {
	result := types.ResearchResult{
		RequestID:      req.ID,
		IterationsUsed: ctl.Iteration(),
	}

	var latest *types.ReflectionVerdict
	if v, ok := ctl.LatestVerdict(); ok {
		latest = &v
	}
	synth, err := a.synthesizer.Synthesize(ctx, question, pool, latest)
	if err != nil {
		var synthErr *types.SynthesisError
		if errors.As(err, &synthErr) {
			// Nothing usable was gathered.
			result.AnswerText = synthesis.FallbackNoEvidence(question)
			result.Status = types.StatusDegraded
			if interrupted {
				result.Status = interruptStatus(ctx)
			}
			em.Emit(types.StepSynthesis, "no evidence gathered, returning fallback answer", types.EventError)
			ctl.Complete()
			return result
		}
		logger.Warn("synthesis failed", zap.Error(err))
		result.AnswerText = synthesis.FallbackNoEvidence(question)
		result.Status = types.StatusDegraded
		em.Emit(types.StepSynthesis, fmt.Sprintf("synthesis failed: %v", err), types.EventError)
		ctl.Complete()
		return result
	}

	result.AnswerText = synth.AnswerText
	result.Citations = synth.Citations
	result.ConfidenceScore = synth.ConfidenceScore
	em.Emit(types.StepSynthesis, fmt.Sprintf("synthesized answer with %d citations", len(synth.Citations)), types.EventSuccess)

	switch {
	case interrupted && errors.Is(ctx.Err(), context.Canceled):
		result.Status = types.StatusCancelled
	case interrupted, ctl.Exhausted():
		result.Status = types.StatusDegraded
	default:
		result.Status = types.StatusCompleted
	}

	if a.safety != nil {
		out := a.safety.Evaluate(result.AnswerText, safety.Context{
			Stage:     types.StageOutput,
			Evidence:  pool.Results(),
			Citations: result.Citations,
		})
		if out.Blocked {
			em.Emit(types.StepSafetyOutput, fmt.Sprintf("answer blocked by %s", out.BlockedBy), types.EventBlocked)
			result.AnswerText = blockedAnswer
			result.Citations = nil
			result.ConfidenceScore = 0
			result.Status = types.StatusBlocked
		} else {
			result.AnswerText = out.Text
			// A hallucination flag lowers confidence, never fails the run.
			if out.HallucinationConfidence >= 0 && out.HallucinationConfidence < result.ConfidenceScore {
				result.ConfidenceScore = out.HallucinationConfidence
			}
			em.Emit(types.StepSafetyOutput, "answer passed safety screening", types.EventSuccess)
		}
	}

	ctl.Complete()
	return result
}

// finish stamps timing, persists the run, and emits the terminal event.
func (a *Agent) finish(ctx context.Context, em *timeline.Emitter, req types.ResearchRequest, result types.ResearchResult) types.ResearchResult {
	result.CompletedAt = time.Now().UTC()
	result.Duration = em.Elapsed()
	em.Emit(types.StepComplete, fmt.Sprintf("run finished with status %s", result.Status), types.EventSuccess)

	if a.saver != nil && (result.Status == types.StatusCompleted || result.Status == types.StatusDegraded) {
		// Persist on a fresh context so an expired request deadline does not
		// lose the run.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.saver.Save(saveCtx, req, result, em.Events()); err != nil {
			a.logger.Warn("failed to persist run", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	return result
}

// interruptStatus distinguishes a cancelled run from a timed out one.
func interruptStatus(ctx context.Context) types.Status {
	if errors.Is(ctx.Err(), context.Canceled) {
		return types.StatusCancelled
	}
	return types.StatusTimedOut
}

// reflectionConfig applies the request's iteration cap over the
// configured defaults.
func (a *Agent) reflectionConfig(req types.ResearchRequest) types.ReflectionConfig {
	cfg := a.cfg.Reflection
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	return cfg
}
