// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reflection decides, after each search round, whether the gathered
// evidence is sufficient or another round is needed. The iteration logic is
// an explicit finite state machine with a bounded loop, so no cycle
// detection or dynamic graph traversal is involved.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/llm"
	"github.com/pdiddy/research-agent/pkg/types"
)

// State is one node of the iteration state machine.
type State string

const (
	StateInitial      State = "initial"
	StateSearching    State = "searching"
	StateReflecting   State = "reflecting"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Controller owns the iteration state for one request. The iteration index
// is monotonically increasing and bounded by MaxIterations.
type Controller struct {
	completer llm.Completer
	cfg       types.ReflectionConfig
	logger    *zap.Logger

	state     State
	iteration int
	verdicts  []types.ReflectionVerdict
}

// New builds a request-scoped controller in the initial state. completer
// may be nil; verdicts then come from the evidence-count heuristic alone.
func New(completer llm.Completer, cfg types.ReflectionConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = types.DefaultConfidenceThreshold
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = types.DefaultMaxIterations
	}
	if cfg.MinEvidence <= 0 {
		cfg.MinEvidence = 3
	}
	return &Controller{completer: completer, cfg: cfg, logger: logger, state: StateInitial}
}

// State returns the current machine state.
func (c *Controller) State() State { return c.state }

// Iteration returns the number of completed search/reflection iterations.
func (c *Controller) Iteration() int { return c.iteration }

// LatestVerdict returns the most recent verdict. ok is false when no
// reflection has run yet.
func (c *Controller) LatestVerdict() (types.ReflectionVerdict, bool) {
	if len(c.verdicts) == 0 {
		return types.ReflectionVerdict{}, false
	}
	return c.verdicts[len(c.verdicts)-1], true
}

// BeginSearch transitions into the searching state. Legal from the initial
// state and from a reflection that asked for another round.
func (c *Controller) BeginSearch() error {
	switch c.state {
	case StateInitial, StateSearching:
		c.state = StateSearching
		return nil
	default:
		return fmt.Errorf("cannot begin search from state %s", c.state)
	}
}

// Reflect evaluates the evidence pool against the question, producing this
// iteration's verdict and advancing the machine: to synthesizing when
// sufficient (or the budget is exhausted), back to searching otherwise.
// Each call consumes one iteration.
func (c *Controller) Reflect(ctx context.Context, question string, pool *types.EvidencePool) (types.ReflectionVerdict, error) {
	if c.state != StateSearching {
		return types.ReflectionVerdict{}, fmt.Errorf("cannot reflect from state %s", c.state)
	}
	c.state = StateReflecting

	verdict := c.evaluate(ctx, question, pool)

	// Sufficiency: confident enough, or out of budget.
	verdict.Sufficient = verdict.ConfidenceScore >= c.cfg.ConfidenceThreshold ||
		c.iteration+1 >= c.cfg.MaxIterations

	c.iteration++
	c.verdicts = append(c.verdicts, verdict)

	if verdict.Sufficient {
		c.state = StateSynthesizing
	} else {
		c.state = StateSearching
	}

	c.logger.Debug("reflection verdict",
		zap.Int("iteration", c.iteration),
		zap.Float64("confidence", verdict.ConfidenceScore),
		zap.Bool("sufficient", verdict.Sufficient),
		zap.String("next_state", string(c.state)))
	return verdict, nil
}

// ForceSynthesize pushes the machine into synthesizing regardless of
// verdicts. Used on timeout and cancellation so synthesis can run with
// whatever evidence exists.
func (c *Controller) ForceSynthesize() {
	if c.state != StateDone && c.state != StateFailed {
		c.state = StateSynthesizing
	}
}

// Complete marks the run done. Legal only from synthesizing.
func (c *Controller) Complete() error {
	if c.state != StateSynthesizing {
		return fmt.Errorf("cannot complete from state %s", c.state)
	}
	c.state = StateDone
	return nil
}

// Fail moves to the terminal failed state. Legal from any state.
func (c *Controller) Fail() { c.state = StateFailed }

// Exhausted reports whether the latest sufficiency came only from the
// iteration budget, not from reaching the confidence threshold. Such runs
// are reported as degraded.
func (c *Controller) Exhausted() bool {
	v, ok := c.LatestVerdict()
	return ok && v.Sufficient && v.ConfidenceScore < c.cfg.ConfidenceThreshold
}

// evaluate produces the verdict body, preferring the model and falling
// back to the evidence-count heuristic.
func (c *Controller) evaluate(ctx context.Context, question string, pool *types.EvidencePool) types.ReflectionVerdict {
	if c.completer != nil {
		if v, err := c.modelVerdict(ctx, question, pool); err == nil {
			return v
		} else {
			c.logger.Warn("model reflection failed, using heuristic", zap.Error(err))
		}
	}
	return c.heuristicVerdict(pool)
}

// heuristicVerdict scores confidence from evidence count alone: the pool
// saturates at MinEvidence entries, worth 0.8 confidence.
func (c *Controller) heuristicVerdict(pool *types.EvidencePool) types.ReflectionVerdict {
	count := pool.Len()
	ratio := float64(count) / float64(c.cfg.MinEvidence)
	if ratio > 1 {
		ratio = 1
	}
	return types.ReflectionVerdict{ConfidenceScore: 0.8 * ratio}
}

// modelReflection is the JSON shape requested from the model.
type modelReflection struct {
	Confidence      float64  `json:"confidence"`
	Sufficient      bool     `json:"sufficient"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

func (c *Controller) modelVerdict(ctx context.Context, question string, pool *types.EvidencePool) (types.ReflectionVerdict, error) {
	prompt, err := renderReflectionPrompt(question, pool.Results())
	if err != nil {
		return types.ReflectionVerdict{}, err
	}

	completion, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return types.ReflectionVerdict{}, err
	}

	var parsed modelReflection
	if err := json.Unmarshal([]byte(stripCodeFence(completion)), &parsed); err != nil {
		return types.ReflectionVerdict{}, fmt.Errorf("parsing reflection JSON: %w", err)
	}

	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return types.ReflectionVerdict{
		ConfidenceScore: parsed.Confidence,
		FollowUpQueries: parsed.FollowUpQueries,
	}, nil
}

// stripCodeFence removes a surrounding markdown fence if the model wrapped
// its JSON in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
