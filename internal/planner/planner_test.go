// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/search"
	"github.com/pdiddy/research-agent/pkg/types"
)

// scriptedCompleter returns canned completions in order.
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.responses) {
		return "", errors.New("no scripted response left")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func TestPlanEmptyQuestion(t *testing.T) {
	p := New(nil, types.PlannerConfig{}, nil)

	_, err := p.Plan(context.Background(), "   \t ", nil, 0)
	require.Error(t, err)
	var planErr *types.PlanningError
	assert.ErrorAs(t, err, &planErr)
}

func TestPlanFirstIterationFromModel(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		"quantum computing basics\nqubit superposition explained\nquantum computer applications\n",
	}}
	p := New(completer, types.PlannerConfig{MaxQueries: 3}, nil)

	queries, err := p.Plan(context.Background(), "What is quantum computing?", nil, 0)
	require.NoError(t, err)
	require.Len(t, queries, 3)
	assert.Equal(t, "quantum computing basics", queries[0].Text)
	for _, q := range queries {
		assert.Equal(t, 0, q.IterationIndex)
	}
}

func TestPlanQueriesDistinctAfterNormalization(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		"Quantum Computing\nquantum   computing\nqubits explained\n",
	}}
	p := New(completer, types.PlannerConfig{MaxQueries: 3}, nil)

	queries, err := p.Plan(context.Background(), "What is quantum computing?", nil, 0)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, q := range queries {
		n := search.NormalizeQuery(q.Text)
		assert.False(t, seen[n], "duplicate normalized query %q", n)
		seen[n] = true
	}
}

func TestPlanModelFailureFallsBackToHeuristics(t *testing.T) {
	p := New(&scriptedCompleter{err: errors.New("model down")}, types.PlannerConfig{MaxQueries: 3}, nil)

	queries, err := p.Plan(context.Background(), "solar panel efficiency", nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, queries)
	assert.Equal(t, "solar panel efficiency", queries[0].Text)
}

func TestPlanLaterIterationDropsIssuedQueries(t *testing.T) {
	p := New(nil, types.PlannerConfig{MaxQueries: 3}, nil)

	first, err := p.Plan(context.Background(), "solar panel efficiency", nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Feedback repeats an issued query (case differs) plus a new one.
	feedback := []string{"Solar Panel Efficiency", "perovskite cell efficiency records"}
	second, err := p.Plan(context.Background(), "solar panel efficiency", feedback, 1)
	require.NoError(t, err)
	require.NotEmpty(t, second)

	issued := make(map[string]bool)
	for _, q := range first {
		issued[search.NormalizeQuery(q.Text)] = true
	}
	for _, q := range second {
		assert.False(t, issued[search.NormalizeQuery(q.Text)], "query %q reissued", q.Text)
		assert.Equal(t, 1, q.IterationIndex)
	}
	assert.Equal(t, "perovskite cell efficiency records", second[0].Text)
}

func TestPlanAlwaysReturnsAtLeastOneQuery(t *testing.T) {
	p := New(nil, types.PlannerConfig{MaxQueries: 3}, nil)

	for iteration := 0; iteration < 5; iteration++ {
		queries, err := p.Plan(context.Background(), "graphene batteries", nil, iteration)
		require.NoError(t, err)
		assert.NotEmpty(t, queries, "iteration %d returned no queries", iteration)
	}
}
