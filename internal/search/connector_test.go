// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/internal/cache"
	"github.com/pdiddy/research-agent/pkg/types"
)

func init() {
	// Keep backoff out of test wall time.
	retryBaseDelay = time.Millisecond
}

// countingProvider wraps a provider and counts Search invocations,
// optionally tracking peak concurrency.
type countingProvider struct {
	name    string
	delay   time.Duration
	results func(query string) ([]types.SearchResult, error)

	calls      atomic.Int64
	inFlight   atomic.Int64
	peakMu     sync.Mutex
	peakActive int64
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	p.calls.Add(1)
	active := p.inFlight.Add(1)
	p.peakMu.Lock()
	if active > p.peakActive {
		p.peakActive = active
	}
	p.peakMu.Unlock()
	defer p.inFlight.Add(-1)

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.results != nil {
		return p.results(query)
	}
	return []types.SearchResult{{
		URL:            "https://example.com/" + urlSlug(NormalizeQuery(query)),
		Title:          "result for " + query,
		Snippet:        "snippet for " + query,
		SourceProvider: p.name,
		Position:       1,
		FetchedAt:      time.Now().UTC(),
	}}, nil
}

func fastConfig() types.SearchConfig {
	cfg := types.DefaultConfig().Search
	cfg.RatePerSecond = 10000
	cfg.RateBurst = 1000
	return cfg
}

func TestSearchCachesWithinTTL(t *testing.T) {
	p := &countingProvider{name: "mock"}
	c := NewConnector([]Provider{p}, cache.NewTTL(time.Minute), fastConfig(), nil)

	var cacheHits atomic.Int64
	sink := EventSink(func(step, _, _ string) {
		if step == string(types.StepCacheHit) {
			cacheHits.Add(1)
		}
	})

	query := types.SearchQuery{Text: "Quantum  Computing"}
	first, err := c.Search(context.Background(), query, sink)
	require.NoError(t, err)

	// Differs only in whitespace and case; must hit the cache.
	second, err := c.Search(context.Background(), types.SearchQuery{Text: "quantum computing"}, sink)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.calls.Load(), "second lookup must not reach the provider")
	assert.Equal(t, int64(1), cacheHits.Load())
	assert.Equal(t, first, second)
}

func TestSearchRateLimitedThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	p := &countingProvider{name: "flaky", results: func(query string) ([]types.SearchResult, error) {
		if calls.Add(1) <= 2 {
			return nil, fmt.Errorf("flaky: %w", types.ErrRateLimited)
		}
		return []types.SearchResult{{URL: "https://example.com/ok", Title: "ok", Position: 1}}, nil
	}}
	c := NewConnector([]Provider{p}, nil, fastConfig(), nil)

	results, err := c.Search(context.Background(), types.SearchQuery{Text: "retry me"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load(), "two rate limits then success means exactly three calls")
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/ok", results[0].URL)
}

func TestSearchRateLimitExhaustionIsTransient(t *testing.T) {
	p := &countingProvider{name: "limited", results: func(string) ([]types.SearchResult, error) {
		return nil, fmt.Errorf("limited: %w", types.ErrRateLimited)
	}}
	c := NewConnector([]Provider{p}, nil, fastConfig(), nil)

	_, err := c.Search(context.Background(), types.SearchQuery{Text: "always limited"}, nil)
	require.Error(t, err)

	var provErr *types.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.True(t, provErr.Transient)
	assert.Equal(t, int64(types.DefaultRetryAttempts), p.calls.Load())
}

func TestSearchNonTransientErrorNotRetried(t *testing.T) {
	p := &countingProvider{name: "broken", results: func(string) ([]types.SearchResult, error) {
		return nil, errors.New("bad credentials")
	}}
	c := NewConnector([]Provider{p}, nil, fastConfig(), nil)

	_, err := c.Search(context.Background(), types.SearchQuery{Text: "anything"}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), p.calls.Load())

	var provErr *types.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.False(t, provErr.Transient)
}

func TestSearchAllBoundsConcurrency(t *testing.T) {
	p := &countingProvider{name: "slow", delay: 20 * time.Millisecond}
	cfg := fastConfig()
	cfg.WorkerLimit = 2
	c := NewConnector([]Provider{p}, nil, cfg, nil)

	queries := make([]types.SearchQuery, 8)
	for i := range queries {
		queries[i] = types.SearchQuery{Text: fmt.Sprintf("query number %d", i)}
	}

	out := c.SearchAll(context.Background(), queries, nil)
	assert.Equal(t, 8, out.QueriesTotal)
	assert.Equal(t, 0, out.QueriesFailed)

	p.peakMu.Lock()
	peak := p.peakActive
	p.peakMu.Unlock()
	assert.LessOrEqual(t, peak, int64(2), "fan-out must respect the worker limit")
}

func TestSearchAllPartialFailure(t *testing.T) {
	p := &countingProvider{name: "mixed", results: func(query string) ([]types.SearchResult, error) {
		if query == "bad query" {
			return nil, errors.New("provider rejected query")
		}
		return []types.SearchResult{{
			URL:      "https://example.com/" + urlSlug(NormalizeQuery(query)),
			Title:    query,
			Position: 1,
		}}, nil
	}}
	c := NewConnector([]Provider{p}, nil, fastConfig(), nil)

	out := c.SearchAll(context.Background(), []types.SearchQuery{
		{Text: "good query"},
		{Text: "bad query"},
		{Text: "another good one"},
	}, nil)

	assert.Equal(t, 3, out.QueriesTotal)
	assert.Equal(t, 1, out.QueriesFailed)
	assert.Len(t, out.Results, 2)
}

func TestSearchAllDeduplicatesAndCaps(t *testing.T) {
	p := &countingProvider{name: "dup", results: func(query string) ([]types.SearchResult, error) {
		// Every query returns the same three URLs plus one unique URL.
		results := []types.SearchResult{
			{URL: "https://example.com/shared-1", Title: "shared 1", Position: 1},
			{URL: "https://example.com/shared-2", Title: "shared 2", Position: 2},
			{URL: "https://example.com/shared-3", Title: "shared 3", Position: 3},
			{URL: "https://example.com/" + urlSlug(NormalizeQuery(query)), Title: query, Position: 4},
		}
		return results, nil
	}}
	cfg := fastConfig()
	cfg.MaxResultsPerIteration = 5
	c := NewConnector([]Provider{p}, nil, cfg, nil)

	out := c.SearchAll(context.Background(), []types.SearchQuery{
		{Text: "alpha"}, {Text: "beta"}, {Text: "gamma"},
	}, nil)

	seen := make(map[string]bool)
	for _, r := range out.Results {
		assert.False(t, seen[r.URL], "duplicate URL %s", r.URL)
		seen[r.URL] = true
	}
	assert.LessOrEqual(t, len(out.Results), 5)

	// Provider-reported order survives the merge.
	for i := 1; i < len(out.Results); i++ {
		assert.LessOrEqual(t, out.Results[i-1].Position, out.Results[i].Position)
	}
}

func TestSearchDropsPIIResults(t *testing.T) {
	p := &countingProvider{name: "leaky", results: func(string) ([]types.SearchResult, error) {
		return []types.SearchResult{
			{URL: "https://example.com/clean", Title: "clean result", Snippet: "nothing personal here", Position: 1},
			{URL: "https://example.com/leak", Title: "contact page", Snippet: "reach me at jane.doe@example.com", Position: 2},
		}, nil
	}}
	cfg := fastConfig()
	cfg.FilterPII = true
	c := NewConnector([]Provider{p}, nil, cfg, nil)

	results, err := c.Search(context.Background(), types.SearchQuery{Text: "contact info"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/clean", results[0].URL)
}

func TestSearchCancelledContext(t *testing.T) {
	p := &countingProvider{name: "slow", delay: time.Second}
	c := NewConnector([]Provider{p}, nil, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, types.SearchQuery{Text: "too late"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Quantum Computing", "quantum computing"},
		{"  spaced   out  ", "spaced out"},
		{"already normal", "already normal"},
		{"\tTabs\nand newlines\t", "tabs and newlines"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), "input %q", tt.in)
	}
}

func TestMockProviderDeterministic(t *testing.T) {
	p := &MockProvider{NumResults: 3}
	first, err := p.Search(context.Background(), "stable query")
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "stable query")
	require.NoError(t, err)

	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].URL, second[i].URL)
		assert.Equal(t, i+1, first[i].Position)
	}
}
