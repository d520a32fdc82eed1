// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-agent/internal/cache"
	"github.com/pdiddy/research-agent/internal/safety"
	"github.com/pdiddy/research-agent/pkg/types"
)

// retryBaseDelay is the base backoff for rate-limited provider calls.
// Package-level var for test substitution.
var retryBaseDelay = 500 * time.Millisecond

// EventSink receives connector progress notices (cache hits, search start
// and completion) for the request timeline. A nil sink discards them.
type EventSink func(step, message, status string)

func (s EventSink) emit(step, message, status string) {
	if s != nil {
		s(step, message, status)
	}
}

// BatchOutput is the merged result of one fan-out batch.
type BatchOutput struct {
	// Results is the deduplicated, provider-order-preserving merged batch.
	Results []types.SearchResult

	// QueriesTotal is the number of queries in the batch.
	QueriesTotal int

	// QueriesFailed counts queries that contributed zero results due to
	// provider errors. Partial failures never abort the batch.
	QueriesFailed int
}

// Connector owns the search side of the pipeline: a read-through cache,
// one token bucket per provider shared across concurrent requests, a
// bounded retry budget, and bounded concurrent fan-out.
type Connector struct {
	providers []Provider
	cache     cache.Cache
	cfg       types.SearchConfig
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewConnector builds a connector over the given providers. The cache and
// the connector itself are shared across concurrent requests.
func NewConnector(providers []Provider, c cache.Cache, cfg types.SearchConfig, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxResultsPerIteration <= 0 {
		cfg.MaxResultsPerIteration = types.DefaultMaxResultsPerIteration
	}
	if cfg.WorkerLimit <= 0 {
		cfg.WorkerLimit = types.DefaultWorkerLimit
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = types.DefaultRetryAttempts
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = types.DefaultCacheTTL
	}
	return &Connector{
		providers: providers,
		cache:     c,
		cfg:       cfg,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiter returns the shared token bucket for a provider, creating it on
// first use. All requests contend for the same bucket.
func (c *Connector) limiter(provider string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[provider]; ok {
		return l
	}
	perSecond := c.cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := c.cfg.RateBurst
	if burst <= 0 {
		burst = 5
	}
	l := rate.NewLimiter(rate.Limit(perSecond), burst)
	c.limiters[provider] = l
	return l
}

// Search resolves one query against every provider, consulting the cache
// first. A cache hit short-circuits the network call. Rate-limited calls
// are retried with jittered exponential backoff before surfacing a
// transient provider error.
func (c *Connector) Search(ctx context.Context, query types.SearchQuery, sink EventSink) ([]types.SearchResult, error) {
	normalized := NormalizeQuery(query.Text)
	if normalized == "" {
		return nil, fmt.Errorf("empty query")
	}

	var merged []types.SearchResult
	var lastErr error

	for _, p := range c.providers {
		key := cacheKey(p.Name(), normalized)
		if c.cache != nil {
			if v, ok := c.cache.Get(key); ok {
				if cached, ok := v.([]types.SearchResult); ok {
					sink.emit(types.StepCacheHit, fmt.Sprintf("cache hit for %q on %s", normalized, p.Name()), types.EventSuccess)
					c.logger.Debug("search cache hit", zap.String("provider", p.Name()), zap.String("query", normalized))
					merged = append(merged, cached...)
					continue
				}
			}
		}

		results, err := c.callProvider(ctx, p, query.Text)
		if err != nil {
			lastErr = err
			c.logger.Warn("provider search failed",
				zap.String("provider", p.Name()),
				zap.String("query", normalized),
				zap.Error(err))
			continue
		}

		if c.cfg.FilterPII {
			results = dropPII(results, c.logger)
		}
		if c.cache != nil {
			c.cache.Set(key, results, c.cfg.CacheTTL)
		}
		merged = append(merged, results...)
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

// callProvider performs one provider call under the shared token bucket,
// the per-call timeout, and the retry budget for rate-limited signals.
func (c *Connector) callProvider(ctx context.Context, p Provider, query string) ([]types.SearchResult, error) {
	attempts := c.cfg.RetryAttempts

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * retryBaseDelay
			backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter(p.Name()).Wait(ctx); err != nil {
			return nil, err
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		}
		results, err := p.Search(callCtx, query)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, types.ErrRateLimited) {
			continue
		}
		return nil, &types.ProviderError{Provider: p.Name(), Transient: false, Err: err}
	}

	return nil, &types.ProviderError{Provider: p.Name(), Transient: true, Err: types.ErrRateLimited}
}

// SearchAll executes the batch concurrently, bounded by the worker limit.
// Failed queries contribute zero results; the output records how many of
// the batch failed. Merged results are deduplicated by URL and capped,
// preserving provider-reported order.
func (c *Connector) SearchAll(ctx context.Context, queries []types.SearchQuery, sink EventSink) BatchOutput {
	out := BatchOutput{QueriesTotal: len(queries)}
	if len(queries) == 0 {
		return out
	}

	sem := semaphore.NewWeighted(int64(c.cfg.WorkerLimit))
	perQuery := make([][]types.SearchResult, len(queries))
	var failed sync.Map
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		go func(i int, q types.SearchQuery) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				failed.Store(i, err)
				return
			}
			defer sem.Release(1)

			sink.emit(types.StepSearchStarted, fmt.Sprintf("searching %q", q.Text), types.EventSuccess)
			results, err := c.Search(ctx, q, sink)
			if err != nil {
				failed.Store(i, err)
				sink.emit(types.StepSearchCompleted, fmt.Sprintf("search %q failed: %v", q.Text, err), types.EventError)
				return
			}
			perQuery[i] = results
			sink.emit(types.StepSearchCompleted, fmt.Sprintf("search %q returned %d results", q.Text, len(results)), types.EventSuccess)
		}(i, q)
	}
	wg.Wait()

	failed.Range(func(_, _ any) bool {
		out.QueriesFailed++
		return true
	})

	// Dedup by URL in query order; first occurrence wins its slot.
	pool := types.NewEvidencePool()
	for _, results := range perQuery {
		pool.Add(results...)
	}
	merged := pool.Results()

	// Stable sort keeps provider-reported order; no re-ranking.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Position < merged[j].Position
	})
	if len(merged) > c.cfg.MaxResultsPerIteration {
		merged = merged[:c.cfg.MaxResultsPerIteration]
	}

	out.Results = merged
	return out
}

// dropPII filters out results whose visible text carries PII, so leaked
// personal data never enters an evidence pool.
func dropPII(results []types.SearchResult, logger *zap.Logger) []types.SearchResult {
	kept := results[:0]
	for _, r := range results {
		if safety.ContainsPII(r.Title + " " + r.Snippet) {
			logger.Info("dropped search result containing PII", zap.String("url", r.URL))
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
