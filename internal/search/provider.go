// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans research queries out to web search providers behind a
// read-through cache, with per-provider rate limiting, retries, and
// URL-deduplicated result merging.
package search

import (
	"context"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Provider searches a single backend. Each backend (mock, Brave, SerpAPI)
// implements this interface per the Strategy pattern; the connector owns
// caching, rate limiting, and the retry budget.
//
// A rate-limited call must return an error wrapping types.ErrRateLimited.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// NormalizeQuery lowercases the query and collapses interior whitespace.
// Normalized text is the cache key and the planner's dedup key, so two
// queries that differ only in case or spacing are the same query.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// cacheKey scopes a normalized query to one provider.
func cacheKey(provider, normalized string) string {
	return "search:" + provider + ":" + normalized
}
