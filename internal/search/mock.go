// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/research-agent/pkg/types"
)

// MockProvider returns synthetic results without network calls. It backs
// development and offline runs when no provider API key is configured.
type MockProvider struct {
	// NumResults is how many results each query yields (default 5).
	NumResults int
}

func (m *MockProvider) Name() string { return "mock" }

// Search generates deterministic results derived from the query text.
func (m *MockProvider) Search(_ context.Context, query string) ([]types.SearchResult, error) {
	n := m.NumResults
	if n <= 0 {
		n = 5
	}

	slug := NormalizeQuery(query)
	results := make([]types.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, types.SearchResult{
			URL:            fmt.Sprintf("https://example.com/%s/article-%d", urlSlug(slug), i+1),
			Title:          fmt.Sprintf("Result %d for %q", i+1, query),
			Snippet:        fmt.Sprintf("Synthetic search result %d about %s, standing in for a real search engine response.", i+1, query),
			SourceProvider: m.Name(),
			Position:       i + 1,
			FetchedAt:      time.Now().UTC(),
		})
	}
	return results, nil
}

func urlSlug(normalized string) string {
	out := make([]rune, 0, len(normalized))
	for _, r := range normalized {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	return string(out)
}
