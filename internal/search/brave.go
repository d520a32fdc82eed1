// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/research-agent/pkg/types"
)

// braveAPIURL is the Brave Search endpoint. Package-level var for test
// substitution.
var braveAPIURL = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider queries the Brave Search API.
type BraveProvider struct {
	APIKey     string
	MaxResults int
	UserAgent  string
	Client     *http.Client
}

func (b *BraveProvider) Name() string { return "brave" }

// braveResponse is the subset of the Brave response the connector consumes.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search performs one Brave query. HTTP 429 maps to types.ErrRateLimited so
// the connector can apply its retry budget.
func (b *BraveProvider) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	count := b.MaxResults
	if count <= 0 {
		count = types.DefaultMaxResultsPerQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Brave Search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("brave: %w", types.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("brave returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding Brave response: %w", err)
	}

	now := time.Now().UTC()
	results := make([]types.SearchResult, 0, len(parsed.Web.Results))
	for i, r := range parsed.Web.Results {
		if i >= count {
			break
		}
		results = append(results, types.SearchResult{
			URL:            r.URL,
			Title:          r.Title,
			Snippet:        r.Description,
			SourceProvider: b.Name(),
			Position:       i + 1,
			FetchedAt:      now,
		})
	}
	return results, nil
}
