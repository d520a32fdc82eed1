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

// serpAPIURL is the SerpAPI endpoint. Package-level var for test substitution.
var serpAPIURL = "https://serpapi.com/search"

// SerpAPIProvider queries Google through SerpAPI.
type SerpAPIProvider struct {
	APIKey     string
	MaxResults int
	UserAgent  string
	Client     *http.Client
}

func (s *SerpAPIProvider) Name() string { return "serpapi" }

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search performs one SerpAPI query. HTTP 429 maps to types.ErrRateLimited.
func (s *SerpAPIProvider) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	num := s.MaxResults
	if num <= 0 {
		num = types.DefaultMaxResultsPerQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.APIKey)
	params.Set("num", strconv.Itoa(num))
	params.Set("engine", "google")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling SerpAPI: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("serpapi: %w", types.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serpapi returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding SerpAPI response: %w", err)
	}

	now := time.Now().UTC()
	results := make([]types.SearchResult, 0, len(parsed.OrganicResults))
	for i, r := range parsed.OrganicResults {
		if i >= num {
			break
		}
		results = append(results, types.SearchResult{
			URL:            r.Link,
			Title:          r.Title,
			Snippet:        r.Snippet,
			SourceProvider: s.Name(),
			Position:       i + 1,
			FetchedAt:      now,
		})
	}
	return results, nil
}
