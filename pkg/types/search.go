// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchQuery is one generated search string. Generated, never mutated.
type SearchQuery struct {
	// Text is the query string sent to providers.
	Text string `json:"text" yaml:"text"`

	// IterationIndex is the zero-based iteration that produced the query.
	IterationIndex int `json:"iteration_index" yaml:"iteration_index"`
}

// SearchResult is a single hit from a search provider. URL is the natural
// dedup key across providers and iterations.
type SearchResult struct {
	// URL is the result location.
	URL string `json:"url" yaml:"url"`

	// Title is the result title.
	Title string `json:"title" yaml:"title"`

	// Snippet is the provider-supplied excerpt.
	Snippet string `json:"snippet" yaml:"snippet"`

	// SourceProvider names the backend that returned the result.
	SourceProvider string `json:"source_provider" yaml:"source_provider"`

	// Position is the provider-reported rank, starting at 1.
	Position int `json:"position" yaml:"position"`

	// FetchedAt is when the result was retrieved.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}
