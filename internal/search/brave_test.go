// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-agent/pkg/types"
)

func TestBraveSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "quantum computing", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"web": {
				"results": [
					{"title": "First", "url": "https://one.example/a", "description": "first snippet"},
					{"title": "Second", "url": "https://two.example/b", "description": "second snippet"}
				]
			}
		}`))
	}))
	defer server.Close()

	original := braveAPIURL
	braveAPIURL = server.URL
	defer func() { braveAPIURL = original }()

	p := &BraveProvider{APIKey: "test-key", MaxResults: 5}
	results, err := p.Search(context.Background(), "quantum computing")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://one.example/a", results[0].URL)
	assert.Equal(t, "first snippet", results[0].Snippet)
	assert.Equal(t, "brave", results[0].SourceProvider)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, 2, results[1].Position)
}

func TestBraveSearchRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	original := braveAPIURL
	braveAPIURL = server.URL
	defer func() { braveAPIURL = original }()

	p := &BraveProvider{APIKey: "test-key"}
	_, err := p.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRateLimited)
}

func TestBraveSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	original := braveAPIURL
	braveAPIURL = server.URL
	defer func() { braveAPIURL = original }()

	p := &BraveProvider{APIKey: "test-key"}
	_, err := p.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrRateLimited)
	assert.Contains(t, err.Error(), "500")
}

func TestBraveSearchCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"web": {
				"results": [
					{"title": "a", "url": "https://a.example", "description": "a"},
					{"title": "b", "url": "https://b.example", "description": "b"},
					{"title": "c", "url": "https://c.example", "description": "c"}
				]
			}
		}`))
	}))
	defer server.Close()

	original := braveAPIURL
	braveAPIURL = server.URL
	defer func() { braveAPIURL = original }()

	p := &BraveProvider{APIKey: "test-key", MaxResults: 2}
	results, err := p.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
