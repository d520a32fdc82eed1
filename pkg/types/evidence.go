// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvidencePool accumulates search results for one request across iterations.
// It is ordered and append-only: the first occurrence of a URL keeps its
// position, and a resupplied URL only upgrades the stored snippet when the
// new one carries more content.
type EvidencePool struct {
	results []SearchResult
	index   map[string]int // URL → position in results
}

// NewEvidencePool returns an empty pool.
func NewEvidencePool() *EvidencePool {
	return &EvidencePool{index: make(map[string]int)}
}

// Add appends results to the pool, deduplicating by URL. Results with an
// empty URL are dropped. It returns the number of entries actually added.
func (p *EvidencePool) Add(results ...SearchResult) int {
	added := 0
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if i, ok := p.index[r.URL]; ok {
			if len(r.Snippet) > len(p.results[i].Snippet) {
				p.results[i].Snippet = r.Snippet
			}
			continue
		}
		p.index[r.URL] = len(p.results)
		p.results = append(p.results, r)
		added++
	}
	return added
}

// Results returns a copy of the accumulated results in insertion order.
func (p *EvidencePool) Results() []SearchResult {
	out := make([]SearchResult, len(p.results))
	copy(out, p.results)
	return out
}

// Len returns the number of unique results in the pool.
func (p *EvidencePool) Len() int { return len(p.results) }

// Contains reports whether a URL is present in the pool.
func (p *EvidencePool) Contains(url string) bool {
	_, ok := p.index[url]
	return ok
}
