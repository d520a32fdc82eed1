// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sms adapts research answers to the SMS channel: an inbound
// webhook that turns carrier form posts into research requests, a
// length-bounded answer formatter, and an outbound gateway client.
package sms

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Carrier limits for a concatenated SMS.
const (
	// MaxMessageLength is the hard cap for one outbound message.
	MaxMessageLength = 1600

	// maxFormattedCitations is how many sources the footer lists.
	maxFormattedCitations = 2

	truncationMarker = "..."
)

// FormatAnswer renders a research result as one SMS-sized message. The
// answer body is truncated to leave room for a footer listing the top
// citations by relevance; the whole message never exceeds
// MaxMessageLength.
func FormatAnswer(result types.ResearchResult) string {
	footer := citationFooter(result.Citations)

	budget := MaxMessageLength - len(footer)
	body := strings.TrimSpace(result.AnswerText)
	if len(body) > budget {
		cut := budget - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		// Break on a word boundary when one is close enough.
		if idx := strings.LastIndex(body[:cut], " "); idx > cut-40 && idx > 0 {
			cut = idx
		}
		body = strings.TrimRight(body[:cut], " ,;:") + truncationMarker
	}

	return body + footer
}

// citationFooter lists the top citations, best first.
func citationFooter(citations []types.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	top := topByRelevance(citations, maxFormattedCitations)
	var b strings.Builder
	b.WriteString("\n\nSources:")
	for i, c := range top {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.URL)
	}
	return b.String()
}

// topByRelevance picks the n highest-relevance citations without
// mutating the caller's slice. Ties keep the original order.
func topByRelevance(citations []types.Citation, n int) []types.Citation {
	sorted := make([]types.Citation, len(citations))
	copy(sorted, citations)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].RelevanceScore > sorted[j-1].RelevanceScore; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
