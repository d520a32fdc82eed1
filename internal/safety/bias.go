// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package safety

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

const filterBias = "bias"

// genderedTerms is the vocabulary counted by the gendered-language heuristic.
var genderedTerms = map[string]bool{
	"he": true, "she": true, "him": true, "her": true, "his": true, "hers": true,
}

// biasFlagThreshold is the gendered-term count above which text is flagged.
const biasFlagThreshold = 5

// biasFilter flags heavily gendered language. It never blocks or rewrites;
// the flag is recorded in the verdict reason only.
type biasFilter struct{}

func (f *biasFilter) Name() string { return filterBias }

func (f *biasFilter) AppliesTo(types.SafetyStage) bool { return true }

func (f *biasFilter) Evaluate(text string, _ Context) types.SafetyVerdict {
	count := 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if genderedTerms[strings.Trim(w, ".,!?;:\"'()")] {
			count++
		}
	}

	verdict := types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass}
	if count > biasFlagThreshold {
		verdict.Reason = fmt.Sprintf("flagged: %d gendered terms", count)
	}
	return verdict
}
