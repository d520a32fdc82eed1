// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package safety

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

const filterToxicity = "toxicity"

// toxicityKeywords is a keyword set standing in for a proper classifier.
// A single hit is tolerated to limit false positives; two or more block.
var toxicityKeywords = []string{
	"kill", "murder", "assault", "attack", "harm", "hurt",
	"hate", "discriminate",
	"explicit", "pornographic",
}

const toxicityBlockThreshold = 2

// toxicityFilter blocks text carrying multiple toxicity indicators. It
// applies to both stages so neither hostile input nor a hostile answer
// passes through.
type toxicityFilter struct{}

func (f *toxicityFilter) Name() string { return filterToxicity }

func (f *toxicityFilter) AppliesTo(types.SafetyStage) bool { return true }

func (f *toxicityFilter) Evaluate(text string, _ Context) types.SafetyVerdict {
	words := strings.Fields(strings.ToLower(text))
	present := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		for _, kw := range toxicityKeywords {
			if w == kw {
				present[kw] = true
			}
		}
	}

	if len(present) >= toxicityBlockThreshold {
		hits := make([]string, 0, len(present))
		for kw := range present {
			hits = append(hits, kw)
		}
		return types.SafetyVerdict{
			FilterName: f.Name(),
			Action:     types.ActionBlock,
			Reason:     fmt.Sprintf("%d toxicity indicators present", len(hits)),
		}
	}

	return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass}
}
