// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package safety

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/pdiddy/research-agent/pkg/types"
)

const filterInjection = "prompt_injection"

// injectionPatterns matches common attempts to override model instructions.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|all)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(previous|all)\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|previous)`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)<\|im_start\|>|<\|im_end\|>`),
	regexp.MustCompile(`(?i)\[INST\]|\[/INST\]`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)override\s+your\s+directives`),
}

// maxSpecialCharRatio is the share of non-alphanumeric, non-space runes
// above which input is treated as token-stuffing.
const maxSpecialCharRatio = 0.3

// injectionFilter blocks prompt-injection attempts on the input stage.
type injectionFilter struct{}

func (f *injectionFilter) Name() string { return filterInjection }

func (f *injectionFilter) AppliesTo(stage types.SafetyStage) bool {
	return stage == types.StageInput
}

func (f *injectionFilter) Evaluate(text string, _ Context) types.SafetyVerdict {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return types.SafetyVerdict{
				FilterName: f.Name(),
				Action:     types.ActionBlock,
				Reason:     fmt.Sprintf("matched injection pattern %q", p.String()),
			}
		}
	}

	if ratio := specialCharRatio(text); ratio > maxSpecialCharRatio {
		return types.SafetyVerdict{
			FilterName: f.Name(),
			Action:     types.ActionBlock,
			Reason:     fmt.Sprintf("special character ratio %.2f exceeds %.2f", ratio, maxSpecialCharRatio),
		}
	}

	return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass}
}

func specialCharRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, special := 0, 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special) / float64(total)
}
