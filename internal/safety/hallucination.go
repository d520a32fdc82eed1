// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

const filterHallucination = "hallucination"

// uncertaintyIndicators are phrases suggesting the answer is speculating
// rather than reporting evidence.
var uncertaintyIndicators = []string{
	"i think", "i believe", "probably", "maybe", "might be",
	"could be", "seems like", "appears to be",
	"not sure", "uncertain", "speculation",
}

// specificClaimPattern spots concrete factual assertions: years,
// percentages, dollar amounts.
var specificClaimPattern = regexp.MustCompile(`\d{4}|\d+%|\$\d+`)

// minSupportingRelevance is the citation relevance below which a source
// does not count as support for a specific claim.
const minSupportingRelevance = 0.1

// hallucinationConfidenceFloor is the confidence below which the answer is
// flagged as potentially hallucinated.
const hallucinationConfidenceFloor = 0.6

// assessAnswerConfidence scores an answer in [0,1] from uncertainty
// language, evidence availability, and citation support for specific
// claims. Deterministic for identical input.
func assessAnswerConfidence(answer string, sctx Context) float64 {
	if answer == "" {
		return 0
	}

	lower := strings.ToLower(answer)
	confidence := 1.0
	for _, indicator := range uncertaintyIndicators {
		if strings.Contains(lower, indicator) {
			confidence -= 0.15
		}
	}
	if confidence < 0 {
		confidence = 0
	}

	if len(sctx.Evidence) == 0 {
		confidence *= 0.5
	}

	if specificClaimPattern.MatchString(answer) && !hasSupportingCitation(sctx.Citations) {
		confidence *= 0.6
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func hasSupportingCitation(citations []types.Citation) bool {
	for _, c := range citations {
		if c.RelevanceScore >= minSupportingRelevance {
			return true
		}
	}
	return false
}

// hallucinationFilter runs on the output stage only. It flags ungrounded
// answers by lowering confidence; it blocks only in strict mode.
type hallucinationFilter struct {
	strict bool
}

func (f *hallucinationFilter) Name() string { return filterHallucination }

func (f *hallucinationFilter) AppliesTo(stage types.SafetyStage) bool {
	return stage == types.StageOutput
}

func (f *hallucinationFilter) Evaluate(text string, sctx Context) types.SafetyVerdict {
	confidence := assessAnswerConfidence(text, sctx)
	if confidence >= hallucinationConfidenceFloor {
		return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass}
	}

	reason := fmt.Sprintf("answer confidence %.2f below %.2f", confidence, hallucinationConfidenceFloor)
	if f.strict {
		return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionBlock, Reason: reason}
	}
	return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass, Reason: "flagged: " + reason}
}
