// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"bytes"
	"text/template"
)

// plannerPromptTmpl asks the model for semantically distinct search
// queries, one per line, covering different facets of the question.
var plannerPromptTmpl = template.Must(template.New("planner").Parse(`You are a research query planner. Generate exactly {{.MaxQueries}} web search queries for the research question below.

Rules:
- Each query must target a different facet, entity, or angle of the question.
- Queries must be short keyword phrases suited to a web search engine, not full sentences.
- Output one query per line with no numbering, bullets, or commentary.

Research question:
{{.Question}}
`))

func renderPlannerPrompt(question string, maxQueries int) (string, error) {
	var buf bytes.Buffer
	err := plannerPromptTmpl.Execute(&buf, struct {
		Question   string
		MaxQueries int
	}{Question: question, MaxQueries: maxQueries})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
