// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reflection

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/research-agent/pkg/types"
)

// reflectionPromptTmpl asks the model to judge the evidence and respond
// with a single JSON object.
var reflectionPromptTmpl = template.Must(template.New("reflection").Parse(`You are evaluating whether gathered web evidence is sufficient to answer a research question confidently.

Research question:
{{.Question}}

Evidence gathered so far (title | url | snippet):
{{- if not .Evidence}}
(none)
{{- end}}
{{- range .Evidence}}
- {{.Title}} | {{.URL}} | {{.Snippet}}
{{- end}}

Respond with a single JSON object and nothing else:
{"confidence": <float 0.0-1.0>, "sufficient": <bool>, "follow_up_queries": [<up to 3 search queries that would fill the remaining gaps, empty if sufficient>]}
`))

func renderReflectionPrompt(question string, evidence []types.SearchResult) (string, error) {
	var buf bytes.Buffer
	err := reflectionPromptTmpl.Execute(&buf, struct {
		Question string
		Evidence []types.SearchResult
	}{Question: question, Evidence: evidence})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
