// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"strings"
	"text/template"

	"github.com/pdiddy/research-agent/pkg/types"
)

var synthesisPromptTmpl = template.Must(template.New("synthesis").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(
	`You are a research assistant. Answer the question below using only the
numbered sources. Cite sources inline as [Source N]. Be factual and
concise (200-400 words). If the sources disagree, say so.

Question: {{.Question}}

Sources:
{{- range $i, $s := .Sources}}
[Source {{inc $i}}] {{$s.Title}}
URL: {{$s.URL}}
{{$s.Snippet}}
{{- end}}

Answer:`))

func renderSynthesisPrompt(question string, sources []types.SearchResult) (string, error) {
	var b strings.Builder
	err := synthesisPromptTmpl.Execute(&b, struct {
		Question string
		Sources  []types.SearchResult
	}{Question: question, Sources: sources})
	return b.String(), err
}
