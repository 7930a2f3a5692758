package judge

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/agenticgokit/traceval/internal/transcript"
)

const rubricSystemPrompt = "You are a strict evaluation judge. Follow the evaluation steps exactly and answer with JSON only."

const rubricTemplate = `Evaluate the interaction below on the metric "{{ .Name }}".
{{- with .Criteria }}

Criteria: {{ . }}
{{- end }}
{{- if .Steps }}

Evaluation steps:
{{- range $i, $step := .Steps }}
{{ add1 $i }}. {{ $step }}
{{- end }}
{{- end }}
{{ range .Sections }}
{{ .Label }}:
{{ .Body | trim | default "(none)" }}
{{ end }}
Return a score between 0.0 and 1.0, where 1.0 means the evaluation steps are fully satisfied.
Respond with JSON only, no other text:
{"score": <number between 0.0 and 1.0>, "reason": "<one or two sentences>"}
`

var rubricTmpl = template.Must(template.New("rubric").Funcs(sprig.TxtFuncMap()).Parse(rubricTemplate))

type promptSection struct {
	Label string
	Body  string
}

type promptData struct {
	Name     string
	Criteria string
	Steps    []string
	Sections []promptSection
}

// RenderRubricPrompt builds the judge prompt for a rubric metric. Only the
// metric's params are shown to the judge.
func RenderRubricPrompt(tc transcript.TestCase, m MetricSpec) (string, error) {
	data := promptData{Name: m.Name, Criteria: m.Criteria, Steps: m.EvaluationSteps}
	for _, p := range rubricParams(m) {
		data.Sections = append(data.Sections, promptSection{
			Label: strings.ToUpper(string(p)),
			Body:  paramText(tc, p),
		})
	}

	var buf bytes.Buffer
	if err := rubricTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt for %q: %w", m.Name, err)
	}
	return buf.String(), nil
}

func rubricParams(m MetricSpec) []Param {
	if len(m.Params) > 0 {
		return m.Params
	}
	return []Param{ParamInput, ParamActualOutput}
}

func paramText(tc transcript.TestCase, p Param) string {
	switch p {
	case ParamInput:
		return tc.Input
	case ParamActualOutput:
		return tc.ActualOutput
	case ParamExpectedOutput:
		if tc.ExpectedOutput == nil {
			return ""
		}
		return *tc.ExpectedOutput
	case ParamContext:
		lines := make([]string, len(tc.Context))
		for i, c := range tc.Context {
			lines[i] = "- " + c
		}
		return strings.Join(lines, "\n")
	case ParamExpectedTools:
		return formatTools(tc.ExpectedTools)
	case ParamToolsCalled:
		return formatTools(tc.ToolsCalled)
	}
	return ""
}
