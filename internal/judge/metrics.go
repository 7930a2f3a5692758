package judge

import (
	"errors"
	"fmt"
	"os"

	"github.com/agenticgokit/traceval/internal/utils"
	"gopkg.in/yaml.v3"
)

// MetricsFile is the YAML layout of a metric definitions file.
type MetricsFile struct {
	Metrics []MetricSpec `yaml:"metrics"`
}

// DefaultMetrics returns the built-in metric set.
func DefaultMetrics() []MetricSpec {
	return []MetricSpec{
		{
			Name:      "Answer Relevancy",
			Kind:      KindLLMRubric,
			Threshold: 0.5,
			EvaluationSteps: []string{
				"Break ACTUAL_OUTPUT into its individual statements.",
				"For each statement decide whether it is relevant to what INPUT asks.",
				"The score is the share of relevant statements. An empty ACTUAL_OUTPUT scores 0.",
			},
			Params: []Param{ParamInput, ParamActualOutput},
		},
		{
			Name:      "Task Completion",
			Kind:      KindLLMRubric,
			Threshold: 0.7,
			EvaluationSteps: []string{
				"Infer the task the user wants accomplished from INPUT.",
				"Determine the outcome the agent achieved from ACTUAL_OUTPUT and TOOLS_CALLED.",
				"Score how fully the outcome accomplishes the task. Partial or failed attempts score low.",
			},
			Params: []Param{ParamInput, ParamActualOutput, ParamToolsCalled},
		},
		{
			Name:      "Faithfulness (to context)",
			Kind:      KindLLMRubric,
			Threshold: 0.7,
			EvaluationSteps: []string{
				"Check that every non-trivial claim in ACTUAL_OUTPUT is supported by CONTEXT.",
				"CRITICAL: If ACTUAL_OUTPUT contains ANY information that is NOT present in CONTEXT, heavily penalize. Score should be < 0.2 for any unsupported claim.",
				"CRITICAL: Look for hallucinations - fabricated information that appears nowhere in CONTEXT. Examples of hallucinations: lottery wins, unexpected money, requests for payment, locations not mentioned in context, events not in context, any financial or personal information not in context.",
				"CRITICAL: If ACTUAL_OUTPUT mentions prizes, lottery, money transfers, processing fees, or any financial transactions that are NOT in CONTEXT, score must be 0.0 (complete hallucination).",
				"Penalize claims that contradict or are not supported by the context.",
				"Compare ACTUAL_OUTPUT to EXPECTED_OUTPUT. Mark as incorrect if any required fact in EXPECTED_OUTPUT is missing or wrong.",
				"Minor surface differences (paraphrasing, formatting) are acceptable, but factual content must match exactly.",
				"If ACTUAL_OUTPUT contains the correct information from EXPECTED_OUTPUT but ALSO contains fabricated information not in CONTEXT, score should be < 0.3 (mixed correct and hallucinated content).",
			},
			Params: []Param{ParamActualOutput, ParamExpectedOutput, ParamContext},
		},
		{
			Name:      "Goal Satisfaction",
			Kind:      KindLLMRubric,
			Threshold: 0.7,
			EvaluationSteps: []string{
				"Analyze the user's INPUT to identify the explicit goal or request (e.g., create a calendar event, answer a question, retrieve information).",
				"Evaluate whether the ACTUAL_OUTPUT directly addresses and fulfills the user's goal from INPUT.",
				"If EXPECTED_TOOLS are provided, verify that the necessary actions/tools were executed to accomplish the goal.",
				"Check that the ACTUAL_OUTPUT contains the expected result or confirmation of task completion (not just partial information or acknowledgments).",
				"Penalize if: (1) the output doesn't directly answer the user's question, (2) the output is vague or incomplete, (3) expected tool calls were not executed when required, or (4) the output indicates failure or inability to complete the task.",
				"Reward clear, complete responses that demonstrate successful goal completion with appropriate action execution.",
			},
			Params: []Param{ParamInput, ParamActualOutput, ParamExpectedTools, ParamToolsCalled},
		},
		{
			Name:      "Format Compliance",
			Kind:      KindLLMRubric,
			Threshold: 0.7,
			EvaluationSteps: []string{
				"Analyze the INPUT to determine if a specific format or structure is explicitly requested (e.g., Markdown sections, APA/MLA citation style, bulleted lists, deliverables list, JSON, etc.).",
				"If no format is specified in INPUT, consider the response format compliant (score highly) as there is no format requirement to violate.",
				"If the ACTUAL_OUTPUT appropriately acknowledges inability to fulfill the request (e.g., explains lack of tools, missing information, or capability limitations), consider it format compliant when no specific format was requested.",
				"If a format IS specified in INPUT, verify that ACTUAL_OUTPUT respects that format (e.g., uses requested Markdown structure, follows citation style, adheres to list format, etc.).",
				"CRITICAL: Before penalizing any data in ACTUAL_OUTPUT, FIRST check if that data appears in CONTEXT. If the data (like names, usernames, course names, assignment titles, dates, etc.) is present in CONTEXT, it is legitimate user-facing data and should NOT be penalized as internal artifacts.",
				"CRITICAL: Check that ACTUAL_OUTPUT contains NO internal data or artifacts: (1) NO evidence-json blocks, (2) NO DONE:/CALL: markers, (3) NO internal reasoning artifacts, (4) NO internal IDs (like course IDs, assignment IDs, user IDs) unless explicitly requested by the user OR unless the ID is necessary to identify content that appears in CONTEXT, (5) NO internal agent/tool names (like 'moodle-agent' or 'calendar-agent'), (6) NO raw JSON or internal state data, (7) NO stack traces or error logs, (8) NO timestamps in ISO format (e.g., '2025-01-15T10:30:00Z' or '2025-01-15T10:30:00.000Z'). Dates should be presented in user-friendly formats only. The output must be pure, natural language user-facing content only.",
				"CRITICAL: Verify that the language of ACTUAL_OUTPUT matches the language of INPUT. If INPUT is in a specific language (e.g., German, French, Spanish), ACTUAL_OUTPUT must be in the same language. Penalize heavily if the output language does not match the input language.",
				"Penalize heavily if any internal data, IDs, or reasoning artifacts appear in ACTUAL_OUTPUT that are NOT present in CONTEXT, even if format is otherwise correct.",
				"Only penalize format violations when a specific format was explicitly requested in INPUT and the response fails to follow it.",
				"Reward responses that follow requested formats, appropriately acknowledge limitations when no format is required, contain no internal data or artifacts (except legitimate data from CONTEXT), and match the input language.",
			},
			Params: []Param{ParamInput, ParamActualOutput, ParamContext},
		},
	}
}

// LoadMetrics reads metric definitions from a YAML file. An empty path
// returns DefaultMetrics.
func LoadMetrics(path string) ([]MetricSpec, error) {
	if path == "" {
		return DefaultMetrics(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics file: %w", err)
	}

	var file MetricsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ValidateMetrics(file.Metrics); err != nil {
		return nil, fmt.Errorf("invalid metrics file %s: %w", path, err)
	}
	return file.Metrics, nil
}

// ValidateMetrics checks a metric set before it is used.
func ValidateMetrics(metrics []MetricSpec) error {
	if len(metrics) == 0 {
		return utils.NewValidationError("metrics", "at least one metric is required")
	}

	var errs []error
	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		field := func(name string) string { return utils.FieldPath("metrics", i, name) }

		switch {
		case m.Name == "":
			errs = append(errs, utils.NewValidationError(field("name"), "is required"))
		case seen[m.Name]:
			errs = append(errs, utils.NewValidationError(field("name"), fmt.Sprintf("duplicate metric %q", m.Name)))
		}
		seen[m.Name] = true

		if m.Threshold < 0 || m.Threshold > 1 {
			errs = append(errs, utils.NewValidationError(field("threshold"), "must be in [0, 1]"))
		}

		switch m.Kind {
		case KindLLMRubric:
			if m.Criteria == "" && len(m.EvaluationSteps) == 0 {
				errs = append(errs, utils.NewValidationError(field("evaluation_steps"), "criteria or evaluation steps are required"))
			}
			for j, p := range m.Params {
				if !knownParam(p) {
					errs = append(errs, utils.NewValidationError(utils.FieldPath("metrics", i, "params", j), fmt.Sprintf("unknown param %q", p)))
				}
			}
		case KindToolCorrectness, KindEmbeddingSimilarity:
		default:
			errs = append(errs, utils.NewValidationError(field("kind"), fmt.Sprintf("unknown kind %q", m.Kind)))
		}
	}
	return errors.Join(errs...)
}

// Thresholds maps metric names to their thresholds.
func Thresholds(metrics []MetricSpec) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.Name] = m.Threshold
	}
	return out
}

func knownParam(p Param) bool {
	switch p {
	case ParamInput, ParamActualOutput, ParamExpectedOutput, ParamContext, ParamExpectedTools, ParamToolsCalled:
		return true
	}
	return false
}
