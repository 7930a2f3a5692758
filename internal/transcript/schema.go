package transcript

import (
	"fmt"
	"sync"

	"github.com/agenticgokit/traceval/internal/utils"
	"github.com/xeipuuv/gojsonschema"
)

// reportSchema describes the wrapped report form. Bare arrays are wrapped
// into {"testEntries": [...]} before validation so field paths are uniform.
const reportSchema = `{
  "type": "object",
  "required": ["testEntries"],
  "properties": {
    "gitHash":   {"type": ["string", "null"]},
    "timestamp": {"type": ["string", "null"]},
    "testEntries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["input", "actual_output"],
        "properties": {
          "id":                        {"type": ["string", "null"]},
          "task_type":                 {"type": ["string", "null"]},
          "input":                     {"type": "string"},
          "actual_output":             {"type": "string"},
          "expected_output":           {"type": ["string", "null"]},
          "completion_time":           {"type": ["number", "null"]},
          "extended_evaluation_input": {"type": ["string", "null"]},
          "expected_tool_calls": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["function"],
              "properties": {
                "function": {"type": "string"},
                "args":     {"type": ["object", "null"]}
              }
            }
          },
          "trace": {"$ref": "#/definitions/trace"}
        }
      }
    }
  },
  "definitions": {
    "trace": {
      "type": ["object", "null"],
      "properties": {
        "error":      {"type": ["string", "null"]},
        "agentTools": {"type": ["array", "null"], "items": {"type": "object"}},
        "iterationHistory": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "properties": {
              "structuredThought": {
                "type": ["object", "null"],
                "properties": {
                  "functionCalls": {
                    "type": ["array", "null"],
                    "items": {
                      "type": "object",
                      "required": ["type"],
                      "properties": {
                        "type":     {"type": "string"},
                        "function": {"type": ["string", "null"]},
                        "args":     {"type": ["object", "null"]},
                        "internalRouterProcess": {"$ref": "#/definitions/trace"}
                      }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(reportSchema))
})

// validateSchema checks doc against the report schema and returns one
// ValidationError per violation.
func validateSchema(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile report schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]error, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			field = ""
		}
		if re.Type() == "required" {
			if prop, ok := re.Details()["property"].(string); ok {
				field = utils.FieldPath(field, prop)
				errs = append(errs, utils.NewValidationError(field, "is required"))
				continue
			}
		}
		if field == "" {
			field = "report"
		}
		errs = append(errs, utils.NewValidationError(field, re.Description()))
	}
	return joinErrors(errs)
}
