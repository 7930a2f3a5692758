package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/utils"
)

// LoadOptions tunes report validation.
type LoadOptions struct {
	// MaxDepth rejects traces nested deeper than this. Zero selects
	// trace.DefaultMaxDepth.
	MaxDepth int
}

// LoadReport reads and validates a report file. Both the object form
// ({"testEntries": [...]}) and a bare array of entries are accepted.
// Every invalid entry is reported, not only the first.
func LoadReport(path string, opts LoadOptions) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	report, err := ParseReport(data, opts)
	if err != nil {
		return nil, fmt.Errorf("invalid report %s: %w", path, err)
	}
	report.Path = path
	return report, nil
}

// ParseReport decodes and validates report bytes.
func ParseReport(data []byte, opts LoadOptions) (*Report, error) {
	data = bytes.TrimSpace(data)

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	bare := false
	if arr, ok := doc.([]any); ok {
		doc = map[string]any{"testEntries": arr}
		bare = true
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var report Report
	if bare {
		if err := json.Unmarshal(data, &report.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode entries: %w", err)
		}
	} else if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	if err := normalize(&report, opts); err != nil {
		return nil, err
	}
	return &report, nil
}

// normalize fills defaults and checks constraints the schema cannot express.
func normalize(r *Report, opts LoadOptions) error {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = trace.DefaultMaxDepth
	}

	var errs []error
	seen := make(map[string]int, len(r.Entries))
	for i := range r.Entries {
		e := &r.Entries[i]
		if e.ID == "" {
			e.ID = fmt.Sprintf("test_%d", i)
		}
		if e.TaskType == "" {
			e.TaskType = DefaultTaskType
		}

		if first, dup := seen[e.ID]; dup {
			errs = append(errs, utils.NewValidationError(
				utils.FieldPath("testEntries", i, "id"),
				fmt.Sprintf("duplicate id %q (first used by entry %d)", e.ID, first)))
		} else {
			seen[e.ID] = i
		}

		if d := e.Trace.Depth(); d > maxDepth {
			errs = append(errs, utils.NewValidationError(
				utils.FieldPath("testEntries", i, "trace"),
				fmt.Sprintf("delegation depth %d exceeds limit %d", d, maxDepth)))
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
