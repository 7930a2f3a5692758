package utils

import (
	"errors"
	"testing"
)

func TestUserError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		solution string
		err      error
		want     string
	}{
		{
			name:     "with solution and error",
			message:  "Failed to load config",
			solution: "Check if config file exists",
			err:      errors.New("file not found"),
			want:     "Failed to load config\n\n💡 Solution: Check if config file exists\n\nDetails: file not found",
		},
		{
			name:     "without solution",
			message:  "Invalid input",
			solution: "",
			err:      nil,
			want:     "Invalid input",
		},
		{
			name:     "with solution only",
			message:  "Failed to create file",
			solution: "Check file permissions",
			err:      nil,
			want:     "Failed to create file\n\n💡 Solution: Check file permissions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := NewUserError(tt.message, tt.solution, tt.err)
			if got := ue.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	ve := NewValidationError("name", "cannot be empty")
	want := "name: cannot be empty"

	if got := ve.Error(); got != want {
		t.Errorf("ValidationError.Error() = %v, want %v", got, want)
	}
}

func TestUserErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	ue := NewUserError("wrapper", "solution", originalErr)

	if err := ue.Unwrap(); !errors.Is(err, originalErr) {
		t.Error("Unwrap() did not return original error")
	}
}

func TestFieldPath(t *testing.T) {
	tests := []struct {
		name  string
		parts []any
		want  string
	}{
		{"entry field", []any{"testEntries", 3, "actual_output"}, "testEntries.3.actual_output"},
		{"skips empty", []any{"", "trace", "", "error"}, "trace.error"},
		{"nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldPath(tt.parts...); got != tt.want {
				t.Errorf("FieldPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationErrorsFlattensJoin(t *testing.T) {
	a := NewValidationError("testEntries.0.input", "is required")
	b := NewValidationError("testEntries.2.actual_output", "is required")
	err := errors.Join(a, errors.New("unrelated"), errors.Join(b))

	got := ValidationErrors(err)
	if len(got) != 2 {
		t.Fatalf("ValidationErrors() returned %d errors, want 2", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Errorf("ValidationErrors() = %v", got)
	}
	if ValidationErrors(nil) != nil {
		t.Error("ValidationErrors(nil) should be nil")
	}
}
