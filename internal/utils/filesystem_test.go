package utils

import (
	"path/filepath"
	"testing"
)

func TestFileOperations(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("CreateDir", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test", "nested", "dir")
		if err := CreateDir(path); err != nil {
			t.Errorf("CreateDir() error = %v", err)
		}
		if !DirExists(path) {
			t.Error("Directory was not created")
		}
	})

	t.Run("WriteFile creates parents", func(t *testing.T) {
		path := filepath.Join(tmpDir, "reports", "run-1", "analysis.json")
		if err := WriteFile(path, []byte(`{"summary":{}}`)); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if !FileExists(path) {
			t.Fatal("File was not created")
		}

		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != `{"summary":{}}` {
			t.Errorf("ReadFile() = %s", got)
		}
	})

	t.Run("FileExists", func(t *testing.T) {
		if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
			t.Error("FileExists() returned true for non-existent file")
		}
	})
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "ensure", "test")
	if err := EnsureDir(path); err != nil {
		t.Errorf("EnsureDir() error = %v", err)
	}
	if !DirExists(path) {
		t.Error("Directory was not created by EnsureDir()")
	}

	// Existing directory is fine.
	if err := EnsureDir(path); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
}

func TestTimestampedPath(t *testing.T) {
	got := TimestampedPath("out", "eval-report", "20251210-120000", "md")
	want := filepath.Join("out", "eval-report-20251210-120000.md")
	if got != want {
		t.Errorf("TimestampedPath() = %s, want %s", got, want)
	}
}
