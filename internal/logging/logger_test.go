package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The logger keeps package-level state, so these tests run sequentially
// and re-Initialize per case.

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize("", true); err == nil {
		t.Error("empty workspace should be rejected")
	}
}

func TestDisabledModeCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, false); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Get(CategorySession).Info("should go nowhere")
	Session("also nowhere: %d", 42)

	if _, err := os.Stat(filepath.Join(dir, ".codescope")); !os.IsNotExist(err) {
		t.Error("disabled logging must not create the logs directory")
	}
}

func TestEnabledModeWritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	Get(CategoryWorkflow).Info("dispatch: %s", "explain")
	Workflow("second line")

	entries, err := os.ReadDir(filepath.Join(dir, ".codescope", "logs"))
	if err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}

	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), string(CategoryWorkflow)) {
			found = true
			data, err := os.ReadFile(filepath.Join(dir, ".codescope", "logs", e.Name()))
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			if !strings.Contains(string(data), "dispatch: explain") {
				t.Error("log file should contain the formatted message")
			}
		}
	}
	if !found {
		t.Errorf("no workflow log file in %v", entries)
	}
}
