package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// logTo builds a logger writing to a temp file, emits one debug and one info
// entry, and returns the file contents.
func logTo(t *testing.T, opts LogOptions) string {
	t.Helper()
	opts.Output = filepath.Join(t.TempDir(), "norma.log")
	logger, err := NewLogger(opts)
	if err != nil {
		t.Fatalf("NewLogger(%+v) error: %v", opts, err)
	}
	logger.Debug("embedding batch")
	logger.Info("artifacts loaded")
	_ = logger.Sync()
	data, err := os.ReadFile(opts.Output)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNewLogger(t *testing.T) {
	t.Run("production mode writes tagged JSON at info level", func(t *testing.T) {
		out := logTo(t, LogOptions{Version: "1.4.0"})
		if !strings.Contains(out, `"service":"norma"`) {
			t.Errorf("missing service field: %s", out)
		}
		if !strings.Contains(out, `"version":"1.4.0"`) {
			t.Errorf("missing version field: %s", out)
		}
		if !strings.Contains(out, "artifacts loaded") {
			t.Errorf("info entry missing: %s", out)
		}
		if strings.Contains(out, "embedding batch") {
			t.Errorf("debug entry should be dropped: %s", out)
		}
	})

	t.Run("debug mode keeps debug entries", func(t *testing.T) {
		out := logTo(t, LogOptions{Debug: true})
		if !strings.Contains(out, "embedding batch") {
			t.Errorf("debug entry missing: %s", out)
		}
		if !strings.Contains(out, "norma") || !strings.Contains(out, "dev") {
			t.Errorf("service and default version should be present: %s", out)
		}
	})

	t.Run("bad sink fails", func(t *testing.T) {
		_, err := NewLogger(LogOptions{Output: filepath.Join(t.TempDir(), "missing", "norma.log")})
		if err == nil {
			t.Error("expected error for unwritable output path")
		}
	})
}
