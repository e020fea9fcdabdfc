package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	charmlog "github.com/charmbracelet/log"
)

func TestLevel_ToCharmlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  charmlog.Level
	}{
		{DebugLevel, charmlog.DebugLevel},
		{InfoLevel, charmlog.InfoLevel},
		{WarnLevel, charmlog.WarnLevel},
		{ErrorLevel, charmlog.ErrorLevel},
		{"WARN", charmlog.WarnLevel},
		{"", charmlog.InfoLevel},
		{"verbose", charmlog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.ToCharmlogLevel(); got != tt.want {
				t.Errorf("ToCharmlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: DebugLevel, JSON: true, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("task completed", "task", "t1", "tokens", 42)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "task completed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "task completed")
	}
	if entry["task"] != "t1" {
		t.Errorf("task = %v, want t1", entry["task"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WarnLevel, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNew_FileCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "flowpilot.log")
	l, err := New(Config{Level: InfoLevel, File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("written to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message: %q", data)
	}

	// Second close is a no-op.
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
