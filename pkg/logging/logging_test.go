package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesToFileAndStdout(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "console.log")

	logger, closer, err := New(&out, "info", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.With("component", "test").Info("cache invalidated", "resource", "accounts")
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "resource=accounts") || !strings.Contains(string(data), "component=test") {
		t.Fatalf("file handler missed attributes: %s", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Fatalf("debug record should be filtered at info level")
	}
	if !strings.Contains(out.String(), "cache invalidated") {
		t.Fatalf("console handler missed record: %s", out.String())
	}
}
