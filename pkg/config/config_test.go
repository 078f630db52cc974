package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("BACKEND_API_URL", "http://backend.test/api/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL != "http://backend.test/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Fatalf("expected 10s backend timeout, got %v", cfg.BackendTimeout)
	}
	if cfg.AccountsPageSize != 15 || cfg.IncidentsPageSize != 10 {
		t.Fatalf("unexpected page sizes %d/%d", cfg.AccountsPageSize, cfg.IncidentsPageSize)
	}
	if cfg.SearchDebounce != time.Second {
		t.Fatalf("expected 1s debounce, got %v", cfg.SearchDebounce)
	}
	if cfg.AuthEnabled() {
		t.Fatalf("auth should be disabled without credentials")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", "")

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"1500ms", 1500 * time.Millisecond},
		{"250", 250 * time.Millisecond},
		{"garbage", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SEARCH_DEBOUNCE", tt.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.SearchDebounce != tt.want {
				t.Fatalf("SEARCH_DEBOUNCE=%q: got %v want %v", tt.value, cfg.SearchDebounce, tt.want)
			}
		})
	}
}

func TestIncidentsPageSizeFallsBack(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", "")
	t.Setenv("INCIDENTS_PAGE_SIZE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IncidentsPageSize != 10 {
		t.Fatalf("expected fallback to 10, got %d", cfg.IncidentsPageSize)
	}
}

func TestConsoleFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := `
pages:
  accounts: 25
  incidents: 20
search_debounce: 500ms
form_defaults:
  type: VOLUME
  min_factor: 0.8
rule_type_labels:
  DURATION: Duración
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccountsPageSize != 25 || cfg.IncidentsPageSize != 20 {
		t.Fatalf("overlay page sizes not applied: %d/%d", cfg.AccountsPageSize, cfg.IncidentsPageSize)
	}
	if cfg.SearchDebounce != 500*time.Millisecond {
		t.Fatalf("overlay debounce not applied: %v", cfg.SearchDebounce)
	}
	fd := cfg.Console.FormDefaults
	if fd.Type == nil || *fd.Type != "VOLUME" {
		t.Fatalf("form default type not parsed")
	}
	if fd.MinFactor == nil || *fd.MinFactor != 0.8 {
		t.Fatalf("form default min_factor not parsed")
	}
	if fd.MaxFactor != nil {
		t.Fatalf("unset max_factor should stay nil")
	}
	if cfg.Console.RuleTypeLabels["DURATION"] != "Duración" {
		t.Fatalf("rule type labels not parsed")
	}
}

func TestConsoleFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte("pages: [unclosed"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	if _, err := LoadConsoleFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
