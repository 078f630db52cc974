package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleFile is the optional YAML overlay (console.yaml).
type ConsoleFile struct {
	Pages struct {
		Accounts  int `yaml:"accounts"`
		Incidents int `yaml:"incidents"`
	} `yaml:"pages"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	FormDefaults   FormDefaults  `yaml:"form_defaults"`
	// RuleTypeLabels overrides the labels shown for rule types when the
	// backend's /rules/types/info is unavailable.
	RuleTypeLabels map[string]string `yaml:"rule_type_labels"`
}

// FormDefaults overrides the initial values of a new risk rule form.
// Nil fields keep the built-in default.
type FormDefaults struct {
	Type                  *string  `yaml:"type"`
	Severity              *string  `yaml:"severity"`
	IncidentsBeforeAction *int     `yaml:"incidents_before_action"`
	MinDurationSeconds    *int     `yaml:"min_duration_seconds"`
	MinFactor             *float64 `yaml:"min_factor"`
	MaxFactor             *float64 `yaml:"max_factor"`
	LookbackTrades        *int     `yaml:"lookback_trades"`
	TimeWindowMinutes     *int     `yaml:"time_window_minutes"`
	MaxOpenTrades         *int     `yaml:"max_open_trades"`
}

// LoadConsoleFile reads the overlay. A missing file is not an error.
func LoadConsoleFile(path string) (*ConsoleFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file ConsoleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &file, nil
}
