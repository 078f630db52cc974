package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the console.
type Config struct {
	Port string

	// Risk backend
	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration
	BackendLogBody int // bytes of request/response body logged (-1 = all, 0 = none)

	// Query cache
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Database (operators + audit log)
	DBPath string

	// Pages
	AccountsPageSize  int
	IncidentsPageSize int
	SearchDebounce    time.Duration

	// Auth
	JWTSecret       string
	ConsoleUser     string
	ConsolePassword string

	// Logging
	LogLevel string
	LogFile  string

	// Localization
	Language string // "es" or "en"

	// Optional YAML overlay
	ConsoleFile string
	Console     *ConsoleFile
}

// AuthEnabled reports whether operator login is required.
func (c *Config) AuthEnabled() bool {
	return c.ConsoleUser != "" && c.ConsolePassword != ""
}

// Load reads environment variables (optionally via .env) into Config and
// merges the YAML overlay when present.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		BackendURL:        strings.TrimRight(getEnv("BACKEND_API_URL", "http://localhost:8000/api"), "/"),
		BackendAPIKey:     os.Getenv("BACKEND_API_KEY"),
		BackendTimeout:    getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		BackendLogBody:    getEnvInt("BACKEND_LOG_BODY", 0),
		CacheTTL:          getEnvDuration("CACHE_TTL", 30*time.Second),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		DBPath:            getEnv("DB_PATH", "./data/console.db"),
		AccountsPageSize:  getEnvInt("ACCOUNTS_PAGE_SIZE", 15),
		IncidentsPageSize: getEnvInt("INCIDENTS_PAGE_SIZE", 10),
		SearchDebounce:    getEnvDuration("SEARCH_DEBOUNCE", time.Second),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		ConsoleUser:       strings.TrimSpace(os.Getenv("CONSOLE_USER")),
		ConsolePassword:   os.Getenv("CONSOLE_PASSWORD"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:           os.Getenv("LOG_FILE"),
		Language:          strings.ToLower(getEnv("LANGUAGE", "es")),
		ConsoleFile:       getEnv("CONSOLE_CONFIG", "console.yaml"),
	}

	file, err := LoadConsoleFile(cfg.ConsoleFile)
	if err != nil {
		return nil, err
	}
	cfg.Console = file
	cfg.applyOverlay(file)

	if !validIncidentsPageSize(cfg.IncidentsPageSize) {
		cfg.IncidentsPageSize = 10
	}
	if cfg.AccountsPageSize <= 0 {
		cfg.AccountsPageSize = 15
	}
	return cfg, nil
}

func (c *Config) applyOverlay(f *ConsoleFile) {
	if f == nil {
		return
	}
	if f.Pages.Accounts > 0 {
		c.AccountsPageSize = f.Pages.Accounts
	}
	if f.Pages.Incidents > 0 {
		c.IncidentsPageSize = f.Pages.Incidents
	}
	if f.SearchDebounce > 0 {
		c.SearchDebounce = f.SearchDebounce
	}
	if f.CacheTTL > 0 {
		c.CacheTTL = f.CacheTTL
	}
}

// IncidentsPageSizes lists the per-page choices offered on the incidents page.
var IncidentsPageSizes = []int{5, 10, 20, 50}

func validIncidentsPageSize(n int) bool {
	for _, v := range IncidentsPageSizes {
		if v == n {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("1500ms") or plain milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
