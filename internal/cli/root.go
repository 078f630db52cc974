// Package cli holds the risk-console commands: the web server and a set of
// operator commands that talk to the risk backend directly.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"risk-console/internal/backend"
	"risk-console/internal/console"
	"risk-console/pkg/config"
	"risk-console/pkg/db"
	"risk-console/pkg/i18n"
	"risk-console/pkg/logging"
)

// Loader returns the configuration commands run with.
type Loader func() (*config.Config, error)

// env is the state shared by every command of one invocation.
type env struct {
	version string
	load    Loader

	cfg    *config.Config
	logger *slog.Logger

	// flag overrides
	backendURL string
	apiKey     string
	dbPath     string
	operator   string
	jsonOut    bool

	svc     console.Service
	closers []io.Closer
}

// Execute runs the root command with the environment configuration.
func Execute(version string) error {
	return NewRootCommand(version, config.Load).Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string, load Loader) *cobra.Command {
	e := &env{version: version, load: load}

	root := &cobra.Command{
		Use:           "risk-console",
		Short:         "Operator console for the trading risk backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return e.close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&e.backendURL, "backend-url", "", "risk backend base URL (default $BACKEND_API_URL)")
	f.StringVar(&e.apiKey, "api-key", "", "risk backend API key (default $BACKEND_API_KEY)")
	f.StringVar(&e.dbPath, "db", "", "SQLite path for the audit log (default $DB_PATH)")
	f.StringVar(&e.operator, "operator", os.Getenv("USER"), "operator recorded in the audit log")
	f.BoolVar(&e.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newServeCommand(e),
		newAccountsCommand(e),
		newRulesCommand(e),
		newIncidentsCommand(e),
		newCacheCommand(e),
		newHealthCommand(e),
	)
	return root
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := e.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if e.backendURL != "" {
		cfg.BackendURL = e.backendURL
	}
	if e.apiKey != "" {
		cfg.BackendAPIKey = e.apiKey
	}
	if e.dbPath != "" {
		cfg.DBPath = e.dbPath
	}
	e.cfg = cfg
	i18n.SetLanguage(i18n.Parse(cfg.Language))

	logger, closer, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	e.logger = logger
	e.closers = append(e.closers, closer)
	return nil
}

func (e *env) close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// service builds a console service with the audit log but without a shared
// cache: one-shot commands never read the same key twice.
func (e *env) service() (console.Service, error) {
	if e.svc != nil {
		return e.svc, nil
	}
	database, err := db.New(e.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, database)
	if err := db.ApplyMigrations(database); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	client := backend.New(e.cfg.BackendURL, e.cfg.BackendAPIKey,
		backend.WithTimeout(e.cfg.BackendTimeout),
		backend.WithLogger(e.logger, e.cfg.BackendLogBody),
	)
	e.svc = console.New(console.Config{
		Backend: client,
		Audit:   database.Queries(),
		Logger:  e.logger,
	})
	return e.svc, nil
}

func (e *env) actor() console.Actor {
	return console.Actor{Operator: e.operator, RequestID: "cli-" + uuid.NewString()[:8]}
}

// run resolves the service and calls fn with the command context.
func (e *env) run(cmd *cobra.Command, fn func(ctx context.Context, svc console.Service) error) error {
	svc, err := e.service()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), svc)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
