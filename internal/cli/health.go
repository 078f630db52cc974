package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"risk-console/internal/backend"
	"risk-console/pkg/db"
)

const (
	statusHealthy   = "HEALTHY"
	statusDegraded  = "DEGRADED"
	statusUnhealthy = "UNHEALTHY"
)

// HealthStatus is the result of one dependency check.
type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthReport aggregates every check; Overall is the worst status.
type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func newHealthCommand(e *env) *cobra.Command {
	var consoleURL string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the database, risk backend, Redis and a running console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if consoleURL == "" {
				consoleURL = "http://localhost:" + e.cfg.Port
			}

			report := HealthReport{Overall: statusHealthy}
			report.Services = append(report.Services,
				e.checkDatabase(),
				e.checkBackend(ctx),
				e.checkRedis(ctx),
				checkConsole(ctx, consoleURL),
			)
			for _, s := range report.Services {
				if s.Status == statusUnhealthy {
					report.Overall = statusUnhealthy
					break
				}
				if s.Status == statusDegraded {
					report.Overall = statusDegraded
				}
			}

			err := e.emit(cmd, report, func(tw io.Writer) {
				writeRow(tw, "SERVICE", "STATUS", "MESSAGE")
				for _, s := range report.Services {
					writeRow(tw, s.Service, s.Status, s.Message)
				}
				fmt.Fprintf(tw, "\noverall: %s\n", report.Overall)
			})
			if err != nil {
				return err
			}
			if report.Overall == statusUnhealthy {
				return fmt.Errorf("health check failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&consoleURL, "console-url", "", "running console base URL (default http://localhost:$PORT)")
	return cmd
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: statusHealthy, Timestamp: time.Now()}
}

func (e *env) checkDatabase() HealthStatus {
	status := newStatus("Database")
	database, err := db.New(e.cfg.DBPath)
	if err != nil {
		status.Status, status.Message = statusUnhealthy, fmt.Sprintf("open failed: %v", err)
		return status
	}
	defer database.Close()
	if err := database.DB.Ping(); err != nil {
		status.Status, status.Message = statusUnhealthy, fmt.Sprintf("ping failed: %v", err)
		return status
	}
	missing, err := db.VerifySchema(database)
	switch {
	case err != nil:
		status.Status, status.Message = statusDegraded, fmt.Sprintf("schema not readable: %v", err)
	case len(missing) > 0:
		status.Status, status.Message = statusDegraded, "missing columns: "+strings.Join(missing, ", ")
	default:
		status.Message = e.cfg.DBPath
	}
	return status
}

func (e *env) checkBackend(ctx context.Context) HealthStatus {
	status := newStatus("Risk backend")
	if e.cfg.BackendAPIKey == "" {
		status.Status, status.Message = statusDegraded, "no API key configured"
	}
	client := backend.New(e.cfg.BackendURL, e.cfg.BackendAPIKey, backend.WithTimeout(e.cfg.BackendTimeout))
	start := time.Now()
	page, err := client.ListAccounts(ctx, backend.AccountQuery{Page: 1, PerPage: 1})
	if err != nil {
		status.Status, status.Message = statusUnhealthy, err.Error()
		return status
	}
	if status.Message == "" {
		status.Message = fmt.Sprintf("%s (%d accounts, %s)", client.BaseURL(), page.Total, time.Since(start).Round(time.Millisecond))
	}
	return status
}

func (e *env) checkRedis(ctx context.Context) HealthStatus {
	status := newStatus("Redis")
	if e.cfg.RedisAddr == "" {
		status.Message = "not configured, memory cache"
		return status
	}
	client := redis.NewClient(&redis.Options{Addr: e.cfg.RedisAddr, Password: e.cfg.RedisPassword, DB: e.cfg.RedisDB})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		status.Status, status.Message = statusDegraded, fmt.Sprintf("unreachable, console falls back to memory: %v", err)
		return status
	}
	status.Message = e.cfg.RedisAddr
	return status
}

func checkConsole(ctx context.Context, base string) HealthStatus {
	status := newStatus("Console")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/health", nil)
	if err != nil {
		status.Status, status.Message = statusDegraded, err.Error()
		return status
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		status.Status, status.Message = statusDegraded, fmt.Sprintf("not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.Status, status.Message = statusDegraded, fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}
	status.Message = "running"
	return status
}
