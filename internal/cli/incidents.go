package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"risk-console/internal/backend"
	"risk-console/internal/console"
	"risk-console/internal/views"
)

func newIncidentsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List, summarize and resolve incidents",
	}

	var q backend.IncidentQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of incidents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if q.PerPage <= 0 {
				q.PerPage = e.cfg.IncidentsPageSize
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				page, err := svc.ListIncidents(ctx, q)
				if err != nil {
					return err
				}
				return e.emit(cmd, page, func(tw io.Writer) {
					writeRow(tw, "ID", "ACCOUNT", "RULE", "SEVERITY", "CREATED", "RESOLVED", "DESCRIPTION")
					for _, in := range page.Data {
						account, rule := "-", "-"
						if in.Account != nil {
							account = fmt.Sprint(in.Account.Login)
						}
						if in.Rule != nil {
							rule = in.Rule.Name
						}
						resolved := "-"
						if in.ResolvedAt != nil {
							resolved = views.FormatDateTime(*in.ResolvedAt)
						}
						writeRow(tw, in.ID, account, rule, in.Severity, views.FormatDateTime(in.CreatedAt), resolved, in.Description)
					}
					pageFooter(tw, page.CurrentPage, page.LastPage, page.Total)
				})
			})
		},
	}
	list.Flags().StringVar(&q.Search, "search", "", "free-text search")
	list.Flags().StringVar(&q.Severity, "severity", "", "HARD or SOFT")
	list.Flags().IntVar(&q.Page, "page", 1, "page number")
	list.Flags().IntVar(&q.PerPage, "per-page", 0, "page size (default $INCIDENTS_PAGE_SIZE)")

	var sq backend.StatsQuery
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show incident statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				s, err := svc.IncidentStatistics(ctx, sq)
				if err != nil {
					return err
				}
				return e.emit(cmd, s, func(tw io.Writer) {
					writeRow(tw, "Total", s.Total)
					writeRow(tw, "Severity", views.SeveritySplit(s.BySeverity.Hard, s.BySeverity.Soft))
					for i, r := range s.TopRules {
						writeRow(tw, fmt.Sprintf("Top %d", i+1), fmt.Sprintf("%s (%s) %d", r.Name, r.Type, r.Count))
					}
				})
			})
		},
	}
	stats.Flags().StringVar(&sq.TimeRange, "range", "", "backend time range, e.g. 24h or 7d")

	resolve := &cobra.Command{
		Use:   "resolve ID",
		Short: "Mark an incident as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				if err := svc.ResolveIncident(ctx, e.actor(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "incident %d resolved\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, stats, resolve)
	return cmd
}
