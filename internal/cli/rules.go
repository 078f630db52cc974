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

func newRulesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List and manage risk rules",
	}

	var (
		q      backend.RuleQuery
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of risk rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch status {
			case views.StatusActive:
				q.Active = new(bool)
				*q.Active = true
			case views.StatusInactive:
				q.Active = new(bool)
			case "", views.StatusAll:
			default:
				return fmt.Errorf("invalid --status %q", status)
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				page, err := svc.ListRules(ctx, q)
				if err != nil {
					return err
				}
				info, err := svc.RuleTypesInfo(ctx)
				if err != nil {
					e.logger.Debug("rule types info unavailable", "error", err)
				}
				return e.emit(cmd, page, func(tw io.Writer) {
					writeRow(tw, "ID", "NAME", "TYPE", "SEVERITY", "ACTIVE", "ACTIONS")
					for _, r := range page.Data {
						writeRow(tw, r.ID, r.Name, info.Label(r.Type), r.Severity, views.ActiveLabel(r.IsActive), len(r.Actions))
					}
					pageFooter(tw, page.CurrentPage, page.LastPage, page.Total)
				})
			})
		},
	}
	list.Flags().StringVar(&q.Type, "type", "", "DURATION, VOLUME or OPEN_TRADES")
	list.Flags().StringVar(&q.Severity, "severity", "", "HARD or SOFT")
	list.Flags().StringVar(&status, "status", "", "all, active or inactive")
	list.Flags().IntVar(&q.Page, "page", 1, "page number")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a rule with its parameters and actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				r, err := svc.GetRule(ctx, id)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("rule %d not found", id)
				}
				return e.emit(cmd, r, func(tw io.Writer) {
					writeRow(tw, "ID", r.ID)
					writeRow(tw, "Name", r.Name)
					writeRow(tw, "Type", r.Type)
					writeRow(tw, "Severity", views.SeverityLabel(r.Severity))
					writeRow(tw, "Active", views.ActiveLabel(r.IsActive))
					if r.IncidentsBeforeAction != nil {
						writeRow(tw, "Incidents before action", *r.IncidentsBeforeAction)
					}
					for _, p := range views.RuleParamsSummary(r.Params) {
						writeRow(tw, p[0], p[1])
					}
					for _, a := range r.Actions {
						writeRow(tw, fmt.Sprintf("Action %d", a.Order), views.ActionLabel(a.Type)+": "+views.ActionDescription(a.Config))
					}
				})
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a rule between active and inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				if err := svc.ToggleRule(ctx, e.actor(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rule %d toggled\n", id)
				return nil
			})
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete rule %d without --yes", id)
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				if err := svc.DeleteRule(ctx, e.actor(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rule %d deleted\n", id)
				return nil
			})
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")

	cmd.AddCommand(list, show, toggle, del)
	return cmd
}
