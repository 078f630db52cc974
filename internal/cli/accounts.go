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

func newAccountsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List and manage trading accounts",
	}

	var q backend.AccountQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if q.PerPage <= 0 {
				q.PerPage = e.cfg.AccountsPageSize
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				page, err := svc.ListAccounts(ctx, q)
				if err != nil {
					return err
				}
				return e.emit(cmd, page, func(tw io.Writer) {
					writeRow(tw, "ID", "LOGIN", "STATUS", "TRADING", "CREATED")
					for _, a := range page.Data {
						writeRow(tw, a.ID, a.Login, views.ToggleLabel(a.Status), views.ToggleLabel(a.TradingStatus), views.FormatDate(a.CreatedAt))
					}
					pageFooter(tw, page.CurrentPage, page.LastPage, page.Total)
				})
			})
		},
	}
	list.Flags().StringVar(&q.Search, "search", "", "filter by login")
	list.Flags().StringVar(&q.Status, "status", "", "enable or disable")
	list.Flags().IntVar(&q.Page, "page", 1, "page number")
	list.Flags().IntVar(&q.PerPage, "per-page", 0, "page size (default $ACCOUNTS_PAGE_SIZE)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show an account with its risk status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				acc, err := svc.GetAccount(ctx, id)
				if err != nil {
					return err
				}
				if acc == nil {
					return fmt.Errorf("account %d not found", id)
				}
				risk, err := svc.GetRiskStatus(ctx, id)
				if err != nil {
					e.logger.Warn("risk status unavailable", "account", id, "error", err)
				}
				v := struct {
					Account any `json:"account"`
					Risk    any `json:"risk,omitempty"`
				}{acc, risk}
				return e.emit(cmd, v, func(tw io.Writer) {
					writeRow(tw, "ID", acc.ID)
					writeRow(tw, "Login", acc.Login)
					writeRow(tw, "Status", views.ToggleLabel(acc.Status))
					writeRow(tw, "Trading", views.ToggleLabel(acc.TradingStatus))
					writeRow(tw, "Trades", len(acc.Trades))
					writeRow(tw, "Incidents", len(acc.Incidents))
					if risk != nil {
						writeRow(tw, "Risk", risk.RiskLevel)
						writeRow(tw, "Open trades", risk.OpenTradesCount)
						writeRow(tw, "Closed trades", risk.ClosedTradesCount)
						writeRow(tw, "Incidents (HARD/SOFT)", views.SeveritySplit(risk.IncidentsBySeverity.Hard, risk.IncidentsBySeverity.Soft))
					}
				})
			})
		},
	}

	cmd.AddCommand(list, show, tradingCommand(e, true), tradingCommand(e, false))
	return cmd
}

func tradingCommand(e *env, enable bool) *cobra.Command {
	use, short := "disable-trading ID", "Disable trading on an account"
	if enable {
		use, short = "enable-trading ID", "Enable trading on an account"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, svc console.Service) error {
				call := svc.DisableTrading
				if enable {
					call = svc.EnableTrading
				}
				acc, err := call(ctx, e.actor(), id)
				if err != nil {
					return err
				}
				if acc == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "account %d updated\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account %d trading: %s\n", acc.ID, views.ToggleLabel(acc.TradingStatus))
				return nil
			})
		},
	}
}
