package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadmarket_backend/internal/domain"
	matchingservice "leadmarket_backend/internal/matching/service"
	protransport "leadmarket_backend/internal/professionals/transport"
	"leadmarket_backend/internal/store"
)

// systemAdminID attributes CLI-driven manual assignments.
var systemAdminID = uuid.Nil

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				fmt.Fprintf(cmd.OutOrStdout(), "store %s is up to date\n", rt.cfg.StoreDriver)
				return nil
			})
		},
	}
}

func serviceCmd() *cobra.Command {
	svc := &cobra.Command{Use: "service", Short: "Manage the service catalog"}
	svc.AddCommand(serviceCreateCmd(), serviceListCmd())
	return svc
}

func serviceCreateCmd() *cobra.Command {
	var req protransport.CreateServiceRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a service with its credit cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				created, err := rt.modules.Professionals.Service().CreateService(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), protransport.ToServiceResponse(created))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created service %s (%s, %d credits)\n", created.ID, created.Name, created.CreditCost)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "service name")
	cmd.Flags().Int64Var(&req.CreditCost, "cost", 0, "credits charged per accepted lead")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func serviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				services, err := rt.modules.Professionals.Service().ListServices(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), services)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Name", "Cost"})
				for _, s := range services {
					tw.AppendRow(table.Row{s.ID, s.Name, s.CreditCost})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func creditsCmd() *cobra.Command {
	credits := &cobra.Command{Use: "credits", Short: "Inspect and top up credit balances"}
	credits.AddCommand(creditsAddCmd(), creditsBalanceCmd(), creditsHistoryCmd())
	return credits
}

func creditsAddCmd() *cobra.Command {
	var reference string
	cmd := &cobra.Command{
		Use:   "add <professional-id> <amount>",
		Short: "Add credits to a professional",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			professionalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid professional id: %w", err)
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				res, err := rt.modules.Ledger.Service().Credit(ctx, professionalID, amount, reference)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), res)
				}
				if res.Duplicate {
					fmt.Fprintf(cmd.OutOrStdout(), "reference %q already applied; balance %d\n", reference, res.Balance)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credited %d; balance %d\n", amount, res.Balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "idempotency reference (payment id)")
	return cmd
}

func creditsBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <professional-id>",
		Short: "Show a professional's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			professionalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid professional id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				balance, err := rt.modules.Ledger.Service().GetBalance(ctx, professionalID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]int64{"balance": balance})
				}
				fmt.Fprintln(cmd.OutOrStdout(), balance)
				return nil
			})
		},
	}
}

func creditsHistoryCmd() *cobra.Command {
	var page store.Page
	cmd := &cobra.Command{
		Use:   "history <professional-id>",
		Short: "List ledger entries for a professional",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			professionalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid professional id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				entries, total, err := rt.modules.Ledger.Service().ListEntries(ctx, professionalID, page)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"When", "Kind", "Amount", "Balance", "Lead", "Reference"})
				for _, e := range entries {
					lead := ""
					if e.LeadID != nil {
						lead = e.LeadID.String()
					}
					tw.AppendRow(table.Row{e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.BalanceAfter, lead, e.Reference})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "total", total})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page.Limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "page offset")
	return cmd
}

func leadsCmd() *cobra.Command {
	leads := &cobra.Command{Use: "leads", Short: "Operate on leads"}
	leads.AddCommand(leadsFanOutCmd(), leadsAssignCmd(), leadsAssignmentsCmd())
	return leads
}

func leadsFanOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fan-out <lead-id>",
		Short: "Create assignments for every eligible professional",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lead id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				created, err := rt.modules.Matching.Service().FanOutAssignments(ctx, leadID)
				if err != nil {
					return err
				}
				return renderAssignments(cmd, created)
			})
		},
	}
}

func leadsAssignCmd() *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "assign <lead-id> <professional-id>",
		Short: "Manually assign a lead to a professional",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lead id: %w", err)
			}
			professionalID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid professional id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				a, err := rt.modules.Matching.Service().ManualAssign(ctx, matchingservice.ManualAssignParams{
					LeadID:         leadID,
					ProfessionalID: professionalID,
					AdminID:        systemAdminID,
					Override:       override,
				})
				if err != nil {
					return err
				}
				return renderAssignments(cmd, []domain.Assignment{a})
			})
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "revive a previously rejected assignment")
	return cmd
}

func leadsAssignmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <lead-id>",
		Short: "List a lead's assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lead id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				items, err := rt.modules.Matching.Service().ListLeadAssignments(ctx, leadID)
				if err != nil {
					return err
				}
				return renderAssignments(cmd, items)
			})
		},
	}
}

func assignmentsCmd() *cobra.Command {
	assignments := &cobra.Command{Use: "assignments", Short: "Inspect professional inboxes"}
	assignments.AddCommand(assignmentsListCmd(), assignmentsHistoryCmd())
	return assignments
}

func assignmentsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <professional-id>",
		Short: "List a professional's assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			professionalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid professional id: %w", err)
			}
			var filter *domain.AssignmentStatus
			if status != "" {
				parsed, err := domain.ParseAssignmentStatus(status)
				if err != nil {
					return err
				}
				filter = &parsed
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				items, err := rt.modules.Assignments.Service().ListForProfessional(ctx, professionalID, filter)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Lead", "Service", "Cost", "Location", "Status"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.LeadID, a.Lead.ServiceName, a.Lead.CreditCost, a.Lead.Location, a.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (PENDING, ACCEPTED, REJECTED, MISSED)")
	return cmd
}

func assignmentsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <assignment-id>",
		Short: "Show an assignment's status transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignmentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid assignment id: %w", err)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				rows, err := rt.modules.Matching.Service().History(ctx, assignmentID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"When", "From", "To", "Actor", "Reason"})
				for _, r := range rows {
					actor := ""
					if r.ActorID != nil {
						actor = r.ActorID.String()
					}
					tw.AppendRow(table.Row{r.CreatedAt.Format("2006-01-02 15:04:05"), r.From, r.To, actor, r.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func renderAssignments(cmd *cobra.Command, items []domain.Assignment) error {
	if viper.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"ID", "Lead", "Professional", "Source", "Status"})
	for _, a := range items {
		tw.AppendRow(table.Row{a.ID, a.LeadID, a.ProfessionalID, a.Source, a.Status})
	}
	tw.Render()
	return nil
}
