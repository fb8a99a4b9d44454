package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPlanCmd создаёт группу команд для управления планами.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans",
	}

	cmd.AddCommand(
		newPlanCreateCmd(clientFn, outputFn),
		newPlanShowCmd(clientFn, outputFn),
		newPlanApproveCmd(clientFn, outputFn),
	)

	return cmd
}

func newPlanCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var intentType string
	var complexity string
	var counterpoints bool
	var userID string

	cmd := &cobra.Command{
		Use:   "create QUERY",
		Short: "Compile an intent into a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.CreatePlan(CreatePlanRequest{
				Intent: IntentRequest{
					Query:         args[0],
					Type:          intentType,
					Complexity:    complexity,
					Counterpoints: counterpoints,
				},
				UserID: userID,
			})
			if err != nil {
				return err
			}

			if plan.Plan.RequiresApproval && !plan.Approved {
				out.Success(fmt.Sprintf("Plan created: %s (requires approval)", plan.Plan.ID))
			} else {
				out.Success(fmt.Sprintf("Plan created: %s", plan.Plan.ID))
			}
			printPlan(out, plan)
			return nil
		},
	}

	cmd.Flags().StringVar(&intentType, "type", "research", "Intent type (research, summarize, compare)")
	cmd.Flags().StringVar(&complexity, "complexity", "", "Intent complexity (simple, medium, complex)")
	cmd.Flags().BoolVar(&counterpoints, "counterpoints", false, "Include counterpoint analysis")
	cmd.Flags().StringVar(&userID, "user-id", "", "User ID to attribute the plan to")

	return cmd
}

func newPlanShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show plan details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.GetPlan(args[0])
			if err != nil {
				return err
			}

			printPlan(out, plan)
			return nil
		},
	}
}

func newPlanApproveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a plan that requires confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.ApprovePlan(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Plan approved: %s", plan.Plan.ID))
			return nil
		},
	}
}

// printPlan выводит план: сводка и таблица задач.
func printPlan(out *Output, plan *PlanResponse) {
	if len(plan.Validation.Warnings) > 0 {
		out.Success("Warnings: " + strings.Join(plan.Validation.Warnings, "; "))
	}

	headers := []string{"TASK_ID", "TYPE", "DEPENDS_ON", "STATUS"}
	rows := make([][]string, len(plan.Plan.Tasks))
	for i, t := range plan.Plan.Tasks {
		rows[i] = []string{t.ID, t.Type, strings.Join(t.Dependencies, ","), t.Status}
	}

	out.Success(fmt.Sprintf("Risk: %s  Estimated: %ss / $%s  Approved: %v",
		plan.Plan.RiskLevel,
		strconv.FormatFloat(plan.Plan.EstimatedTimeSeconds, 'f', 1, 64),
		strconv.FormatFloat(plan.Plan.EstimatedCost, 'f', 4, 64),
		plan.Approved,
	))
	out.Print(headers, rows, plan)
}
