// File: cmd/inspect.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/server"
	"github.com/xkilldash9x/pagewright/internal/service"
)

// newAnalyzeCmd creates the `analyze` command.
func newAnalyzeCmd(factory service.ComponentFactory, opts *rootOptions) *cobra.Command {
	var limit int
	analyzeCmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "List a page's interactive elements, best automation candidates first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				info, err := c.Orchestrator.OpenPage(ctx, args[0])
				if err != nil {
					return err
				}
				pa, err := c.Orchestrator.Analyze(ctx, info.ID)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), server.SummarizeAnalysis(pa, limit), opts.format)
			})
		},
	}
	analyzeCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of elements to list")
	return analyzeCmd
}

// newResolveCmd creates the `resolve` command.
func newResolveCmd(factory service.ComponentFactory, opts *rootOptions) *cobra.Command {
	var action string
	resolveCmd := &cobra.Command{
		Use:   "resolve <url> <description>",
		Short: "Show which element a description refers to, without acting on it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := schemas.ParseActionKind(action)
			if err != nil {
				return err
			}
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				info, err := c.Orchestrator.OpenPage(ctx, args[0])
				if err != nil {
					return err
				}
				res, err := c.Orchestrator.Resolve(ctx, info.ID, args[1], kind)
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), server.SummarizeResolution(res), opts.format); err != nil {
					return err
				}
				if !res.Found() {
					return fmt.Errorf("no element matches %q", args[1])
				}
				return nil
			})
		},
	}
	resolveCmd.Flags().StringVarP(&action, "action", "a", string(schemas.ActionClick), "action the element is for")
	return resolveCmd
}

// newPlanCmd creates the `plan` command. It never touches a browser.
func newPlanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <command>",
		Short: "Parse a command and print the step plan it would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			fallback, err := service.InitializeFallback(ctx, cfg.Planner(), logger)
			if err != nil {
				return err
			}

			parsed, err := command.NewParser(fallback, logger).ParseOrPlan(ctx, args[0])
			if err != nil {
				return err
			}
			planner := command.NewPlanner(logger)
			plans := make([]*schemas.ActionPlan, 0, len(parsed.Commands))
			for _, c := range parsed.Commands {
				plans = append(plans, planner.CreateActionPlan(c))
			}
			return printResult(cmd.OutOrStdout(), plans, opts.format)
		},
	}
}
