// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
	"github.com/xkilldash9x/pagewright/internal/service"
)

// newRunCmd creates the `run` command: open a page and run commands on it
// in order, stopping at the first one that does not succeed.
func newRunCmd(factory service.ComponentFactory, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <url> <command> [command...]",
		Short: "Open a page and run plain-language commands against it",
		Example: `  pagewright run example.com "click More information"
  pagewright run https://duckduckgo.com "type golang into search and press enter" "wait 2 seconds"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				info, err := c.Orchestrator.OpenPage(ctx, args[0])
				if err != nil {
					return err
				}
				logger := observability.GetLogger()
				for _, text := range args[1:] {
					out, err := c.Orchestrator.RunCommand(ctx, text, info.ID)
					if err != nil {
						return err
					}
					if err := printResult(cmd.OutOrStdout(), out, opts.format); err != nil {
						return err
					}
					if !out.Success {
						logger.Warn("Command failed; skipping the rest.", zap.String("command", text))
						return fmt.Errorf("command %q failed: %s", text, out.Message)
					}
					if out.PageID != "" && out.PageID != info.ID {
						info.ID = out.PageID
					}
				}
				return nil
			})
		},
	}
}

// batchFile is the on-disk form of a batch: pages to open and the commands
// to run on each.
type batchFile struct {
	Jobs []struct {
		URL      string   `yaml:"url"`
		Commands []string `yaml:"commands"`
	} `yaml:"jobs"`
}

func loadBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var b batchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(b.Jobs) == 0 {
		return nil, fmt.Errorf("batch file %s has no jobs", path)
	}
	for i, j := range b.Jobs {
		if j.URL == "" || len(j.Commands) == 0 {
			return nil, fmt.Errorf("job %d needs a url and at least one command", i)
		}
	}
	return &b, nil
}

// newBatchCmd creates the `batch` command, which runs a YAML file of jobs
// concurrently, one page per job.
func newBatchCmd(factory service.ComponentFactory, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run several command sequences concurrently, one page each",
		Long: `Runs the jobs listed in a YAML file:

  jobs:
    - url: https://example.com
      commands: ["click More information"]
    - url: https://example.org
      commands: ["scroll down", "click About"]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBatch(args[0])
			if err != nil {
				return err
			}
			return withComponents(cmd, factory, func(ctx context.Context, c *service.Components) error {
				jobs := make([]orchestrator.Job, 0, len(b.Jobs))
				for _, j := range b.Jobs {
					info, err := c.Orchestrator.OpenPage(ctx, j.URL)
					if err != nil {
						return err
					}
					jobs = append(jobs, orchestrator.Job{PageID: info.ID, Commands: j.Commands})
				}

				results, err := c.Orchestrator.RunBatch(ctx, jobs)
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), results, opts.format); err != nil {
					return err
				}
				failed := 0
				for _, r := range results {
					if r.Err != nil || !allSucceeded(r.Outcomes) {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d jobs failed", failed, len(results))
				}
				return nil
			})
		},
	}
}

func allSucceeded(outs []*schemas.Outcome) bool {
	for _, o := range outs {
		if !o.Success {
			return false
		}
	}
	return true
}
