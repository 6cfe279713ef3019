// File: cmd/journal.go
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/journal"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the command journal",
	}
	journalCmd.AddCommand(newJournalTailCmd(opts))
	return journalCmd
}

// newJournalTailCmd prints the file journal, optionally following new
// entries as they are appended.
func newJournalTailCmd(opts *rootOptions) *cobra.Command {
	var follow, failedOnly bool
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print journaled commands, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			jc := cfg.Journal()
			if jc.Type != config.JournalFile {
				return fmt.Errorf("journal tail reads file journals only (journal.type is %q)", jc.Type)
			}

			t, err := tail.TailFile(jc.Path, tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: true,
				Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer t.Cleanup()
			defer func() { _ = t.Stop() }()

			logger := observability.GetLogger()
			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-t.Lines:
					if !ok {
						return nil
					}
					if line.Err != nil {
						return fmt.Errorf("failed to read journal: %w", line.Err)
					}
					if line.Text == "" {
						continue
					}
					entry, err := journal.Decode([]byte(line.Text))
					if err != nil {
						logger.Warn("Skipping malformed journal line.", zap.Error(err))
						continue
					}
					if failedOnly && entry.Success {
						continue
					}
					if err := printEntry(out, entry, opts.format); err != nil {
						return err
					}
				}
			}
		},
	}
	tailCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing entries as they are written")
	tailCmd.Flags().BoolVar(&failedOnly, "failed", false, "only print commands that did not succeed")
	return tailCmd
}

func printEntry(w io.Writer, e journal.Entry, format string) error {
	if format == "json" {
		return printResult(w, e, format)
	}
	status := "ok"
	if !e.Success {
		status = string(e.Error)
		if status == "" {
			status = "failed"
		}
	}
	_, err := fmt.Fprintf(w, "%s  %-8s %-22s %6dms  %s", e.Time.Local().Format(time.DateTime), e.PageID, status, e.DurationMs, e.Command)
	if err == nil && e.Message != "" {
		_, err = fmt.Fprintf(w, "  (%s)", e.Message)
	}
	if err == nil {
		_, err = fmt.Fprintln(w)
	}
	return err
}
