package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// Job is a sequence of commands for one page.
type Job struct {
	PageID   string   `json:"pageId" yaml:"pageId"`
	Commands []string `json:"commands" yaml:"commands"`
}

// JobResult holds the outcomes of one job, in command order. A job stops at
// the first unsuccessful command or error.
type JobResult struct {
	PageID   string             `json:"pageId" yaml:"pageId"`
	Outcomes []*schemas.Outcome `json:"outcomes" yaml:"outcomes"`
	Err      error              `json:"-" yaml:"-"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunBatch runs jobs concurrently, at most MaxConcurrency at a time. Jobs for
// the same page serialise on that page's lock. One job failing does not stop
// the others; the returned error is set only when ctx ends.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrency)

	for i, job := range jobs {
		results[i].PageID = job.PageID
		g.Go(func() error {
			res := &results[i]
			for _, text := range job.Commands {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := o.RunCommand(gctx, text, job.PageID)
				if err != nil {
					res.Err, res.Error = err, err.Error()
					o.logger.Warn("Batch job stopped.", zap.String("page_id", job.PageID), zap.Error(err))
					return nil
				}
				res.Outcomes = append(res.Outcomes, out)
				if !out.Success {
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}
