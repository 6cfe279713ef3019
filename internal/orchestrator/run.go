package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/executor"
	"github.com/xkilldash9x/pagewright/internal/journal"
)

// run carries the state of one RunCommand call across its plans.
type run struct {
	o    *Orchestrator
	text string
	pc   *pageContext

	steps     []schemas.StepRecord
	selectors []string
	advisory  int // failed supporting steps
}

// target holds what the locate steps of one plan found.
type target struct {
	source      *schemas.ElementAnalysis
	destination *schemas.ElementAnalysis
	locates     int
	ready       error
	readyRan    bool
}

// RunCommand parses text, plans each resulting command and executes the
// plans in order against the page. Expected failures come back as an
// unsuccessful Outcome; an error means the page surface itself failed, the
// page is unknown, or ctx ended.
func (o *Orchestrator) RunCommand(ctx context.Context, text, pageID string) (*schemas.Outcome, error) {
	if o.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CommandTimeout)
		defer cancel()
	}
	begin := o.clock.Now()

	pc, err := o.pageContext(pageID)
	if err != nil {
		return nil, err
	}
	pc.mu.Lock()
	r := &run{o: o, text: text, pc: pc}
	defer func() { r.pc.mu.Unlock() }()

	// Parsing
	parsed, err := o.deps.Parser.ParseOrPlan(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command cancelled while parsing: %w", ctx.Err())
		}
		out := parseFailure(err)
		out.PageID = pageID
		o.finish(ctx, r, "", out, begin)
		return out, nil
	}

	var out *schemas.Outcome
	action := ""
	for _, cmd := range parsed.Commands {
		// Planning
		plan := o.deps.Planner.CreateActionPlan(cmd)
		action = string(cmd.Action)

		// Executing
		out, err = r.execute(ctx, plan)
		if err != nil {
			o.logger.Error("Command aborted.", zap.String("command", text), zap.String("page_id", r.pc.page.ID()), zap.Error(err))
			return nil, err
		}
		if !out.Success {
			break
		}
	}

	out.Steps = r.steps
	out.AttemptedSelectors = r.selectors
	out.PageID = r.pc.page.ID()
	switch {
	case !out.Success:
		out.Status = schemas.PlanFailed
	case r.advisory > 0:
		out.Status = schemas.PlanPartiallyFailed
	default:
		out.Status = schemas.PlanSucceeded
	}
	o.finish(ctx, r, action, out, begin)
	return out, nil
}

func parseFailure(err error) *schemas.Outcome {
	if errors.Is(err, schemas.ErrUnsupportedAction) {
		out := schemas.Failure(schemas.ErrCodeActionUnsupported, err.Error())
		out.Status = schemas.PlanFailed
		return out
	}
	detail := err.Error()
	if !errors.Is(err, command.ErrNotUnderstood) {
		detail = "could not interpret the command: " + detail
	}
	out := schemas.Failure(schemas.ErrCodeCommandNotUnderstood, detail)
	out.Status = schemas.PlanFailed
	return out
}

// finish journals and counts a completed command.
func (o *Orchestrator) finish(ctx context.Context, r *run, action string, out *schemas.Outcome, begin time.Time) {
	elapsed := o.clock.Since(begin)
	label := action
	if label == "" {
		label = "unparsed"
	}
	o.deps.Metrics.ObserveCommand(label, string(out.Status), elapsed)

	entry := journal.NewEntry(r.text, action, out, elapsed, o.clock.Now())
	if err := o.deps.Recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Warn("Failed to journal command.", zap.Error(err))
	}
	o.logger.Info("Command finished.",
		zap.String("command", r.text),
		zap.String("page_id", out.PageID),
		zap.String("status", string(out.Status)),
		zap.String("error", string(out.Error)),
		zap.Duration("duration", elapsed),
	)
}

// execute walks one plan. The main step's failure ends the plan; supporting
// step failures are recorded and execution continues.
func (r *run) execute(ctx context.Context, plan *schemas.ActionPlan) (*schemas.Outcome, error) {
	o := r.o
	plan.Status = schemas.PlanRunning
	tgt := &target{}
	var mainOut *schemas.Outcome

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("command cancelled before step %d of plan %s: %w", i, plan.ID, err)
		}
		start := o.clock.Now()
		rec := schemas.StepRecord{StepID: step.ID, Action: step.Action, Main: plan.IsMain(step), PageID: r.pc.page.ID()}

		if rec.Main {
			out, err := r.mainStep(ctx, plan, tgt)
			if err != nil {
				return nil, err
			}
			mainOut = out
			rec.Success, rec.Message, rec.Error = out.Success, outcomeText(out), out.Error
			rec.Selectors = out.AttemptedSelectors
		} else if err := r.supportingStep(ctx, plan, step, tgt, &rec); err != nil {
			return nil, err
		}

		rec.Duration = o.clock.Since(start)
		o.deps.Metrics.ObserveStep(string(step.Action), rec.Duration)
		r.steps = append(r.steps, rec)

		if !rec.Success {
			if rec.Main {
				plan.Status = schemas.PlanFailed
				o.logger.Info("Main step failed, aborting plan.",
					zap.String("plan_id", plan.ID), zap.String("step", step.Description), zap.String("error", string(rec.Error)))
				break
			}
			r.advisory++
			o.logger.Debug("Supporting step failed, continuing.",
				zap.String("plan_id", plan.ID), zap.String("step", step.Description), zap.String("message", rec.Message))
		}
	}

	if mainOut == nil {
		// Only reachable when every step was supporting, which the planner prevents.
		return nil, fmt.Errorf("plan %s has no main step", plan.ID)
	}
	if mainOut.Success {
		plan.Status = schemas.PlanSucceeded
	}
	mainOut.PlanID = plan.ID
	return mainOut, nil
}

// mainStep executes the command and handles what follows a navigation.
func (r *run) mainStep(ctx context.Context, plan *schemas.ActionPlan, tgt *target) (*schemas.Outcome, error) {
	o := r.o
	cmd := plan.Command
	out, err := o.deps.Executor.Execute(ctx, executor.Request{
		Page:        r.pc.page,
		Tabs:        o.deps.Tabs,
		Target:      tgt.source,
		Destination: tgt.destination,
		Command:     cmd,
		Selectors:   r.selectors,
	})
	if err != nil {
		return nil, err
	}
	r.selectors = merge(r.selectors, out.AttemptedSelectors)
	if !out.Success {
		return out, nil
	}

	if cmd.Action == schemas.ActionNewTab && out.PageID != r.pc.page.ID() {
		if err := r.switchTo(out.PageID); err != nil {
			return nil, err
		}
	}
	if cmd.Action.Navigates() || cmd.Submit {
		_, tgt.ready = o.waitReady(ctx, r.pc.page)
		tgt.readyRan = true
		if tgt.ready != nil && errors.Is(tgt.ready, browser.ErrScriptInjection) {
			return nil, tgt.ready
		}
		if tgt.ready != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("command cancelled waiting for page: %w", ctx.Err())
		}
	}
	if mutates(cmd.Action) {
		r.pc.cache.Invalidate()
	}
	return out, nil
}

// switchTo moves the run onto another page context.
func (r *run) switchTo(pageID string) error {
	next, err := r.o.pageContext(pageID)
	if err != nil {
		return err
	}
	r.pc.mu.Unlock()
	next.mu.Lock()
	r.o.logger.Debug("Continuing on new page.", zap.String("from", r.pc.page.ID()), zap.String("to", pageID))
	r.pc = next
	return nil
}

// supportingStep runs a prepare, locate, verify or validate step. Only a
// failure of the page surface itself is returned as an error.
func (r *run) supportingStep(ctx context.Context, plan *schemas.ActionPlan, step schemas.Step, tgt *target, rec *schemas.StepRecord) error {
	o := r.o
	switch step.Action {
	case schemas.StepPrepare:
		state, err := r.pc.page.State(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrScriptInjection) {
				return fmt.Errorf("prepare: %w", err)
			}
			rec.Error, rec.Message = schemas.ErrCodeExecutionFailed, err.Error()
			return nil
		}
		rec.Success, rec.Message = true, fmt.Sprintf("Page %s is %s", state.URL, state.ReadyState)

	case schemas.StepLocate:
		tgt.locates++
		res, err := o.deps.Resolver.Resolve(ctx, r.pc.cache, step.Target, plan.ActionType)
		if err != nil {
			if errors.Is(err, browser.ErrScriptInjection) {
				return fmt.Errorf("locate %q: %w", step.Target, err)
			}
			rec.Error, rec.Message = schemas.ErrCodeExecutionFailed, err.Error()
			return nil
		}
		rec.Selectors = res.Attempted
		r.selectors = merge(r.selectors, res.Attempted)
		if !res.Found() {
			rec.Error, rec.Message = schemas.ErrCodeElementNotFound, fmt.Sprintf("no element matched %q", step.Target)
			return nil
		}
		el := res.Candidate.Element
		if tgt.locates > 1 && plan.ActionType == schemas.ActionDrag {
			tgt.destination = el
		} else {
			tgt.source = el
		}
		rec.Success, rec.ResolvedBy = true, res.Strategy
		rec.Message = fmt.Sprintf("Found <%s> at %s (score %.1f)", el.Tag, el.Path, res.Candidate.Score)

	case schemas.StepVerify:
		el := tgt.source
		switch {
		case el == nil:
			rec.Error, rec.Message = schemas.ErrCodeElementNotFound, "nothing to verify"
		case !el.IsVisible:
			rec.Message = fmt.Sprintf("%s is not visible", el.Path)
		case el.Disabled:
			rec.Message = fmt.Sprintf("%s is disabled", el.Path)
		default:
			rec.Success, rec.Message = true, "Target is visible and enabled"
		}

	case schemas.StepValidate:
		switch {
		case tgt.readyRan && tgt.ready != nil:
			rec.Error, rec.Message = schemas.ErrCodeTimeout, tgt.ready.Error()
		case tgt.readyRan:
			rec.Success, rec.Message = true, "Page is ready"
		default:
			rec.Success, rec.Message = true, "Action completed"
		}

	default:
		rec.Error, rec.Message = schemas.ErrCodeActionUnsupported, fmt.Sprintf("unknown step %q", step.Action)
	}
	return nil
}

// mutates reports whether the verb can change the document.
func mutates(k schemas.ActionKind) bool {
	switch k {
	case schemas.ActionGetText, schemas.ActionGetAttribute, schemas.ActionWait, schemas.ActionWaitForText:
		return false
	}
	return true
}

func outcomeText(out *schemas.Outcome) string {
	if out.Success {
		if out.Warning != "" {
			return out.Message + " (" + out.Warning + ")"
		}
		return out.Message
	}
	if out.ErrorDetail != "" {
		return out.ErrorDetail
	}
	return out.Message
}

func merge(into, more []string) []string {
	for _, s := range more {
		seen := false
		for _, have := range into {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			into = append(into, s)
		}
	}
	return into
}
