package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// condition is one poll probe. A non-nil error ends the wait.
type condition func(ctx context.Context) (bool, error)

// poll checks cond every PollInterval on the executor's clock until it holds
// or timeout elapses. It reports false, not an error, on expiry.
func (e *Executor) poll(ctx context.Context, timeout time.Duration, cond condition) (bool, error) {
	deadline := e.clock.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil || ok {
			return ok, err
		}
		if !e.clock.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-e.clock.After(e.cfg.PollInterval):
		}
	}
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(d):
		return nil
	}
}

// timeout is the command's explicit timeout in milliseconds, or the default.
func (e *Executor) timeout(cmd schemas.StructuredCommand) time.Duration {
	if cmd.Amount > 0 {
		return time.Duration(cmd.Amount) * time.Millisecond
	}
	return e.cfg.WaitTimeout
}

func timedOut(what string, d time.Duration) *schemas.Outcome {
	return schemas.Failure(schemas.ErrCodeTimeout, fmt.Sprintf("timed out after %s waiting for %s", d, what))
}

func (e *Executor) wait(ctx context.Context, req Request) (*schemas.Outcome, error) {
	d := time.Duration(req.Command.Amount) * time.Millisecond
	if d <= 0 {
		d = time.Second
	}
	if err := e.sleep(ctx, d); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Waited %s", d)}, nil
}

// waitForElement polls until the selector matches a visible element. A
// description that is a structural path is probed directly; anything else is
// a CSS selector.
func (e *Executor) waitForElement(ctx context.Context, req Request) (*schemas.Outcome, error) {
	selector := strings.TrimSpace(req.Command.Target)
	p := schemas.Primitive{Op: schemas.OpQuery, Selector: selector}
	switch {
	case req.Target != nil:
		p = schemas.Primitive{Op: schemas.OpProbe, Path: req.Target.Path}
		selector = req.Target.Path
	case strings.HasPrefix(selector, "/"):
		p = schemas.Primitive{Op: schemas.OpProbe, Path: selector}
	case selector == "":
		return schemas.Failure(schemas.ErrCodeInvalidArgument, "waitForElement needs a selector"), nil
	}
	if req.Target == nil {
		if err := compileSelector(p); err != nil {
			out := schemas.Failure(schemas.ErrCodeInvalidArgument, err.Error())
			out.AttemptedSelectors = []string{selector}
			return out, nil
		}
	}

	d := e.timeout(req.Command)
	ok, err := e.poll(ctx, d, func(ctx context.Context) (bool, error) {
		res, err := e.perform(ctx, req.Page, p)
		if err != nil {
			return false, err
		}
		return res.Found && res.Visible, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Debug("Element wait expired.", zap.String("selector", selector), zap.Duration("timeout", d))
		out := timedOut(selector, d)
		out.AttemptedSelectors = []string{selector}
		return out, nil
	}
	return &schemas.Outcome{Success: true, Message: "Element appeared: " + selector}, nil
}

// compileSelector rejects a path or CSS selector the page could never match.
func compileSelector(p schemas.Primitive) error {
	if p.Op == schemas.OpProbe {
		if _, err := xpath.Compile(p.Path); err != nil {
			return fmt.Errorf("invalid path %q: %v", p.Path, err)
		}
		return nil
	}
	if _, err := cascadia.ParseGroup(p.Selector); err != nil {
		return fmt.Errorf("invalid CSS selector %q: %v", p.Selector, err)
	}
	return nil
}

func (e *Executor) waitForText(ctx context.Context, req Request) (*schemas.Outcome, error) {
	text := req.Command.Text
	if text == "" {
		text = req.Command.Target
	}
	if strings.TrimSpace(text) == "" {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, "waitForText needs text"), nil
	}
	d := e.timeout(req.Command)
	ok, err := e.poll(ctx, d, func(ctx context.Context) (bool, error) {
		res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpFindText, Value: text})
		if err != nil {
			return false, err
		}
		return res.Found, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return timedOut(fmt.Sprintf("text %q", text), d), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Text appeared: %q", text)}, nil
}

// waitForNavigation waits for the URL to change and the new document to be
// ready. With a URL in the command it instead waits for a ready document
// whose URL contains it.
func (e *Executor) waitForNavigation(ctx context.Context, req Request) (*schemas.Outcome, error) {
	start, err := req.Page.State(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(req.Command.URL)
	var final schemas.PageState
	d := e.timeout(req.Command)
	ok, err := e.poll(ctx, d, func(ctx context.Context) (bool, error) {
		st, err := req.Page.State(ctx)
		if err != nil {
			return false, err
		}
		final = st
		if !st.Ready() {
			return false, nil
		}
		if want != "" {
			return strings.Contains(st.URL, want), nil
		}
		return st.URL != start.URL, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return timedOut("navigation", d), nil
	}
	return &schemas.Outcome{Success: true, Message: "Navigated to " + final.URL, Value: final.URL}, nil
}
