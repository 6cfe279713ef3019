// File: internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/config"
)

// bodyPath addresses the document body for page-wide gestures.
const bodyPath = "/html/body"

// Request is everything one action needs.
type Request struct {
	Page browser.Page
	// Tabs is required only for newTab.
	Tabs browser.Tabs
	// Target is the resolved element; nil for page-level actions.
	Target *schemas.ElementAnalysis
	// Destination is the resolved drop target of a drag.
	Destination *schemas.ElementAnalysis
	Command     schemas.StructuredCommand
	// Selectors are what the resolver tried, carried into the outcome.
	Selectors []string
}

// Executor turns an action verb into the primitive sequence page frameworks
// expect and reports a structured outcome.
type Executor struct {
	cfg    config.ExecutorConfig
	clock  clockwork.Clock
	logger *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock that drives waits and polling.
func WithClock(c clockwork.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// New creates an Executor.
func New(cfg config.ExecutorConfig, logger *zap.Logger, opts ...Option) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.ScrollAmount <= 0 {
		cfg.ScrollAmount = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: logger.Named("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs the command's action. Expected failures, including a
// missing element and an expired wait, come back as an unsuccessful Outcome.
// The returned error is reserved for a broken execution surface
// (browser.ErrScriptInjection) and context cancellation.
func (e *Executor) Execute(ctx context.Context, req Request) (*schemas.Outcome, error) {
	action := req.Command.Action
	if action.NeedsElement() && req.Target == nil {
		return e.finish(req, schemas.Failure(schemas.ErrCodeElementNotFound,
			fmt.Sprintf("no element matches %q", req.Command.Target))), nil
	}

	out, err := e.dispatch(ctx, req)
	if err != nil {
		if errors.Is(err, browser.ErrScriptInjection) || ctx.Err() != nil {
			return nil, fmt.Errorf("%s failed: %w", action, err)
		}
		if errors.Is(err, browser.ErrInvalidSelector) {
			return e.finish(req, schemas.Failure(schemas.ErrCodeInvalidArgument, err.Error(), req.Command.Target)), nil
		}
		e.logger.Warn("Action failed.", zap.String("action", string(action)), zap.Error(err))
		out = schemas.Failure(schemas.ErrCodeExecutionFailed, err.Error())
	}
	return e.finish(req, out), nil
}

// dispatch is exhaustive over ActionKind.
func (e *Executor) dispatch(ctx context.Context, req Request) (*schemas.Outcome, error) {
	cmd := req.Command
	switch cmd.Action {
	case schemas.ActionClick:
		return e.click(ctx, req, []string{"mousedown", "mouseup", "click"}, 0)
	case schemas.ActionDoubleClick:
		return e.click(ctx, req, []string{"mousedown", "mouseup", "click", "mousedown", "mouseup", "click", "dblclick"}, 0)
	case schemas.ActionRightClick:
		return e.click(ctx, req, []string{"mousedown", "mouseup", "contextmenu"}, 2)
	case schemas.ActionType:
		return e.typeText(ctx, req)
	case schemas.ActionClear:
		return e.clear(ctx, req)
	case schemas.ActionSelect:
		return e.selectOption(ctx, req)
	case schemas.ActionPressKey:
		return e.pressKey(ctx, req)
	case schemas.ActionHover:
		return e.pointer(ctx, req, schemas.OpMouseEvents, []string{"mouseover", "mouseenter", "mousemove"}, "Hovered")
	case schemas.ActionFocus:
		return e.focus(ctx, req)
	case schemas.ActionScroll:
		return e.scroll(ctx, req)
	case schemas.ActionScrollTo:
		return e.scrollTo(ctx, req)
	case schemas.ActionDrag:
		return e.drag(ctx, req)
	case schemas.ActionTouchTap:
		return e.pointer(ctx, req, schemas.OpTouchEvents, []string{"touchstart", "touchend"}, "Tapped")
	case schemas.ActionTouchSwipe:
		return e.swipe(ctx, req)
	case schemas.ActionGetText:
		return e.getText(ctx, req)
	case schemas.ActionSetText:
		return e.setText(ctx, req)
	case schemas.ActionGetAttribute:
		return e.getAttribute(ctx, req)
	case schemas.ActionSetAttribute:
		return e.setAttribute(ctx, req)
	case schemas.ActionNavigate:
		return e.navigate(ctx, req)
	case schemas.ActionNewTab:
		return e.newTab(ctx, req)
	case schemas.ActionGoBack:
		return e.history(ctx, req, -1)
	case schemas.ActionGoForward:
		return e.history(ctx, req, 1)
	case schemas.ActionRefresh:
		if err := req.Page.Reload(ctx); err != nil {
			return nil, err
		}
		return &schemas.Outcome{Success: true, Message: "Page reloaded"}, nil
	case schemas.ActionWait:
		return e.wait(ctx, req)
	case schemas.ActionWaitForElement:
		return e.waitForElement(ctx, req)
	case schemas.ActionWaitForText:
		return e.waitForText(ctx, req)
	case schemas.ActionWaitForNavigation:
		return e.waitForNavigation(ctx, req)
	}
	return schemas.Failure(schemas.ErrCodeActionUnsupported, fmt.Sprintf("unsupported action %q", cmd.Action)), nil
}

// finish stamps the common outcome fields.
func (e *Executor) finish(req Request, out *schemas.Outcome) *schemas.Outcome {
	if out.PageID == "" && req.Page != nil {
		out.PageID = req.Page.ID()
	}
	if out.ElementInfo == nil && req.Target != nil {
		out.ElementInfo = req.Target.Info()
	}
	selectors := append([]string(nil), req.Selectors...)
	if req.Target != nil && !contains(selectors, req.Target.Path) {
		selectors = append(selectors, req.Target.Path)
	}
	out.AttemptedSelectors = append(selectors, out.AttemptedSelectors...)
	return out
}

func (e *Executor) perform(ctx context.Context, page browser.Page, p schemas.Primitive) (schemas.PrimitiveResult, error) {
	res, err := page.Perform(ctx, p)
	if err != nil {
		return res, fmt.Errorf("primitive %s on %q: %w", p.Op, p.Path, err)
	}
	return res, nil
}

// scrollIntoView centres the target and returns its fresh geometry.
func (e *Executor) scrollIntoView(ctx context.Context, req Request) (schemas.PrimitiveResult, *schemas.Outcome, error) {
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpScrollIntoView, Path: req.Target.Path})
	if err != nil {
		return res, nil, err
	}
	if !res.Found {
		return res, schemas.Failure(schemas.ErrCodeElementNotFound,
			fmt.Sprintf("element %s is no longer in the document", req.Target.Path)), nil
	}
	return res, nil, nil
}

func center(r schemas.Rect) *schemas.Point {
	x, y := r.Center()
	return &schemas.Point{X: x, Y: y}
}

// click dispatches the pointer sequence at the element centre, then an Enter
// press for scripted buttons the pointer left unmoved, then a direct
// invocation when pointer events were not delivered. A click with no
// observable effect is a warning only.
func (e *Executor) click(ctx context.Context, req Request, events []string, button int) (*schemas.Outcome, error) {
	el := req.Target
	before, err := req.Page.State(ctx)
	if err != nil {
		return nil, err
	}
	geom, missing, err := e.scrollIntoView(ctx, req)
	if err != nil || missing != nil {
		return missing, err
	}

	res, err := e.perform(ctx, req.Page, schemas.Primitive{
		Op: schemas.OpMouseEvents, Path: el.Path, Events: events, Button: button, At: center(geom.Rect),
	})
	if err != nil {
		return nil, err
	}
	method := "pointer events"

	if req.Command.Action == schemas.ActionClick {
		if res.Delivered && e.cfg.EnterOnButtonClick && scriptedButton(el) {
			changed, err := e.observeChange(ctx, req, before, geom.Visible)
			if err != nil {
				return nil, err
			}
			if !changed {
				if _, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpFocus, Path: el.Path}); err != nil {
					return nil, err
				}
				if _, err := e.perform(ctx, req.Page, schemas.Primitive{
					Op: schemas.OpKeySequence, Path: el.Path, Keys: []schemas.KeyEventData{{Key: "Enter"}},
				}); err != nil {
					return nil, err
				}
				method = "pointer events and Enter"
			}
		}
		if !res.Delivered {
			if _, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpInvokeClick, Path: el.Path}); err != nil {
				return nil, err
			}
			method = "direct invocation"
		}
	}

	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}
	out := &schemas.Outcome{Success: true, Message: fmt.Sprintf("Clicked <%s> via %s", el.Tag, method)}
	changed, err := e.observeChange(ctx, req, before, geom.Visible)
	if err != nil {
		return nil, err
	}
	if !changed {
		out.Warning = "click produced no observable change"
	}
	return out, nil
}

// scriptedButton is an element acting as a button without being a native
// control, the case where keyboard activation is the reliable path.
func scriptedButton(el *schemas.ElementAnalysis) bool {
	if !strings.EqualFold(el.Attr("role"), "button") {
		return false
	}
	switch el.Tag {
	case "button", "input", "a", "select", "textarea":
		return false
	}
	return true
}

// observeChange checks whether the URL, the focused element or the target's
// visibility moved since before.
func (e *Executor) observeChange(ctx context.Context, req Request, before schemas.PageState, wasVisible bool) (bool, error) {
	after, err := req.Page.State(ctx)
	if err != nil {
		return false, err
	}
	if after.URL != before.URL || after.FocusedPath != before.FocusedPath {
		return true, nil
	}
	probe, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpProbe, Path: req.Target.Path})
	if err != nil {
		return false, err
	}
	return !probe.Found || probe.Visible != wasVisible, nil
}

func (e *Executor) pointer(ctx context.Context, req Request, op schemas.PrimitiveOp, events []string, verb string) (*schemas.Outcome, error) {
	geom, missing, err := e.scrollIntoView(ctx, req)
	if err != nil || missing != nil {
		return missing, err
	}
	if _, err := e.perform(ctx, req.Page, schemas.Primitive{Op: op, Path: req.Target.Path, Events: events, At: center(geom.Rect)}); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("%s <%s>", verb, req.Target.Tag)}, nil
}

func (e *Executor) focus(ctx context.Context, req Request) (*schemas.Outcome, error) {
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpFocus, Path: req.Target.Path})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	out := &schemas.Outcome{Success: true, Message: fmt.Sprintf("Focused <%s>", req.Target.Tag)}
	if !res.Delivered {
		out.Warning = "element is not focusable"
	}
	return out, nil
}

// typeText focuses the target and writes the text the way its kind expects.
func (e *Executor) typeText(ctx context.Context, req Request) (*schemas.Outcome, error) {
	el := req.Target
	text := req.Command.Text
	if _, missing, err := e.scrollIntoView(ctx, req); err != nil || missing != nil {
		return missing, err
	}
	if _, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpFocus, Path: el.Path}); err != nil {
		return nil, err
	}

	var res schemas.PrimitiveResult
	var err error
	switch {
	case el.IsEditable:
		res, err = e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpSetTextContent, Path: el.Path, Value: text})
	case el.Tag == "input" || el.Tag == "textarea":
		res, err = e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpSetValue, Path: el.Path, Value: text})
	case el.Tag == "select":
		res, err = e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpSelectOption, Path: el.Path, Value: text})
	default:
		res, err = e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpSetTextContent, Path: el.Path, Value: text})
	}
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	if el.Tag == "select" && !res.Delivered {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, fmt.Sprintf("no option %q", text)), nil
	}

	out := &schemas.Outcome{Success: true, Message: fmt.Sprintf("Typed %d characters into <%s>", len([]rune(text)), el.Tag), Value: res.Value}
	if (el.Tag == "input" || el.Tag == "textarea") && !el.IsEditable && res.Value != text {
		out.Warning = "field value differs from the typed text"
	}
	if req.Command.Submit {
		if _, err := e.perform(ctx, req.Page, schemas.Primitive{
			Op: schemas.OpKeySequence, Path: el.Path, Keys: []schemas.KeyEventData{{Key: "Enter"}},
		}); err != nil {
			return nil, err
		}
		out.Message += " and pressed Enter"
	}
	return out, nil
}

func (e *Executor) clear(ctx context.Context, req Request) (*schemas.Outcome, error) {
	op := schemas.OpSetValue
	if req.Target.IsEditable {
		op = schemas.OpSetTextContent
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: op, Path: req.Target.Path, Value: ""})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Cleared <%s>", req.Target.Tag)}, nil
}

func (e *Executor) selectOption(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if req.Target.Tag != "select" {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, fmt.Sprintf("<%s> is not a select", req.Target.Tag)), nil
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpSelectOption, Path: req.Target.Path, Value: req.Command.Text})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	if !res.Delivered {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, fmt.Sprintf("no option %q", req.Command.Text)), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Selected %q", req.Command.Text), Value: res.Value}, nil
}

// pressKey sends the key to the target, or to whatever has focus.
func (e *Executor) pressKey(ctx context.Context, req Request) (*schemas.Outcome, error) {
	key, err := ParseKey(req.Command.Key)
	if err != nil {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, err.Error()), nil
	}
	p := schemas.Primitive{Op: schemas.OpKeySequence, Keys: []schemas.KeyEventData{key}}
	if req.Target != nil {
		p.Path = req.Target.Path
	}
	if _, err := e.perform(ctx, req.Page, p); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Pressed %s", req.Command.Key)}, nil
}

func (e *Executor) scroll(ctx context.Context, req Request) (*schemas.Outcome, error) {
	amount := float64(req.Command.Amount)
	if amount <= 0 {
		amount = float64(e.cfg.ScrollAmount)
	}
	p := schemas.Primitive{Op: schemas.OpScrollBy}
	switch strings.ToLower(req.Command.Direction) {
	case "", "down":
		p.DY = amount
	case "up":
		p.DY = -amount
	case "right":
		p.DX = amount
	case "left":
		p.DX = -amount
	case "top":
		p = schemas.Primitive{Op: schemas.OpScrollToEdge, Edge: "top"}
	case "bottom":
		p = schemas.Primitive{Op: schemas.OpScrollToEdge, Edge: "bottom"}
	default:
		return schemas.Failure(schemas.ErrCodeInvalidArgument, fmt.Sprintf("unknown scroll direction %q", req.Command.Direction)), nil
	}
	if _, err := e.perform(ctx, req.Page, p); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: "Scrolled " + describeScroll(p)}, nil
}

func describeScroll(p schemas.Primitive) string {
	if p.Op == schemas.OpScrollToEdge {
		return "to " + p.Edge
	}
	return fmt.Sprintf("by (%g, %g)", p.DX, p.DY)
}

func (e *Executor) scrollTo(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if _, missing, err := e.scrollIntoView(ctx, req); err != nil || missing != nil {
		return missing, err
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Scrolled <%s> into view", req.Target.Tag)}, nil
}

func (e *Executor) drag(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if req.Destination == nil {
		return schemas.Failure(schemas.ErrCodeElementNotFound,
			fmt.Sprintf("no drop target matches %q", req.Command.Destination)), nil
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpDragTo, Path: req.Target.Path, Destination: req.Destination.Path})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "drag source or target is no longer in the document",
			req.Destination.Path), nil
	}
	return &schemas.Outcome{
		Success:            true,
		Message:            fmt.Sprintf("Dragged <%s> onto <%s>", req.Target.Tag, req.Destination.Tag),
		AttemptedSelectors: []string{req.Destination.Path},
	}, nil
}

// swipe drags a touch point across the target, or the whole page.
func (e *Executor) swipe(ctx context.Context, req Request) (*schemas.Outcome, error) {
	path := bodyPath
	if req.Target != nil {
		path = req.Target.Path
	}
	probe, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpProbe, Path: path})
	if err != nil {
		return nil, err
	}
	if !probe.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "swipe surface is not in the document"), nil
	}
	amount := float64(req.Command.Amount)
	if amount <= 0 {
		amount = float64(e.cfg.ScrollAmount) / 2
	}
	from := center(probe.Rect)
	to := *from
	switch strings.ToLower(req.Command.Direction) {
	case "", "up":
		to.Y -= amount
	case "down":
		to.Y += amount
	case "left":
		to.X -= amount
	case "right":
		to.X += amount
	default:
		return schemas.Failure(schemas.ErrCodeInvalidArgument, fmt.Sprintf("unknown swipe direction %q", req.Command.Direction)), nil
	}
	if _, err := e.perform(ctx, req.Page, schemas.Primitive{
		Op: schemas.OpTouchEvents, Path: path, Events: []string{"touchstart", "touchmove", "touchend"}, At: from, To: &to,
	}); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: "Swiped " + strings.ToLower(req.Command.Direction)}, nil
}

func (e *Executor) getText(ctx context.Context, req Request) (*schemas.Outcome, error) {
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpGetText, Path: req.Target.Path})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Read text of <%s>", req.Target.Tag), Value: res.Value}, nil
}

func (e *Executor) setText(ctx context.Context, req Request) (*schemas.Outcome, error) {
	op := schemas.OpSetTextContent
	if req.Target.Fillable() && !req.Target.IsEditable && req.Target.Tag != "select" {
		op = schemas.OpSetValue
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: op, Path: req.Target.Path, Value: req.Command.Text})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Set text of <%s>", req.Target.Tag)}, nil
}

func (e *Executor) getAttribute(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if req.Command.Attribute == "" {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, "attribute name is required"), nil
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpGetAttribute, Path: req.Target.Path, Name: req.Command.Attribute})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	out := &schemas.Outcome{Success: true, Message: fmt.Sprintf("Read %s", req.Command.Attribute), Value: res.Value}
	if !res.Delivered {
		out.Warning = fmt.Sprintf("attribute %q is not set", req.Command.Attribute)
	}
	return out, nil
}

func (e *Executor) setAttribute(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if req.Command.Attribute == "" {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, "attribute name is required"), nil
	}
	res, err := e.perform(ctx, req.Page, schemas.Primitive{
		Op: schemas.OpSetAttribute, Path: req.Target.Path, Name: req.Command.Attribute, Value: req.Command.Text,
	})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return schemas.Failure(schemas.ErrCodeElementNotFound, "element is no longer in the document"), nil
	}
	return &schemas.Outcome{Success: true, Message: fmt.Sprintf("Set %s", req.Command.Attribute)}, nil
}

func (e *Executor) navigate(ctx context.Context, req Request) (*schemas.Outcome, error) {
	target := NormalizeURL(req.Command.URL)
	if target == "" {
		return schemas.Failure(schemas.ErrCodeInvalidArgument, "navigation needs a URL"), nil
	}
	if err := req.Page.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: "Navigated to " + target, Value: target}, nil
}

// newTab opens the URL in a new page context; the outcome carries its id.
func (e *Executor) newTab(ctx context.Context, req Request) (*schemas.Outcome, error) {
	if req.Tabs == nil {
		return schemas.Failure(schemas.ErrCodeExecutionFailed, "no tab surface available"), nil
	}
	target := NormalizeURL(req.Command.URL)
	if target == "" {
		target = "about:blank"
	}
	page, err := req.Tabs.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	return &schemas.Outcome{Success: true, Message: "Opened " + target + " in a new tab", Value: target, PageID: page.ID()}, nil
}

func (e *Executor) history(ctx context.Context, req Request, delta int) (*schemas.Outcome, error) {
	res, err := e.perform(ctx, req.Page, schemas.Primitive{Op: schemas.OpHistory, Delta: delta})
	if err != nil {
		return nil, err
	}
	verb := "back"
	if delta > 0 {
		verb = "forward"
	}
	out := &schemas.Outcome{Success: true, Message: "Went " + verb, Value: res.URL}
	if !res.Delivered {
		out.Warning = "no history entry to go " + verb + " to"
	}
	return out, nil
}

// NormalizeURL adds a scheme to bare hosts.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" || u == "about:blank" {
		return u
	}
	if strings.Contains(u, "://") || strings.HasPrefix(u, "about:") || strings.HasPrefix(u, "data:") ||
		strings.HasPrefix(u, "/") || strings.HasPrefix(u, ".") {
		return u
	}
	return "https://" + u
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
