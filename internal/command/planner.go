package command

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// Plan bounds.
const (
	MinSteps = 2
	MaxSteps = 5
)

// Estimated step durations in milliseconds.
const (
	locateMs    = 500
	verifyMs    = 200
	actMs       = 300
	validateMs  = 500
	prepareMs   = 100
	navigateMs  = 3000
	readyWaitMs = 2000
	waitMs      = 5000
)

// template is a step before ids are assigned.
type template struct {
	action   schemas.StepAction
	target   string
	desc     string
	estimate int
}

// Planner builds bounded step plans for structured commands.
type Planner struct {
	logger *zap.Logger
	newID  func() string
}

// NewPlanner creates a Planner.
func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger.Named("planner"), newID: uuid.NewString}
}

// CreateActionPlan returns the plan for cmd. It never fails: when the
// template cannot be built, the two step prepare-and-execute plan is
// returned instead.
func (p *Planner) CreateActionPlan(cmd schemas.StructuredCommand) *schemas.ActionPlan {
	steps, err := p.templateFor(cmd)
	if err == nil {
		err = checkBounds(cmd.Action, steps)
	}
	fallback := false
	if err != nil {
		p.logger.Warn("Plan construction failed, using minimal plan.",
			zap.String("action", string(cmd.Action)), zap.Error(err))
		steps = minimalTemplate(cmd)
		fallback = true
	}

	plan := &schemas.ActionPlan{
		ID:         p.newID(),
		Command:    cmd,
		ActionType: cmd.Action,
		Target:     cmd.Target,
		Status:     schemas.PlanPending,
		Fallback:   fallback,
	}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, schemas.Step{
			ID:              p.newID(),
			Description:     s.desc,
			Action:          s.action,
			Target:          s.target,
			EstimatedTimeMs: s.estimate,
		})
		plan.EstimatedDurationMs += s.estimate
	}
	plan.TotalSteps = len(plan.Steps)
	return plan
}

// templateFor is exhaustive over ActionKind.
func (p *Planner) templateFor(cmd schemas.StructuredCommand) ([]template, error) {
	main := schemas.StepAction(cmd.Action)
	target := cmd.Target
	locate := template{schemas.StepLocate, target, fmt.Sprintf("Locate %q", target), locateMs}
	verify := template{schemas.StepVerify, target, fmt.Sprintf("Verify %q is visible and enabled", target), verifyMs}

	switch cmd.Action {
	case schemas.ActionClick, schemas.ActionDoubleClick, schemas.ActionRightClick, schemas.ActionTouchTap:
		return []template{
			locate,
			verify,
			{main, target, fmt.Sprintf("%s %q", verb(cmd.Action), target), actMs},
			{schemas.StepValidate, target, "Check the page reacted", validateMs},
		}, nil

	case schemas.ActionType:
		steps := []template{
			locate,
			verify,
			{main, target, fmt.Sprintf("Type %q into %q", cmd.Text, target), actMs + 20*len([]rune(cmd.Text))},
			{schemas.StepValidate, target, "Check the field holds the text", validateMs},
		}
		if cmd.Submit {
			steps = append(steps, template{schemas.StepValidate, "", "Wait for the submission to settle", readyWaitMs})
		}
		return steps, nil

	case schemas.ActionClear, schemas.ActionSelect, schemas.ActionSetText:
		return []template{
			locate,
			verify,
			{main, target, fmt.Sprintf("%s %q", verb(cmd.Action), target), actMs},
			{schemas.StepValidate, target, "Check the new value", validateMs},
		}, nil

	case schemas.ActionHover, schemas.ActionFocus, schemas.ActionScrollTo,
		schemas.ActionGetText, schemas.ActionGetAttribute, schemas.ActionSetAttribute:
		return []template{
			locate,
			{main, target, fmt.Sprintf("%s %q", verb(cmd.Action), target), actMs},
		}, nil

	case schemas.ActionDrag:
		return []template{
			locate,
			{schemas.StepLocate, cmd.Destination, fmt.Sprintf("Locate drop target %q", cmd.Destination), locateMs},
			verify,
			{main, target, fmt.Sprintf("Drag %q onto %q", target, cmd.Destination), actMs * 2},
		}, nil

	case schemas.ActionPressKey:
		if target != "" {
			return []template{locate, {main, target, fmt.Sprintf("Press %s on %q", cmd.Key, target), actMs}}, nil
		}
		return []template{
			{schemas.StepPrepare, "", "Check the page is ready", prepareMs},
			{main, "", "Press " + cmd.Key, actMs},
		}, nil

	case schemas.ActionScroll, schemas.ActionTouchSwipe:
		return []template{
			{schemas.StepPrepare, "", "Check the page is ready", prepareMs},
			{main, target, fmt.Sprintf("%s %s", verb(cmd.Action), orDefault(cmd.Direction, "down")), actMs},
		}, nil

	case schemas.ActionNavigate, schemas.ActionNewTab:
		return []template{
			{schemas.StepPrepare, "", "Normalise the destination URL", prepareMs},
			{main, cmd.URL, fmt.Sprintf("%s %s", verb(cmd.Action), orDefault(cmd.URL, "about:blank")), navigateMs},
			{schemas.StepValidate, "", "Wait for the page to be ready", readyWaitMs},
		}, nil

	case schemas.ActionGoBack, schemas.ActionGoForward, schemas.ActionRefresh:
		return []template{
			{main, "", verb(cmd.Action), navigateMs},
			{schemas.StepValidate, "", "Wait for the page to be ready", readyWaitMs},
		}, nil

	case schemas.ActionWait, schemas.ActionWaitForElement, schemas.ActionWaitForText, schemas.ActionWaitForNavigation:
		estimate := waitMs
		if cmd.Amount > 0 {
			estimate = cmd.Amount
		}
		return []template{
			{schemas.StepPrepare, "", "Check the page is ready", prepareMs},
			{main, target, verb(cmd.Action), estimate},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", schemas.ErrUnsupportedAction, cmd.Action)
}

// minimalTemplate is the plan of last resort.
func minimalTemplate(cmd schemas.StructuredCommand) []template {
	return []template{
		{schemas.StepPrepare, "", "Check the page is ready", prepareMs},
		{schemas.StepAction(cmd.Action), cmd.Target, fmt.Sprintf("Execute %s", cmd.Action), actMs},
	}
}

func checkBounds(action schemas.ActionKind, steps []template) error {
	if len(steps) < MinSteps || len(steps) > MaxSteps {
		return fmt.Errorf("plan has %d steps, want %d to %d", len(steps), MinSteps, MaxSteps)
	}
	mains := 0
	for _, s := range steps {
		if s.action == schemas.StepAction(action) {
			mains++
		}
	}
	if mains != 1 {
		return fmt.Errorf("plan has %d main steps", mains)
	}
	return nil
}

func verb(k schemas.ActionKind) string {
	switch k {
	case schemas.ActionClick:
		return "Click"
	case schemas.ActionDoubleClick:
		return "Double-click"
	case schemas.ActionRightClick:
		return "Right-click"
	case schemas.ActionTouchTap:
		return "Tap"
	case schemas.ActionTouchSwipe:
		return "Swipe"
	case schemas.ActionClear:
		return "Clear"
	case schemas.ActionSelect:
		return "Select an option in"
	case schemas.ActionSetText:
		return "Set the text of"
	case schemas.ActionHover:
		return "Hover over"
	case schemas.ActionFocus:
		return "Focus"
	case schemas.ActionScrollTo:
		return "Scroll to"
	case schemas.ActionScroll:
		return "Scroll"
	case schemas.ActionGetText:
		return "Read the text of"
	case schemas.ActionGetAttribute:
		return "Read an attribute of"
	case schemas.ActionSetAttribute:
		return "Set an attribute of"
	case schemas.ActionNavigate:
		return "Navigate to"
	case schemas.ActionNewTab:
		return "Open a new tab at"
	case schemas.ActionGoBack:
		return "Go back"
	case schemas.ActionGoForward:
		return "Go forward"
	case schemas.ActionRefresh:
		return "Reload the page"
	case schemas.ActionWait:
		return "Wait"
	case schemas.ActionWaitForElement:
		return "Wait for the element"
	case schemas.ActionWaitForText:
		return "Wait for the text"
	case schemas.ActionWaitForNavigation:
		return "Wait for navigation"
	}
	return string(k)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
