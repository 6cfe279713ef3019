package schemas

import (
	"fmt"
	"strings"
)

// -- Action Kinds --

// ActionKind is the closed set of verbs the automation core understands.
type ActionKind string

const (
	ActionClick             ActionKind = "click"
	ActionDoubleClick       ActionKind = "doubleClick"
	ActionRightClick        ActionKind = "rightClick"
	ActionType              ActionKind = "type"
	ActionClear             ActionKind = "clear"
	ActionSelect            ActionKind = "select"
	ActionPressKey          ActionKind = "pressKey"
	ActionHover             ActionKind = "hover"
	ActionFocus             ActionKind = "focus"
	ActionScroll            ActionKind = "scroll"
	ActionScrollTo          ActionKind = "scrollTo"
	ActionDrag              ActionKind = "drag"
	ActionTouchTap          ActionKind = "touchTap"
	ActionTouchSwipe        ActionKind = "touchSwipe"
	ActionGetText           ActionKind = "getText"
	ActionSetText           ActionKind = "setText"
	ActionGetAttribute      ActionKind = "getAttribute"
	ActionSetAttribute      ActionKind = "setAttribute"
	ActionNavigate          ActionKind = "navigate"
	ActionNewTab            ActionKind = "newTab"
	ActionGoBack            ActionKind = "goBack"
	ActionGoForward         ActionKind = "goForward"
	ActionRefresh           ActionKind = "refresh"
	ActionWait              ActionKind = "wait"
	ActionWaitForElement    ActionKind = "waitForElement"
	ActionWaitForText       ActionKind = "waitForText"
	ActionWaitForNavigation ActionKind = "waitForNavigation"
)

// AllActionKinds lists every verb. Tests iterate it to check exhaustive handling.
var AllActionKinds = []ActionKind{
	ActionClick, ActionDoubleClick, ActionRightClick, ActionType, ActionClear,
	ActionSelect, ActionPressKey, ActionHover, ActionFocus, ActionScroll,
	ActionScrollTo, ActionDrag, ActionTouchTap, ActionTouchSwipe, ActionGetText,
	ActionSetText, ActionGetAttribute, ActionSetAttribute, ActionNavigate,
	ActionNewTab, ActionGoBack, ActionGoForward, ActionRefresh, ActionWait,
	ActionWaitForElement, ActionWaitForText, ActionWaitForNavigation,
}

// ParseActionKind maps a name onto the enum, case-insensitively.
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range AllActionKinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, s)
}

// NeedsElement reports whether the verb operates on a resolved element.
func (k ActionKind) NeedsElement() bool {
	switch k {
	case ActionClick, ActionDoubleClick, ActionRightClick, ActionType, ActionClear,
		ActionSelect, ActionHover, ActionFocus, ActionScrollTo, ActionDrag,
		ActionTouchTap, ActionGetText, ActionSetText, ActionGetAttribute, ActionSetAttribute:
		return true
	}
	return false
}

// Navigates reports whether the verb replaces the current document.
func (k ActionKind) Navigates() bool {
	switch k {
	case ActionNavigate, ActionNewTab, ActionGoBack, ActionGoForward, ActionRefresh:
		return true
	}
	return false
}

// Fills reports whether the verb writes text into its target, which restricts
// resolution to fillable elements.
func (k ActionKind) Fills() bool {
	switch k {
	case ActionType, ActionClear, ActionSelect:
		return true
	}
	return false
}

// Presses reports whether the verb is a pointer activation.
func (k ActionKind) Presses() bool {
	switch k {
	case ActionClick, ActionDoubleClick, ActionRightClick, ActionTouchTap:
		return true
	}
	return false
}

// StructuredCommand is the parsed form of one instruction. Treat as immutable.
type StructuredCommand struct {
	Action      ActionKind `json:"action" yaml:"action"`
	Target      string     `json:"target,omitempty" yaml:"target,omitempty"`
	Text        string     `json:"text,omitempty" yaml:"text,omitempty"`
	Direction   string     `json:"direction,omitempty" yaml:"direction,omitempty"`
	Amount      int        `json:"amount,omitempty" yaml:"amount,omitempty"`
	URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
	Key         string     `json:"key,omitempty" yaml:"key,omitempty"`
	Attribute   string     `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Destination string     `json:"destination,omitempty" yaml:"destination,omitempty"`
	Submit      bool       `json:"submit,omitempty" yaml:"submit,omitempty"`
	Raw         string     `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// -- Action Plans --

// StepAction names what a plan step does. The main step uses the command's
// ActionKind; supporting steps use one of the constants below.
type StepAction string

const (
	StepPrepare  StepAction = "prepare"
	StepLocate   StepAction = "locate"
	StepVerify   StepAction = "verify"
	StepValidate StepAction = "validate"
)

// PlanStatus tracks an ActionPlan through execution.
type PlanStatus string

const (
	PlanPending         PlanStatus = "pending"
	PlanRunning         PlanStatus = "running"
	PlanSucceeded       PlanStatus = "succeeded"
	PlanPartiallyFailed PlanStatus = "partially_failed"
	PlanFailed          PlanStatus = "failed"
)

// Step is one unit of an ActionPlan.
type Step struct {
	ID              string     `json:"id" yaml:"id"`
	Description     string     `json:"description" yaml:"description"`
	Action          StepAction `json:"action" yaml:"action"`
	Target          string     `json:"target,omitempty" yaml:"target,omitempty"`
	EstimatedTimeMs int        `json:"estimatedTimeMs" yaml:"estimatedTimeMs"`
}

// ActionPlan is the bounded step sequence for one command. It holds the
// command by value.
type ActionPlan struct {
	ID                  string            `json:"id" yaml:"id"`
	Command             StructuredCommand `json:"command" yaml:"command"`
	ActionType          ActionKind        `json:"actionType" yaml:"actionType"`
	Target              string            `json:"target,omitempty" yaml:"target,omitempty"`
	Steps               []Step            `json:"steps" yaml:"steps"`
	TotalSteps          int               `json:"totalSteps" yaml:"totalSteps"`
	EstimatedDurationMs int               `json:"estimatedDurationMs" yaml:"estimatedDurationMs"`
	Status              PlanStatus        `json:"status" yaml:"status"`
	Fallback            bool              `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// IsMain reports whether the step is the plan's main step.
func (p *ActionPlan) IsMain(s Step) bool {
	return s.Action == StepAction(p.ActionType)
}
