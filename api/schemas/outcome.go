package schemas

import (
	"errors"
	"time"
)

// ErrUnsupportedAction is returned when a verb is outside the ActionKind set.
var ErrUnsupportedAction = errors.New("unsupported action")

// ErrorCode classifies a failed outcome.
type ErrorCode string

const (
	ErrCodeElementNotFound        ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeActionUnsupported      ErrorCode = "ACTION_UNSUPPORTED"
	ErrCodeTimeout                ErrorCode = "TIMEOUT"
	ErrCodeScriptInjectionFailed  ErrorCode = "SCRIPT_INJECTION_FAILED"
	ErrCodePlanConstructionFailed ErrorCode = "PLAN_CONSTRUCTION_FAILED"
	ErrCodeCommandNotUnderstood   ErrorCode = "COMMAND_NOT_UNDERSTOOD"
	ErrCodeInvalidArgument        ErrorCode = "INVALID_ARGUMENT"
	ErrCodeExecutionFailed        ErrorCode = "EXECUTION_FAILED"
)

// StepRecord is the history entry for one executed plan step.
type StepRecord struct {
	StepID     string        `json:"stepId" yaml:"stepId"`
	Action     StepAction    `json:"action" yaml:"action"`
	Main       bool          `json:"main" yaml:"main"`
	Success    bool          `json:"success" yaml:"success"`
	Message    string        `json:"message,omitempty" yaml:"message,omitempty"`
	Error      ErrorCode     `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	PageID     string        `json:"pageId,omitempty" yaml:"pageId,omitempty"`
	Selectors  []string      `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	ResolvedBy string        `json:"resolvedBy,omitempty" yaml:"resolvedBy,omitempty"`
}

// Outcome is the structured result of an executed action or command. Expected
// failures such as a missing element are reported here, never as Go errors.
type Outcome struct {
	Success            bool         `json:"success" yaml:"success"`
	Message            string       `json:"message,omitempty" yaml:"message,omitempty"`
	Warning            string       `json:"warning,omitempty" yaml:"warning,omitempty"`
	ElementInfo        *ElementInfo `json:"elementInfo,omitempty" yaml:"elementInfo,omitempty"`
	Error              ErrorCode    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorDetail        string       `json:"errorDetail,omitempty" yaml:"errorDetail,omitempty"`
	AttemptedSelectors []string     `json:"attemptedSelectors,omitempty" yaml:"attemptedSelectors,omitempty"`
	Value              string       `json:"value,omitempty" yaml:"value,omitempty"`
	PageID             string       `json:"pageId,omitempty" yaml:"pageId,omitempty"`
	PlanID             string       `json:"planId,omitempty" yaml:"planId,omitempty"`
	Status             PlanStatus   `json:"status,omitempty" yaml:"status,omitempty"`
	Steps              []StepRecord `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Failure builds an unsuccessful outcome.
func Failure(code ErrorCode, detail string, selectors ...string) *Outcome {
	return &Outcome{
		Success:            false,
		Error:              code,
		ErrorDetail:        detail,
		Message:            detail,
		AttemptedSelectors: selectors,
	}
}
