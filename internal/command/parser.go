// File: internal/command/parser.go
package command

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

// ErrNotUnderstood is the fallback planner's signal that it cannot turn the
// text into steps either.
var ErrNotUnderstood = errors.New("command not understood")

// PlannedStep is one step proposed by a fallback planner.
type PlannedStep struct {
	Action      schemas.ActionKind `json:"action"`
	Target      string             `json:"target,omitempty"`
	Text        string             `json:"text,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Fallback handles text the pattern table does not match.
type Fallback interface {
	PlanSteps(ctx context.Context, text string) ([]PlannedStep, error)
}

// quoted matches a quoted literal or, failing that, a lazy bare phrase.
const quoted = `(?:"(?P<qtext>[^"]*)"|'(?P<stext>[^']*)'|(?P<text>.+?))`

const keyName = `(?P<key>(?:(?:ctrl|control|alt|option|shift|meta|cmd|command)\s*\+\s*)*` +
	`(?:enter|return|tab|escape|esc|backspace|delete|del|space|spacebar|up|down|left|right|` +
	`arrowup|arrowdown|arrowleft|arrowright|home|end|pageup|pagedown|f\d{1,2}|[a-z0-9+]))`

// pattern is one row of the command table.
type pattern struct {
	action schemas.ActionKind
	re     *regexp.Regexp
}

func rule(action schemas.ActionKind, expr string) pattern {
	return pattern{action: action, re: regexp.MustCompile(`(?i)^` + expr + `$`)}
}

// patterns is tried in order and the first match wins. Rows that share a
// leading verb with a later row must come first: pressKey before touchTap
// and click, newTab before navigate, setText before setAttribute, the
// top/bottom scroll before scrollTo.
var patterns = []pattern{
	rule(schemas.ActionNewTab, `(?:open|launch|create)\s+(?:a\s+)?new\s+tab(?:\s+(?:to|at|with|for|on))?(?:\s+(?P<url>\S+))?`),
	rule(schemas.ActionNavigate, `(?:go\s+to|navigate\s+to|open|visit|load|browse\s+to)\s+(?P<url>(?:[a-z][a-z0-9+.-]*://|www\.)\S+|[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:[:/?#]\S*)?)`),
	rule(schemas.ActionGoBack, `(?:go\s+|navigate\s+)?back(?:\s+(?:a|one)\s+page)?`),
	rule(schemas.ActionGoForward, `(?:go\s+|navigate\s+)?forward(?:\s+(?:a|one)\s+page)?`),
	rule(schemas.ActionRefresh, `(?:refresh|reload)(?:\s+(?:the|this)\s+page|\s+page)?`),

	rule(schemas.ActionWaitForNavigation, `wait\s+for\s+(?:the\s+)?(?:navigation|page\s+(?:to\s+)?load|page\s+load|redirect)(?:\s+to\s+(?P<url>\S+))?`),
	rule(schemas.ActionWaitForText, `wait\s+(?:for|until)\s+(?:the\s+)?text\s+`+quoted+`(?:\s+(?:to\s+)?appears?)?`),
	rule(schemas.ActionWaitForElement, `wait\s+(?:for|until)\s+(?:the\s+)?(?:element|selector)\s+(?P<target>.+?)(?:\s+(?:to\s+)?(?:appears?|is\s+visible))?`),
	rule(schemas.ActionWait, `(?:wait|pause|sleep)(?:\s+for)?\s+(?P<amount>\d+(?:\.\d+)?)\s*(?P<unit>ms|milliseconds?|s|secs?|seconds?)?`),

	rule(schemas.ActionPressKey, `(?:press|hit|tap)\s+(?:the\s+)?`+keyName+`(?:\s+key)?(?:\s+(?:on|in)\s+(?P<target>.+))?`),
	rule(schemas.ActionTouchSwipe, `swipe\s+(?P<direction>up|down|left|right)(?:\s+(?:on|across)\s+(?P<target>.+))?`),
	rule(schemas.ActionTouchTap, `tap\s+(?:on\s+)?(?P<target>.+)`),
	rule(schemas.ActionDrag, `drag\s+(?P<target>.+?)\s+(?:to|onto|into|over)\s+(?P<destination>.+)`),
	rule(schemas.ActionDoubleClick, `(?:double[\s-]?click|dbl[\s-]?click)\s+(?:on\s+)?(?P<target>.+)`),
	rule(schemas.ActionRightClick, `(?:right[\s-]?click|context[\s-]?click)\s+(?:on\s+)?(?P<target>.+)`),

	rule(schemas.ActionSelect, `(?:select|choose|pick)\s+`+quoted+`\s+(?:from|in)\s+(?P<target>.+)`),
	rule(schemas.ActionType, `(?:type|enter|input|write)\s+`+quoted+`\s+(?:in|into|on|to)\s+(?P<target>.+?)(?P<submit>\s+and\s+(?:submit|press\s+enter|hit\s+enter))?`),
	rule(schemas.ActionType, `fill\s+(?:in\s+|out\s+)?(?P<target>.+?)\s+with\s+`+quoted+`(?P<submit>\s+and\s+(?:submit|press\s+enter|hit\s+enter))?`),
	rule(schemas.ActionClear, `(?:clear|empty|erase)\s+(?P<target>.+)`),

	rule(schemas.ActionSetText, `set\s+(?:the\s+)?text\s+(?:of|in)\s+(?P<target>.+?)\s+to\s+`+quoted),
	rule(schemas.ActionSetAttribute, `set\s+(?:the\s+)?(?P<attribute>[\w:-]+)\s+(?:attribute\s+)?(?:of|on)\s+(?P<target>.+?)\s+to\s+`+quoted),
	rule(schemas.ActionGetAttribute, `(?:get|read|fetch)\s+(?:the\s+)?(?P<attribute>[\w:-]+)\s+attribute\s+(?:of|from|on)\s+(?P<target>.+)`),
	rule(schemas.ActionGetText, `(?:get|read|extract|copy)\s+(?:the\s+)?text\s+(?:of|from|in)\s+(?P<target>.+)`),

	rule(schemas.ActionScroll, `scroll\s+to\s+(?:the\s+)?(?P<direction>top|bottom)(?:\s+of\s+(?:the\s+)?page)?`),
	rule(schemas.ActionScroll, `scroll(?:\s+(?P<direction>up|down|left|right))?(?:\s+(?:by\s+)?(?P<amount>\d+)(?:\s*(?:px|pixels))?)?`),
	rule(schemas.ActionScrollTo, `scroll\s+(?:to|down\s+to|up\s+to|until)\s+(?:the\s+)?(?P<target>.+)`),
	rule(schemas.ActionHover, `(?:hover|mouse\s*over)\s+(?:over\s+|on\s+)?(?P<target>.+)`),
	rule(schemas.ActionFocus, `focus\s+(?:on\s+)?(?P<target>.+)`),
	rule(schemas.ActionClick, `(?:click|press|push|hit|select|activate)\s+(?:on\s+)?(?P<target>.+)`),
}

var (
	spacesExpr = regexp.MustCompile(`\s+`)
	trimExpr   = regexp.MustCompile(`^[\s"'` + "`" + `]+|[\s"'` + "`" + `.,!?;:]+$`)
)

// Parser turns free text into structured commands through the pattern
// table, handing anything unmatched to an optional fallback planner.
type Parser struct {
	fallback Fallback
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMetrics counts fallback planner calls.
func WithMetrics(m *observability.Metrics) ParserOption {
	return func(p *Parser) { p.metrics = m }
}

// NewParser creates a Parser. fallback may be nil.
func NewParser(fallback Fallback, logger *zap.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{fallback: fallback, logger: logger.Named("parser")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs the pattern table only.
func Parse(text string) (schemas.StructuredCommand, bool) {
	raw := text
	text = spacesExpr.ReplaceAllString(strings.TrimSpace(text), " ")
	text = strings.TrimRight(text, ".!;")
	if text == "" {
		return schemas.StructuredCommand{}, false
	}
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd := schemas.StructuredCommand{Action: p.action, Raw: raw}
		if fill(&cmd, p.re, m) {
			return cmd, true
		}
	}
	return schemas.StructuredCommand{}, false
}

// fill copies the named groups into cmd. It rejects matches that leave a
// required field empty so the next row gets a chance.
func fill(cmd *schemas.StructuredCommand, re *regexp.Regexp, m []string) bool {
	var unit string
	for i, name := range re.SubexpNames() {
		v := m[i]
		if name == "" || v == "" {
			continue
		}
		switch name {
		case "target":
			cmd.Target = clean(v)
		case "destination":
			cmd.Destination = clean(v)
		case "qtext", "stext":
			cmd.Text = v
		case "text":
			cmd.Text = clean(v)
		case "url":
			cmd.URL = trimExpr.ReplaceAllString(v, "")
		case "key":
			cmd.Key = strings.ReplaceAll(v, " ", "")
		case "direction":
			cmd.Direction = strings.ToLower(v)
		case "attribute":
			cmd.Attribute = strings.ToLower(v)
		case "amount":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return false
			}
			cmd.Amount = int(f)
			if cmd.Action == schemas.ActionWait {
				cmd.Amount = int(f * 1000)
			}
		case "unit":
			unit = strings.ToLower(v)
		case "submit":
			cmd.Submit = true
		}
	}
	if cmd.Action == schemas.ActionWait && strings.HasPrefix(unit, "m") {
		cmd.Amount /= 1000
	}

	switch {
	case cmd.Action.NeedsElement() && cmd.Target == "":
		return false
	case cmd.Action == schemas.ActionDrag && cmd.Destination == "":
		return false
	case cmd.Action == schemas.ActionNavigate && cmd.URL == "":
		return false
	case cmd.Action == schemas.ActionWaitForElement && cmd.Target == "":
		return false
	}
	return true
}

// clean trims quotes, trailing punctuation and extra whitespace from a
// captured phrase.
func clean(s string) string {
	s = trimExpr.ReplaceAllString(strings.TrimSpace(s), "")
	return spacesExpr.ReplaceAllString(s, " ")
}

// Parsed is the result of ParseOrPlan: either one command from the table or
// the fallback planner's steps.
type Parsed struct {
	Commands []schemas.StructuredCommand
	// Planned is set when the commands came from the fallback planner.
	Planned bool
}

// ParseOrPlan parses text through the table, then the fallback. Input neither
// understands returns ErrNotUnderstood.
func (p *Parser) ParseOrPlan(ctx context.Context, text string) (Parsed, error) {
	if cmd, ok := Parse(text); ok {
		p.logger.Debug("Command matched pattern table.", zap.String("action", string(cmd.Action)))
		return Parsed{Commands: []schemas.StructuredCommand{cmd}}, nil
	}
	if p.fallback == nil {
		return Parsed{}, fmt.Errorf("%w: %q", ErrNotUnderstood, text)
	}

	steps, err := p.fallback.PlanSteps(ctx, text)
	switch {
	case errors.Is(err, ErrNotUnderstood), err == nil && len(steps) == 0:
		p.metrics.ObservePlanner("not_understood")
	case err != nil:
		p.metrics.ObservePlanner("error")
	default:
		p.metrics.ObservePlanner("planned")
	}
	if err != nil {
		return Parsed{}, fmt.Errorf("fallback planner: %w", err)
	}
	if len(steps) == 0 {
		return Parsed{}, fmt.Errorf("%w: planner returned no steps for %q", ErrNotUnderstood, text)
	}
	out := Parsed{Planned: true}
	for i, s := range steps {
		cmd, err := FromPlannedStep(s, text)
		if err != nil {
			return Parsed{}, fmt.Errorf("planned step %d: %w", i, err)
		}
		out.Commands = append(out.Commands, cmd)
	}
	p.logger.Info("Command planned by fallback.", zap.Int("steps", len(out.Commands)))
	return out, nil
}

// FromPlannedStep maps a planner step onto a structured command. The step's
// target doubles as the URL or key for verbs that take one.
func FromPlannedStep(s PlannedStep, raw string) (schemas.StructuredCommand, error) {
	kind, err := schemas.ParseActionKind(string(s.Action))
	if err != nil {
		return schemas.StructuredCommand{}, err
	}
	cmd := schemas.StructuredCommand{Action: kind, Target: strings.TrimSpace(s.Target), Text: s.Text, Raw: raw}
	switch kind {
	case schemas.ActionNavigate, schemas.ActionNewTab, schemas.ActionWaitForNavigation:
		cmd.URL, cmd.Target = cmd.Target, ""
		if cmd.URL == "" {
			cmd.URL = strings.TrimSpace(s.Text)
		}
	case schemas.ActionPressKey:
		cmd.Key = strings.TrimSpace(s.Text)
		if cmd.Key == "" {
			cmd.Key, cmd.Target = cmd.Target, ""
		}
	case schemas.ActionScroll, schemas.ActionTouchSwipe:
		if d := strings.ToLower(cmd.Target); d == "up" || d == "down" || d == "left" || d == "right" || d == "top" || d == "bottom" {
			cmd.Direction, cmd.Target = d, ""
		}
	case schemas.ActionWait:
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text)); err == nil {
			cmd.Amount = n
		}
	}
	if kind.NeedsElement() && cmd.Target == "" {
		return schemas.StructuredCommand{}, fmt.Errorf("%s step has no target", kind)
	}
	return cmd, nil
}
