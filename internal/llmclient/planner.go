package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/llmutil"
)

// maxPlannedSteps caps how many commands one sentence may expand into.
const maxPlannedSteps = 8

// stepPlan is the reply shape the model is asked for.
type stepPlan struct {
	Understood bool                  `json:"understood"`
	Steps      []command.PlannedStep `json:"steps"`
}

// StepPlanner turns free text the pattern table missed into a list of
// commands by asking a model. It implements command.Fallback.
type StepPlanner struct {
	gen     Generator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewStepPlanner wraps gen with the configured request rate.
func NewStepPlanner(gen Generator, cfg config.PlannerConfig, logger *zap.Logger) *StepPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &StepPlanner{
		gen:     gen,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("step_planner"),
	}
}

// PlanSteps asks the model for the commands text describes.
func (p *StepPlanner) PlanSteps(ctx context.Context, text string) ([]command.PlannedStep, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("planner rate limit: %w", err)
	}

	reply, err := p.gen.Generate(ctx, GenerationRequest{
		SystemPrompt: systemPrompt(),
		UserPrompt:   fmt.Sprintf("Instruction: %s", text),
		ForceJSON:    true,
	})
	if err != nil {
		return nil, err
	}

	plan, err := llmutil.ParseJSONResponse[stepPlan](reply)
	if err != nil {
		p.logger.Warn("Discarding unparseable plan.", zap.String("reply", llmutil.Truncate(reply, 300)), zap.Error(err))
		return nil, err
	}
	if !plan.Understood || len(plan.Steps) == 0 {
		return nil, command.ErrNotUnderstood
	}
	if len(plan.Steps) > maxPlannedSteps {
		return nil, fmt.Errorf("plan has %d steps, at most %d allowed", len(plan.Steps), maxPlannedSteps)
	}

	p.logger.Debug("Planned instruction.", zap.String("text", text), zap.Int("steps", len(plan.Steps)))
	return plan.Steps, nil
}

func systemPrompt() string {
	kinds := make([]string, 0, len(schemas.AllActionKinds))
	for _, k := range schemas.AllActionKinds {
		kinds = append(kinds, string(k))
	}
	var b strings.Builder
	b.WriteString("You translate a browser instruction into a short list of atomic steps.\n")
	b.WriteString("Allowed actions: " + strings.Join(kinds, ", ") + ".\n")
	b.WriteString("Describe targets the way a person would see them on the page, for example \"the blue Save button\".\n")
	b.WriteString("Put typed text, key names, wait seconds and URLs in \"text\"; put the element or URL in \"target\".\n")
	b.WriteString(fmt.Sprintf("Use at most %d steps. If the instruction is not a browser task set understood to false.\n", maxPlannedSteps))
	b.WriteString(`Reply with JSON only: {"understood": true, "steps": [{"action": "...", "target": "...", "text": "...", "description": "..."}]}`)
	return b.String()
}
