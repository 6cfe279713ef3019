package llmclient

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newStepPlanner(t *testing.T, gen Generator) *StepPlanner {
	return NewStepPlanner(gen, config.PlannerConfig{RequestsPerMinute: 0}, zaptest.NewLogger(t))
}

func TestPlanSteps(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req GenerationRequest) bool {
		return req.ForceJSON && req.UserPrompt == "Instruction: log in as bob" &&
			strings.Contains(req.SystemPrompt, "waitForNavigation")
	})).Return("```json\n"+`{"understood": true, "steps": [
		{"action": "type", "target": "username field", "text": "bob"},
		{"action": "click", "target": "Log in", "description": "submit"}
	]}`+"\n```", nil)

	steps, err := newStepPlanner(t, gen).PlanSteps(context.Background(), "log in as bob")
	require.NoError(t, err)
	assert.Equal(t, []command.PlannedStep{
		{Action: schemas.ActionType, Target: "username field", Text: "bob"},
		{Action: schemas.ActionClick, Target: "Log in", Description: "submit"},
	}, steps)
	gen.AssertExpectations(t)
}

func TestPlanStepsRejections(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		is    error
	}{
		{name: "not understood", reply: `{"understood": false, "steps": []}`, is: command.ErrNotUnderstood},
		{name: "no steps", reply: `{"understood": true}`, is: command.ErrNotUnderstood},
		{name: "not json", reply: "Sorry, I can't do that.", is: nil},
		{name: "generator error", err: errors.New("quota"), is: nil},
		{name: "too long", reply: `{"understood": true, "steps": [` + strings.Repeat(`{"action":"refresh"},`, 8) + `{"action":"refresh"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.reply, tt.err)
			steps, err := newStepPlanner(t, gen).PlanSteps(context.Background(), "whatever")
			require.Error(t, err)
			assert.Nil(t, steps)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestPlanStepsHonoursRateLimitCancellation(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(`{"understood": true, "steps": [{"action": "refresh"}]}`, nil)
	p := NewStepPlanner(gen, config.PlannerConfig{RequestsPerMinute: 1}, zaptest.NewLogger(t))

	_, err := p.PlanSteps(context.Background(), "reload it")
	require.NoError(t, err)

	// The single token is spent; the next call would wait a minute.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.PlanSteps(ctx, "reload it again")
	assert.Error(t, err)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestStepPlannerIsAFallback(t *testing.T) {
	var _ command.Fallback = (*StepPlanner)(nil)
}
