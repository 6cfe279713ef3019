// File: internal/command/parser_test.go
package command

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want schemas.StructuredCommand
	}{
		{"click the submit button", schemas.StructuredCommand{Action: schemas.ActionClick, Target: "the submit button"}},
		{"Click on Sign up.", schemas.StructuredCommand{Action: schemas.ActionClick, Target: "Sign up"}},
		{"press the login button", schemas.StructuredCommand{Action: schemas.ActionClick, Target: "the login button"}},
		{"double-click the row", schemas.StructuredCommand{Action: schemas.ActionDoubleClick, Target: "the row"}},
		{"right click on the file", schemas.StructuredCommand{Action: schemas.ActionRightClick, Target: "the file"}},
		{`type "hello world" into the bio field`, schemas.StructuredCommand{Action: schemas.ActionType, Target: "the bio field", Text: "hello world"}},
		{"type shoes into search and press enter", schemas.StructuredCommand{Action: schemas.ActionType, Target: "search", Text: "shoes", Submit: true}},
		{"fill in email with 'a@b.test'", schemas.StructuredCommand{Action: schemas.ActionType, Target: "email", Text: "a@b.test"}},
		{"clear the comment box", schemas.StructuredCommand{Action: schemas.ActionClear, Target: "the comment box"}},
		{"select 'Large' from size", schemas.StructuredCommand{Action: schemas.ActionSelect, Target: "size", Text: "Large"}},
		{"select the first result", schemas.StructuredCommand{Action: schemas.ActionClick, Target: "the first result"}},
		{"press Enter", schemas.StructuredCommand{Action: schemas.ActionPressKey, Key: "Enter"}},
		{"hit ctrl + shift + k", schemas.StructuredCommand{Action: schemas.ActionPressKey, Key: "ctrl+shift+k"}},
		{"press tab on the name field", schemas.StructuredCommand{Action: schemas.ActionPressKey, Key: "tab", Target: "the name field"}},
		{"tap enter", schemas.StructuredCommand{Action: schemas.ActionPressKey, Key: "enter"}},
		{"tap the menu icon", schemas.StructuredCommand{Action: schemas.ActionTouchTap, Target: "the menu icon"}},
		{"swipe left on the carousel", schemas.StructuredCommand{Action: schemas.ActionTouchSwipe, Direction: "left", Target: "the carousel"}},
		{"hover over the avatar", schemas.StructuredCommand{Action: schemas.ActionHover, Target: "the avatar"}},
		{"focus the search box", schemas.StructuredCommand{Action: schemas.ActionFocus, Target: "the search box"}},
		{"drag the card to done column", schemas.StructuredCommand{Action: schemas.ActionDrag, Target: "the card", Destination: "done column"}},
		{"scroll down", schemas.StructuredCommand{Action: schemas.ActionScroll, Direction: "down"}},
		{"scroll up by 300 px", schemas.StructuredCommand{Action: schemas.ActionScroll, Direction: "up", Amount: 300}},
		{"scroll to the bottom of the page", schemas.StructuredCommand{Action: schemas.ActionScroll, Direction: "bottom"}},
		{"scroll to the footer", schemas.StructuredCommand{Action: schemas.ActionScrollTo, Target: "footer"}},
		{"get the text of the headline", schemas.StructuredCommand{Action: schemas.ActionGetText, Target: "the headline"}},
		{"set the text of the note to 'done'", schemas.StructuredCommand{Action: schemas.ActionSetText, Target: "the note", Text: "done"}},
		{"get the href attribute of the logo", schemas.StructuredCommand{Action: schemas.ActionGetAttribute, Attribute: "href", Target: "the logo"}},
		{"set the title of the logo to Home", schemas.StructuredCommand{Action: schemas.ActionSetAttribute, Attribute: "title", Target: "the logo", Text: "Home"}},
		{"go to example.com", schemas.StructuredCommand{Action: schemas.ActionNavigate, URL: "example.com"}},
		{"navigate to https://shop.test/cart?x=1", schemas.StructuredCommand{Action: schemas.ActionNavigate, URL: "https://shop.test/cart?x=1"}},
		{"open a new tab", schemas.StructuredCommand{Action: schemas.ActionNewTab}},
		{"open new tab to docs.test", schemas.StructuredCommand{Action: schemas.ActionNewTab, URL: "docs.test"}},
		{"go back", schemas.StructuredCommand{Action: schemas.ActionGoBack}},
		{"Forward", schemas.StructuredCommand{Action: schemas.ActionGoForward}},
		{"reload the page", schemas.StructuredCommand{Action: schemas.ActionRefresh}},
		{"wait 2 seconds", schemas.StructuredCommand{Action: schemas.ActionWait, Amount: 2000}},
		{"wait for 500ms", schemas.StructuredCommand{Action: schemas.ActionWait, Amount: 500}},
		{"wait for the element #results to appear", schemas.StructuredCommand{Action: schemas.ActionWaitForElement, Target: "#results"}},
		{`wait for text "Order placed"`, schemas.StructuredCommand{Action: schemas.ActionWaitForText, Text: "Order placed"}},
		{"wait for navigation to /thanks", schemas.StructuredCommand{Action: schemas.ActionWaitForNavigation, URL: "/thanks"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Parse(tt.text)
			require.True(t, ok, "no pattern matched %q", tt.text)
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(schemas.StructuredCommand{}, "Raw")); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
			assert.Equal(t, tt.text, got.Raw)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, text := range []string{"", "   ", "click", "make me a sandwich", "open settings", "drag the card"} {
		_, ok := Parse(text)
		assert.False(t, ok, "%q", text)
	}
}

type mockFallback struct {
	mock.Mock
}

func (m *mockFallback) PlanSteps(ctx context.Context, text string) ([]PlannedStep, error) {
	args := m.Called(ctx, text)
	steps, _ := args.Get(0).([]PlannedStep)
	return steps, args.Error(1)
}

func TestParseOrPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("table match skips the fallback", func(t *testing.T) {
		fb := new(mockFallback)
		p := NewParser(fb, zaptest.NewLogger(t))
		parsed, err := p.ParseOrPlan(ctx, "click save")
		require.NoError(t, err)
		assert.False(t, parsed.Planned)
		require.Len(t, parsed.Commands, 1)
		assert.Equal(t, schemas.ActionClick, parsed.Commands[0].Action)
		fb.AssertNotCalled(t, "PlanSteps", mock.Anything, mock.Anything)
	})

	t.Run("fallback steps become commands", func(t *testing.T) {
		fb := new(mockFallback)
		text := "log the cart total then go to checkout"
		fb.On("PlanSteps", ctx, text).Return([]PlannedStep{
			{Action: "getText", Target: "cart total", Description: "read the total"},
			{Action: "NAVIGATE", Target: "shop.test/checkout"},
			{Action: "pressKey", Text: "Enter"},
		}, nil)

		parsed, err := NewParser(fb, zaptest.NewLogger(t)).ParseOrPlan(ctx, text)
		require.NoError(t, err)
		assert.True(t, parsed.Planned)
		require.Len(t, parsed.Commands, 3)
		assert.Equal(t, schemas.StructuredCommand{Action: schemas.ActionGetText, Target: "cart total", Raw: text}, parsed.Commands[0])
		assert.Equal(t, "shop.test/checkout", parsed.Commands[1].URL)
		assert.Empty(t, parsed.Commands[1].Target)
		assert.Equal(t, "Enter", parsed.Commands[2].Key)
		fb.AssertExpectations(t)
	})

	t.Run("not understood", func(t *testing.T) {
		fb := new(mockFallback)
		fb.On("PlanSteps", ctx, "hmm").Return(nil, ErrNotUnderstood)
		_, err := NewParser(fb, zaptest.NewLogger(t)).ParseOrPlan(ctx, "hmm")
		assert.ErrorIs(t, err, ErrNotUnderstood)

		_, err = NewParser(nil, zaptest.NewLogger(t)).ParseOrPlan(ctx, "hmm")
		assert.ErrorIs(t, err, ErrNotUnderstood)
	})

	t.Run("empty or invalid plans", func(t *testing.T) {
		fb := new(mockFallback)
		fb.On("PlanSteps", ctx, "nothing").Return([]PlannedStep{}, nil)
		fb.On("PlanSteps", ctx, "teleport").Return([]PlannedStep{{Action: "teleport", Target: "mars"}}, nil)
		fb.On("PlanSteps", ctx, "poke around somewhere").Return([]PlannedStep{{Action: "click"}}, nil)
		p := NewParser(fb, zaptest.NewLogger(t))

		_, err := p.ParseOrPlan(ctx, "nothing")
		assert.ErrorIs(t, err, ErrNotUnderstood)
		_, err = p.ParseOrPlan(ctx, "teleport")
		assert.ErrorIs(t, err, schemas.ErrUnsupportedAction)
		_, err = p.ParseOrPlan(ctx, "poke around somewhere")
		assert.Error(t, err)
	})

	t.Run("fallback calls are counted", func(t *testing.T) {
		m := observability.NewMetrics("pw_parser")
		fb := new(mockFallback)
		fb.On("PlanSteps", ctx, "refresh twice please").Return([]PlannedStep{{Action: "refresh"}, {Action: "refresh"}}, nil)
		fb.On("PlanSteps", ctx, "hmm").Return(nil, ErrNotUnderstood)
		p := NewParser(fb, zaptest.NewLogger(t), WithMetrics(m))

		_, err := p.ParseOrPlan(ctx, "refresh twice please")
		require.NoError(t, err)
		_, err = p.ParseOrPlan(ctx, "hmm")
		require.Error(t, err)

		count, err := testutil.GatherAndCount(m.Registry(), "pw_parser_planner_requests_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count, "one series per status")
	})

	t.Run("planner errors are wrapped", func(t *testing.T) {
		boom := errors.New("quota exhausted")
		fb := new(mockFallback)
		fb.On("PlanSteps", ctx, "do things").Return(nil, boom)
		_, err := NewParser(fb, zaptest.NewLogger(t)).ParseOrPlan(ctx, "do things")
		assert.ErrorIs(t, err, boom)
	})
}
