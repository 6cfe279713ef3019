// internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
	"github.com/xkilldash9x/pagewright/internal/resolver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultAnalyzeLimit = 20

// Render serialises v as indented JSON, or as YAML when format is "yaml".
func Render(v interface{}, format string) (string, error) {
	if strings.EqualFold(format, "yaml") {
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode yaml: %w", err)
		}
		return string(b), nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode json: %w", err)
	}
	return string(b), nil
}

// reply renders v as the tool result. isError marks an expected failure the
// caller should see as such.
func (s *Server) reply(request mcp.CallToolRequest, v interface{}, isError bool) (*mcp.CallToolResult, error) {
	text, err := Render(v, request.GetString("format", "json"))
	if err != nil {
		return nil, err
	}
	if isError {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// failure reports an orchestrator error to the client. Unknown pages and
// cancellations are the caller's problem; anything else is logged.
func (s *Server) failure(tool string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, browser.ErrPageNotFound), errors.Is(err, command.ErrNotUnderstood),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.logger.Error("Tool call failed.", zap.String("tool", tool), zap.Error(err))
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) handleOpenPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.orch.OpenPage(ctx, url)
	if err != nil {
		return s.failure("open_page", err)
	}
	return s.reply(request, info, false)
}

func (s *Server) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.orch.RunCommand(ctx, text, pageID)
	if err != nil {
		return s.failure("run_command", err)
	}
	return s.reply(request, out, !out.Success)
}

// ElementSummary is the compact form of one analysed element.
type ElementSummary struct {
	Path    string `json:"path" yaml:"path"`
	Tag     string `json:"tag" yaml:"tag"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Score   int    `json:"score" yaml:"score"`
	Visible bool   `json:"visible" yaml:"visible"`
}

// AnalysisSummary is the compact form of a page analysis: totals plus the
// best automation candidates.
type AnalysisSummary struct {
	URL           string                        `json:"url" yaml:"url"`
	Title         string                        `json:"title" yaml:"title"`
	TotalElements int                           `json:"totalElements" yaml:"totalElements"`
	Interactive   int                           `json:"interactive" yaml:"interactive"`
	Categories    map[schemas.Category][]string `json:"categories" yaml:"categories"`
	Elements      []ElementSummary              `json:"elements" yaml:"elements"`
}

func summarizeElement(el *schemas.ElementAnalysis) ElementSummary {
	label := el.Attr("aria-label")
	if label == "" {
		label = el.Attr("placeholder")
	}
	return ElementSummary{
		Path:    el.Path,
		Tag:     el.Tag,
		Text:    el.Text,
		Label:   label,
		Score:   el.AutomationScore,
		Visible: el.IsVisible,
	}
}

func (s *Server) handleAnalyzePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", defaultAnalyzeLimit)
	if limit <= 0 {
		limit = defaultAnalyzeLimit
	}

	pa, err := s.orch.Analyze(ctx, pageID)
	if err != nil {
		return s.failure("analyze_page", err)
	}
	return s.reply(request, SummarizeAnalysis(pa, limit), false)
}

// SummarizeAnalysis keeps at most limit of the top scored elements.
func SummarizeAnalysis(pa *schemas.PageAnalysis, limit int) AnalysisSummary {
	sum := AnalysisSummary{
		URL:           pa.URL,
		Title:         pa.Title,
		TotalElements: pa.TotalElements,
		Interactive:   len(pa.InteractiveElements),
		Categories:    pa.Categories,
	}
	for _, el := range pa.TopScored {
		if len(sum.Elements) == limit {
			break
		}
		sum.Elements = append(sum.Elements, summarizeElement(el))
	}
	return sum
}

// ResolutionSummary reports which element a description resolved to.
type ResolutionSummary struct {
	Found      bool            `json:"found" yaml:"found"`
	Strategy   string          `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Element    *ElementSummary `json:"element,omitempty" yaml:"element,omitempty"`
	Score      float64         `json:"score,omitempty" yaml:"score,omitempty"`
	Reasons    []string        `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Attempted  []string        `json:"attempted" yaml:"attempted"`
	Considered int             `json:"considered" yaml:"considered"`
}

// SummarizeResolution flattens a resolution for display.
func SummarizeResolution(res resolver.Resolution) ResolutionSummary {
	view := ResolutionSummary{Found: res.Found(), Strategy: res.Strategy, Attempted: res.Attempted, Considered: res.Considered}
	if res.Found() {
		el := summarizeElement(res.Candidate.Element)
		view.Element = &el
		view.Score = res.Candidate.Score
		view.Reasons = res.Candidate.Reasons
	}
	return view
}

func (s *Server) handleResolveElement(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := request.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := schemas.ParseActionKind(request.GetString("action", string(schemas.ActionClick)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.orch.Resolve(ctx, pageID, description, action)
	if err != nil {
		return s.failure("resolve_element", err)
	}
	return s.reply(request, SummarizeResolution(res), !res.Found())
}

func (s *Server) handlePlanCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plans, err := s.orch.Plan(ctx, text)
	if err != nil {
		return s.failure("plan_command", err)
	}
	return s.reply(request, plans, false)
}

func (s *Server) handleListPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.reply(request, s.orch.Pages(ctx), false)
}

func (s *Server) handleClosePage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.orch.ClosePage(pageID); err != nil {
		return s.failure("close_page", err)
	}
	return mcp.NewToolResultText("closed " + pageID), nil
}

type jobArg struct {
	PageID   string   `json:"page_id"`
	Commands []string `json:"commands"`
}

// decodeJobs reads the loosely typed jobs argument by round-tripping it
// through JSON.
func decodeJobs(raw interface{}) ([]orchestrator.Job, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}
	var args []jobArg
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("jobs must be an array of {page_id, commands}: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("jobs must not be empty")
	}
	jobs := make([]orchestrator.Job, 0, len(args))
	for i, a := range args {
		if a.PageID == "" || len(a.Commands) == 0 {
			return nil, fmt.Errorf("job %d needs a page_id and at least one command", i)
		}
		jobs = append(jobs, orchestrator.Job{PageID: a.PageID, Commands: a.Commands})
	}
	return jobs, nil
}

func (s *Server) handleRunBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := decodeJobs(request.GetArguments()["jobs"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.orch.RunBatch(ctx, jobs)
	if err != nil {
		return s.failure("run_batch", err)
	}
	failed := false
	for _, r := range results {
		if r.Err != nil {
			failed = true
		}
		for _, out := range r.Outcomes {
			failed = failed || !out.Success
		}
	}
	return s.reply(request, results, failed)
}
