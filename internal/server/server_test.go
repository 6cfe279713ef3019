// internal/server/server_test.go
package server

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/analyzer"
	"github.com/xkilldash9x/pagewright/internal/browser/htmldom"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/executor"
	"github.com/xkilldash9x/pagewright/internal/journal"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
	"github.com/xkilldash9x/pagewright/internal/resolver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var site = htmldom.MapLoader{
	"https://news.test/": `<html><head><title>News</title></head><body>
		<nav><a href="/login">Sign in</a></nav>
		<form action="/search"><input name="q" placeholder="Search stories"><button type="submit">Search</button></form>
	</body></html>`,
	"https://news.test/login":  `<html><head><title>Login</title></head><body><input type="email" placeholder="Email"></body></html>`,
	"https://news.test/search": `<html><head><title>Results</title></head><body><p>3 stories</p></body></html>`,
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()
	execCfg := cfg.Executor()
	execCfg.SettleDelay = 0

	o, err := orchestrator.New(cfg.Orchestrator(), orchestrator.Deps{
		Tabs:     htmldom.NewBrowser(site, schemas.Viewport{}, logger),
		Analyzer: analyzer.New(cfg.Analyzer(), logger),
		Resolver: resolver.New(cfg.Resolver(), logger),
		Executor: executor.New(execCfg, logger),
		Parser:   command.NewParser(nil, logger),
		Planner:  command.NewPlanner(logger),
		Recorder: journal.Nop{},
	}, logger)
	require.NoError(t, err)
	return New(o, cfg.Server(), "test", logger)
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func openPage(t *testing.T, s *Server) string {
	t.Helper()
	res, err := s.handleOpenPage(context.Background(), request("open_page", map[string]any{"url": "news.test/"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var info orchestrator.PageInfo
	require.NoError(t, json.UnmarshalFromString(text(t, res), &info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func TestToolsAreListed(t *testing.T) {
	s := newTestServer(t)
	reply := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.MarshalToString(reply)
	require.NoError(t, err)

	for _, name := range []string{"open_page", "run_command", "analyze_page", "resolve_element",
		"plan_command", "list_pages", "close_page", "run_batch"} {
		assert.Contains(t, raw, `"`+name+`"`)
	}
}

func TestRunCommand(t *testing.T) {
	s := newTestServer(t)
	id := openPage(t, s)

	t.Run("success", func(t *testing.T) {
		res, err := s.handleRunCommand(context.Background(), request("run_command", map[string]any{
			"page_id": id, "command": "type go generics into search",
		}))
		require.NoError(t, err)
		assert.False(t, res.IsError, text(t, res))

		var out schemas.Outcome
		require.NoError(t, json.UnmarshalFromString(text(t, res), &out))
		assert.True(t, out.Success)
	})

	t.Run("failed outcome is an error result", func(t *testing.T) {
		res, err := s.handleRunCommand(context.Background(), request("run_command", map[string]any{
			"page_id": id, "command": "click the quantum flux capacitor",
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), string(schemas.ErrCodeElementNotFound))
	})

	t.Run("missing argument", func(t *testing.T) {
		res, err := s.handleRunCommand(context.Background(), request("run_command", map[string]any{"page_id": id}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("unknown page", func(t *testing.T) {
		res, err := s.handleRunCommand(context.Background(), request("run_command", map[string]any{
			"page_id": "tab-99", "command": "click Search",
		}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "tab-99")
	})
}

func TestAnalyzePage(t *testing.T) {
	s := newTestServer(t)
	id := openPage(t, s)

	res, err := s.handleAnalyzePage(context.Background(), request("analyze_page", map[string]any{
		"page_id": id, "limit": 2, "format": "yaml",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var view AnalysisSummary
	require.NoError(t, yaml.Unmarshal([]byte(text(t, res)), &view))
	assert.Equal(t, "News", view.Title)
	assert.Len(t, view.Elements, 2)
	assert.GreaterOrEqual(t, view.Interactive, 3)
	assert.GreaterOrEqual(t, view.Elements[0].Score, view.Elements[1].Score)
}

func TestResolveElement(t *testing.T) {
	s := newTestServer(t)
	id := openPage(t, s)

	res, err := s.handleResolveElement(context.Background(), request("resolve_element", map[string]any{
		"page_id": id, "description": "search stories", "action": "type",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var view ResolutionSummary
	require.NoError(t, json.UnmarshalFromString(text(t, res), &view))
	assert.True(t, view.Found)
	require.NotNil(t, view.Element)
	assert.Equal(t, "input", view.Element.Tag)
	assert.Equal(t, "Search stories", view.Element.Label)
	assert.NotEmpty(t, view.Attempted)

	res, err = s.handleResolveElement(context.Background(), request("resolve_element", map[string]any{
		"page_id": id, "description": "Sign in", "action": "teleport",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "unknown action is rejected")
}

func TestPlanCommand(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handlePlanCommand(context.Background(), request("plan_command", map[string]any{"command": "click Sign in"}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, strings.ToLower(text(t, res)), "sign in")

	res, err = s.handlePlanCommand(context.Background(), request("plan_command", map[string]any{"command": "sing me a song"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPageLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := openPage(t, s)

	res, err := s.handleListPages(context.Background(), request("list_pages", nil))
	require.NoError(t, err)
	var pages []orchestrator.PageInfo
	require.NoError(t, json.UnmarshalFromString(text(t, res), &pages))
	require.Len(t, pages, 1)
	assert.Equal(t, id, pages[0].ID)

	res, err = s.handleClosePage(context.Background(), request("close_page", map[string]any{"page_id": id}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleClosePage(context.Background(), request("close_page", map[string]any{"page_id": id}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "closing twice reports the unknown page")
}

func TestRunBatch(t *testing.T) {
	s := newTestServer(t)
	first := openPage(t, s)
	second := openPage(t, s)

	res, err := s.handleRunBatch(context.Background(), request("run_batch", map[string]any{
		"jobs": []any{
			map[string]any{"page_id": first, "commands": []any{"type rust into search"}},
			map[string]any{"page_id": second, "commands": []any{"click Sign in"}},
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, 2, strings.Count(text(t, res), `"outcomes"`))

	res, err = s.handleRunBatch(context.Background(), request("run_batch", map[string]any{"jobs": []any{}}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleRunBatch(context.Background(), request("run_batch", map[string]any{
		"jobs": []any{map[string]any{"page_id": first}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDecodeJobs(t *testing.T) {
	jobs, err := decodeJobs([]any{map[string]any{"page_id": "tab-1", "commands": []any{"click a", "click b"}}})
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.Job{{PageID: "tab-1", Commands: []string{"click a", "click b"}}}, jobs)

	_, err = decodeJobs("not a list")
	assert.Error(t, err)
}

func TestServeRejectsUnknownTransport(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Transport = "carrier-pigeon"
	err := s.Serve(context.Background(), strings.NewReader(""), &strings.Builder{})
	assert.ErrorContains(t, err, "unsupported transport")
}
