// File: internal/orchestrator/orchestrator.go
// Description: Sequences parsing, planning, resolution and execution for
// commands against page contexts. It is injected with fully configured
// components, which keeps it decoupled and testable.

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/analyzer"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/executor"
	"github.com/xkilldash9x/pagewright/internal/journal"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/resolver"
)

// Deps are the components the orchestrator drives. Recorder and Metrics are
// optional.
type Deps struct {
	Tabs     browser.Tabs
	Analyzer *analyzer.Analyzer
	Resolver *resolver.Resolver
	Executor *executor.Executor
	Parser   *command.Parser
	Planner  *command.Planner
	Recorder journal.Recorder
	Metrics  *observability.Metrics
}

// pageContext serialises all work on one page and owns its analysis cache.
type pageContext struct {
	mu    sync.Mutex
	page  browser.Page
	cache *analyzer.Cache
}

// PageInfo describes a registered page context.
type PageInfo struct {
	ID    string `json:"id" yaml:"id"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Busy is set when a command held the page while listing.
	Busy bool `json:"busy,omitempty" yaml:"busy,omitempty"`
}

// Orchestrator runs commands against page contexts. Work on a single page is
// serialised; different pages proceed concurrently.
type Orchestrator struct {
	cfg    config.OrchestratorConfig
	deps   Deps
	clock  clockwork.Clock
	logger *zap.Logger

	mu    sync.Mutex
	pages map[string]*pageContext
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the clock used for readiness waits and step timing.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an Orchestrator.
func New(cfg config.OrchestratorConfig, deps Deps, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if deps.Tabs == nil || deps.Analyzer == nil || deps.Resolver == nil ||
		deps.Executor == nil || deps.Parser == nil || deps.Planner == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Recorder == nil {
		deps.Recorder = journal.Nop{}
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		clock:  clockwork.NewRealClock(),
		logger: logger.Named("orchestrator"),
		pages:  make(map[string]*pageContext),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// register adopts page, or returns the context already holding it.
func (o *Orchestrator) register(page browser.Page) *pageContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pc, ok := o.pages[page.ID()]; ok {
		return pc
	}
	pc := &pageContext{page: page, cache: analyzer.NewCache(o.deps.Analyzer, page)}
	o.pages[page.ID()] = pc
	o.logger.Debug("Page context registered.", zap.String("page_id", page.ID()))
	return pc
}

// pageContext returns the context for id, adopting pages opened directly
// through the tab surface.
func (o *Orchestrator) pageContext(id string) (*pageContext, error) {
	o.mu.Lock()
	pc, ok := o.pages[id]
	o.mu.Unlock()
	if ok {
		return pc, nil
	}
	page, err := o.deps.Tabs.Get(id)
	if err != nil {
		return nil, fmt.Errorf("page %q: %w", id, err)
	}
	return o.register(page), nil
}

// OpenPage opens url in a new page context and waits for it to be ready.
func (o *Orchestrator) OpenPage(ctx context.Context, url string) (PageInfo, error) {
	page, err := o.deps.Tabs.Open(ctx, executor.NormalizeURL(url))
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to open page: %w", err)
	}
	pc := o.register(page)
	pc.mu.Lock()
	defer pc.mu.Unlock()

	state, err := o.waitReady(ctx, page)
	if err != nil {
		o.logger.Warn("Opened page did not become ready.", zap.String("page_id", page.ID()), zap.Error(err))
	}
	return PageInfo{ID: page.ID(), URL: state.URL, Title: state.Title}, nil
}

// Analyze forces a fresh scan of the page.
func (o *Orchestrator) Analyze(ctx context.Context, pageID string) (*schemas.PageAnalysis, error) {
	pc, err := o.pageContext(pageID)
	if err != nil {
		return nil, err
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.cache.Refresh(ctx)
}

// Resolve runs the resolver chain for description without acting on the result.
func (o *Orchestrator) Resolve(ctx context.Context, pageID, description string, action schemas.ActionKind) (resolver.Resolution, error) {
	pc, err := o.pageContext(pageID)
	if err != nil {
		return resolver.Resolution{}, err
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return o.deps.Resolver.Resolve(ctx, pc.cache, description, action)
}

// Plan parses text and returns the plan for every command it expands to,
// without touching any page.
func (o *Orchestrator) Plan(ctx context.Context, text string) ([]*schemas.ActionPlan, error) {
	parsed, err := o.deps.Parser.ParseOrPlan(ctx, text)
	if err != nil {
		return nil, err
	}
	plans := make([]*schemas.ActionPlan, 0, len(parsed.Commands))
	for _, cmd := range parsed.Commands {
		plans = append(plans, o.deps.Planner.CreateActionPlan(cmd))
	}
	return plans, nil
}

// Pages lists the registered page contexts, sorted by id.
func (o *Orchestrator) Pages(ctx context.Context) []PageInfo {
	o.mu.Lock()
	contexts := make([]*pageContext, 0, len(o.pages))
	for _, pc := range o.pages {
		contexts = append(contexts, pc)
	}
	o.mu.Unlock()

	infos := make([]PageInfo, 0, len(contexts))
	for _, pc := range contexts {
		info := PageInfo{ID: pc.page.ID()}
		if !pc.mu.TryLock() {
			info.Busy = true
			infos = append(infos, info)
			continue
		}
		if state, err := pc.page.State(ctx); err == nil {
			info.URL, info.Title = state.URL, state.Title
		}
		pc.mu.Unlock()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ClosePage closes the page and forgets its context.
func (o *Orchestrator) ClosePage(pageID string) error {
	pc, err := o.pageContext(pageID)
	if err != nil {
		return err
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()

	o.mu.Lock()
	delete(o.pages, pageID)
	o.mu.Unlock()

	if err := o.deps.Tabs.Close(pageID); err != nil {
		return fmt.Errorf("failed to close page %q: %w", pageID, err)
	}
	o.logger.Debug("Page context closed.", zap.String("page_id", pageID))
	return nil
}

// Close releases the journal.
func (o *Orchestrator) Close() error {
	return o.deps.Recorder.Close()
}
