// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/analyzer"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/executor"
	"github.com/xkilldash9x/pagewright/internal/journal"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
	"github.com/xkilldash9x/pagewright/internal/resolver"
)

// ComponentFactory creates the component set behind every command. The
// abstraction lets command tests swap in an offline or fake backend.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the browser backend, the pipeline stages, the optional
// fallback planner and the journal into an orchestrator.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger}

	// Shut down whatever was created if a later step fails.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Metrics
	components.Metrics = InitializeMetrics(cfg.Metrics())

	// 2. Fallback planner. Checked before the browser so a bad API key fails fast.
	fallback, err := InitializeFallback(ctx, cfg.Planner(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}

	// 3. Journal
	recorder, err := journal.Open(ctx, cfg.Journal(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to open journal: %w", err)
		return nil, initializationErr
	}

	// 4. Browser
	tabs, closeBrowser, err := InitializeBrowser(ctx, cfg.Browser(), logger)
	components.closeBrowser = closeBrowser
	if err != nil {
		_ = recorder.Close()
		initializationErr = err
		return nil, initializationErr
	}
	components.Tabs = tabs
	logger.Debug("Browser backend initialized.", zap.String("mode", cfg.Browser().Mode))

	// 5. Pipeline stages
	m := components.Metrics
	deps := orchestrator.Deps{
		Tabs:     tabs,
		Analyzer: analyzer.New(cfg.Analyzer(), logger, analyzer.WithMetrics(m)),
		Resolver: resolver.New(cfg.Resolver(), logger, resolver.WithMetrics(m)),
		Executor: executor.New(cfg.Executor(), logger),
		Parser:   command.NewParser(fallback, logger, command.WithMetrics(m)),
		Planner:  command.NewPlanner(logger),
		Recorder: recorder,
		Metrics:  m,
	}

	// 6. Orchestrator
	orch, err := orchestrator.New(cfg.Orchestrator(), deps, logger)
	if err != nil {
		_ = recorder.Close()
		initializationErr = fmt.Errorf("failed to create orchestrator: %w", err)
		return nil, initializationErr
	}
	components.Orchestrator = orch

	logger.Info("All components initialized successfully.")
	return components, nil
}
