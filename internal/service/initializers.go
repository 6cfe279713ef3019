// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/browser/cdp"
	"github.com/xkilldash9x/pagewright/internal/browser/htmldom"
	"github.com/xkilldash9x/pagewright/internal/command"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/llmclient"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

// InitializeBrowser starts the page backend the configuration selects. The
// returned cleanup is never nil.
func InitializeBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Tabs, func(), error) {
	switch cfg.Mode {
	case config.BrowserModeOffline:
		logger.Info("Using the offline HTML backend. Scripts will not run.")
		viewport := schemas.Viewport{Width: float64(cfg.Viewport["width"]), Height: float64(cfg.Viewport["height"])}
		loader := htmldom.MultiLoader{Files: htmldom.FileLoader{}, Web: htmldom.HTTPLoader{}}
		return htmldom.NewBrowser(loader, viewport, logger), func() {}, nil

	case config.BrowserModeCDP, "":
		b, err := cdp.New(ctx, cfg, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to start browser: %w", err)
		}
		return b, b.Shutdown, nil
	}
	return nil, func() {}, fmt.Errorf("unsupported browser mode: %s", cfg.Mode)
}

// InitializeFallback builds the model-backed planner used when the pattern
// table does not understand a command. It returns nil when the planner is
// disabled.
func InitializeFallback(ctx context.Context, cfg config.PlannerConfig, logger *zap.Logger) (command.Fallback, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	gen, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client. Free-form commands will not be understood.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	logger.Info("Natural-language fallback planner enabled.", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return llmclient.NewStepPlanner(gen, cfg, logger), nil
}

// InitializeMetrics returns the instrument set, or nil when metrics are off.
func InitializeMetrics(cfg config.MetricsConfig) *observability.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return observability.NewMetrics(cfg.Namespace)
}
