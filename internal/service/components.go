// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
)

// Components holds everything a command or the tool server needs to drive
// pages, and owns their lifecycle.
type Components struct {
	Tabs         browser.Tabs
	Orchestrator *orchestrator.Orchestrator
	Metrics      *observability.Metrics

	logger       *zap.Logger
	closeBrowser func()
}

// Shutdown releases components in reverse order of creation: the journal
// first, then every open page, then the browser process.
func (c *Components) Shutdown() {
	if c == nil {
		return
	}
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.Orchestrator != nil {
		if err := c.Orchestrator.Close(); err != nil {
			logger.Warn("Failed to close journal.", zap.Error(err))
		}
	}

	if c.Tabs != nil {
		for _, p := range c.Tabs.List() {
			if err := c.Tabs.Close(p.ID()); err != nil {
				logger.Debug("Failed to close page during shutdown.", zap.String("page_id", p.ID()), zap.Error(err))
			}
		}
	}

	if c.closeBrowser != nil {
		c.closeBrowser()
		logger.Debug("Browser shut down.")
	}
	logger.Debug("Components shutdown complete.")
}
