package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/internal/browser/htmldom"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/llmclient"
)

func TestInitializeBrowserOffline(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	cfg.Mode = config.BrowserModeOffline

	tabs, cleanup, err := InitializeBrowser(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	defer cleanup()
	assert.IsType(t, &htmldom.Browser{}, tabs)
	assert.Empty(t, tabs.List())
}

func TestInitializeFallback(t *testing.T) {
	cfg := config.NewDefaultConfig().Planner()

	fallback, err := InitializeFallback(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, fallback, "disabled planner yields no fallback")

	cfg.Enabled = true
	cfg.APIKey = "test-key"
	fallback, err = InitializeFallback(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &llmclient.StepPlanner{}, fallback)

	cfg.Provider = "oracle"
	_, err = InitializeFallback(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestInitializeMetrics(t *testing.T) {
	cfg := config.NewDefaultConfig().Metrics()
	assert.Nil(t, InitializeMetrics(cfg))

	cfg.Enabled = true
	assert.NotNil(t, InitializeMetrics(cfg))
}

func TestShutdownNilComponents(t *testing.T) {
	var c *Components
	assert.NotPanics(t, c.Shutdown)
	assert.NotPanics(t, (&Components{}).Shutdown)
}
