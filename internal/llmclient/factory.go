// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
)

// ProviderGemini is the only supported provider.
const ProviderGemini = "gemini"

// NewClient creates a Generator for the configured provider.
func NewClient(ctx context.Context, cfg config.PlannerConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, ProviderGemini)
	}
}
