// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/api/schemas"
	"github.com/xkilldash9x/vidpilot/internal/config"
)

// NewClient builds the tiered LLM client described by the agent configuration.
// The fast tier answers yes/no vision questions; the powerful tier handles
// extraction and planning.
func NewClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM configuration: %w", err)
	}

	fast, err := newModelClient(ctx, cfg.LLM.Models[cfg.LLM.DefaultFastModel], logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast tier client (%s): %w", cfg.LLM.DefaultFastModel, err)
	}
	powerful, err := newModelClient(ctx, cfg.LLM.Models[cfg.LLM.DefaultPowerfulModel], logger)
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("failed to create powerful tier client (%s): %w", cfg.LLM.DefaultPowerfulModel, err)
	}
	return NewLLMRouter(logger, fast, powerful)
}

// newModelClient creates a client for one configured model.
func newModelClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGoogleClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
