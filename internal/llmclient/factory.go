// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
)

// DisabledClient is the capability switch for unconfigured credentials: it
// reports itself disabled so callers use their rule-based strategies. Calling
// Generate on it is a programming error surfaced as a plain error.
type DisabledClient struct{}

func (DisabledClient) Enabled() bool { return false }

func (DisabledClient) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	return "", fmt.Errorf("llm provider is disabled (no API key configured)")
}

func (DisabledClient) Close() error { return nil }

var _ schemas.LLMClient = DisabledClient{}

// NewClient builds an LLMClient from configuration. A missing API key yields
// a DisabledClient, not an error.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.APIKey == "" {
		logger.Info("LLM API key not configured; AI interpretation and validation disabled")
		return DisabledClient{}, nil
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
