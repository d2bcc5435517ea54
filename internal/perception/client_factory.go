package perception

import (
	"context"
	"fmt"
	"time"

	"connsolve/internal/config"

	"go.uber.org/zap"
)

// Clients pairs the model used for free-text reasoning with the one used to
// extract the structured proposal.
type Clients struct {
	Reasoner LLMClient
	Parser   JSONClient
}

// NewClientsFromConfig builds the reasoning and parsing clients for the
// configured provider.
func NewClientsFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (*Clients, error) {
	switch cfg.Provider {
	case "openai", "":
		build := func(model string) *OpenAIClient {
			oc := DefaultOpenAIConfig(cfg.APIKey)
			oc.BaseURL = cfg.BaseURL
			oc.Model = model
			oc.Temperature = cfg.Temperature
			oc.Timeout = timeout
			return NewOpenAIClientWithConfig(oc, logger)
		}
		return &Clients{Reasoner: build(cfg.ReasoningModel), Parser: build(cfg.ParsingModel)}, nil

	case "gemini":
		build := func(model string) (*GeminiClient, error) {
			gc := DefaultGeminiConfig(cfg.APIKey)
			gc.BaseURL = cfg.BaseURL
			gc.Model = model
			gc.Temperature = cfg.Temperature
			gc.Timeout = timeout
			return NewGeminiClient(ctx, gc, logger)
		}
		reasoner, err := build(cfg.ReasoningModel)
		if err != nil {
			return nil, err
		}
		parser, err := build(cfg.ParsingModel)
		if err != nil {
			return nil, err
		}
		return &Clients{Reasoner: reasoner, Parser: parser}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
