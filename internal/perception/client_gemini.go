package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"connsolve/internal/logging"
	"connsolve/internal/usage"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient implements JSONClient for the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		Temperature: 0.2,
		Timeout:     120 * time.Second,
	}
}

// NewGeminiClient creates a Gemini client. No request is made.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logging.For(logger, logging.CategoryPerception).With(zap.String("provider", "gemini")),
	}, nil
}

// Model returns the model this client talks to.
func (c *GeminiClient) Model() string { return c.model }

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, c.config(systemPrompt))
}

// CompleteJSON constrains the reply to the proposal schema.
func (c *GeminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := c.config(systemPrompt)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = proposalSchema()
	return c.generate(ctx, systemPrompt, userPrompt, cfg)
}

func (c *GeminiClient) config(systemPrompt string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("generate content",
		zap.String("model", c.model),
		zap.Int("system_len", len(systemPrompt)),
		zap.Int("user_len", len(userPrompt)),
		zap.Bool("json", cfg.ResponseSchema != nil),
	)
	timer := logging.StartTimer(c.logger, "gemini "+c.model)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	timer.Stop()
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}

	if m := resp.UsageMetadata; m != nil {
		usage.FromContext(ctx).Track(ctx, c.model, "gemini", int(m.PromptTokenCount), int(m.CandidatesTokenCount))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini %s: %w", c.model, ErrEmptyResponse)
	}
	return text, nil
}

// proposalSchema mirrors puzzle.Proposal's JSON shape.
func proposalSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"words": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"reasoning": {Type: genai.TypeString},
		},
		Required: []string{"words", "reasoning"},
	}
}
