package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
// It translates between llmclient types and gollm's API.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm will attempt to read it from environment
// variables.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   16384,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := GetLatestModel(provider); info != nil {
			model = info.ID
		} else {
			model = "gpt-5.2-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // the backoff supervisor owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}

	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}

	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)
	a.applyRequestOptions(req)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, ClassifyErrorText(a.provider, err)
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	return &Response{
		ID:       "resp_" + uuid.New().String()[:8],
		Model:    model,
		Provider: a.provider,
		Text:     text,
		Usage: Usage{
			// gollm doesn't expose detailed usage; estimate from text length.
			InputTokens:  estimateTokens(req),
			OutputTokens: len(text) / 4,
			TotalTokens:  estimateTokens(req) + len(text)/4,
		},
	}, nil
}

// translateRequest converts a Request into a gollm Prompt.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	promptText := req.UserText()
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}

	if system := req.SystemText(); system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(system), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.TopP != nil {
		a.llm.SetOption("top_p", *req.TopP)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

// estimateTokens provides a rough token count estimate from request messages.
func estimateTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	if total == 0 {
		total = 10
	}
	return total
}
