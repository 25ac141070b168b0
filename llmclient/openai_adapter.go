package llmclient

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements ProviderAdapter against the OpenAI API directly,
// preserving structured status codes (and Retry-After hints) that the
// text-level gollm path loses.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

// NewOpenAIAdapter creates an adapter with an explicit API key.
func NewOpenAIAdapter(apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "openai adapter requires an API key",
		}}
	}
	if model == "" {
		if info := GetLatestModel("openai"); info != nil {
			model = info.ID
		}
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// NewOpenAIAdapterFromEnv creates an adapter from OPENAI_API_KEY.
func NewOpenAIAdapterFromEnv() (*OpenAIAdapter, error) {
	return NewOpenAIAdapter(os.Getenv("OPENAI_API_KEY"), "")
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Complete sends a blocking chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	ccReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature != nil {
		ccReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		ccReq.TopP = float32(*req.TopP)
	}
	if req.MaxTokens != nil {
		ccReq.MaxTokens = *req.MaxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return nil, a.translateError(err)
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: "openai",
		Text:     text,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// translateError maps SDK errors to the typed hierarchy, preferring the
// structured status code over text sniffing.
func (a *OpenAIAdapter) translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, "openai", nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ErrorFromStatusCode(reqErr.HTTPStatusCode, reqErr.Error(), "openai", nil)
	}
	return ClassifyErrorText("openai", err)
}
