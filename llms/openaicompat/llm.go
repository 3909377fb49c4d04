package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var (
	ErrEmptyResponse = errors.New("no response")
	ErrNotSetAuth    = errors.New("api key is not set")
)

// LLM is an llms.Model backed by an OpenAI-compatible chat completions API.
type LLM struct {
	client           *openai.Client
	model            string
	CallbacksHandler callbacks.Handler
}

var _ llms.Model = (*LLM)(nil)

// New returns a client configured from options and the environment.
//
//	llm, err := openaicompat.New(
//		openaicompat.WithBaseURL("http://localhost:8000/v1"),
//		openaicompat.WithModel("qwen2.5-coder"),
//		openaicompat.WithAPIKey("token"),
//	)
func New(opts ...Option) (*LLM, error) {
	o := &options{
		apiKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
		model:   getEnvOrDefault("OPENAI_MODEL", DefaultModel),
		baseURL: getEnvOrDefault("OPENAI_BASE_URL", DefaultBaseURL),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf(`%w
pass it with openaicompat.New(openaicompat.WithAPIKey("{API Key}"))
or
export OPENAI_API_KEY={API Key}`, ErrNotSetAuth)
	}

	cfg := openai.DefaultConfig(o.apiKey)
	cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	cfg.OrgID = o.organization
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}

	return &LLM{
		client:           openai.NewClientWithConfig(cfg),
		model:            o.model,
		CallbacksHandler: o.callbacksHandler,
	}, nil
}

// Call generates a response for a single prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentStart(ctx, messages)
	}

	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    convertMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		Stop:        opts.StopWords,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}

	result, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, err)
		}
		return nil, err
	}
	if len(result.Choices) == 0 {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, ErrEmptyResponse)
		}
		return nil, ErrEmptyResponse
	}

	resp := &llms.ContentResponse{Choices: make([]*llms.ContentChoice, 0, len(result.Choices))}
	for _, c := range result.Choices {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"prompt_tokens":     result.Usage.PromptTokens,
				"completion_tokens": result.Usage.CompletionTokens,
				"total_tokens":      result.Usage.TotalTokens,
			},
		})
	}

	if opts.StreamingFunc != nil {
		if err := opts.StreamingFunc(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return nil, err
		}
	}

	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentEnd(ctx, resp)
	}
	return resp, nil
}

func convertMessages(messages []llms.MessageContent) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			role = openai.ChatMessageRoleSystem
		case llms.ChatMessageTypeAI:
			role = openai.ChatMessageRoleAssistant
		case llms.ChatMessageTypeTool:
			role = openai.ChatMessageRoleTool
		}

		var content strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content.WriteString(text.Text)
			}
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: content.String()})
	}
	return out
}
