package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/sandbox"
	"github.com/tmc/langchaingo/llms"
)

var (
	// ErrGeneration wraps every failure to obtain code from the model.
	ErrGeneration = errors.New("code generation failed")
	// ErrNoCode means the model replied without a usable code block.
	ErrNoCode = fmt.Errorf("%w: reply contains no python code block", ErrGeneration)
)

// Request asks for code for Task. PriorError and PriorCode describe the
// failed attempt being retried; Attempt is that attempt's number.
type Request struct {
	Task       string `json:"task"`
	PriorError string `json:"prior_error,omitempty"`
	PriorCode  string `json:"prior_code,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
}

// Generation is the parsed reply of one model call.
type Generation struct {
	Code     string `json:"code"`
	Thinking string `json:"thinking,omitempty"`
	Planning string `json:"planning,omitempty"`
	Reply    string `json:"-"`
}

// Generator turns natural-language tasks into Python source with an LLM.
type Generator struct {
	model        llms.Model
	systemPrompt string
	callOptions  []llms.CallOption
	logger       log.PhaseLogger
}

// Option configures a Generator
type Option func(*Generator)

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) { g.systemPrompt = prompt }
}

// WithCallOptions passes options such as temperature to every model call.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(g *Generator) { g.callOptions = append(g.callOptions, opts...) }
}

// WithLogger sets the logger that receives the THINKING, PLANNING and CODE phases.
func WithLogger(l log.Logger) Option {
	return func(g *Generator) { g.logger = log.Phases(l) }
}

// NewGenerator creates a Generator. The default system prompt lists
// sandbox.DefaultDenylist as unavailable.
func NewGenerator(model llms.Model, opts ...Option) (*Generator, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	g := &Generator{
		model:        model,
		systemPrompt: SystemPrompt(sandbox.DefaultDenylist),
		logger:       log.Phases(nil),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate makes exactly one model call and extracts the code from the reply.
func (g *Generator) Generate(ctx context.Context, req Request) (*Generation, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, fmt.Errorf("%w: task is empty", ErrGeneration)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, g.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(req)),
	}
	resp, err := g.model.GenerateContent(ctx, messages, g.callOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", ErrGeneration)
	}

	reply := resp.Choices[0].Content
	gen := &Generation{Reply: reply}
	gen.Thinking, gen.Planning = ParseReasoning(reply)
	if gen.Thinking != "" {
		g.logger.Phase(log.PhaseThinking, "🤔 %s", gen.Thinking)
	}
	if gen.Planning != "" {
		g.logger.Phase(log.PhasePlanning, "📋 %s", gen.Planning)
	}

	code, ok := ExtractCode(reply)
	if !ok {
		return nil, ErrNoCode
	}
	gen.Code = code
	g.logger.Code("python", code)
	return gen, nil
}
