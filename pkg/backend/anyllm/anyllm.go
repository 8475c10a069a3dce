// Package anyllm provides the cloud inference backend, backed by
// github.com/mozilla-ai/any-llm-go — a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, DeepSeek, Mistral, Groq, and more.
//
// The cloud tier is the path of last resort: its results carry an implicit
// confidence of 1.0 and are accepted unconditionally once reached, so this
// package never computes a confidence score.
//
// Usage:
//
//	b, err := anyllm.New("gemini", "gemini-2.5-flash", anyllmlib.WithAPIKey("..."))
//	res, err := b.Infer(ctx, req)
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Compile-time interface assertion.
var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend by wrapping any-llm-go.
type Backend struct {
	provider anyllmlib.Provider
	name     string
	model    string
}

// New creates a cloud Backend for the given provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "deepseek",
// "mistral", "groq". model is the specific model (e.g. "gemini-2.5-flash").
// opts are any-llm-go options (e.g. anyllmlib.WithAPIKey); without an API
// key option the provider falls back to its environment variable
// (GEMINI_API_KEY, OPENAI_API_KEY, ...).
func New(providerName, model string, opts ...anyllmlib.Option) (*Backend, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	provider, err := createProvider(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q provider: %w", providerName, err)
	}
	return &Backend{provider: provider, name: providerName, model: model}, nil
}

// createProvider instantiates the underlying any-llm-go provider.
func createProvider(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, deepseek, mistral, groq", providerName)
	}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return b.name }

// Infer implements backend.Backend. Network and API failures are mapped to
// the backend error taxonomy; a cloud failure is terminal for the request.
func (b *Backend) Infer(ctx context.Context, req backend.Request) (*backend.InferenceResult, error) {
	params := b.buildParams(req)

	start := time.Now()
	resp, err := b.provider.Completion(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		return nil, backend.WrapErr(backend.SourceCloud, b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, backend.WrapErr(backend.SourceCloud, b.name,
			fmt.Errorf("empty choices in response"))
	}

	choice := resp.Choices[0]
	result := &backend.InferenceResult{
		Text:       choice.Message.ContentString(),
		Confidence: 1.0,
		Elapsed:    elapsed,
		Source:     backend.SourceCloud,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Calls = append(result.Calls, backend.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// buildParams converts a backend.Request into any-llm CompletionParams.
func (b *Backend) buildParams(req backend.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message

	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	params := anyllmlib.CompletionParams{
		Model:    b.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return params
}
