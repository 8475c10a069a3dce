// Package llamacpp provides the on-device inference backend, speaking the
// OpenAI-compatible API of a local llama.cpp server.
//
// llama.cpp (https://github.com/ggml-org/llama.cpp) serves small
// function-calling models such as FunctionGemma fully on-device. This package
// uses the official OpenAI Go SDK pointed at the local server's /v1 endpoint,
// requests per-token logprobs, and derives the confidence score the hybrid
// router audits from them: confidence is the geometric mean of the sampled
// token probabilities, exp(mean(logprob)).
//
// Example:
//
//	b, err := llamacpp.New("http://127.0.0.1:8080/v1", "functiongemma-270m-it")
//	res, err := b.Infer(ctx, req)
package llamacpp

import (
	"context"
	"fmt"
	"math"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// DefaultBaseURL is the default address of a locally running llama.cpp
// server's OpenAI-compatible endpoint.
const DefaultBaseURL = "http://127.0.0.1:8080/v1"

// defaultSystemPrompt mirrors the instruction the on-device runtime is tuned
// for; callers may override it per request.
const defaultSystemPrompt = "You are a helpful assistant that can use tools."

// Compile-time interface assertion.
var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend against a llama.cpp server.
// It is safe for concurrent use; the server itself queues concurrent
// completions against the single loaded model.
type Backend struct {
	client oai.Client
	model  string
}

// config holds optional configuration collected from functional options.
type config struct {
	apiKey  string
	timeout time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithAPIKey sets a bearer token. llama.cpp only checks it when started with
// --api-key; the default is no authentication.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithTimeout sets a per-request HTTP timeout on the underlying client, in
// addition to whatever deadline the caller's context carries.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a llama.cpp Backend. baseURL may be empty to use
// [DefaultBaseURL]; model must name a model the server has loaded.
func New(baseURL, model string, opts ...Option) (*Backend, error) {
	if model == "" {
		return nil, fmt.Errorf("llamacpp: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.apiKey),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}

	return &Backend{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return "llamacpp" }

// Infer implements backend.Backend. The attempt deadline is carried by ctx;
// on expiry the error matches backend.ErrTimeout and the router falls
// forward to the cloud tier.
func (b *Backend) Infer(ctx context.Context, req backend.Request) (*backend.InferenceResult, error) {
	params := b.buildParams(req)

	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		return nil, backend.WrapErr(backend.SourceLocal, b.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, backend.WrapErr(backend.SourceLocal, b.Name(),
			fmt.Errorf("empty choices in response"))
	}

	choice := resp.Choices[0]
	result := &backend.InferenceResult{
		Text:       choice.Message.Content,
		Confidence: confidenceFromLogprobs(choice.Logprobs.Content),
		Elapsed:    elapsed,
		Source:     backend.SourceLocal,
	}
	for _, tc := range choice.Message.ToolCalls {
		result.Calls = append(result.Calls, backend.ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// buildParams converts a backend.Request into OpenAI SDK params with
// logprobs enabled so confidence can be derived.
func (b *Backend) buildParams(req backend.Request) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion

	system := req.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	messages = append(messages, oai.SystemMessage(system))

	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, oai.AssistantMessage(m.Content))
		case "system":
			messages = append(messages, oai.SystemMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(b.model),
		Messages: messages,
		Logprobs: param.NewOpt(true),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return params
}

// confidenceFromLogprobs derives the self-confidence score from per-token
// logprobs: exp of the mean logprob, i.e. the geometric mean of the sampled
// token probabilities. An empty logprob list (server started without
// logprob support) yields 0 — the router then audits the attempt as
// unconfident rather than guessing.
func confidenceFromLogprobs(tokens []oai.ChatCompletionTokenLogprob) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.Logprob
	}
	return math.Exp(sum / float64(len(tokens)))
}
