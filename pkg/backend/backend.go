// Package backend defines the Backend interface for inference tiers.
//
// A backend wraps one model runtime — the on-device llama.cpp server or a
// hosted cloud API — and exposes a uniform tool-calling interface for the
// hybrid router to invoke without coupling to any specific SDK.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation: when ctx is cancelled or its deadline expires, Infer must
// return promptly. Serialising concurrent access to a single loaded model is
// the backend's responsibility, not the router's.
package backend

import (
	"context"
	"time"
)

// Source identifies which inference tier produced a result.
type Source string

const (
	// SourceLocal marks results produced by the on-device model.
	SourceLocal Source = "local"

	// SourceCloud marks results produced by the hosted cloud model.
	SourceCloud Source = "cloud"
)

// Message is a single turn in the conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// Tool describes a function the model may call. Tools are read-only
// reference data supplied by the caller; backends never mutate them.
type Tool struct {
	// Name is the tool's unique identifier within a request.
	Name string `json:"name"`

	// Description explains what the tool does (included in model prompts).
	Description string `json:"description"`

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is a tool invocation requested by a model. Arguments is the raw
// JSON-encoded arguments string exactly as the backend produced it —
// validation and decoding happen in the routing core, never here.
type ToolCall struct {
	// Name is the tool name the model chose.
	Name string `json:"name"`

	// Arguments is the JSON-encoded arguments object.
	Arguments string `json:"arguments"`
}

// Request carries everything a backend needs to produce a response.
// A request is immutable once constructed; backends must not modify it.
type Request struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Tools is the set of tools offered to the model for this turn.
	Tools []Tool

	// SystemPrompt is an optional instruction injected before the history.
	SystemPrompt string

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64
}

// InferenceResult is one backend attempt's output.
type InferenceResult struct {
	// Calls is the ordered tool-call sequence the model produced. May be
	// empty when the model answered in free text instead.
	Calls []ToolCall

	// Text is the model's free-text answer, if any.
	Text string

	// Confidence is the backend's self-estimate of correctness in [0, 1].
	// Cloud backends always report 1.0 — a cloud result is accepted
	// unconditionally once reached.
	Confidence float64

	// Elapsed is the wall-clock time the attempt took.
	Elapsed time.Duration

	// Source tags which tier produced this result.
	Source Source
}

// Backend is the abstraction over one inference tier.
type Backend interface {
	// Infer sends req to the model and waits for the full structured result.
	// The supplied context carries the attempt deadline; implementations must
	// never block past it. Transport and API failures are returned wrapped in
	// a [*Error]; deadline expiry surfaces as an error matching [ErrTimeout].
	Infer(ctx context.Context, req Request) (*InferenceResult, error)

	// Name returns a short identifier for logs and metrics
	// (e.g. "llamacpp", "gemini").
	Name() string
}
