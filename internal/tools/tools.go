// Package tools defines the shared [Tool] type and the [Registry] the HTTP
// server executes accepted tool calls against. Each tool carries its
// LLM-facing schema ([backend.Tool]) together with the handler invoked when
// the model calls it.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// ErrUnknownTool is returned by [Registry.Execute] when no tool with the
// requested name is registered.
var ErrUnknownTool = fmt.Errorf("unknown tool")

// Result is a rendered response block produced by a tool handler.
type Result struct {
	// Type identifies the block kind. Built-in tools produce "text".
	Type string `json:"type"`

	// Data is the block payload.
	Data string `json:"data"`

	// FilesTouched lists library files the handler drew on, if any.
	FilesTouched []string `json:"files_touched,omitempty"`
}

// Handler executes a tool with already-validated arguments. Implementations
// must be safe for concurrent use and must respect context cancellation.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool is a built-in tool ready for registration.
type Tool struct {
	// Definition is the tool's LLM-facing schema including name, description,
	// and JSON Schema parameter specification.
	Definition backend.Tool

	// Handler is invoked when the model calls the tool.
	Handler Handler
}

// Registry holds the tools offered to the model for a request. It is safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a Registry pre-populated with the given tools.
// Duplicate names panic: the built-in tool set is assembled at startup and a
// collision is a programming error.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a tool. It returns an error when a tool with the same name
// is already registered.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tools: register: empty tool name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Definition.Name]; ok {
		return fmt.Errorf("tools: register: duplicate tool %q", t.Definition.Name)
	}
	r.tools[t.Definition.Name] = t
	r.order = append(r.order, t.Definition.Name)
	return nil
}

// Definitions returns the schemas of all registered tools in registration
// order, ready to offer to a backend.
func (r *Registry) Definitions() []backend.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]backend.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Execute runs the named tool. An unregistered name returns [ErrUnknownTool].
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.Handler(ctx, args)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// numberArg extracts a required numeric argument. JSON numbers decode as
// float64; integers that arrived as strings are not accepted.
func numberArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
}

// intArg extracts a required integer argument, accepting whole floats.
func intArg(args map[string]any, key string) (int, error) {
	n, err := numberArg(args, key)
	if err != nil {
		return 0, err
	}
	i := int(n)
	if float64(i) != n {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", key, n)
	}
	return i, nil
}
