package router

import (
	"encoding/json"
	"fmt"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Call is one validated tool invocation: the name resolved against the
// request's tool schema and the arguments decoded into a JSON object.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// validateRequest rejects malformed requests before any backend is invoked.
func validateRequest(req Request) error {
	if len(req.Messages) == 0 {
		return &backend.InvalidRequestError{Reason: "messages must not be empty"}
	}
	seen := make(map[string]struct{}, len(req.Tools))
	for i, t := range req.Tools {
		if t.Name == "" {
			return &backend.InvalidRequestError{Reason: fmt.Sprintf("tools[%d].name must not be empty", i)}
		}
		if _, dup := seen[t.Name]; dup {
			return &backend.InvalidRequestError{Reason: fmt.Sprintf("tools[%d].name %q is a duplicate", i, t.Name)}
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// effectiveCalls validates a model's raw tool-call sequence against the
// request's tool schema. The whole sequence is parsed strictly: every call
// must name a known tool and carry arguments that decode to a JSON object
// (empty arguments count as an empty object). One bad call invalidates the
// entire sequence — there is no best-effort repair, because a partially
// executed multi-step action is worse than a clean fall-forward.
//
// Returns the decoded calls and true when the sequence is effective:
// non-empty and fully valid.
func effectiveCalls(raw []backend.ToolCall, tools []backend.Tool) ([]Call, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	known := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		known[t.Name] = struct{}{}
	}

	calls := make([]Call, 0, len(raw))
	for _, rc := range raw {
		if _, ok := known[rc.Name]; !ok {
			return nil, false
		}
		args := map[string]any{}
		if rc.Arguments != "" {
			if err := json.Unmarshal([]byte(rc.Arguments), &args); err != nil {
				return nil, false
			}
		}
		calls = append(calls, Call{Name: rc.Name, Arguments: args})
	}
	return calls, true
}
