package llamacpp_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/llamacpp"
)

func TestNew_RequiresModel(t *testing.T) {
	t.Parallel()
	if _, err := llamacpp.New("http://127.0.0.1:8080/v1", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

// completionFixture is a llama.cpp chat completion with per-token logprobs
// and a single tool call.
const completionFixture = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "functiongemma-270m-it",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "get_stock_price", "arguments": "{\"ticker\":\"AAPL\"}"}
			}]
		},
		"logprobs": {"content": [
			{"token": "a", "logprob": -0.1},
			{"token": "b", "logprob": -0.3}
		]}
	}]
}`

func TestInfer_ParsesCallsAndConfidence(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionFixture))
	}))
	defer srv.Close()

	b, err := llamacpp.New(srv.URL, "functiongemma-270m-it")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := b.Infer(context.Background(), backend.Request{
		Messages: []backend.Message{{Role: "user", Content: "price of AAPL"}},
		Tools: []backend.Tool{{
			Name:       "get_stock_price",
			Parameters: map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	if len(res.Calls) != 1 || res.Calls[0].Name != "get_stock_price" {
		t.Fatalf("Calls = %v, want one get_stock_price call", res.Calls)
	}
	if res.Calls[0].Arguments != `{"ticker":"AAPL"}` {
		t.Errorf("Arguments = %q", res.Calls[0].Arguments)
	}
	if res.Source != backend.SourceLocal {
		t.Errorf("Source = %q, want local", res.Source)
	}

	// exp(mean(-0.1, -0.3)) = exp(-0.2), the geometric mean of the token
	// probabilities.
	want := math.Exp(-0.2)
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}

	// Logprobs must be requested, otherwise the server never reports them
	// and every attempt audits at zero confidence.
	if lp, _ := gotBody["logprobs"].(bool); !lp {
		t.Errorf("request logprobs = %v, want true", gotBody["logprobs"])
	}
}

func TestInfer_MissingLogprobsYieldsZeroConfidence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "It is sunny."}
			}]
		}`))
	}))
	defer srv.Close()

	b, err := llamacpp.New(srv.URL, "functiongemma-270m-it")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := b.Infer(context.Background(), backend.Request{
		Messages: []backend.Message{{Role: "user", Content: "weather?"}},
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 without logprobs", res.Confidence)
	}
	if res.Text != "It is sunny." {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestInfer_ServerErrorWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := llamacpp.New(srv.URL, "functiongemma-270m-it")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = b.Infer(context.Background(), backend.Request{
		Messages: []backend.Message{{Role: "user", Content: "hi"}},
	})
	var be *backend.Error
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *backend.Error", err)
	}
	if be.Source != backend.SourceLocal || be.Backend != "llamacpp" {
		t.Errorf("wrapped error = %+v", be)
	}
}
