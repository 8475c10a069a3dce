package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/mock"
)

func TestWrapBackend_PassesThrough(t *testing.T) {
	inner := &mock.Backend{
		BackendName: "cloud-test",
		Result:      &backend.InferenceResult{Text: "ok", Confidence: 1.0, Source: backend.SourceCloud},
	}
	wrapped := WrapBackend(inner, CircuitBreakerConfig{})

	if wrapped.Name() != "cloud-test" {
		t.Errorf("Name() = %q, want cloud-test", wrapped.Name())
	}

	res, err := wrapped.Infer(context.Background(), backend.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("Text = %q, want ok", res.Text)
	}
	if inner.Calls() != 1 {
		t.Errorf("inner received %d calls, want 1", inner.Calls())
	}
}

func TestWrapBackend_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &mock.Backend{
		BackendName: "cloud-test",
		Err:         errTest,
	}
	wrapped := WrapBackend(inner, CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	for i := 0; i < 2; i++ {
		if _, err := wrapped.Infer(context.Background(), backend.Request{}); !errors.Is(err, errTest) {
			t.Fatalf("call %d: err = %v, want errTest", i, err)
		}
	}
	if wrapped.BreakerState() != StateOpen {
		t.Fatalf("breaker state = %v, want open", wrapped.BreakerState())
	}

	// Open breaker rejects without reaching the backend.
	_, err := wrapped.Infer(context.Background(), backend.Request{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := inner.Calls(); got != 2 {
		t.Errorf("inner received %d calls, want 2 (open breaker must not forward)", got)
	}
}

func TestWrapBackend_RecoversAfterReset(t *testing.T) {
	inner := &mock.Backend{
		BackendName: "cloud-test",
		Err:         errTest,
	}
	wrapped := WrapBackend(inner, CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 5 * time.Millisecond,
		HalfOpenMax:  1,
	})

	if _, err := wrapped.Infer(context.Background(), backend.Request{}); err == nil {
		t.Fatal("expected failure")
	}
	time.Sleep(10 * time.Millisecond)

	inner.Err = nil
	inner.Result = &backend.InferenceResult{Text: "recovered", Source: backend.SourceCloud}

	res, err := wrapped.Infer(context.Background(), backend.Request{})
	if err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if res.Text != "recovered" {
		t.Errorf("Text = %q, want recovered", res.Text)
	}
	if wrapped.BreakerState() != StateClosed {
		t.Errorf("breaker state = %v, want closed after successful probe", wrapped.BreakerState())
	}
}
