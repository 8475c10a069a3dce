package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/resilience"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/mock"
)

type fakeStore struct{ err error }

func (s fakeStore) Ping(context.Context) error { return s.err }

func TestStoreCheck(t *testing.T) {
	c := StoreCheck("library_store", fakeStore{})
	if c.Name != "library_store" {
		t.Errorf("Name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("healthy store reported error: %v", err)
	}

	c = StoreCheck("library_store", fakeStore{err: errors.New("connection refused")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("failing store reported healthy")
	}
}

func TestBreakerCheck(t *testing.T) {
	inner := &mock.Backend{BackendName: "cloud", Err: errors.New("boom")}
	wrapped := resilience.WrapBackend(inner, resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	c := BreakerCheck("cloud_breaker", wrapped)

	if err := c.Check(context.Background()); err != nil {
		t.Errorf("closed breaker reported error: %v", err)
	}

	// Trip the breaker.
	if _, err := wrapped.Infer(context.Background(), backend.Request{}); err == nil {
		t.Fatal("expected backend failure")
	}
	if err := c.Check(context.Background()); err == nil {
		t.Error("open breaker reported healthy")
	}
}
