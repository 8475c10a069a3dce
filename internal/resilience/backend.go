package resilience

import (
	"context"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Compile-time interface assertion.
var _ backend.Backend = (*Backend)(nil)

// Backend wraps an inference backend with a [CircuitBreaker]. When the
// breaker is open, Infer returns [ErrCircuitOpen] immediately without
// touching the wrapped backend.
type Backend struct {
	inner backend.Backend
	cb    *CircuitBreaker
}

// WrapBackend protects b with a circuit breaker. cfg.Name defaults to the
// backend's name.
func WrapBackend(b backend.Backend, cfg CircuitBreakerConfig) *Backend {
	if cfg.Name == "" {
		cfg.Name = b.Name()
	}
	return &Backend{inner: b, cb: NewCircuitBreaker(cfg)}
}

// Infer implements backend.Backend.
func (b *Backend) Infer(ctx context.Context, req backend.Request) (*backend.InferenceResult, error) {
	var result *backend.InferenceResult
	err := b.cb.Execute(func() error {
		var err error
		result, err = b.inner.Infer(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return b.inner.Name() }

// BreakerState exposes the wrapped breaker's state for readiness checks.
func (b *Backend) BreakerState() State { return b.cb.State() }
