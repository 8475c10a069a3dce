// Package mock provides a test double for the backend.Backend interface.
//
// Use Backend in unit tests to verify that the router sends correct requests
// and to feed controlled inference results without a live model runtime.
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
//
// Example:
//
//	b := &mock.Backend{
//	    Result: &backend.InferenceResult{Confidence: 0.9},
//	}
//	res, err := b.Infer(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// InferCall records a single invocation of Infer.
type InferCall struct {
	// Ctx is the context passed to Infer.
	Ctx context.Context

	// Req is the request passed to Infer.
	Req backend.Request
}

// Backend is a mock implementation of backend.Backend.
// Zero values for response fields cause Infer to return nil, nil.
// Set Err to inject errors.
type Backend struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by Infer. May be nil.
	Result *backend.InferenceResult

	// Err, if non-nil, is returned as the error from Infer.
	Err error

	// BackendName is returned by Name. Defaults to "mock".
	BackendName string

	// Block, if non-nil, makes Infer wait until the channel is closed or the
	// context is done. Used to exercise deadline handling.
	Block chan struct{}

	// --- Call records (read after test) ---

	// InferCalls records every invocation of Infer in order.
	InferCalls []InferCall
}

// Compile-time interface assertion.
var _ backend.Backend = (*Backend)(nil)

// Infer records the call and returns the configured Result/Err. When Block
// is set, it first waits for the channel to close or the context to end;
// context expiry wins and surfaces as a timeout per the backend contract.
func (b *Backend) Infer(ctx context.Context, req backend.Request) (*backend.InferenceResult, error) {
	b.mu.Lock()
	b.InferCalls = append(b.InferCalls, InferCall{Ctx: ctx, Req: req})
	block := b.Block
	result := b.Result
	err := b.Err
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, backend.WrapErr(resultSource(result), b.Name(), ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	cp := *result
	return &cp, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	if b.BackendName == "" {
		return "mock"
	}
	return b.BackendName
}

// Calls returns the number of recorded Infer invocations. Safe to call
// concurrently with Infer.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.InferCalls)
}

func resultSource(r *backend.InferenceResult) backend.Source {
	if r != nil {
		return r.Source
	}
	return backend.SourceLocal
}
