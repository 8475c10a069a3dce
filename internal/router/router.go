package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/config"
	"github.com/deepfocus-ai/deepfocus/internal/observe"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// Request is one routing-engine invocation. The router never mutates it and
// never retains it past the call; conversation history is owned by the
// caller.
type Request struct {
	// Messages is the conversation so far. At least one message is required.
	Messages []backend.Message

	// Tools is the tool schema offered for this turn. Tool names must be
	// unique and non-empty.
	Tools []backend.Tool

	// ForceLocal pins the request to the local tier: classifiers are
	// skipped, but the confidence audit still applies and the request still
	// falls forward to the cloud on rejection.
	ForceLocal bool

	// SystemPrompt optionally overrides the backend's default instruction.
	SystemPrompt string

	// MaxTokens and Temperature pass through to the backends. Zero means
	// provider default.
	MaxTokens   int
	Temperature float64
}

// Response is the routing engine's normalized output: exactly one backend's
// result, plus the audit trail of how it was reached.
type Response struct {
	// Text is the winning backend's free-text answer, if any.
	Text string

	// Calls is the validated tool-call sequence, empty for text answers.
	Calls []Call

	// Source is the tier that produced the final response.
	Source backend.Source

	// Confidence is the winning attempt's confidence. Cloud results always
	// report 1.0.
	Confidence float64

	// Latency is the reported end-to-end latency, computed per the policy's
	// accounting mode.
	Latency time.Duration

	// Decision is the pre-inference routing verdict.
	Decision Decision

	// LocalOutcome is the local attempt's audit outcome, or empty when no
	// local attempt was made. It is populated even when the request falls
	// forward, so rejected attempts remain visible.
	LocalOutcome Outcome

	// LocalConfidence and LocalLatency audit the local attempt regardless of
	// acceptance. Zero when no local attempt was made.
	LocalConfidence float64
	LocalLatency    time.Duration
}

// Router is the hybrid routing engine. It is safe for concurrent use; the
// policy is swapped atomically on config reload without affecting in-flight
// requests.
type Router struct {
	local   backend.Backend
	cloud   backend.Backend
	policy  atomic.Pointer[Policy]
	metrics *observe.Metrics
}

// Option is a functional option for Router.
type Option func(*Router)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New constructs a Router over the two inference tiers.
func New(local, cloud backend.Backend, p Policy, opts ...Option) *Router {
	r := &Router{local: local, cloud: cloud}
	r.policy.Store(&p)
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Policy returns the currently active policy.
func (r *Router) Policy() Policy {
	return *r.policy.Load()
}

// UpdatePolicy atomically swaps the routing policy. In-flight requests keep
// the policy they started with.
func (r *Router) UpdatePolicy(p Policy) {
	r.policy.Store(&p)
}

// Chat routes one request through the hybrid engine and returns exactly one
// backend's result.
//
// A local rejection is not an error: the request falls forward to the cloud
// and the rejected attempt stays visible in the response's Local* fields.
// When the cloud tier also fails, the returned error matches
// [backend.ErrUnavailable] and the non-nil Response still carries the audit
// trail.
func (r *Router) Chat(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	p := r.policy.Load()

	r.metrics.ActiveRequests.Add(ctx, 1)
	defer r.metrics.ActiveRequests.Add(ctx, -1)

	ctx, span := observe.StartSpan(ctx, "router.chat")
	defer span.End()
	log := observe.Logger(ctx)

	text := requestText(req.Messages)
	dec := p.decide(text, len(req.Tools), req.ForceLocal)
	r.metrics.RecordRouteDecision(ctx, string(dec.Path), string(dec.Reason))
	log.Debug("routing decision",
		"path", dec.Path,
		"reason", dec.Reason,
		"tools", len(req.Tools),
		"words", wordCount(text),
	)

	resp := &Response{Decision: dec}

	if dec.Path == PathLocalFirst {
		result, outcome, elapsed := r.attemptLocal(ctx, p, req)
		resp.LocalOutcome = outcome
		resp.LocalLatency = elapsed
		if result != nil {
			resp.LocalConfidence = result.Confidence
		}
		r.metrics.RecordLocalOutcome(ctx, string(outcome))

		if outcome.accepted() {
			calls, _ := effectiveCalls(result.Calls, req.Tools)
			resp.Text = result.Text
			resp.Calls = calls
			resp.Source = backend.SourceLocal
			resp.Confidence = result.Confidence
			resp.Latency = elapsed
			r.metrics.RecordResponse(ctx, string(backend.SourceLocal))
			log.Info("request served on-device",
				"outcome", outcome,
				"confidence", result.Confidence,
				"latency", elapsed,
			)
			return resp, nil
		}
		log.Info("local attempt rejected, falling forward to cloud",
			"outcome", outcome,
			"confidence", resp.LocalConfidence,
			"latency", elapsed,
		)
	}

	result, err := r.attemptCloud(ctx, p, req)
	if err != nil {
		// Both tiers are exhausted. The response still carries the local
		// audit trail for metrics.
		log.Error("cloud attempt failed", "err", err)
		return resp, fmt.Errorf("%w: %w", backend.ErrUnavailable, err)
	}

	resp.Text = result.Text
	resp.Source = backend.SourceCloud
	resp.Confidence = result.Confidence
	if calls, ok := effectiveCalls(result.Calls, req.Tools); ok {
		resp.Calls = calls
	}
	resp.Latency = result.Elapsed
	if p.LatencyAccounting == config.AccountingSum {
		resp.Latency += resp.LocalLatency
	}
	r.metrics.RecordResponse(ctx, string(backend.SourceCloud))
	log.Info("request served by cloud",
		"reason", dec.Reason,
		"local_outcome", resp.LocalOutcome,
		"latency", resp.Latency,
	)
	return resp, nil
}

// attemptLocal runs one bounded local inference attempt and audits the
// result. The attempt is never retried; the returned elapsed time covers the
// attempt even when it failed, so rejected latency stays accountable.
func (r *Router) attemptLocal(ctx context.Context, p *Policy, req Request) (*backend.InferenceResult, Outcome, time.Duration) {
	lctx, cancel := context.WithTimeout(ctx, p.LocalTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.local.Infer(lctx, backendRequest(req))
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeBackendError
		kind := "error"
		if errors.Is(err, backend.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
			kind = "timeout"
		}
		r.metrics.RecordBackendAttempt(ctx, string(backend.SourceLocal), elapsed, "error")
		r.metrics.RecordBackendError(ctx, string(backend.SourceLocal), kind)
		return nil, outcome, elapsed
	}

	r.metrics.RecordBackendAttempt(ctx, string(backend.SourceLocal), elapsed, "ok")
	_, effective := effectiveCalls(result.Calls, req.Tools)
	return result, p.audit(result.Confidence, len(req.Tools), effective), elapsed
}

// attemptCloud runs one bounded cloud inference attempt. Cloud failure is
// terminal for the request.
func (r *Router) attemptCloud(ctx context.Context, p *Policy, req Request) (*backend.InferenceResult, error) {
	cctx, cancel := context.WithTimeout(ctx, p.CloudTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.cloud.Infer(cctx, backendRequest(req))
	elapsed := time.Since(start)

	if err != nil {
		kind := "error"
		if errors.Is(err, backend.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		r.metrics.RecordBackendAttempt(ctx, string(backend.SourceCloud), elapsed, "error")
		r.metrics.RecordBackendError(ctx, string(backend.SourceCloud), kind)
		return nil, err
	}

	r.metrics.RecordBackendAttempt(ctx, string(backend.SourceCloud), elapsed, "ok")
	return result, nil
}

// backendRequest converts a router Request into the backend wire form.
func backendRequest(req Request) backend.Request {
	return backend.Request{
		Messages:     req.Messages,
		Tools:        req.Tools,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}
}
