// Package router implements the hybrid routing decision engine: it decides,
// per request, whether to attempt the on-device model first or to go straight
// to the cloud, audits local results against a confidence policy, and falls
// forward to the cloud when the local tier cannot be trusted.
//
// The engine is deterministic: the same request text, tool count, and policy
// always produce the same routing decision. Classification never inspects
// model output — only the request.
package router

// Path is the route chosen before any backend is invoked.
type Path string

const (
	// PathCloudDirect skips the local tier entirely.
	PathCloudDirect Path = "cloud_direct"

	// PathLocalFirst attempts the local tier and falls forward to the cloud
	// when the attempt is rejected or fails.
	PathLocalFirst Path = "local_then_maybe_cloud"
)

// Reason explains why a path was chosen.
type Reason string

const (
	// ReasonForceLocal means the caller pinned the request to the local tier.
	// Force-local skips the classifiers but never the confidence audit.
	ReasonForceLocal Reason = "force_local"

	// ReasonLengthExceeded means the request's word count exceeded the
	// length threshold.
	ReasonLengthExceeded Reason = "length_exceeded"

	// ReasonCompoundFanout means a compound marker was present and the tool
	// count exceeded the fan-out threshold.
	ReasonCompoundFanout Reason = "compound_fanout"

	// ReasonCognitionKeyword means the text matched a cognition keyword that
	// marks open-ended work beyond the local model.
	ReasonCognitionKeyword Reason = "cognition_keyword"

	// ReasonActionKeyword means the text matched an action keyword marking a
	// deterministic device action suited to the local tier.
	ReasonActionKeyword Reason = "action_keyword"

	// ReasonDefaultLocal means no bypass fired; local is attempted first.
	ReasonDefaultLocal Reason = "default_local"
)

// Decision is the pre-inference routing verdict. It is recorded on every
// response so operators can audit why a request went where it did.
type Decision struct {
	Path   Path   `json:"path"`
	Reason Reason `json:"reason"`
}

// Outcome classifies what happened to a local attempt during the audit.
type Outcome string

const (
	// OutcomeAccepted means the local result met the confidence threshold
	// with an effective call set.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeAcceptedLenient means the result fell below the threshold but
	// within the configured leniency margin.
	OutcomeAcceptedLenient Outcome = "accepted_lenient"

	// OutcomeBelowThreshold means the confidence audit rejected the result.
	OutcomeBelowThreshold Outcome = "below_threshold"

	// OutcomeNoEffectiveCalls means the result carried no valid tool calls:
	// empty, unknown tool names, or unparseable arguments. Such results are
	// never accepted regardless of confidence.
	OutcomeNoEffectiveCalls Outcome = "no_effective_calls"

	// OutcomeTimeout means the local attempt exceeded its deadline.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeBackendError means the local backend failed outright.
	OutcomeBackendError Outcome = "backend_error"
)

// accepted reports whether the outcome terminates the request at the local
// tier.
func (o Outcome) accepted() bool {
	return o == OutcomeAccepted || o == OutcomeAcceptedLenient
}
