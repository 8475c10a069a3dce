package router

import (
	"strings"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
)

// requestText returns the lowercased text of the latest user turn, the input
// both classifiers match against. Routing is a per-turn decision: earlier
// turns never accumulate into the length signal, and assistant or system
// messages never influence routing.
func requestText(messages []backend.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.ToLower(messages[i].Content)
		}
	}
	return ""
}

// isComplex reports whether the request bypasses the local tier on syntactic
// grounds: too many words, or a compound multi-step instruction fanning out
// over more tools than the local model can map reliably.
func (p *Policy) isComplex(text string, toolCount int) (bool, Reason) {
	if wordCount(text) > p.LengthThreshold {
		return true, ReasonLengthExceeded
	}
	if toolCount > p.FanoutThreshold && containsAny(text, p.CompoundMarkers) {
		return true, ReasonCompoundFanout
	}
	return false, ""
}

// classifyDomain decides where the request semantically belongs. Cognition
// keywords route to the cloud; action keywords (when configured) prefer the
// local tier; otherwise the default is local-first. Complexity takes
// precedence over domain, so callers must check isComplex first.
func (p *Policy) classifyDomain(text string) (Path, Reason) {
	if containsAny(text, p.CognitionKeywords) {
		return PathCloudDirect, ReasonCognitionKeyword
	}
	if containsAny(text, p.ActionKeywords) {
		return PathLocalFirst, ReasonActionKeyword
	}
	return PathLocalFirst, ReasonDefaultLocal
}

// decide runs the full pre-inference pipeline. forceLocal skips both
// classifiers; it never skips the confidence audit that follows the attempt.
func (p *Policy) decide(text string, toolCount int, forceLocal bool) Decision {
	if forceLocal {
		return Decision{Path: PathLocalFirst, Reason: ReasonForceLocal}
	}
	if complex, reason := p.isComplex(text, toolCount); complex {
		return Decision{Path: PathCloudDirect, Reason: reason}
	}
	path, reason := p.classifyDomain(text)
	return Decision{Path: path, Reason: reason}
}

// wordCount counts whitespace-separated tokens.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

// containsAny reports whether any needle occurs as a substring of text.
// Needles are expected to be lowercased already; markers like " and " keep
// their surrounding spaces so they match word boundaries.
func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
