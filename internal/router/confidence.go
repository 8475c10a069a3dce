package router

// RequiredThreshold returns the acceptance threshold for the given tool
// count. Tiers are boundary-inclusive: a tool count equal to a tier's
// MaxTools uses that tier's threshold. Counts beyond the last tier fall back
// to DefaultThreshold, so the threshold never decreases as the toolset grows.
func (p *Policy) RequiredThreshold(toolCount int) float64 {
	for _, t := range p.Tiers {
		if toolCount <= t.MaxTools {
			return t.Threshold
		}
	}
	return p.DefaultThreshold
}

// audit applies the confidence policy to a completed local attempt.
// effective reports whether the attempt produced a valid, non-empty call set;
// an ineffective result is never accepted no matter how confident the model
// claims to be.
func (p *Policy) audit(confidence float64, toolCount int, effective bool) Outcome {
	if !effective {
		return OutcomeNoEffectiveCalls
	}
	threshold := p.RequiredThreshold(toolCount)
	if confidence >= threshold {
		return OutcomeAccepted
	}
	if p.LeniencyEnabled && confidence >= threshold-p.LeniencyMargin {
		return OutcomeAcceptedLenient
	}
	return OutcomeBelowThreshold
}
