package router

import "testing"

func TestRequiredThreshold_Tiers(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	cases := []struct {
		tools int
		want  float64
	}{
		{0, 0.65},
		{1, 0.65},
		{2, 0.80},
		{3, 0.85},
		{10, 0.85},
	}
	for _, tc := range cases {
		if got := p.RequiredThreshold(tc.tools); got != tc.want {
			t.Errorf("RequiredThreshold(%d) = %v, want %v", tc.tools, got, tc.want)
		}
	}
}

func TestRequiredThreshold_Monotonic(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	prev := 0.0
	for tools := 0; tools <= 8; tools++ {
		cur := p.RequiredThreshold(tools)
		if cur < prev {
			t.Fatalf("threshold decreased from %v to %v at %d tools", prev, cur, tools)
		}
		prev = cur
	}
}

func TestAudit_BoundaryInclusive(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	// Exactly at the threshold is accepted.
	if got := p.audit(0.65, 1, true); got != OutcomeAccepted {
		t.Errorf("audit(0.65, 1 tool) = %q, want accepted", got)
	}
	// Just below is rejected with leniency off.
	if got := p.audit(0.6499, 1, true); got != OutcomeBelowThreshold {
		t.Errorf("audit(0.6499, 1 tool) = %q, want below_threshold", got)
	}
}

func TestAudit_Leniency(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	p.LeniencyEnabled = true
	p.LeniencyMargin = 0.05

	// Within the margin below the threshold: accepted leniently.
	if got := p.audit(0.60, 1, true); got != OutcomeAcceptedLenient {
		t.Errorf("audit(0.60) = %q, want accepted_lenient", got)
	}
	// Below the margin: still rejected.
	if got := p.audit(0.59, 1, true); got != OutcomeBelowThreshold {
		t.Errorf("audit(0.59) = %q, want below_threshold", got)
	}
	// At or above the plain threshold: plain acceptance, not lenient.
	if got := p.audit(0.70, 1, true); got != OutcomeAccepted {
		t.Errorf("audit(0.70) = %q, want accepted", got)
	}
}

func TestAudit_LeniencyDisabled(t *testing.T) {
	t.Parallel()
	p := testPolicy()

	// requiredThreshold - 0.05 with leniency off is rejected.
	if got := p.audit(0.60, 1, true); got != OutcomeBelowThreshold {
		t.Errorf("audit(0.60, leniency off) = %q, want below_threshold", got)
	}
}

func TestAudit_IneffectiveNeverAccepted(t *testing.T) {
	t.Parallel()
	p := testPolicy()
	p.LeniencyEnabled = true
	p.LeniencyMargin = 0.08

	// Even a perfectly confident result is rejected without effective calls.
	if got := p.audit(1.0, 1, false); got != OutcomeNoEffectiveCalls {
		t.Errorf("audit(1.0, ineffective) = %q, want no_effective_calls", got)
	}
}
