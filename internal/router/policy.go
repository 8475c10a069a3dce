package router

import (
	"strings"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/config"
)

// Tier maps a maximum tool count to an acceptance threshold.
type Tier struct {
	MaxTools  int
	Threshold float64
}

// Policy holds every tunable routing parameter. A Policy is immutable once
// built; the router swaps the whole value atomically on config reload, so
// each request sees exactly one coherent parameter set.
type Policy struct {
	// Complexity classifier.
	LengthThreshold int
	CompoundMarkers []string
	FanoutThreshold int

	// Domain classifier. Keywords are stored lowercased.
	CognitionKeywords []string
	ActionKeywords    []string

	// Confidence policy. Tiers are sorted by ascending MaxTools.
	Tiers            []Tier
	DefaultThreshold float64
	LeniencyEnabled  bool
	LeniencyMargin   float64

	// Attempt deadlines.
	LocalTimeout time.Duration
	CloudTimeout time.Duration

	// Latency accounting for fall-forward requests.
	LatencyAccounting config.LatencyAccounting
}

// PolicyFromConfig builds an immutable Policy from a validated routing
// config. Keyword lists are copied and lowercased so later config mutations
// cannot leak into in-flight requests.
func PolicyFromConfig(rc config.RoutingConfig) Policy {
	p := Policy{
		LengthThreshold:   rc.LengthThreshold,
		CompoundMarkers:   lowerAll(rc.CompoundMarkers),
		FanoutThreshold:   rc.FanoutThreshold,
		CognitionKeywords: lowerAll(rc.CognitionKeywords),
		ActionKeywords:    lowerAll(rc.ActionKeywords),
		DefaultThreshold:  rc.DefaultThreshold,
		LeniencyEnabled:   rc.Leniency.Enabled,
		LeniencyMargin:    rc.Leniency.Margin,
		LocalTimeout:      rc.LocalTimeout.Std(),
		CloudTimeout:      rc.CloudTimeout.Std(),
		LatencyAccounting: rc.LatencyAccounting,
	}
	for _, t := range rc.ConfidenceTiers {
		p.Tiers = append(p.Tiers, Tier{MaxTools: t.MaxTools, Threshold: t.Threshold})
	}
	if p.LatencyAccounting == "" {
		p.LatencyAccounting = config.AccountingSum
	}
	return p
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
