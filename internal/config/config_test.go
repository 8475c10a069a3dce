package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/deepfocus-ai/deepfocus/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestDefault_Routing(t *testing.T) {
	t.Parallel()
	r := config.Default().Routing

	if r.LengthThreshold != 35 {
		t.Errorf("length_threshold = %d, want 35", r.LengthThreshold)
	}
	if r.FanoutThreshold != 1 {
		t.Errorf("fanout_threshold = %d, want 1", r.FanoutThreshold)
	}
	if r.DefaultThreshold != 0.85 {
		t.Errorf("default_threshold = %v, want 0.85", r.DefaultThreshold)
	}
	if len(r.ConfidenceTiers) != 2 {
		t.Fatalf("confidence tiers = %d, want 2", len(r.ConfidenceTiers))
	}
	if r.ConfidenceTiers[0].Threshold != 0.65 || r.ConfidenceTiers[1].Threshold != 0.80 {
		t.Errorf("tier thresholds = %v, want 0.65 and 0.80", r.ConfidenceTiers)
	}
	if r.Leniency.Enabled {
		t.Error("leniency should be disabled by default")
	}
	if r.LatencyAccounting != config.AccountingSum {
		t.Errorf("latency_accounting = %q, want sum", r.LatencyAccounting)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("unknown level should be invalid")
	}
}

func TestLatencyAccounting_IsValid(t *testing.T) {
	t.Parallel()
	if !config.AccountingSum.IsValid() || !config.AccountingCloudOnly.IsValid() {
		t.Error("documented accounting modes should be valid")
	}
	if config.LatencyAccounting("average").IsValid() {
		t.Error("unknown accounting mode should be invalid")
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
routing:
  local_timeout: 250ms
  cloud_timeout: 1m30s
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Routing.LocalTimeout.Std(); got != 250*time.Millisecond {
		t.Errorf("local_timeout = %v, want 250ms", got)
	}
	if got := cfg.Routing.CloudTimeout.Std(); got != 90*time.Second {
		t.Errorf("cloud_timeout = %v, want 1m30s", got)
	}
}

func TestDuration_InvalidString(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
routing:
  local_timeout: soon
`))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}
