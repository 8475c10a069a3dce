package config_test

import (
	"strings"
	"testing"

	"github.com/deepfocus-ai/deepfocus/internal/config"
)

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":9090"
  log_level: debug
routing:
  length_threshold: 40
  fanout_threshold: 2
  cognition_keywords: ["summarize", "explain", "compare"]
  action_keywords: ["turn on", "enable", "open"]
  confidence_tiers:
    - max_tools: 1
      threshold: 0.70
    - max_tools: 3
      threshold: 0.78
  default_threshold: 0.85
  leniency:
    enabled: true
    margin: 0.05
backends:
  cloud:
    provider: anthropic
    model: claude-sonnet-4
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Routing.LengthThreshold != 40 {
		t.Errorf("length_threshold = %d, want 40", cfg.Routing.LengthThreshold)
	}
	if len(cfg.Routing.ActionKeywords) != 3 {
		t.Errorf("action_keywords = %v, want 3 entries", cfg.Routing.ActionKeywords)
	}
	if !cfg.Routing.Leniency.Enabled || cfg.Routing.Leniency.Margin != 0.05 {
		t.Errorf("leniency = %+v, want enabled with margin 0.05", cfg.Routing.Leniency)
	}
	if cfg.Backends.Cloud.Provider != "anthropic" {
		t.Errorf("cloud provider = %q, want anthropic", cfg.Backends.Cloud.Provider)
	}
	// Untouched fields keep their defaults.
	if cfg.Backends.Local.Provider != "llamacpp" {
		t.Errorf("local provider = %q, want default llamacpp", cfg.Backends.Local.Provider)
	}
	if len(cfg.Routing.CompoundMarkers) == 0 {
		t.Error("compound_markers should keep defaults when omitted")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
routing:
  lenght_threshold: 40
`))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.Routing.LengthThreshold != 35 {
		t.Errorf("length_threshold = %d, want default 35", cfg.Routing.LengthThreshold)
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"bad log level", `
server:
  log_level: loud
`},
		{"zero length threshold", `
routing:
  length_threshold: 0
`},
		{"negative fanout", `
routing:
  fanout_threshold: -1
`},
		{"default threshold above one", `
routing:
  default_threshold: 1.5
`},
		{"tiers not increasing in tool count", `
routing:
  confidence_tiers:
    - max_tools: 2
      threshold: 0.65
    - max_tools: 2
      threshold: 0.80
`},
		{"tier thresholds decreasing", `
routing:
  confidence_tiers:
    - max_tools: 1
      threshold: 0.80
    - max_tools: 2
      threshold: 0.65
`},
		{"default below last tier", `
routing:
  confidence_tiers:
    - max_tools: 1
      threshold: 0.90
  default_threshold: 0.85
`},
		{"leniency margin too wide", `
routing:
  leniency:
    enabled: true
    margin: 0.5
`},
		{"missing local model", `
backends:
  local:
    provider: llamacpp
    model: ""
`},
		{"bad accounting mode", `
routing:
  latency_accounting: average
`},
		{"tls without key file", `
server:
  tls:
    cert_file: /etc/deepfocus/tls.crt
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFromReader(strings.NewReader(tc.yaml)); err == nil {
				t.Fatalf("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  log_level: loud
routing:
  length_threshold: -5
  default_threshold: 2.0
`))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "length_threshold", "default_threshold"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error missing %q: %v", want, msg)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/deepfocus.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
