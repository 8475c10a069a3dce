package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per tier.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"local":      {"llamacpp"},
	"cloud":      {"openai", "anthropic", "gemini", "deepseek", "mistral", "groq"},
	"embeddings": {"ollama"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Decoding starts from [Default], so omitted fields keep their documented
// defaults. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Routing
	r := &cfg.Routing
	if r.LengthThreshold <= 0 {
		errs = append(errs, fmt.Errorf("routing.length_threshold %d must be positive", r.LengthThreshold))
	}
	if r.FanoutThreshold < 0 {
		errs = append(errs, fmt.Errorf("routing.fanout_threshold %d must not be negative", r.FanoutThreshold))
	}
	if r.DefaultThreshold <= 0 || r.DefaultThreshold > 1 {
		errs = append(errs, fmt.Errorf("routing.default_threshold %.2f is out of range (0, 1]", r.DefaultThreshold))
	}

	// Confidence tiers must be strictly increasing in tool count and
	// non-decreasing in threshold, and must never exceed the default
	// threshold that covers everything beyond the last tier.
	prevTools := 0
	prevThreshold := 0.0
	for i, tier := range r.ConfidenceTiers {
		prefix := fmt.Sprintf("routing.confidence_tiers[%d]", i)
		if tier.MaxTools < 1 {
			errs = append(errs, fmt.Errorf("%s.max_tools %d must be at least 1", prefix, tier.MaxTools))
		}
		if tier.MaxTools <= prevTools && i > 0 {
			errs = append(errs, fmt.Errorf("%s.max_tools %d must be greater than the previous tier's %d", prefix, tier.MaxTools, prevTools))
		}
		if tier.Threshold <= 0 || tier.Threshold > 1 {
			errs = append(errs, fmt.Errorf("%s.threshold %.2f is out of range (0, 1]", prefix, tier.Threshold))
		}
		if tier.Threshold < prevThreshold {
			errs = append(errs, fmt.Errorf("%s.threshold %.2f must not decrease from the previous tier's %.2f", prefix, tier.Threshold, prevThreshold))
		}
		prevTools = tier.MaxTools
		prevThreshold = tier.Threshold
	}
	if len(r.ConfidenceTiers) > 0 && r.DefaultThreshold < prevThreshold {
		errs = append(errs, fmt.Errorf("routing.default_threshold %.2f must not be lower than the last tier's threshold %.2f", r.DefaultThreshold, prevThreshold))
	}

	if r.Leniency.Enabled {
		if r.Leniency.Margin <= 0 || r.Leniency.Margin > 0.1 {
			errs = append(errs, fmt.Errorf("routing.leniency.margin %.3f is out of range (0, 0.1]", r.Leniency.Margin))
		}
	}
	if r.LocalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("routing.local_timeout must be positive"))
	}
	if r.CloudTimeout <= 0 {
		errs = append(errs, fmt.Errorf("routing.cloud_timeout must be positive"))
	}
	if r.LatencyAccounting != "" && !r.LatencyAccounting.IsValid() {
		errs = append(errs, fmt.Errorf("routing.latency_accounting %q is invalid; valid values: sum, cloud_only", r.LatencyAccounting))
	}
	if len(r.CognitionKeywords) == 0 {
		slog.Warn("routing.cognition_keywords is empty; the cognition bypass is disabled")
	}

	// Backends
	validateProviderName("local", cfg.Backends.Local.Provider)
	validateProviderName("cloud", cfg.Backends.Cloud.Provider)
	if cfg.Backends.Local.Provider == "" {
		errs = append(errs, errors.New("backends.local.provider is required"))
	}
	if cfg.Backends.Local.Model == "" {
		errs = append(errs, errors.New("backends.local.model is required"))
	}
	if cfg.Backends.Cloud.Provider == "" {
		errs = append(errs, errors.New("backends.cloud.provider is required"))
	}
	if cfg.Backends.Cloud.Model == "" {
		errs = append(errs, errors.New("backends.cloud.model is required"))
	}

	// Library
	validateProviderName("embeddings", cfg.Library.Embeddings.Provider)
	if cfg.Library.PostgresDSN != "" && cfg.Library.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("library.embedding_dimensions %d must be positive when library.postgres_dsn is set", cfg.Library.EmbeddingDimensions))
	}
	if cfg.Library.PostgresDSN == "" && cfg.Library.Root != "" {
		slog.Warn("library.postgres_dsn is empty; semantic search is disabled, keyword search remains available")
	}
	if cfg.Library.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("library.max_file_size %d must not be negative", cfg.Library.MaxFileSize))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
