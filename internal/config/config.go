// Package config provides the configuration schema, loader, file watcher, and
// backend registry for the Deep-Focus hybrid routing server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Deep-Focus server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LatencyAccounting selects how end-to-end latency is reported when a request
// falls forward from the local tier to the cloud tier.
type LatencyAccounting string

const (
	// AccountingSum reports the sum of the rejected local attempt and the
	// cloud attempt. This reflects what the user actually waited.
	AccountingSum LatencyAccounting = "sum"

	// AccountingCloudOnly reports only the cloud attempt's latency.
	AccountingCloudOnly LatencyAccounting = "cloud_only"
)

// IsValid reports whether a is a recognised accounting mode.
func (a LatencyAccounting) IsValid() bool {
	return a == AccountingSum || a == AccountingCloudOnly
}

// Duration wraps [time.Duration] so YAML values can be written as
// human-readable strings ("250ms", "10s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for Deep-Focus.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Routing  RoutingConfig  `yaml:"routing"`
	Backends BackendsConfig `yaml:"backends"`
	Library  LibraryConfig  `yaml:"library"`
}

// ServerConfig holds network and logging settings for the Deep-Focus server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RoutingConfig holds every tunable parameter of the hybrid routing decision.
// All fields are hot-reloadable: the watcher pushes changed values into the
// router without touching in-flight requests.
type RoutingConfig struct {
	// LengthThreshold is the word count above which a request bypasses the
	// local tier entirely.
	LengthThreshold int `yaml:"length_threshold"`

	// CompoundMarkers are substrings whose presence marks a request as a
	// compound multi-step instruction. Matched against the lowercased request
	// text, so markers like " and " keep their surrounding spaces.
	CompoundMarkers []string `yaml:"compound_markers"`

	// FanoutThreshold is the tool count that, together with a compound
	// marker, triggers the cloud bypass. A compound request bypasses when
	// len(tools) > FanoutThreshold.
	FanoutThreshold int `yaml:"fanout_threshold"`

	// CognitionKeywords route a request straight to the cloud tier when any
	// of them appears in the text. These mark open-ended cognition work the
	// small on-device model cannot handle.
	CognitionKeywords []string `yaml:"cognition_keywords"`

	// ActionKeywords, when non-empty, mark deterministic device actions that
	// should prefer the local tier even when other signals are ambiguous.
	// An empty list disables the action heuristic.
	ActionKeywords []string `yaml:"action_keywords"`

	// ConfidenceTiers scale the acceptance threshold with toolset size.
	// Tiers must be sorted by ascending MaxTools with non-decreasing
	// thresholds; a request with more tools than every tier uses
	// DefaultThreshold.
	ConfidenceTiers []ConfidenceTier `yaml:"confidence_tiers"`

	// DefaultThreshold is the acceptance threshold for tool counts beyond
	// the last tier.
	DefaultThreshold float64 `yaml:"default_threshold"`

	// Leniency optionally widens the acceptance band below the threshold.
	Leniency LeniencyConfig `yaml:"leniency"`

	// LocalTimeout bounds one on-device attempt. On expiry the request falls
	// forward to the cloud tier; the local attempt is never retried.
	LocalTimeout Duration `yaml:"local_timeout"`

	// CloudTimeout bounds one cloud attempt. On expiry the request fails.
	CloudTimeout Duration `yaml:"cloud_timeout"`

	// LatencyAccounting selects how fall-forward latency is reported.
	LatencyAccounting LatencyAccounting `yaml:"latency_accounting"`
}

// ConfidenceTier maps a maximum tool count to an acceptance threshold.
type ConfidenceTier struct {
	// MaxTools is the largest tool count this tier applies to.
	MaxTools int `yaml:"max_tools"`

	// Threshold is the minimum confidence for acceptance at this tier.
	Threshold float64 `yaml:"threshold"`
}

// LeniencyConfig widens the acceptance band: a local result whose confidence
// falls within Margin below the required threshold is still accepted.
type LeniencyConfig struct {
	// Enabled turns the leniency band on. Off by default.
	Enabled bool `yaml:"enabled"`

	// Margin is how far below the threshold a result may fall and still be
	// accepted. Typical values are 0.05 to 0.08.
	Margin float64 `yaml:"margin"`
}

// BackendsConfig declares the two inference tiers.
type BackendsConfig struct {
	Local BackendEntry `yaml:"local"`
	Cloud BackendEntry `yaml:"cloud"`
}

// BackendEntry is the common configuration block shared by both tiers.
// The Provider field is used to look up the constructor in the [Registry].
type BackendEntry struct {
	// Provider selects the registered backend implementation
	// (e.g., "llamacpp" for the local tier; "gemini", "openai", "anthropic",
	// "deepseek", "mistral", or "groq" for the cloud tier).
	Provider string `yaml:"provider"`

	// Model selects a specific model (e.g., "functiongemma-270m-it",
	// "gemini-2.5-flash").
	Model string `yaml:"model"`

	// APIKey is the authentication key if any. Cloud providers fall back to
	// their conventional environment variable when empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// LibraryConfig holds settings for the document library index and retrieval.
type LibraryConfig struct {
	// Root is the directory whose documents are indexed. Empty disables the
	// library feature until a root is set via the API.
	Root string `yaml:"root"`

	// PostgresDSN is the PostgreSQL connection string for the pgvector
	// semantic index. Empty disables semantic search; keyword search still
	// works from the in-memory index.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Embeddings configures the embedding provider used for semantic search.
	Embeddings EmbeddingsEntry `yaml:"embeddings"`

	// EmbeddingDimensions is the vector dimension of the embeddings column.
	// Must match the configured embedding model.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// MaxFileSize caps the size of a single document read during indexing,
	// in bytes. Zero means the default of 10 MiB.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// EmbeddingsEntry configures the embedding provider for semantic retrieval.
type EmbeddingsEntry struct {
	// Provider selects the registered embeddings implementation
	// (e.g., "ollama").
	Provider string `yaml:"provider"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the embedding model (e.g., "nomic-embed-text").
	Model string `yaml:"model"`
}

// Default returns a Config populated with the documented defaults. Loading a
// file starts from these values; fields present in the file override them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Routing: RoutingConfig{
			LengthThreshold: 35,
			CompoundMarkers: []string{" and ", "also", "then", ", ", "after", "before"},
			FanoutThreshold: 1,
			CognitionKeywords: []string{
				"summarize", "draft", "email", "transcript", "analyze", "explain",
			},
			ActionKeywords: []string{"set", "toggle", "open", "calculate", "turn"},
			ConfidenceTiers: []ConfidenceTier{
				{MaxTools: 1, Threshold: 0.65},
				{MaxTools: 2, Threshold: 0.80},
			},
			DefaultThreshold: 0.85,
			Leniency: LeniencyConfig{
				Enabled: false,
				Margin:  0.05,
			},
			LocalTimeout:      Duration(10 * time.Second),
			CloudTimeout:      Duration(60 * time.Second),
			LatencyAccounting: AccountingSum,
		},
		Backends: BackendsConfig{
			Local: BackendEntry{
				Provider: "llamacpp",
				Model:    "functiongemma-270m-it",
			},
			Cloud: BackendEntry{
				Provider: "gemini",
				Model:    "gemini-2.5-flash",
			},
		},
		Library: LibraryConfig{
			Embeddings: EmbeddingsEntry{
				Provider: "ollama",
				Model:    "nomic-embed-text",
			},
			EmbeddingDimensions: 768,
		},
	}
}
