// Package providers wires the built-in backend and embeddings factories into
// a config registry. Shared by every command that constructs inference tiers
// from a configuration file.
package providers

import (
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/deepfocus-ai/deepfocus/internal/config"
	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/anyllm"
	"github.com/deepfocus-ai/deepfocus/pkg/backend/llamacpp"
	"github.com/deepfocus-ai/deepfocus/pkg/embeddings"
	ollamaembed "github.com/deepfocus-ai/deepfocus/pkg/embeddings/ollama"
)

// cloudNames lists the hosted providers served through the any-llm client.
var cloudNames = []string{"openai", "anthropic", "gemini", "deepseek", "mistral", "groq"}

// RegisterBuiltin wires all built-in backend and embeddings factories into
// reg.
func RegisterBuiltin(reg *config.Registry) {
	// llama.cpp speaks the OpenAI-compatible API and reports token logprobs,
	// which the router turns into local confidence.
	reg.RegisterBackend("llamacpp", func(entry config.BackendEntry) (backend.Backend, error) {
		var opts []llamacpp.Option
		if entry.APIKey != "" {
			opts = append(opts, llamacpp.WithAPIKey(entry.APIKey))
		}
		return llamacpp.New(entry.BaseURL, entry.Model, opts...)
	})

	// Hosted providers all share the same pattern: optional APIKey + BaseURL.
	for _, providerName := range cloudNames {
		reg.RegisterBackend(providerName, func(entry config.BackendEntry) (backend.Backend, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterEmbeddings("ollama", func(entry config.EmbeddingsEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}
