package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deepfocus-ai/deepfocus/pkg/backend"
	"github.com/deepfocus-ai/deepfocus/pkg/embeddings"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// component kind. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	backends   map[string]func(BackendEntry) (backend.Backend, error)
	embeddings map[string]func(EmbeddingsEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		backends:   make(map[string]func(BackendEntry) (backend.Backend, error)),
		embeddings: make(map[string]func(EmbeddingsEntry) (embeddings.Provider, error)),
	}
}

// RegisterBackend registers an inference backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterBackend(name string, factory func(BackendEntry) (backend.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(EmbeddingsEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateBackend instantiates an inference backend using the factory
// registered under entry.Provider. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateBackend(entry BackendEntry) (backend.Backend, error) {
	r.mu.RLock()
	factory, ok := r.backends[entry.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: backend/%q", ErrProviderNotRegistered, entry.Provider)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Provider.
func (r *Registry) CreateEmbeddings(entry EmbeddingsEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Provider)
	}
	return factory(entry)
}
