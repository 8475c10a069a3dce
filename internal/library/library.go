// Package library indexes a user-chosen directory of learning materials and
// retrieves snippets from it. Retrieval is hybrid: an optional
// pgvector-backed semantic index answers first, and a fuzzy keyword scan of
// the cached corpus supplements when semantic search is unavailable or
// returns too few hits.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/deepfocus-ai/deepfocus/internal/observe"
)

// defaultMaxFileSize caps how much of a single document is read into the
// corpus.
const defaultMaxFileSize = 10 << 20 // 10 MiB

// cacheDirName is the per-root corpus directory created under the library
// root.
const cacheDirName = ".deepfocus_cache"

// SearchResult is one retrieved snippet.
type SearchResult struct {
	// Path is the document's path relative to the library root.
	Path string `json:"path"`

	// Snippet is the matched text with surrounding context.
	Snippet string `json:"snippet"`

	// Score is the relevance estimate in [0, 1], higher is better.
	Score float64 `json:"score"`
}

// SuggestedRoot is a candidate library directory offered to the UI.
type SuggestedRoot struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Library owns the corpus for one configured root directory. All methods are
// safe for concurrent use; Index serialises with itself via the mutex held
// during status updates only, so searches keep working during a re-index.
type Library struct {
	semantic    *Semantic
	metrics     *observe.Metrics
	maxFileSize int64
	cacheBase   string

	mu     sync.RWMutex
	root   string
	status Status
}

// Option configures a [Library].
type Option func(*Library)

// WithSemantic attaches a pgvector semantic index. Without it all searches
// use the keyword scan.
func WithSemantic(s *Semantic) Option {
	return func(l *Library) { l.semantic = s }
}

// WithMetrics overrides the metrics sink, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Library) { l.metrics = m }
}

// WithCacheDir stores the corpus under dir instead of inside the library
// root.
func WithCacheDir(dir string) Option {
	return func(l *Library) { l.cacheBase = dir }
}

// WithMaxFileSize caps the bytes read from a single document.
func WithMaxFileSize(n int64) Option {
	return func(l *Library) {
		if n > 0 {
			l.maxFileSize = n
		}
	}
}

// New creates a Library rooted at root. An empty root is allowed; the
// library stays dormant until a root is set via [Library.SetRoot].
func New(root string, opts ...Option) *Library {
	l := &Library{
		root:        normalizePath(root),
		maxFileSize: defaultMaxFileSize,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Root returns the currently configured library root, or "" when unset.
func (l *Library) Root() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.root
}

// SetRoot re-points the library at a new directory. The previous corpus
// stays on disk under its own root; the new root needs an [Library.Index]
// run before searches return content matches.
func (l *Library) SetRoot(root string) error {
	root = normalizePath(root)
	if root == "" {
		return fmt.Errorf("library: no path provided")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.root = root
	return nil
}

// Enabled reports whether a root is configured, which controls whether the
// search_hub tool is offered to the model.
func (l *Library) Enabled() bool {
	return l.Root() != ""
}

// Validate checks that path is an existing directory and counts the
// supported files under it.
func (l *Library) Validate(path string) (int, error) {
	path = normalizePath(path)
	if path == "" {
		return 0, fmt.Errorf("library: no path provided")
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("library: path does not exist: %s", path)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("library: path is not a directory: %s", path)
	}

	count := 0
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == cacheDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(p) {
			count++
		}
		return nil
	})
	return count, nil
}

// SuggestedRoots returns common user directories that exist on this machine.
func SuggestedRoots() []SuggestedRoot {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	candidates := []SuggestedRoot{
		{Label: "Home", Path: home},
		{Label: "Documents", Path: filepath.Join(home, "Documents")},
		{Label: "Desktop", Path: filepath.Join(home, "Desktop")},
		{Label: "Downloads", Path: filepath.Join(home, "Downloads")},
	}
	var roots []SuggestedRoot
	for _, c := range candidates {
		if info, err := os.Stat(c.Path); err == nil && info.IsDir() {
			roots = append(roots, c)
		}
	}
	return roots
}

// Search retrieves the topK most relevant snippets for query. The semantic
// index answers first when configured; the keyword scan fills the remainder.
// Duplicate snippets across the two modes are collapsed.
func (l *Library) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	var results []SearchResult
	seen := make(map[string]bool)
	mode := "keyword"

	if l.semantic != nil {
		sem, err := l.semantic.Search(ctx, query, topK)
		if err != nil {
			slog.Warn("semantic search failed, falling back to keyword scan",
				"error", err)
		} else {
			mode = "semantic"
			for _, r := range sem {
				key := strings.ToLower(r.Snippet)
				if !seen[key] {
					seen[key] = true
					results = append(results, r)
				}
			}
		}
	}

	if len(results) < topK {
		kw, err := l.searchKeyword(query, topK, seen)
		if err != nil {
			if len(results) == 0 {
				return nil, err
			}
			slog.Warn("keyword supplement failed", "error", err)
		}
		for _, r := range kw {
			if len(results) >= topK {
				break
			}
			results = append(results, r)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	l.metrics.RecordLibrarySearch(ctx, mode)
	return results, nil
}

// normalizePath expands a leading ~ and cleans the path. Empty or
// whitespace-only input normalizes to "".
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}
