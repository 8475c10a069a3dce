package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxStatusErrors caps how many per-file errors the status report keeps.
const maxStatusErrors = 20

// Status describes the last index run.
type Status struct {
	// LastRun is when the last index run finished. Zero means never indexed.
	LastRun time.Time `json:"last_run"`

	// FilesIndexed is the number of documents written to the corpus.
	FilesIndexed int `json:"files_indexed"`

	// Errors holds up to maxStatusErrors per-file failures from the run.
	Errors []string `json:"errors"`

	// Root is the library root the run indexed.
	Root string `json:"library_root"`
}

// manifestName is the corpus file mapping relative document paths to their
// cache file names.
const manifestName = "manifest.json"

// cacheDir returns the corpus directory for the given root.
func (l *Library) cacheDir(root string) string {
	if l.cacheBase != "" {
		return l.cacheBase
	}
	return filepath.Join(root, cacheDirName)
}

// cacheName derives a stable, filesystem-safe corpus file name from a
// relative document path.
func cacheName(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return hex.EncodeToString(sum[:])[:16] + ".txt"
}

// Index rebuilds the corpus from the current root: the cache directory is
// cleared, every supported file is parsed, and the manifest is rewritten.
// When a semantic index is attached its chunks are replaced as well.
// Parsing runs in parallel, one worker per CPU.
func (l *Library) Index(ctx context.Context) (Status, error) {
	root := l.Root()
	if root == "" {
		return l.IndexStatus(), fmt.Errorf("library: no root configured")
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return l.IndexStatus(), fmt.Errorf("library: not a directory: %s", root)
	}

	start := time.Now()
	cache := l.cacheDir(root)
	if err := os.RemoveAll(cache); err != nil {
		return l.IndexStatus(), fmt.Errorf("library: clear cache: %w", err)
	}
	if err := os.MkdirAll(cache, 0o755); err != nil {
		return l.IndexStatus(), fmt.Errorf("library: create cache: %w", err)
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
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
			files = append(files, p)
		}
		return nil
	})
	if walkErr != nil {
		return l.IndexStatus(), fmt.Errorf("library: walk root: %w", walkErr)
	}

	var (
		mu       sync.Mutex
		manifest = make(map[string]string, len(files))
		indexed  int
		errs     []string
	)

	// Old chunks go first so concurrent workers never race a later clear.
	if l.semantic != nil {
		if err := l.semantic.Clear(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("semantic clear: %v", err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			content, err := parseDocument(path, rel, l.maxFileSize)
			if err == nil {
				name := cacheName(rel)
				err = os.WriteFile(filepath.Join(cache, name), []byte(content), 0o644)
				if err == nil {
					mu.Lock()
					manifest[rel] = name
					indexed++
					mu.Unlock()
				}
			}
			if err == nil && l.semantic != nil {
				err = l.semantic.IndexDocument(gctx, rel, content)
			}
			if err != nil {
				mu.Lock()
				if len(errs) < maxStatusErrors {
					errs = append(errs, fmt.Sprintf("%s: %v", rel, err))
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return l.IndexStatus(), fmt.Errorf("library: index cancelled: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(cache, manifestName), data, 0o644)
	}
	if err != nil {
		return l.IndexStatus(), fmt.Errorf("library: write manifest: %w", err)
	}

	status := Status{
		LastRun:      time.Now(),
		FilesIndexed: indexed,
		Errors:       errs,
		Root:         root,
	}
	l.mu.Lock()
	l.status = status
	l.mu.Unlock()

	l.metrics.LibraryIndexDuration.Record(ctx, time.Since(start).Seconds())
	slog.Info("library indexed",
		"root", root,
		"files", indexed,
		"errors", len(errs),
		"elapsed", time.Since(start))
	return status, nil
}

// IndexStatus returns the status of the last index run.
func (l *Library) IndexStatus() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// loadManifest reads the manifest for the current root. A missing manifest
// means the root has not been indexed yet and returns an empty map.
func (l *Library) loadManifest() (map[string]string, string, error) {
	root := l.Root()
	if root == "" {
		return nil, "", fmt.Errorf("library: no root configured")
	}
	cache := l.cacheDir(root)
	data, err := os.ReadFile(filepath.Join(cache, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, cache, nil
		}
		return nil, "", fmt.Errorf("library: read manifest: %w", err)
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, "", fmt.Errorf("library: decode manifest: %w", err)
	}
	return manifest, cache, nil
}
