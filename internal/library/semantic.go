package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/deepfocus-ai/deepfocus/pkg/embeddings"
)

// chunkSize is the target chunk length in bytes. Chunks split on whitespace
// near the boundary so words stay whole.
const chunkSize = 800

// ddlDocuments returns the corpus DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlDocuments(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id          TEXT         PRIMARY KEY,
    path        TEXT         NOT NULL,
    chunk       INT          NOT NULL,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    indexed_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_path
    ON documents (path);

CREATE INDEX IF NOT EXISTS idx_documents_embedding
    ON documents USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Semantic is the pgvector-backed chunk store for semantic retrieval. All
// methods are safe for concurrent use.
type Semantic struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// NewSemantic connects to the PostgreSQL database at dsn, registers pgvector
// types on every connection, and ensures the documents table exists.
// dimensions must match the embedder's output dimension; changing it after
// the first migration requires a manual schema change.
func NewSemantic(ctx context.Context, dsn string, embedder embeddings.Provider, dimensions int) (*Semantic, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("semantic index: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("semantic index: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("semantic index: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlDocuments(dimensions)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("semantic index: migrate: %w", err)
	}
	return &Semantic{pool: pool, embedder: embedder}, nil
}

// IndexDocument chunks content, embeds each chunk, and upserts the chunks
// for the document at rel. Existing chunks with the same IDs are replaced.
func (s *Semantic) IndexDocument(ctx context.Context, rel, content string) error {
	chunks := chunkText(content, chunkSize)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("semantic index: embed %s: %w", rel, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("semantic index: embed %s: got %d vectors for %d chunks", rel, len(vectors), len(chunks))
	}

	const q = `
		INSERT INTO documents (id, path, chunk, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    path       = EXCLUDED.path,
		    chunk      = EXCLUDED.chunk,
		    content    = EXCLUDED.content,
		    embedding  = EXCLUDED.embedding,
		    indexed_at = now()`

	for i, chunk := range chunks {
		id := fmt.Sprintf("%s#%d", rel, i)
		if _, err := s.pool.Exec(ctx, q, id, rel, i, chunk, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("semantic index: upsert %s: %w", id, err)
		}
	}
	return nil
}

// Clear removes all chunks, used before a full re-index.
func (s *Semantic) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("semantic index: clear: %w", err)
	}
	return nil
}

// Search embeds query and returns the topK closest chunks by cosine
// distance. Scores are 1 - distance so higher is better, matching the
// keyword scan's convention.
func (s *Semantic) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic index: embed query: %w", err)
	}

	const q = `
		SELECT path, content, embedding <=> $1 AS distance
		FROM   documents
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("semantic index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var (
			r        SearchResult
			content  string
			distance float64
		)
		if err := row.Scan(&r.Path, &content, &distance); err != nil {
			return SearchResult{}, err
		}
		r.Snippet = "..." + truncateSnippet(content, snippetAfter) + "..."
		r.Score = 1 - distance
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("semantic index: scan rows: %w", err)
	}
	return results, nil
}

// Ping reports whether the store is reachable, for readiness checks.
func (s *Semantic) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Semantic) Close() {
	s.pool.Close()
}

// chunkText splits content into chunks of roughly size bytes, breaking on
// whitespace where possible. Blank-only chunks are dropped.
func chunkText(content string, size int) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= size {
			if c := strings.TrimSpace(content); c != "" {
				chunks = append(chunks, c)
			}
			break
		}
		cut := size
		if idx := strings.LastIndexAny(content[:size], " \t\n"); idx > size/2 {
			cut = idx
		}
		if c := strings.TrimSpace(content[:cut]); c != "" {
			chunks = append(chunks, c)
		}
		content = content[cut:]
	}
	return chunks
}

// truncateSnippet flattens s to one line and caps it at n bytes on a rune
// boundary.
func truncateSnippet(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
