package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// ChunkRepository keeps chunk text in postgres and serves the lexical leg of
// hybrid retrieval through full-text search. Vector payloads live in qdrant
// under the same chunk ids.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceChunks swaps the full chunk set of one (owner, tag) pair in a single
// transaction so readers never observe a half-ingested document.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, ownerRef, tag string, chunks []domain.ChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM document_chunks WHERE owner_ref = $1 AND tag = $2
`, ownerRef, tag); err != nil {
		return fmt.Errorf("delete previous chunks: %w", err)
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_chunks (id, owner_ref, tag, title, source_file, chunk_index, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, chunk.ID, chunk.OwnerRef, chunk.Tag, chunk.Title, chunk.SourceFile, chunk.Index, chunk.Content, now); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) SearchKeyword(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = 20
	}

	// The pgx stdlib driver maps []string to text[]; a nil interface keeps
	// the filter clause inert.
	var tags any
	if len(filter.Tags) > 0 {
		tags = filter.Tags
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, owner_ref, tag, title, source_file, chunk_index, content,
	ts_rank(content_tsv, plainto_tsquery('simple', $1)) AS rank
FROM document_chunks
WHERE content_tsv @@ plainto_tsquery('simple', $1)
	AND ($2::text[] IS NULL OR tag = ANY($2))
ORDER BY rank DESC, owner_ref, chunk_index
LIMIT $3
`, query, tags, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RetrievedChunk, 0, limit)
	for rows.Next() {
		var (
			chunk      domain.RetrievedChunk
			ownerRef   string
			tag        string
			title      string
			sourceFile string
			index      int
			rank       float64
		)
		if err := rows.Scan(&chunk.ID, &ownerRef, &tag, &title, &sourceFile, &index, &chunk.Content, &rank); err != nil {
			return nil, fmt.Errorf("scan keyword result: %w", err)
		}
		chunk.Score = rank
		chunk.Origin = domain.OriginKeyword
		chunk.Metadata = map[string]any{
			"owner_ref":   ownerRef,
			"tag":         tag,
			"title":       title,
			"source_file": sourceFile,
			"chunk_index": index,
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword results: %w", err)
	}
	return out, nil
}

// FetchAdjacent returns the text of the chunks directly before and after the
// given index, in document order. Missing neighbours are simply absent.
func (r *ChunkRepository) FetchAdjacent(ctx context.Context, ownerRef, tag string, index int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT content
FROM document_chunks
WHERE owner_ref = $1 AND tag = $2 AND chunk_index IN ($3, $4)
ORDER BY chunk_index
`, ownerRef, tag, index-1, index+1)
	if err != nil {
		return nil, fmt.Errorf("fetch adjacent chunks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan adjacent chunk: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjacent chunks: %w", err)
	}
	return out, nil
}
