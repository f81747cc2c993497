package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
)

const defaultTopK = 5

// RetrievalPipeline ties loading, chunking, embedding and hybrid search into
// the two operations the rest of the system consumes: ingest and retrieve.
type RetrievalPipeline struct {
	loader      ports.DocumentLoader
	chunker     ports.Chunker
	embedder    ports.Embedder
	chunkStore  ports.ChunkStore
	vectorStore ports.VectorStore
	retriever   *HybridRetriever
	topK        int
}

func NewRetrievalPipeline(
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	embedder ports.Embedder,
	chunkStore ports.ChunkStore,
	vectorStore ports.VectorStore,
) *RetrievalPipeline {
	return &RetrievalPipeline{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		chunkStore:  chunkStore,
		vectorStore: vectorStore,
		retriever:   NewHybridRetriever(embedder, chunkStore, vectorStore),
		topK:        defaultTopK,
	}
}

// Ingest loads a source file, chunks and embeds it, and replaces any prior
// chunks stored under the same (owner_ref, tag) pair. Returns the number of
// chunks persisted.
func (p *RetrievalPipeline) Ingest(ctx context.Context, path, tag, ownerRef, title string) (int, error) {
	metadata := map[string]any{"tag": tag}
	if ownerRef != "" {
		metadata["owner_ref"] = ownerRef
	}

	docs, err := p.loader.Load(ctx, path, metadata)
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}
	if len(docs) == 0 {
		slog.Warn("ingest_no_content", "path", path, "tag", tag)
		return 0, nil
	}

	chunks := p.chunker.Chunk(docs)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	docTitle := title
	if docTitle == "" {
		if t, ok := docs[0].Metadata["title"].(string); ok && t != "" {
			docTitle = t
		} else {
			docTitle = "Untitled"
		}
	}
	sourceFile := ""
	if s, ok := docs[0].Metadata["source_file"].(string); ok {
		sourceFile = s
	}

	records := make([]domain.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.ChunkRecord{
			ID:         uuid.NewString(),
			OwnerRef:   ownerRef,
			Tag:        tag,
			Title:      docTitle,
			SourceFile: sourceFile,
			Index:      c.Index,
			Content:    c.Content,
			Embedding:  embeddings[i],
		}
	}

	if err := p.chunkStore.ReplaceChunks(ctx, ownerRef, tag, records); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}
	if err := p.vectorStore.DeleteByOwnerTag(ctx, ownerRef, tag); err != nil {
		return 0, fmt.Errorf("delete prior vectors: %w", err)
	}
	if err := p.vectorStore.UpsertChunks(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}

	slog.Info("document_ingested", "path", path, "tag", tag, "owner_ref", ownerRef, "chunks", len(records))
	return len(records), nil
}

// WithTopK overrides the top_k used when callers pass no explicit value.
func (p *RetrievalPipeline) WithTopK(k int) *RetrievalPipeline {
	if k > 0 {
		p.topK = k
	}
	return p
}

// Retrieve runs the hybrid search and formats the hits into a prompt-ready
// context block.
func (p *RetrievalPipeline) Retrieve(ctx context.Context, query string, filter domain.SearchFilter, topK int) (*domain.RetrievalContext, error) {
	if topK <= 0 {
		topK = p.topK
	}

	chunks, err := p.retriever.Search(ctx, query, filter, topK)
	if err != nil {
		return nil, err
	}

	formatted := formatContext(chunks)
	return &domain.RetrievalContext{
		Chunks:        chunks,
		FormattedText: formatted,
		// Roughly 3 characters per token for Korean text. Used for
		// truncation decisions and logging only.
		TokenEstimate: len([]rune(formatted)) / 3,
	}, nil
}

func formatContext(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return domain.NoContextSentinel
	}

	var sb strings.Builder
	for i, chunk := range chunks {
		title := chunk.MetaString("title")
		if title == "" {
			title = "Unknown"
		}
		tag := chunk.MetaString("tag")
		if tag == "" {
			tag = "document"
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- 검색 결과 %d: %s (유형: %s", i+1, title, tag)
		if source := chunk.MetaString("source_file"); source != "" {
			fmt.Fprintf(&sb, ", 출처: %s", source)
		}
		fmt.Fprintf(&sb, ", 관련도: %.4f) ---\n%s", chunk.Score, chunk.Content)
	}
	return sb.String()
}
