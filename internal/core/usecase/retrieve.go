package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
)

const defaultCandidateLimit = 20

// HybridRetriever runs the lexical and semantic searches in parallel and
// fuses their rankings. One failed leg degrades to the surviving one; the
// search fails only when both legs fail.
type HybridRetriever struct {
	embedder       ports.Embedder
	chunkStore     ports.ChunkStore
	vectorStore    ports.VectorStore
	candidateLimit int
}

func NewHybridRetriever(
	embedder ports.Embedder,
	chunkStore ports.ChunkStore,
	vectorStore ports.VectorStore,
) *HybridRetriever {
	return &HybridRetriever{
		embedder:       embedder,
		chunkStore:     chunkStore,
		vectorStore:    vectorStore,
		candidateLimit: defaultCandidateLimit,
	}
}

func (r *HybridRetriever) Search(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
	topK int,
) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	fetchLimit := r.candidateLimit
	if fetchLimit < topK {
		fetchLimit = topK
	}

	var (
		wg         sync.WaitGroup
		keyword    []domain.RetrievedChunk
		vector     []domain.RetrievedChunk
		keywordErr error
		vectorErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		keyword, keywordErr = r.chunkStore.SearchKeyword(ctx, query, filter, fetchLimit)
	}()
	go func() {
		defer wg.Done()
		queryVector, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			vectorErr = fmt.Errorf("embed query: %w", err)
			return
		}
		vector, vectorErr = r.vectorStore.Search(ctx, queryVector, filter, fetchLimit)
	}()
	wg.Wait()

	if keywordErr != nil && vectorErr != nil {
		return nil, fmt.Errorf("hybrid search failed: keyword: %w; vector: %w", keywordErr, vectorErr)
	}
	if keywordErr != nil {
		slog.Warn("keyword_search_degraded", "error", keywordErr)
		keyword = nil
	}
	if vectorErr != nil {
		slog.Warn("vector_search_degraded", "error", vectorErr)
		vector = nil
	}

	fused := fuseWeightedRRF(keyword, vector, r.candidateLimit)
	top := trimCandidates(fused, topK)
	r.enrichWithAdjacent(ctx, top)
	return top, nil
}

// enrichWithAdjacent appends the neighboring chunks of each result to its
// content. This is a deliberate try-log-continue boundary: a missing neighbor
// or a store hiccup must never fail the search itself.
func (r *HybridRetriever) enrichWithAdjacent(ctx context.Context, chunks []domain.RetrievedChunk) {
	for i := range chunks {
		index, ok := chunks[i].MetaInt("chunk_index")
		if !ok {
			continue
		}
		ownerRef := chunks[i].MetaString("owner_ref")
		tag := chunks[i].MetaString("tag")
		if ownerRef == "" {
			continue
		}
		neighbors, err := r.chunkStore.FetchAdjacent(ctx, ownerRef, tag, index)
		if err != nil {
			slog.Debug("adjacent_enrichment_skipped", "owner_ref", ownerRef, "chunk_index", index, "error", err)
			continue
		}
		if len(neighbors) == 0 {
			continue
		}
		chunks[i].Content = chunks[i].Content + "\n\n[Adjacent context]\n" + strings.Join(neighbors, "\n...\n")
	}
}
