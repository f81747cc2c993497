package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeChunkStore struct {
	keywordResults []domain.RetrievedChunk
	keywordErr     error
	adjacent       map[int][]string
	adjacentErr    error
	replaced       []domain.ChunkRecord
	replacedOwner  string
	replacedTag    string
}

func (f *fakeChunkStore) ReplaceChunks(_ context.Context, ownerRef, tag string, chunks []domain.ChunkRecord) error {
	f.replacedOwner, f.replacedTag, f.replaced = ownerRef, tag, chunks
	return nil
}

func (f *fakeChunkStore) SearchKeyword(_ context.Context, _ string, _ domain.SearchFilter, _ int) ([]domain.RetrievedChunk, error) {
	return f.keywordResults, f.keywordErr
}

func (f *fakeChunkStore) FetchAdjacent(_ context.Context, _, _ string, index int) ([]string, error) {
	if f.adjacentErr != nil {
		return nil, f.adjacentErr
	}
	return f.adjacent[index], nil
}

type fakeVectorStore struct {
	searchResults []domain.RetrievedChunk
	searchErr     error
	upserted      []domain.ChunkRecord
	deletedOwner  string
	deletedTag    string
}

func (f *fakeVectorStore) UpsertChunks(_ context.Context, chunks []domain.ChunkRecord) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectorStore) DeleteByOwnerTag(_ context.Context, ownerRef, tag string) error {
	f.deletedOwner, f.deletedTag = ownerRef, tag
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, _ domain.SearchFilter, _ int) ([]domain.RetrievedChunk, error) {
	return f.searchResults, f.searchErr
}

func TestHybridSearchFusesBothLegs(t *testing.T) {
	chunkStore := &fakeChunkStore{keywordResults: []domain.RetrievedChunk{chunk("a", "A"), chunk("b", "B")}}
	vectorStore := &fakeVectorStore{searchResults: []domain.RetrievedChunk{chunk("b", "B"), chunk("c", "C")}}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, vectorStore)

	results, err := retriever.Search(context.Background(), "식단", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "b" {
		t.Fatalf("dual-ranked candidate should lead, got %s", results[0].ID)
	}
}

func TestHybridSearchDegradesWhenVectorLegFails(t *testing.T) {
	chunkStore := &fakeChunkStore{keywordResults: []domain.RetrievedChunk{chunk("a", "A")}}
	vectorStore := &fakeVectorStore{searchErr: errors.New("qdrant down")}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, vectorStore)

	results, err := retriever.Search(context.Background(), "식단", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("one failed leg must not fail the search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected keyword-only result, got %v", results)
	}
}

func TestHybridSearchFailsWhenBothLegsFail(t *testing.T) {
	chunkStore := &fakeChunkStore{keywordErr: errors.New("pg down")}
	vectorStore := &fakeVectorStore{searchErr: errors.New("qdrant down")}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, vectorStore)

	if _, err := retriever.Search(context.Background(), "식단", domain.SearchFilter{}, 5); err == nil {
		t.Fatal("expected error when both legs fail")
	}
}

func TestHybridSearchEmbedFailureDegradesToKeyword(t *testing.T) {
	chunkStore := &fakeChunkStore{keywordResults: []domain.RetrievedChunk{chunk("a", "A")}}
	vectorStore := &fakeVectorStore{searchResults: []domain.RetrievedChunk{chunk("b", "B")}}
	retriever := NewHybridRetriever(&fakeEmbedder{err: errors.New("embed failed")}, chunkStore, vectorStore)

	results, err := retriever.Search(context.Background(), "식단", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("embed failure must degrade, not fail: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected keyword-only result, got %v", results)
	}
}

func TestHybridSearchEmptyIsNotAnError(t *testing.T) {
	retriever := NewHybridRetriever(&fakeEmbedder{}, &fakeChunkStore{}, &fakeVectorStore{})

	results, err := retriever.Search(context.Background(), "없는 내용", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %v", results)
	}
}

func TestHybridSearchAdjacentEnrichment(t *testing.T) {
	hit := domain.RetrievedChunk{
		ID:      "c1",
		Content: "본문 내용",
		Metadata: map[string]any{
			"owner_ref":   "recipe-7",
			"tag":         "recipe",
			"chunk_index": 1,
		},
	}
	chunkStore := &fakeChunkStore{
		keywordResults: []domain.RetrievedChunk{hit},
		adjacent:       map[int][]string{1: {"앞 청크", "뒤 청크"}},
	}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, &fakeVectorStore{})

	results, err := retriever.Search(context.Background(), "레시피", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := "본문 내용\n\n[Adjacent context]\n앞 청크\n...\n뒤 청크"
	if results[0].Content != want {
		t.Fatalf("enriched content mismatch:\n got %q\nwant %q", results[0].Content, want)
	}
}

func TestHybridSearchEnrichmentFailureIsSwallowed(t *testing.T) {
	hit := domain.RetrievedChunk{
		ID:       "c1",
		Content:  "본문",
		Metadata: map[string]any{"owner_ref": "recipe-7", "tag": "recipe", "chunk_index": 0},
	}
	chunkStore := &fakeChunkStore{
		keywordResults: []domain.RetrievedChunk{hit},
		adjacentErr:    errors.New("lookup failed"),
	}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, &fakeVectorStore{})

	results, err := retriever.Search(context.Background(), "레시피", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("enrichment failure must not fail the search: %v", err)
	}
	if results[0].Content != "본문" {
		t.Fatalf("content must stay unenriched, got %q", results[0].Content)
	}
}

func TestHybridSearchTruncatesToTopK(t *testing.T) {
	var hits []domain.RetrievedChunk
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		hits = append(hits, chunk(id, strings.ToUpper(id)))
	}
	chunkStore := &fakeChunkStore{keywordResults: hits}
	retriever := NewHybridRetriever(&fakeEmbedder{}, chunkStore, &fakeVectorStore{})

	results, err := retriever.Search(context.Background(), "q", domain.SearchFilter{}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected top_k=3 results, got %d", len(results))
	}
}
