package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type fakeLoader struct {
	docs []domain.RawDocument
	err  error
}

func (f *fakeLoader) Load(_ context.Context, _ string, metadata map[string]any) ([]domain.RawDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RawDocument, len(f.docs))
	for i, d := range f.docs {
		merged := map[string]any{}
		for k, v := range metadata {
			merged[k] = v
		}
		for k, v := range d.Metadata {
			merged[k] = v
		}
		out[i] = domain.RawDocument{Content: d.Content, Metadata: merged}
	}
	return out, nil
}

type sentenceChunker struct{}

func (sentenceChunker) Chunk(documents []domain.RawDocument) []domain.Chunk {
	var out []domain.Chunk
	for _, doc := range documents {
		for i, part := range strings.Split(doc.Content, "|") {
			out = append(out, domain.Chunk{Content: part, Index: i, Metadata: doc.Metadata})
		}
	}
	return out
}

func newTestPipeline(loader *fakeLoader, chunkStore *fakeChunkStore, vectorStore *fakeVectorStore) *RetrievalPipeline {
	return NewRetrievalPipeline(loader, sentenceChunker{}, &fakeEmbedder{}, chunkStore, vectorStore)
}

func TestIngestReplacesChunksForOwnerTag(t *testing.T) {
	loader := &fakeLoader{docs: []domain.RawDocument{{
		Content:  "첫 청크|둘째 청크",
		Metadata: map[string]any{"source_file": "recipe.pdf", "title": "김치찌개"},
	}}}
	chunkStore := &fakeChunkStore{}
	vectorStore := &fakeVectorStore{}
	pipeline := newTestPipeline(loader, chunkStore, vectorStore)

	count, err := pipeline.Ingest(context.Background(), "/data/recipe.pdf", "recipe", "recipe-7", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 chunks, got %d", count)
	}

	if chunkStore.replacedOwner != "recipe-7" || chunkStore.replacedTag != "recipe" {
		t.Fatalf("replace not scoped to (owner, tag): %s/%s", chunkStore.replacedOwner, chunkStore.replacedTag)
	}
	if vectorStore.deletedOwner != "recipe-7" || vectorStore.deletedTag != "recipe" {
		t.Fatalf("vector delete not scoped to (owner, tag): %s/%s", vectorStore.deletedOwner, vectorStore.deletedTag)
	}
	if len(vectorStore.upserted) != 2 {
		t.Fatalf("expected 2 vectors upserted, got %d", len(vectorStore.upserted))
	}

	first := chunkStore.replaced[0]
	if first.Title != "김치찌개" || first.Tag != "recipe" || first.Index != 0 {
		t.Fatalf("unexpected chunk record %+v", first)
	}
	if first.ID == "" || len(first.Embedding) == 0 {
		t.Fatalf("chunk record missing id or embedding: %+v", first)
	}
	if first.SourceFile != "recipe.pdf" {
		t.Fatalf("source file not propagated: %q", first.SourceFile)
	}
}

func TestIngestExplicitTitleWins(t *testing.T) {
	loader := &fakeLoader{docs: []domain.RawDocument{{
		Content:  "내용",
		Metadata: map[string]any{"title": "파일 제목"},
	}}}
	chunkStore := &fakeChunkStore{}
	pipeline := newTestPipeline(loader, chunkStore, &fakeVectorStore{})

	if _, err := pipeline.Ingest(context.Background(), "/data/doc.txt", "sop", "", "지정 제목"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if chunkStore.replaced[0].Title != "지정 제목" {
		t.Fatalf("explicit title not used: %q", chunkStore.replaced[0].Title)
	}
}

func TestIngestEmptyDocumentIsNoop(t *testing.T) {
	pipeline := newTestPipeline(&fakeLoader{}, &fakeChunkStore{}, &fakeVectorStore{})

	count, err := pipeline.Ingest(context.Background(), "/data/empty.txt", "sop", "", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 chunks, got %d", count)
	}
}

func TestIngestLoaderFailure(t *testing.T) {
	pipeline := newTestPipeline(&fakeLoader{err: errors.New("corrupt pdf")}, &fakeChunkStore{}, &fakeVectorStore{})

	if _, err := pipeline.Ingest(context.Background(), "/data/x.pdf", "recipe", "", ""); err == nil {
		t.Fatal("expected loader error to propagate")
	}
}

func TestRetrieveFormatsContext(t *testing.T) {
	hits := []domain.RetrievedChunk{
		{
			ID:      "c1",
			Content: "김치찌개 레시피 본문",
			Score:   0.98765,
			Metadata: map[string]any{
				"title":       "김치찌개",
				"tag":         "recipe",
				"source_file": "kimchi.pdf",
			},
		},
	}
	chunkStore := &fakeChunkStore{keywordResults: hits}
	pipeline := newTestPipeline(&fakeLoader{}, chunkStore, &fakeVectorStore{})

	rc, err := pipeline.Retrieve(context.Background(), "김치찌개", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(rc.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(rc.Chunks))
	}
	if !strings.Contains(rc.FormattedText, "검색 결과 1: 김치찌개 (유형: recipe") {
		t.Fatalf("header missing: %q", rc.FormattedText)
	}
	if !strings.Contains(rc.FormattedText, "출처: kimchi.pdf") {
		t.Fatalf("source missing: %q", rc.FormattedText)
	}
	if !strings.Contains(rc.FormattedText, "관련도: 0.") {
		t.Fatalf("four-decimal score missing: %q", rc.FormattedText)
	}
	if rc.TokenEstimate != len([]rune(rc.FormattedText))/3 {
		t.Fatalf("token estimate mismatch: %d", rc.TokenEstimate)
	}
}

func TestRetrieveEmptyFormatsToSentinel(t *testing.T) {
	pipeline := newTestPipeline(&fakeLoader{}, &fakeChunkStore{}, &fakeVectorStore{})

	rc, err := pipeline.Retrieve(context.Background(), "없는 주제", domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if rc.FormattedText != domain.NoContextSentinel {
		t.Fatalf("expected sentinel as formatted text, got %q", rc.FormattedText)
	}
	if rc.PromptSection() != "[검색된 내부 문서 없음]" {
		t.Fatalf("expected sentinel, got %q", rc.PromptSection())
	}
}
