package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

func testChunks() []domain.ChunkRecord {
	return []domain.ChunkRecord{
		{ID: "c1", OwnerRef: "doc-1", Tag: "recipe", Index: 0, Content: "재료 준비", Embedding: []float32{0.1, 0.2}},
		{ID: "c2", OwnerRef: "doc-1", Tag: "recipe", Index: 1, Content: "조리 순서", Embedding: []float32{0.3, 0.4}},
	}
}

func TestUpsertChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.UpsertChunks(context.Background(), testChunks()); err != nil {
		t.Fatalf("first UpsertChunks() error = %v", err)
	}
	if err := client.UpsertChunks(context.Background(), testChunks()); err != nil {
		t.Fatalf("second UpsertChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertChunksRejectsMissingEmbedding(t *testing.T) {
	client := New("http://unused", "docs")
	err := client.UpsertChunks(context.Background(), []domain.ChunkRecord{{ID: "c1", Content: "x"}})
	if err == nil {
		t.Fatal("expected error for chunk without embedding")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	err := client.UpsertChunks(context.Background(), testChunks()[:1])
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchSendsTagFilterAndParsesPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/search" {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"result":[{"id":"c1","score":0.87,"payload":{"owner_ref":"doc-1","tag":"recipe","title":"김치찌개","source_file":"r.pdf","chunk_index":3,"text":"조리 순서"}}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	results, err := client.Search(context.Background(), []float32{0.1, 0.2},
		domain.SearchFilter{Tags: []string{"recipe", "sop"}}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if captured["filter"] == nil {
		t.Fatalf("tag filter not sent: %v", captured)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.ID != "c1" || got.Origin != domain.OriginVector || got.Score != 0.87 {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.MetaString("title") != "김치찌개" {
		t.Fatalf("payload metadata missing: %+v", got.Metadata)
	}
	if idx, ok := got.MetaInt("chunk_index"); !ok || idx != 3 {
		t.Fatalf("chunk_index not preserved: %+v", got.Metadata)
	}
}

func TestSearchWithoutTagsOmitsFilter(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if _, err := client.Search(context.Background(), []float32{0.1}, domain.SearchFilter{}, 5); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, ok := captured["filter"]; ok {
		t.Fatalf("filter should be omitted without tags: %v", captured)
	}
}

func TestDeleteByOwnerTagTreatsMissingCollectionAsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.DeleteByOwnerTag(context.Background(), "doc-1", "recipe"); err != nil {
		t.Fatalf("DeleteByOwnerTag() error = %v", err)
	}
}
