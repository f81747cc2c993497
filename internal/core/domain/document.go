package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document tracks one uploaded source file through the ingestion pipeline.
type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Tag         string         `json:"tag"`
	OwnerRef    string         `json:"owner_ref,omitempty"`
	Title       string         `json:"title,omitempty"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RawDocument is loader output: plain text plus provenance metadata.
type RawDocument struct {
	Content  string
	Metadata map[string]any
}

// Chunk is one bounded, overlap-linked segment of a source document. Indices
// are assigned per document in produced order, starting at 0.
type Chunk struct {
	Content  string
	Index    int
	Metadata map[string]any
}

// ChunkRecord is a chunk as persisted: postgres keeps the text for keyword
// search and adjacency lookups, the vector store keeps the embedding under
// the same id.
type ChunkRecord struct {
	ID         string
	OwnerRef   string
	Tag        string
	Title      string
	SourceFile string
	Index      int
	Content    string
	Embedding  []float32
}
