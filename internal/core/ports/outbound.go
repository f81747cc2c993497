package ports

import (
	"context"
	"io"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// Embedder builds dense vectors for chunks and query text, preserving input
// order in batch calls.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel is the opaque "complete with optional tool schemas" capability.
type ChatModel interface {
	Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error)
	CompleteText(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// ChunkStore persists chunk text and serves the lexical half of hybrid
// retrieval plus adjacency lookups.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, ownerRef, tag string, chunks []domain.ChunkRecord) error
	SearchKeyword(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error)
	FetchAdjacent(ctx context.Context, ownerRef, tag string, index int) ([]string, error)
}

// VectorStore serves the semantic half of hybrid retrieval. Replacement of a
// document's vectors mirrors ChunkStore.ReplaceChunks at (owner, tag)
// granularity.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.ChunkRecord) error
	DeleteByOwnerTag(ctx context.Context, ownerRef, tag string) error
	Search(ctx context.Context, queryVector []float32, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error)
}

// DocumentLoader extracts plain text from a stored source file, keyed by
// file extension.
type DocumentLoader interface {
	Load(ctx context.Context, path string, metadata map[string]any) ([]domain.RawDocument, error)
}

// Chunker splits loaded documents into bounded, overlapping chunks.
type Chunker interface {
	Chunk(documents []domain.RawDocument) []domain.Chunk
}

// ConversationStore is the append-only conversation-turn writer and history
// reader. Turns are never updated in place.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	AppendTurns(ctx context.Context, conversationID string, turns []domain.Turn) error
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
}

// AuditStore writes one record per agent run.
type AuditStore interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
}

type SiteStore interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
}

// DocumentRepository tracks uploaded source files through ingestion.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// MessageQueue decouples upload acceptance from ingestion work.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// Domain tool collaborators. Each method is a pure business-logic function of
// validated input; results stay opaque serializable values the orchestrator
// passes back to the model and the event stream without interpreting.

type MenuService interface {
	GeneratePlan(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error)
	ValidateNutrition(ctx context.Context, input map[string]any) (map[string]any, error)
	CheckDiversity(ctx context.Context, input map[string]any) (map[string]any, error)
}

type RecipeService interface {
	SearchRecipes(ctx context.Context, input map[string]any) (map[string]any, error)
	ScaleRecipe(ctx context.Context, input map[string]any) (map[string]any, error)
	GenerateWorkOrder(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error)
}

type HaccpService interface {
	GenerateChecklist(ctx context.Context, input map[string]any) (map[string]any, error)
	CheckCompletion(ctx context.Context, input map[string]any) (map[string]any, error)
}

// OperationsService covers dashboard, purchasing and demand tools.
type OperationsService interface {
	QueryDashboard(ctx context.Context, input map[string]any) (map[string]any, error)
	CalculateBOM(ctx context.Context, input map[string]any) (map[string]any, error)
	GeneratePurchaseOrder(ctx context.Context, caller domain.User, input map[string]any) (map[string]any, error)
	CheckInventory(ctx context.Context, input map[string]any) (map[string]any, error)
	ForecastHeadcount(ctx context.Context, input map[string]any) (map[string]any, error)
}
