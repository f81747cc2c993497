package ports

import (
	"context"
	"io"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// AgentRunner is the inbound contract of the orchestrator: one request, one
// push-only event stream. The returned channel is closed after the terminal
// done event.
type AgentRunner interface {
	Run(ctx context.Context, req domain.AgentRequest) (<-chan domain.AgentEvent, error)
}

// RetrievalService is the inbound contract of the retrieval pipeline.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, filter domain.SearchFilter, topK int) (*domain.RetrievalContext, error)
}

// DocumentIngestor accepts an uploaded source file for asynchronous ingestion.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, tag, ownerRef string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the load→chunk→embed→persist pipeline for one
// uploaded document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ConversationReader serves the conversation listing API.
type ConversationReader interface {
	GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.Turn, error)
}
