package domain

import "time"

type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SiteID      string    `json:"site_id"`
	ContextType string    `json:"context_type"`
	Title       string    `json:"title"`
	TurnCount   int       `json:"turn_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Turn is one entry of a conversation's append-only history. History is never
// rewritten: an agent run appends exactly one user and one assistant turn.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditRecord captures one agent run for compliance tooling downstream.
type AuditRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	SiteID         string    `json:"site_id"`
	Action         string    `json:"action"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Intent         string    `json:"intent"`
	Agent          string    `json:"agent"`
	Confidence     float64   `json:"confidence"`
	ToolsCalled    []string  `json:"tools_called"`
	RAGChunksUsed  int       `json:"rag_chunks_used"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
}
