package domain

import "time"

type EventType string

// Streamed event types. The stream is append-only and monotonic: once an
// event is emitted it is never retracted or reordered.
const (
	EventTextDelta  EventType = "text_delta"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventCitations  EventType = "citations"
	EventDone       EventType = "done"
)

// Run completion statuses carried on the done event.
const (
	RunStatusOK       = "ok"
	RunStatusDegraded = "degraded"
	RunStatusDenied   = "denied"
	RunStatusError    = "error"
)

type AgentEvent struct {
	Type     EventType  `json:"type"`
	Content  string     `json:"content,omitempty"`
	ToolName string     `json:"name,omitempty"`
	Status   string     `json:"status,omitempty"`
	Data     any        `json:"data,omitempty"`
	Sources  []Citation `json:"sources,omitempty"`
	Error    string     `json:"error,omitempty"`

	// Set on the done event only.
	Model      string      `json:"model,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`
	Iterations int         `json:"iterations,omitempty"`
}

type AgentRequest struct {
	Message        string
	User           User
	SiteID         string
	ConversationID string
}

// ToolInvocation accumulates in memory for one run, is flattened into the
// audit record, and is then discarded.
type ToolInvocation struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// AgentLimits bounds one orchestration run. Zero values are replaced with
// defaults by the orchestrator constructor.
type AgentLimits struct {
	MaxIterations  int
	HistoryWindow  int
	MaxTokens      int
	Temperature    float64
	RequestTimeout time.Duration
}
