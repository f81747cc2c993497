package domain

// Stop reasons reported by the chat model. Anything other than StopToolUse
// ends the responding loop.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Content block types within a model message.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

type ContentBlock struct {
	Type string `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

type ModelMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

func UserTextMessage(text string) ModelMessage {
	return ModelMessage{Role: "user", Content: []ContentBlock{TextBlock(text)}}
}

// ToolDefinition is one entry of the tool catalogue in the shape the model's
// tool-use API expects. InputSchema stays an opaque JSON-schema map.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type ModelRequest struct {
	System      string
	Messages    []ModelMessage
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// TokenUsage accumulates across the iterations of one run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

type ModelResponse struct {
	Blocks     []ContentBlock
	StopReason string
	Usage      TokenUsage
}
