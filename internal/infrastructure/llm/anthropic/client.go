package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/infrastructure/resilience"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 2048
)

// Client calls the Anthropic messages API with optional tool schemas.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireResponse struct {
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      wireUsage   `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := map[string]any{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages":   toWireMessages(req.Messages),
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if len(req.Tools) > 0 {
		tools := make([]wireTool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = wireTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		payload["tools"] = tools
	}

	var response wireResponse
	err := c.executor.Execute(ctx, "anthropic_messages", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/messages", payload, &response, "messages")
	}, classifyUpstreamError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("messages", err)
	}

	blocks, err := fromWireBlocks(response.Content)
	if err != nil {
		return nil, err
	}
	return &domain.ModelResponse{
		Blocks:     blocks,
		StopReason: response.StopReason,
		Usage: domain.TokenUsage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}, nil
}

// CompleteText runs a single untooled turn and concatenates the text blocks.
func (c *Client) CompleteText(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	resp, err := c.Complete(ctx, domain.ModelRequest{
		System:    system,
		Messages:  []domain.ModelMessage{domain.UserTextMessage(prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Blocks {
		if block.Type == domain.BlockText {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func toWireMessages(messages []domain.ModelMessage) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, msg := range messages {
		blocks := make([]wireBlock, len(msg.Content))
		for j, b := range msg.Content {
			wb := wireBlock{
				Type:      b.Type,
				Text:      b.Text,
				ID:        b.ID,
				Name:      b.Name,
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
			}
			if b.Type == domain.BlockToolUse {
				raw, err := json.Marshal(b.Input)
				if err == nil {
					wb.Input = raw
				}
			}
			blocks[j] = wb
		}
		out[i] = wireMessage{Role: msg.Role, Content: blocks}
	}
	return out
}

func fromWireBlocks(blocks []wireBlock) ([]domain.ContentBlock, error) {
	out := make([]domain.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		block := domain.ContentBlock{
			Type: b.Type,
			Text: b.Text,
			ID:   b.ID,
			Name: b.Name,
		}
		if b.Type == domain.BlockToolUse && len(b.Input) > 0 {
			var input map[string]any
			if err := json.Unmarshal(b.Input, &input); err != nil {
				return nil, fmt.Errorf("parse tool input for %s: %w", b.Name, err)
			}
			block.Input = input
		}
		out = append(out, block)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
