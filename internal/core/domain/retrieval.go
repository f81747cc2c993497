package domain

import (
	"fmt"
	"strings"
)

type ChunkOrigin string

const (
	OriginKeyword ChunkOrigin = "keyword"
	OriginVector  ChunkOrigin = "vector"
	OriginFused   ChunkOrigin = "fused"
)

type SearchFilter struct {
	Tags []string
}

// RetrievedChunk lives only for the duration of one retrieval call; the
// caller consumes it to build a prompt section and a citation list.
type RetrievedChunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
	Origin   ChunkOrigin    `json:"origin"`
}

func (c RetrievedChunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	v, ok := c.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (c RetrievedChunk) MetaInt(key string) (int, bool) {
	if c.Metadata == nil {
		return 0, false
	}
	switch v := c.Metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// NoContextSentinel is the formatted text of an empty retrieval result, so
// callers embedding it in a prompt never see an empty section.
const NoContextSentinel = "[검색된 내부 문서 없음]"

// RetrievalContext is the prompt-ready result of one retrieval call.
type RetrievalContext struct {
	Chunks        []RetrievedChunk `json:"chunks"`
	FormattedText string           `json:"formatted_text"`
	TokenEstimate int              `json:"token_estimate"`
}

// PromptSection never returns an empty string: an empty result formats to an
// explicit sentinel so the caller's prompt stays well-formed.
func (c RetrievalContext) PromptSection() string {
	if len(c.Chunks) == 0 || strings.TrimSpace(c.FormattedText) == "" {
		return NoContextSentinel
	}
	return c.FormattedText
}

// Citations returns the distinct (title, type) sources of the retrieved
// chunks, preserving first-seen order.
func (c RetrievalContext) Citations() []Citation {
	if len(c.Chunks) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(c.Chunks))
	out := make([]Citation, 0, len(c.Chunks))
	for _, chunk := range c.Chunks {
		title := chunk.MetaString("title")
		if title == "" {
			title = "Unknown"
		}
		docType := chunk.MetaString("tag")
		if docType == "" {
			docType = "document"
		}
		key := title + ":" + docType
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Citation{
			Title:  title,
			Type:   docType,
			Source: chunk.MetaString("source_file"),
		})
	}
	return out
}

type Citation struct {
	Title  string `json:"title"`
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}
