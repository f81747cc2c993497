package chunking

import (
	"strings"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

// defaultSeparators is preference-ordered: structural markers first, then
// sentence terminators (English and Korean), then words, then a hard cut.
var defaultSeparators = []string{
	"\n## ",
	"\n### ",
	"\n\n",
	"\n",
	". ",
	"다. ",
	"요. ",
	" ",
}

type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Chunk splits each document along semantic separators, merges small
// segments back up to the chunk size, and injects trailing overlap so
// consecutive chunks share context. Indices restart at 0 per document.
func (s *Splitter) Chunk(documents []domain.RawDocument) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(documents))
	for _, doc := range documents {
		segments := s.recursiveSplit(doc.Content, s.separators)
		merged := s.mergeWithOverlap(segments)
		for idx, text := range merged {
			metadata := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["chunk_index"] = idx
			out = append(out, domain.Chunk{
				Content:  text,
				Index:    idx,
				Metadata: metadata,
			})
		}
	}
	return out
}

func (s *Splitter) recursiveSplit(text string, separators []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len([]rune(text)) <= s.chunkSize {
		return []string{text}
	}

	for i, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		parts := strings.Split(text, sep)
		result := make([]string, 0, len(parts))
		for j, part := range parts {
			// Keep the separator attached so merged text reads like the
			// original.
			if j > 0 {
				part = sep + part
			}
			if strings.TrimSpace(part) == "" {
				continue
			}
			if len([]rune(part)) <= s.chunkSize {
				result = append(result, part)
				continue
			}
			result = append(result, s.recursiveSplit(part, separators[i+1:])...)
		}
		return result
	}

	return s.forceSplit(text)
}

// forceSplit is the last resort: a hard cut every chunkSize runes.
func (s *Splitter) forceSplit(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/s.chunkSize+1)
	for start := 0; start < len(runes); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			out = append(out, segment)
		}
	}
	return out
}

func (s *Splitter) mergeWithOverlap(segments []string) []string {
	if len(segments) == 0 {
		return nil
	}

	merged := make([]string, 0, len(segments))
	current := ""
	for _, segment := range segments {
		if current != "" && len([]rune(current))+len([]rune(segment)) > s.chunkSize {
			merged = append(merged, strings.TrimSpace(current))
			current = segment
			continue
		}
		current += segment
	}
	if strings.TrimSpace(current) != "" {
		merged = append(merged, strings.TrimSpace(current))
	}

	if s.overlap <= 0 || len(merged) <= 1 {
		return merged
	}

	overlapped := make([]string, len(merged))
	overlapped[0] = merged[0]
	for i := 1; i < len(merged); i++ {
		prev := []rune(merged[i-1])
		tail := prev
		if len(prev) > s.overlap {
			tail = prev[len(prev)-s.overlap:]
		}
		overlapped[i] = string(tail) + merged[i]
	}
	return overlapped
}
