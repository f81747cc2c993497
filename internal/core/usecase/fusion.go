package usecase

import (
	"fmt"
	"sort"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

const (
	rrfK          = 60
	keywordWeight = 0.3
	vectorWeight  = 0.7
)

type fusedCandidate struct {
	chunk      domain.RetrievedChunk
	score      float64
	inKeyword  bool
	inVector   bool
	vectorRank int
}

// fuseWeightedRRF merges the two ranked result lists by weighted reciprocal
// rank. Only positions contribute; the stores' native scores never mix. Ties
// break toward the better vector rank, then a stable chunk key.
func fuseWeightedRRF(keyword, vector []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	acc := make(map[string]*fusedCandidate, len(keyword)+len(vector))

	candidate := func(chunk domain.RetrievedChunk) *fusedCandidate {
		key := fusionKey(chunk)
		c, ok := acc[key]
		if !ok {
			c = &fusedCandidate{chunk: chunk, vectorRank: len(vector) + 1}
			acc[key] = c
		} else {
			c.chunk = preferRicherChunk(c.chunk, chunk)
		}
		return c
	}

	for rank, chunk := range keyword {
		c := candidate(chunk)
		c.inKeyword = true
		c.score += keywordWeight / float64(rrfK+rank+1)
	}
	for rank, chunk := range vector {
		c := candidate(chunk)
		c.inVector = true
		c.vectorRank = rank
		c.score += vectorWeight / float64(rrfK+rank+1)
	}

	out := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		c.chunk.Score = c.score
		switch {
		case c.inKeyword && c.inVector:
			c.chunk.Origin = domain.OriginFused
		case c.inVector:
			c.chunk.Origin = domain.OriginVector
		default:
			c.chunk.Origin = domain.OriginKeyword
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].vectorRank != out[j].vectorRank {
			return out[i].vectorRank < out[j].vectorRank
		}
		return fusionKey(out[i].chunk) < fusionKey(out[j].chunk)
	})

	chunks := make([]domain.RetrievedChunk, 0, len(out))
	for _, c := range out {
		chunks = append(chunks, c.chunk)
	}
	return trimCandidates(chunks, limit)
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func fusionKey(chunk domain.RetrievedChunk) string {
	if chunk.ID != "" {
		return chunk.ID
	}
	index, _ := chunk.MetaInt("chunk_index")
	return fmt.Sprintf("%s|%s|%d", chunk.MetaString("owner_ref"), chunk.MetaString("tag"), index)
}

// preferRicherChunk keeps whichever copy carries content and metadata; the
// keyword and vector stores may return the same chunk with different detail.
func preferRicherChunk(current, candidate domain.RetrievedChunk) domain.RetrievedChunk {
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if len(current.Metadata) == 0 && len(candidate.Metadata) > 0 {
		current.Metadata = candidate.Metadata
	}
	return current
}
