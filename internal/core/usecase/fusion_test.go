package usecase

import (
	"testing"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

func chunk(id, content string) domain.RetrievedChunk {
	return domain.RetrievedChunk{ID: id, Content: content}
}

func TestFusionMonotonicity(t *testing.T) {
	// A outranks B in both sub-rankings, so A's fused score must exceed B's.
	keyword := []domain.RetrievedChunk{chunk("a", "A"), chunk("b", "B")}
	vector := []domain.RetrievedChunk{chunk("a", "A"), chunk("b", "B")}

	fused := fuseWeightedRRF(keyword, vector, 0)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused chunks, got %d", len(fused))
	}
	if fused[0].ID != "a" {
		t.Fatalf("expected a first, got %s", fused[0].ID)
	}
	if fused[0].Score <= fused[1].Score {
		t.Fatalf("expected strict score ordering: %f vs %f", fused[0].Score, fused[1].Score)
	}
	if fused[0].Origin != domain.OriginFused {
		t.Fatalf("expected fused origin, got %s", fused[0].Origin)
	}
}

func TestFusionCompleteness(t *testing.T) {
	// A candidate in only one ranking still appears, scored strictly below
	// what the same rank in both rankings would earn.
	vectorOnly := fuseWeightedRRF(nil, []domain.RetrievedChunk{chunk("x", "X")}, 0)
	if len(vectorOnly) != 1 {
		t.Fatalf("single-ranking candidate missing: %v", vectorOnly)
	}
	if vectorOnly[0].Origin != domain.OriginVector {
		t.Fatalf("expected vector origin, got %s", vectorOnly[0].Origin)
	}

	both := fuseWeightedRRF(
		[]domain.RetrievedChunk{chunk("x", "X")},
		[]domain.RetrievedChunk{chunk("x", "X")},
		0,
	)
	if both[0].Score <= vectorOnly[0].Score {
		t.Fatalf("dual-ranking score %f must exceed single-ranking score %f", both[0].Score, vectorOnly[0].Score)
	}
}

func TestFusionWeights(t *testing.T) {
	// Same rank in exactly one ranking each: the vector hit must win on the
	// 0.7 vs 0.3 weighting.
	fused := fuseWeightedRRF(
		[]domain.RetrievedChunk{chunk("kw", "K")},
		[]domain.RetrievedChunk{chunk("vec", "V")},
		0,
	)
	if len(fused) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(fused))
	}
	if fused[0].ID != "vec" {
		t.Fatalf("vector-weighted candidate should rank first, got %s", fused[0].ID)
	}
}

func TestFusionDeterminism(t *testing.T) {
	keyword := []domain.RetrievedChunk{chunk("a", "A"), chunk("b", "B"), chunk("c", "C")}
	vector := []domain.RetrievedChunk{chunk("c", "C"), chunk("d", "D"), chunk("a", "A")}

	first := fuseWeightedRRF(keyword, vector, 0)
	for i := 0; i < 20; i++ {
		again := fuseWeightedRRF(keyword, vector, 0)
		if len(again) != len(first) {
			t.Fatalf("length changed across runs: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if again[j].ID != first[j].ID {
				t.Fatalf("ordering changed across runs at %d: %s vs %s", j, again[j].ID, first[j].ID)
			}
		}
	}
}

func TestFusionCandidateLimit(t *testing.T) {
	var keyword []domain.RetrievedChunk
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		keyword = append(keyword, chunk(id, id))
	}
	fused := fuseWeightedRRF(keyword, nil, 3)
	if len(fused) != 3 {
		t.Fatalf("expected trim to 3, got %d", len(fused))
	}
}

func TestFusionPrefersRicherCopy(t *testing.T) {
	bare := domain.RetrievedChunk{ID: "x"}
	rich := domain.RetrievedChunk{ID: "x", Content: "본문", Metadata: map[string]any{"title": "doc"}}

	fused := fuseWeightedRRF(
		[]domain.RetrievedChunk{bare},
		[]domain.RetrievedChunk{rich},
		0,
	)
	if fused[0].Content != "본문" || fused[0].MetaString("title") != "doc" {
		t.Fatalf("richer copy not kept: %+v", fused[0])
	}
}
