package usecase

import (
	"testing"

	"github.com/sitedocs/docqa/internal/core/domain"
)

func TestFuseCandidatesRRFOrdersByFusedScore(t *testing.T) {
	lexical := []domain.Candidate{
		{ID: "a", DocID: "d1"},
		{ID: "b", DocID: "d1"},
	}
	vector := []domain.Candidate{
		{ID: "b", DocID: "d1"},
		{ID: "c", DocID: "d2"},
	}

	fused := fuseCandidatesRRF(lexical, vector, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}
	// b appears rank 2 lexical and rank 1 vector, so it outscores a.
	if fused[0].ID != "b" {
		t.Fatalf("expected b first, got %s", fused[0].ID)
	}
	if fused[0].HybridScore <= fused[1].HybridScore {
		t.Fatalf("fused order not descending: %f <= %f", fused[0].HybridScore, fused[1].HybridScore)
	}
}

func TestFuseCandidatesRRFKeepsRicherCopy(t *testing.T) {
	lexical := []domain.Candidate{
		{ID: "a", DocID: "d1", LexicalScore: 4.2},
	}
	vector := []domain.Candidate{
		{ID: "a", DocID: "d1", Text: "full text", Section: "S1", BBox: []float64{1, 2, 3, 4}, VectorScore: 0.9},
	}

	fused := fuseCandidatesRRF(lexical, vector, 60)
	if len(fused) != 1 {
		t.Fatalf("expected dedup to 1 candidate, got %d", len(fused))
	}
	got := fused[0]
	if got.Text != "full text" || got.Section != "S1" || len(got.BBox) != 4 {
		t.Fatalf("richer copy not kept: %+v", got)
	}
	if got.LexicalScore != 4.2 || got.VectorScore != 0.9 {
		t.Fatalf("per-signal scores lost: %+v", got)
	}
}

func TestFuseCandidatesRRFDeterministicTieBreak(t *testing.T) {
	lexical := []domain.Candidate{
		{ID: "z", DocID: "d2"},
	}
	vector := []domain.Candidate{
		{ID: "a", DocID: "d1"},
	}

	for i := 0; i < 20; i++ {
		fused := fuseCandidatesRRF(lexical, vector, 60)
		if fused[0].DocID != "d1" || fused[1].DocID != "d2" {
			t.Fatalf("tie break not deterministic on run %d: %s, %s", i, fused[0].ID, fused[1].ID)
		}
	}
}

func TestTrimCandidates(t *testing.T) {
	pool := []domain.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := trimCandidates(pool, 2); len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got := trimCandidates(pool, 0); len(got) != 3 {
		t.Fatalf("zero limit must keep all, got %d", len(got))
	}
}
