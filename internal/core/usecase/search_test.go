package usecase

import (
	"context"
	"testing"

	"github.com/sitedocs/docqa/internal/core/domain"
)

func testSearch(chunks *chunkIndexFake, tables *tableIndexFake) *SearchUseCase {
	retriever := NewHybridRetriever(chunks, tables, RetrieverConfig{}, nil)
	return NewSearchUseCase(&embedderFake{vector: []float32{0.1}}, retriever, NewTOCRouter(nil))
}

func TestSearchDefaultSize(t *testing.T) {
	chunks := &chunkIndexFake{
		lexical:   []domain.Chunk{{ChunkID: "c1", DocID: "d1", PageNumber: 1, Text: "hit"}},
		lexScores: []float64{1.0},
	}
	uc := testSearch(chunks, &tableIndexFake{})

	results, err := uc.Search(context.Background(), "query", 0, domain.SearchFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if chunks.lexSize != searchDefaultSize {
		t.Fatalf("expected default size %d, got %d", searchDefaultSize, chunks.lexSize)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Score <= 0 {
		t.Fatalf("expected fused score, got %f", results[0].Score)
	}
}

func TestSearchClampsSize(t *testing.T) {
	chunks := &chunkIndexFake{}
	uc := testSearch(chunks, &tableIndexFake{})

	if _, err := uc.Search(context.Background(), "query", 5000, domain.SearchFilter{ProjectID: "p1"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if chunks.lexSize != searchMaxSize {
		t.Fatalf("expected clamp to %d, got %d", searchMaxSize, chunks.lexSize)
	}
}

func TestSearchValidation(t *testing.T) {
	uc := testSearch(&chunkIndexFake{}, &tableIndexFake{})

	if _, err := uc.Search(context.Background(), " ", 10, domain.SearchFilter{ProjectID: "p1"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := uc.Search(context.Background(), "q", 10, domain.SearchFilter{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchDegradesWithoutEmbedding(t *testing.T) {
	chunks := &chunkIndexFake{
		lexical:   []domain.Chunk{{ChunkID: "c1", DocID: "d1"}},
		lexScores: []float64{1.0},
	}
	retriever := NewHybridRetriever(chunks, &tableIndexFake{}, RetrieverConfig{}, nil)
	uc := NewSearchUseCase(&embedderFake{err: context.DeadlineExceeded}, retriever, NewTOCRouter(nil))

	results, err := uc.Search(context.Background(), "query", 10, domain.SearchFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if chunks.vecCalled {
		t.Fatal("vector search must be skipped when embedding fails")
	}
	if len(results) != 1 {
		t.Fatalf("expected lexical-only result, got %d", len(results))
	}
}
