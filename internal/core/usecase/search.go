package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

const (
	searchDefaultSize = 10
	searchMaxSize     = 100
)

// SearchUseCase is the direct hybrid-search surface. It runs routing,
// embedding, and fused retrieval but skips reranking and synthesis, so
// results come back in fused hybrid order.
type SearchUseCase struct {
	embedder  ports.Embedder
	retriever *HybridRetriever
	toc       *TOCRouter
}

func NewSearchUseCase(embedder ports.Embedder, retriever *HybridRetriever, toc *TOCRouter) *SearchUseCase {
	return &SearchUseCase{
		embedder:  embedder,
		retriever: retriever,
		toc:       toc,
	}
}

func (u *SearchUseCase) Search(ctx context.Context, query string, size int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errEmptyQuestion)
	}
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errEmptyProject)
	}
	if size <= 0 {
		size = searchDefaultSize
	}
	if size > searchMaxSize {
		size = searchMaxSize
	}

	boosts := u.toc.Route(ctx, filter.ProjectID, filter.DocID, query)

	var vector []float32
	if v, err := u.embedder.EmbedQuery(ctx, query); err != nil {
		slog.Warn("search_embedding_failed_lexical_only", "project_id", filter.ProjectID, "error", err)
	} else {
		vector = v
	}

	candidates, err := u.retriever.Retrieve(ctx, query, vector, filter, boosts, size)
	if err != nil {
		return nil, err
	}
	if len(candidates) > size {
		candidates = candidates[:size]
	}

	out := make([]domain.SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, domain.SearchResult{
			Chunk: domain.Chunk{
				ChunkID:    cand.ID,
				DocID:      cand.DocID,
				ProjectID:  cand.ProjectID,
				PageNumber: cand.PageNumber,
				Section:    cand.Section,
				Text:       cand.Text,
				BBox:       cand.BBox,
				Source:     cand.Source,
				Confidence: cand.Confidence,
			},
			Score: cand.HybridScore,
		})
	}
	return out, nil
}
