package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

// rerankCandidates rescores the pool with the cross-encoder and keeps the
// top N. When the reranker is unavailable the hybrid ordering stands and
// the request proceeds; fellBack reports that condition for observability.
func rerankCandidates(
	ctx context.Context,
	reranker ports.Reranker,
	question string,
	pool []domain.Candidate,
	topN int,
) (ranked []domain.Candidate, fellBack bool) {
	if len(pool) == 0 {
		return pool, false
	}
	if topN <= 0 || topN > len(pool) {
		topN = len(pool)
	}

	out := make([]domain.Candidate, len(pool))
	copy(out, pool)

	if reranker != nil {
		texts := make([]string, len(out))
		for i := range out {
			texts[i] = out[i].Text
		}
		scores, err := reranker.Rerank(ctx, question, texts)
		if err != nil || len(scores) != len(out) {
			slog.Warn("rerank_fallback_hybrid_order", "candidates", len(out), "error", err)
			fellBack = true
		} else {
			for i := range out {
				out[i].RerankScore = scores[i]
			}
			sortByRerank(out)
			return out[:topN], false
		}
	} else {
		fellBack = true
	}

	// The fallback contract is the pre-rerank hybrid ordering.
	sortByHybrid(out)
	return out[:topN], fellBack
}

func sortByRerank(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RerankScore != candidates[j].RerankScore {
			return candidates[i].RerankScore > candidates[j].RerankScore
		}
		if candidates[i].HybridScore != candidates[j].HybridScore {
			return candidates[i].HybridScore > candidates[j].HybridScore
		}
		if candidates[i].DocID != candidates[j].DocID {
			return candidates[i].DocID < candidates[j].DocID
		}
		return candidates[i].ID < candidates[j].ID
	})
}

func sortByHybrid(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].HybridScore != candidates[j].HybridScore {
			return candidates[i].HybridScore > candidates[j].HybridScore
		}
		if candidates[i].DocID != candidates[j].DocID {
			return candidates[i].DocID < candidates[j].DocID
		}
		return candidates[i].ID < candidates[j].ID
	})
}
