package opensearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sitedocs/docqa/internal/core/domain"
)

const chunkVectorField = "embedding"

// ChunkIndex adapts the client to the chunk-index port.
type ChunkIndex struct {
	client *Client
}

func NewChunkIndex(client *Client) *ChunkIndex {
	return &ChunkIndex{client: client}
}

func (i *ChunkIndex) SearchLexical(ctx context.Context, query string, size int, filter domain.SearchFilter, boosts []domain.PageBoost) ([]domain.Chunk, []float64, error) {
	boolQuery := map[string]any{
		"must": []map[string]any{{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"text^3", "section^1.5"},
			},
		}},
	}
	if clauses := filterClauses(filter); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}
	if clauses := boostClauses(boosts); len(clauses) > 0 {
		boolQuery["should"] = clauses
	}

	body := map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
	}

	hits, err := i.client.search(ctx, i.client.chunkIndex, body, "chunk_bm25")
	if err != nil {
		return nil, nil, err
	}
	return decodeChunkHits(hits)
}

func (i *ChunkIndex) SearchVector(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.Chunk, []float64, error) {
	body := knnQuery(chunkVectorField, queryVector, k, filter)

	hits, err := i.client.search(ctx, i.client.chunkIndex, body, "chunk_knn")
	if err != nil {
		return nil, nil, err
	}
	return decodeChunkHits(hits)
}

func decodeChunkHits(hits []searchHit) ([]domain.Chunk, []float64, error) {
	chunks := make([]domain.Chunk, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	for _, hit := range hits {
		var chunk domain.Chunk
		if err := json.Unmarshal(hit.Source, &chunk); err != nil {
			return nil, nil, fmt.Errorf("decode chunk hit %s: %w", hit.ID, err)
		}
		if chunk.ChunkID == "" {
			chunk.ChunkID = hit.ID
		}
		chunks = append(chunks, chunk)
		scores = append(scores, hit.Score)
	}
	return chunks, scores, nil
}
