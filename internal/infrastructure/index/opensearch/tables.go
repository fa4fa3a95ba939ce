package opensearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sitedocs/docqa/internal/core/domain"
)

const tableVectorField = "embedding"

// TableIndex adapts the client to the table-row port. Rows matching an
// extracted construction label exactly are pushed up with a term boost.
type TableIndex struct {
	client *Client
}

func NewTableIndex(client *Client) *TableIndex {
	return &TableIndex{client: client}
}

func (i *TableIndex) SearchLexical(ctx context.Context, query string, labels []string, size int, filter domain.SearchFilter) ([]domain.TableRow, []float64, error) {
	boolQuery := map[string]any{
		"must": []map[string]any{{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"table_text^2", "table_label"},
			},
		}},
	}
	if clauses := filterClauses(filter); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}
	if len(labels) > 0 {
		should := make([]map[string]any, 0, len(labels))
		for _, label := range labels {
			should = append(should, map[string]any{
				"term": map[string]any{"labels": map[string]any{"value": label, "boost": 2.0}},
			})
		}
		boolQuery["should"] = should
	}

	body := map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
	}

	hits, err := i.client.search(ctx, i.client.tableIndex, body, "table_bm25")
	if err != nil {
		return nil, nil, err
	}
	return decodeTableHits(hits)
}

func (i *TableIndex) SearchVector(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.TableRow, []float64, error) {
	body := knnQuery(tableVectorField, queryVector, k, filter)

	hits, err := i.client.search(ctx, i.client.tableIndex, body, "table_knn")
	if err != nil {
		return nil, nil, err
	}
	return decodeTableHits(hits)
}

func decodeTableHits(hits []searchHit) ([]domain.TableRow, []float64, error) {
	rows := make([]domain.TableRow, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	for _, hit := range hits {
		var row domain.TableRow
		if err := json.Unmarshal(hit.Source, &row); err != nil {
			return nil, nil, fmt.Errorf("decode table hit %s: %w", hit.ID, err)
		}
		if row.RowID == "" {
			row.RowID = hit.ID
		}
		rows = append(rows, row)
		scores = append(scores, hit.Score)
	}
	return rows, scores, nil
}
