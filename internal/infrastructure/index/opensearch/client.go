package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/infrastructure/resilience"
)

// Client talks to an OpenSearch cluster holding the chunk and table-row
// indices. Both indices are written by the ingestion pipeline; this client
// only searches.
type Client struct {
	baseURL    string
	chunkIndex string
	tableIndex string
	username   string
	password   string
	httpClient *http.Client
	exec       *resilience.Executor
}

type Option func(*Client)

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL, chunkIndex, tableIndex string, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chunkIndex: chunkIndex,
		tableIndex: tableIndex,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func (c *Client) search(ctx context.Context, index string, query map[string]any, operation string) ([]searchHit, error) {
	var out searchResponse
	run := func(ctx context.Context) error {
		return c.postJSON(ctx, "/"+index+"/_search", query, &out, operation)
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, operation, run, classifySearchError)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}
	return out.Hits.Hits, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opensearch %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// Ping is a cluster liveness probe for health checks. It bypasses the
// resilience executor so a probe never trips the search breakers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opensearch ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newStatusError("ping", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func newStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// filterClauses renders the search filter into term clauses shared by every
// query against either index.
func filterClauses(filter domain.SearchFilter) []map[string]any {
	clauses := make([]map[string]any, 0, 4)
	if filter.ProjectID != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"project_id": filter.ProjectID}})
	}
	if filter.DocID != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"doc_id": filter.DocID}})
	}
	if filter.DocType != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"doc_type": filter.DocType}})
	}
	if filter.Discipline != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"discipline": filter.Discipline}})
	}
	return clauses
}

// boostClauses turns TOC page boosts into constant-score should clauses so
// the backend pulls boosted pages into the fetched pool.
func boostClauses(boosts []domain.PageBoost) []map[string]any {
	clauses := make([]map[string]any, 0, len(boosts))
	for _, b := range boosts {
		clauses = append(clauses, map[string]any{
			"constant_score": map[string]any{
				"filter": map[string]any{
					"bool": map[string]any{
						"must": []map[string]any{
							{"term": map[string]any{"doc_id": b.DocID}},
							{"range": map[string]any{"page_number": map[string]any{"gte": b.PageStart, "lte": b.PageEnd}}},
						},
					},
				},
				"boost": b.Weight,
			},
		})
	}
	return clauses
}

func knnQuery(field string, vector []float32, k int, filter domain.SearchFilter) map[string]any {
	inner := map[string]any{
		"vector": vector,
		"k":      k,
	}
	if clauses := filterClauses(filter); len(clauses) > 0 {
		inner["filter"] = map[string]any{"bool": map[string]any{"must": clauses}}
	}
	return map[string]any{
		"size":  k,
		"query": map[string]any{"knn": map[string]any{field: inner}},
	}
}
