package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRerankScoresInInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "rerank-model" || len(req.Documents) != 3 || req.TopN != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		// Results come back relevance-ordered, not input-ordered.
		_, _ = w.Write([]byte(`{"results":[
			{"index":2,"relevance_score":0.9},
			{"index":0,"relevance_score":0.4},
			{"index":1,"relevance_score":0.1}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key", "rerank-model", nil)
	scores, err := client.Rerank(context.Background(), "q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	want := []float64{0.4, 0.1, 0.9}
	for i, s := range scores {
		if s != want[i] {
			t.Fatalf("scores = %v, want %v", scores, want)
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	client := New("http://unused", "", "m", nil)
	scores, err := client.Rerank(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil/nil, got %v %v", scores, err)
	}
}

func TestRerankIndexOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":9,"relevance_score":0.9}]}`))
	}))
	defer server.Close()

	if _, err := New(server.URL, "", "m", nil).Rerank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestRerankStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := New(server.URL, "", "m", nil).Rerank(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}
