package httpadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
	"github.com/sitedocs/docqa/internal/health"
)

type answererFake struct {
	answer  *domain.Answer
	err     error
	events  []domain.StreamEvent
	gotReq  ports.QARequest
	answers int
}

func (f *answererFake) Answer(_ context.Context, req ports.QARequest) (*domain.Answer, error) {
	f.gotReq = req
	f.answers++
	return f.answer, f.err
}

func (f *answererFake) AnswerStream(_ context.Context, req ports.QARequest, emit func(domain.StreamEvent)) {
	f.gotReq = req
	for _, event := range f.events {
		emit(event)
	}
}

type searcherFake struct {
	results   []domain.SearchResult
	err       error
	gotQuery  string
	gotSize   int
	gotFilter domain.SearchFilter
}

func (f *searcherFake) Search(_ context.Context, query string, size int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	f.gotQuery = query
	f.gotSize = size
	f.gotFilter = filter
	return f.results, f.err
}

func newTestRouter(qa *answererFake, searcher *searcherFake, traffic TrafficConfig) http.Handler {
	checker := health.NewChecker(time.Minute)
	return NewRouter(qa, searcher, checker, nil, traffic).Handler()
}

func TestAnswerQuestionReturnsAnswer(t *testing.T) {
	qa := &answererFake{answer: &domain.Answer{
		Text:  "Fire rating for W2A is 1 hour.",
		Found: true,
		Citations: []domain.Citation{
			{DocID: "d1", PageNumber: 10, Snippet: "1-hour rating"},
		},
	}}
	handler := newTestRouter(qa, &searcherFake{}, TrafficConfig{})

	body := `{"question":"What is the fire rating for W2A?","project_id":"p1","doc_type":"spec","size":30}`
	req := httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}

	var got domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Found || got.Text != "Fire rating for W2A is 1 hour." {
		t.Fatalf("unexpected answer: %+v", got)
	}
	if qa.gotReq.Filter.ProjectID != "p1" || qa.gotReq.Filter.DocType != "spec" {
		t.Fatalf("filter not forwarded: %+v", qa.gotReq.Filter)
	}
	if qa.gotReq.Size != 30 {
		t.Fatalf("size not forwarded: %d", qa.gotReq.Size)
	}
}

func TestAnswerQuestionMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "qa.validate", errors.New("question must not be empty")), http.StatusBadRequest},
		{"retrieval down", domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable},
		{"synthesis failure", domain.ErrSynthesisFailure, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&answererFake{err: tc.err}, &searcherFake{}, TrafficConfig{})

			req := httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader(`{"question":"q","project_id":"p1"}`))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, res.Code)
			}
			var payload map[string]string
			if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload["error"] == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestAnswerQuestionRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&answererFake{}, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAnswerQuestionRejectsGet(t *testing.T) {
	handler := newTestRouter(&answererFake{}, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/qa", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestAnswerStreamEmitsNamedSSEEvents(t *testing.T) {
	qa := &answererFake{events: []domain.StreamEvent{
		domain.StatusEvent("Searching documents..."),
		domain.ChunkEvent("Fire rating "),
		domain.ChunkEvent("is 1 hour."),
		domain.DoneEvent(&domain.Answer{Text: "Fire rating is 1 hour.", Found: true}),
	}}
	handler := newTestRouter(qa, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/qa/stream", strings.NewReader(`{"question":"q","project_id":"p1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}

	var names []string
	var chunkText strings.Builder
	scanner := bufio.NewScanner(res.Body)
	var currentEvent string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
			names = append(names, currentEvent)
		case strings.HasPrefix(line, "data: ") && currentEvent == "chunk":
			var payload sseChunkPayload
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
				t.Fatalf("decode chunk payload: %v", err)
			}
			chunkText.WriteString(payload.Content)
		case strings.HasPrefix(line, "data: ") && currentEvent == "done":
			var answer domain.Answer
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &answer); err != nil {
				t.Fatalf("decode done payload: %v", err)
			}
			if answer.Text != "Fire rating is 1 hour." {
				t.Fatalf("unexpected done answer: %+v", answer)
			}
		}
	}

	want := []string{"status", "chunk", "chunk", "done"}
	if len(names) != len(want) {
		t.Fatalf("expected events %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, names)
		}
	}
	if chunkText.String() != "Fire rating is 1 hour." {
		t.Fatalf("chunk concatenation mismatch: %q", chunkText.String())
	}
}

func TestAnswerStreamErrorEvent(t *testing.T) {
	qa := &answererFake{events: []domain.StreamEvent{
		domain.StatusEvent("Searching documents..."),
		domain.ErrorEvent("document search is temporarily unavailable"),
	}}
	handler := newTestRouter(qa, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/qa/stream", strings.NewReader(`{"question":"q","project_id":"p1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	body := res.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Fatalf("expected error event, got %q", body)
	}
	if !strings.Contains(body, "document search is temporarily unavailable") {
		t.Fatalf("expected error message in stream, got %q", body)
	}
}

func TestSearchForwardsQueryAndFilter(t *testing.T) {
	searcher := &searcherFake{results: []domain.SearchResult{
		{Chunk: domain.Chunk{ChunkID: "c1", DocID: "d1", PageNumber: 3, Text: "wall type W2A"}, Score: 0.042},
	}}
	handler := newTestRouter(&answererFake{}, searcher, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=wall+types&project_id=p1&discipline=architectural&size=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if searcher.gotQuery != "wall types" || searcher.gotSize != 5 {
		t.Fatalf("query not forwarded: %q size %d", searcher.gotQuery, searcher.gotSize)
	}
	if searcher.gotFilter.ProjectID != "p1" || searcher.gotFilter.Discipline != "architectural" {
		t.Fatalf("filter not forwarded: %+v", searcher.gotFilter)
	}

	var payload struct {
		Results []domain.SearchResult `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].ChunkID != "c1" {
		t.Fatalf("unexpected results: %+v", payload.Results)
	}
}

func TestSearchRejectsBadSize(t *testing.T) {
	handler := newTestRouter(&answererFake{}, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=walls&project_id=p1&size=ten", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestHealthStatusReflectsChecker(t *testing.T) {
	checker := health.NewChecker(time.Minute)
	handler := NewRouter(&answererFake{}, &searcherFake{}, checker, nil, TrafficConfig{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health/status", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first probe pass, got %d", res.Code)
	}

	var report health.Report
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != "starting" {
		t.Fatalf("expected starting status, got %q", report.Status)
	}
}

func TestHealthzAlwaysOK(t *testing.T) {
	handler := newTestRouter(&answererFake{}, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestRateLimitReturns429WithRetryAfter(t *testing.T) {
	qa := &answererFake{answer: &domain.Answer{Text: domain.NotFoundAnswer}}
	handler := newTestRouter(qa, &searcherFake{}, TrafficConfig{RatePerSecond: 1, RateBurst: 1})

	body := `{"question":"q","project_id":"p1"}`
	req1 := httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader(body))
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader(body))
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitExemptsHealthEndpoints(t *testing.T) {
	handler := newTestRouter(&answererFake{}, &searcherFake{}, TrafficConfig{RatePerSecond: 1, RateBurst: 1})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("health request %d expected 200, got %d", i, res.Code)
		}
	}
}

func TestBackpressureReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first request")
	}
}

func TestAccessLogSkipsQuietPaths(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	qa := &answererFake{answer: &domain.Answer{Text: domain.NotFoundAnswer}}
	handler := newTestRouter(qa, &searcherFake{}, TrafficConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if strings.Contains(buf.String(), "http_request") {
		t.Fatalf("healthz must not be access-logged: %s", buf.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/qa", strings.NewReader(`{"question":"q","project_id":"p1"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), "http_request") {
		t.Fatalf("expected access log for api request: %s", buf.String())
	}
}
