package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
	"github.com/sitedocs/docqa/internal/health"
	"github.com/sitedocs/docqa/internal/observability/metrics"
)

type TrafficConfig struct {
	RatePerSecond float64
	RateBurst     int
	MaxInFlight   int
	AcquireWait   time.Duration
}

type Router struct {
	qa       ports.QuestionAnswerer
	searcher ports.Searcher
	checker  *health.Checker
	metrics  *metrics.HTTPServerMetrics
	traffic  TrafficConfig
}

func NewRouter(
	qa ports.QuestionAnswerer,
	searcher ports.Searcher,
	checker *health.Checker,
	serverMetrics *metrics.HTTPServerMetrics,
	traffic TrafficConfig,
) *Router {
	if traffic.AcquireWait <= 0 {
		traffic.AcquireWait = 100 * time.Millisecond
	}
	return &Router{
		qa:       qa,
		searcher: searcher,
		checker:  checker,
		metrics:  serverMetrics,
		traffic:  traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/health/status", rt.healthStatus)
	mux.HandleFunc("/v1/qa", rt.answerQuestion)
	mux.HandleFunc("/v1/qa/stream", rt.answerQuestionStream)
	mux.HandleFunc("/v1/search", rt.searchChunks)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	// Traffic control guards the API surface only; health and metrics
	// endpoints stay reachable when the service sheds load.
	var api http.Handler = mux
	api = backpressureMiddleware(api, rt.traffic.MaxInFlight, rt.traffic.AcquireWait)
	api = rateLimitMiddleware(api, rt.traffic.RatePerSecond, rt.traffic.RateBurst)

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			api.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("docqa-api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) healthStatus(w http.ResponseWriter, _ *http.Request) {
	report := rt.checker.Snapshot()
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type qaRequestBody struct {
	Question   string `json:"question"`
	ProjectID  string `json:"project_id"`
	DocID      string `json:"doc_id"`
	DocType    string `json:"doc_type"`
	Discipline string `json:"discipline"`
	Size       int    `json:"size"`
}

func (b qaRequestBody) toPortRequest() ports.QARequest {
	return ports.QARequest{
		Question: b.Question,
		Filter: domain.SearchFilter{
			ProjectID:  b.ProjectID,
			DocID:      b.DocID,
			DocType:    b.DocType,
			Discipline: b.Discipline,
		},
		Size: b.Size,
	}
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body qaRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	answer, err := rt.qa.Answer(r.Context(), body.toPortRequest())
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeJSONError(w, status, clientErrorMessage(err, status))
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) answerQuestionStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body qaRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	rt.qa.AnswerStream(r.Context(), body.toPortRequest(), func(event domain.StreamEvent) {
		// A write failure means the client went away; the pipeline
		// notices via the request context.
		_ = stream.writeStreamEvent(event)
	})
}

func (rt *Router) searchChunks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	size := 0
	if raw := query.Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "size must be an integer")
			return
		}
		size = parsed
	}

	filter := domain.SearchFilter{
		ProjectID:  query.Get("project_id"),
		DocID:      query.Get("doc_id"),
		DocType:    query.Get("doc_type"),
		Discipline: query.Get("discipline"),
	}

	results, err := rt.searcher.Search(r.Context(), query.Get("q"), size, filter)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeJSONError(w, status, clientErrorMessage(err, status))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
