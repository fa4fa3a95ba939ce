package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

// QALimits bounds the stages of one answer pipeline run.
type QALimits struct {
	RerankTopN       int
	EmbedTimeout     time.Duration
	RetrieveTimeout  time.Duration
	RerankTimeout    time.Duration
	SynthesisTimeout time.Duration
}

func (l QALimits) normalize() QALimits {
	out := l
	if out.RerankTopN <= 0 {
		out.RerankTopN = 15
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 10 * time.Second
	}
	if out.RetrieveTimeout <= 0 {
		out.RetrieveTimeout = 15 * time.Second
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 10 * time.Second
	}
	if out.SynthesisTimeout <= 0 {
		out.SynthesisTimeout = 120 * time.Second
	}
	return out
}

// QAObserver records pipeline outcomes. Optional.
type QAObserver interface {
	RerankFellBack()
	SuggestionTested(found bool)
	AnswerCompleted(found bool, duration time.Duration)
	CitationsAttached(count int)
}

// QAUseCase runs the question-answering pipeline: TOC routing and query
// embedding in parallel, hybrid retrieval, cross-encoder reranking,
// bounded context assembly, structured synthesis, and suggestion testing
// when the answer is not found.
type QAUseCase struct {
	embedder  ports.Embedder
	retriever *HybridRetriever
	toc       *TOCRouter
	reranker  ports.Reranker
	generator ports.Generator
	suggester *SuggestionEngine
	publisher ports.AnswerEventPublisher
	metrics   QAObserver
	limits    QALimits
	ctxCfg    ContextConfig
}

func NewQAUseCase(
	embedder ports.Embedder,
	retriever *HybridRetriever,
	toc *TOCRouter,
	reranker ports.Reranker,
	generator ports.Generator,
	publisher ports.AnswerEventPublisher,
	metrics QAObserver,
	limits QALimits,
	ctxCfg ContextConfig,
) *QAUseCase {
	return &QAUseCase{
		embedder:  embedder,
		retriever: retriever,
		toc:       toc,
		reranker:  reranker,
		generator: generator,
		publisher: publisher,
		metrics:   metrics,
		limits:    limits.normalize(),
		ctxCfg:    ctxCfg.normalize(),
	}
}

// SetSuggestionEngine attaches the suggestion engine after construction.
// The engine runs the inner pipeline through this same use case, so the
// two reference each other.
func (u *QAUseCase) SetSuggestionEngine(engine *SuggestionEngine) {
	u.suggester = engine
}

var (
	errEmptyQuestion = errors.New("question must not be empty")
	errEmptyProject  = errors.New("project_id must not be empty")
)

func validateRequest(req ports.QARequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "qa request", errEmptyQuestion)
	}
	if strings.TrimSpace(req.Filter.ProjectID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "qa request", errEmptyProject)
	}
	return nil
}

// Answer runs the full pipeline once and, on a not-found outcome, attaches
// tested query suggestions before returning.
func (u *QAUseCase) Answer(ctx context.Context, req ports.QARequest) (*domain.Answer, error) {
	start := time.Now()

	answer, err := u.answerOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	if !answer.Found && u.suggester != nil {
		answer.Suggestions = u.suggester.Suggest(ctx, req)
	}

	u.finish(ctx, req, answer, time.Since(start))
	return answer, nil
}

// AnswerStream runs the pipeline while reporting progress and incremental
// answer text. The emit callback receives status events first, then chunk
// events, then exactly one done or error event.
func (u *QAUseCase) AnswerStream(ctx context.Context, req ports.QARequest, emit func(domain.StreamEvent)) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		emit(domain.ErrorEvent(err.Error()))
		return
	}

	emit(domain.StatusEvent("Searching documents..."))

	boosts, vector := u.routeAndEmbed(ctx, req)
	pool, err := u.retrieve(ctx, req, vector, boosts)
	if err != nil {
		slog.Error("qa_retrieval_failed", "project_id", req.Filter.ProjectID, "error", err)
		emit(domain.ErrorEvent("document search is temporarily unavailable"))
		return
	}

	if len(pool) == 0 {
		u.streamNotFound(ctx, req, emit, start)
		return
	}

	emit(domain.StatusEvent("Ranking results..."))
	selected := u.rerank(ctx, req.Question, pool)

	contextText, eligible := buildContext(selected, u.ctxCfg)
	if contextText == "" {
		u.streamNotFound(ctx, req, emit, start)
		return
	}

	emit(domain.StatusEvent("Generating answer..."))

	raw, streamErr := u.streamSynthesis(ctx, req, contextText, emit)
	if streamErr != nil {
		slog.Error("qa_stream_synthesis_failed", "project_id", req.Filter.ProjectID, "error", streamErr)
		emit(domain.ErrorEvent("answer generation failed"))
		return
	}

	answer, err := u.finishAnswer(raw, eligible)
	if err != nil {
		slog.Error("qa_stream_parse_failed", "project_id", req.Filter.ProjectID, "error", err)
		emit(domain.ErrorEvent("answer generation returned an unusable result"))
		return
	}

	if !answer.Found && u.suggester != nil {
		answer.Suggestions = u.suggester.Suggest(ctx, req)
	}

	u.finish(ctx, req, answer, time.Since(start))
	emit(domain.DoneEvent(answer))
}

// answerOnce is the non-streaming pipeline core, shared by Answer and by
// the suggestion engine's inner runs.
func (u *QAUseCase) answerOnce(ctx context.Context, req ports.QARequest) (*domain.Answer, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	boosts, vector := u.routeAndEmbed(ctx, req)

	pool, err := u.retrieve(ctx, req, vector, boosts)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return notFoundAnswer(), nil
	}

	selected := u.rerank(ctx, req.Question, pool)

	contextText, eligible := buildContext(selected, u.ctxCfg)
	if contextText == "" {
		return notFoundAnswer(), nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, u.limits.SynthesisTimeout)
	defer cancel()
	raw, err := u.generator.GenerateJSON(synthCtx, synthSystemPrompt, synthUserPrompt(req.Question, contextText))
	if err != nil {
		return nil, domain.WrapError(domain.ErrSynthesisFailure, "generate answer", err)
	}

	return u.finishAnswer(raw, eligible)
}

// routeAndEmbed resolves TOC page boosts and the query embedding
// concurrently. Either side failing degrades the query, never fails it.
func (u *QAUseCase) routeAndEmbed(ctx context.Context, req ports.QARequest) ([]domain.PageBoost, []float32) {
	var boosts []domain.PageBoost
	var vector []float32

	done := make(chan struct{})
	go func() {
		defer close(done)
		boosts = u.toc.Route(ctx, req.Filter.ProjectID, req.Filter.DocID, req.Question)
	}()

	embedCtx, cancel := context.WithTimeout(ctx, u.limits.EmbedTimeout)
	defer cancel()
	v, err := u.embedder.EmbedQuery(embedCtx, req.Question)
	if err != nil {
		slog.Warn("qa_embedding_failed_lexical_only", "project_id", req.Filter.ProjectID, "error", err)
	} else {
		vector = v
	}

	<-done
	return boosts, vector
}

func (u *QAUseCase) retrieve(ctx context.Context, req ports.QARequest, vector []float32, boosts []domain.PageBoost) ([]domain.Candidate, error) {
	retrieveCtx, cancel := context.WithTimeout(ctx, u.limits.RetrieveTimeout)
	defer cancel()
	return u.retriever.Retrieve(retrieveCtx, req.Question, vector, req.Filter, boosts, req.Size)
}

func (u *QAUseCase) rerank(ctx context.Context, question string, pool []domain.Candidate) []domain.Candidate {
	rerankCtx, cancel := context.WithTimeout(ctx, u.limits.RerankTimeout)
	defer cancel()
	ranked, fellBack := rerankCandidates(rerankCtx, u.reranker, question, pool, u.limits.RerankTopN)
	if fellBack && u.metrics != nil {
		u.metrics.RerankFellBack()
	}
	return ranked
}

// streamSynthesis drives the token stream, extracting the answer field
// incrementally and emitting it as chunk events. It returns the full raw
// model reply for final parsing.
func (u *QAUseCase) streamSynthesis(ctx context.Context, req ports.QARequest, contextText string, emit func(domain.StreamEvent)) (string, error) {
	synthCtx, cancel := context.WithTimeout(ctx, u.limits.SynthesisTimeout)
	defer cancel()

	tokens, errs, err := u.generator.StreamGenerate(synthCtx, synthSystemPrompt, synthUserPrompt(req.Question, contextText))
	if err != nil {
		return "", domain.WrapError(domain.ErrSynthesisFailure, "start answer stream", err)
	}

	var raw strings.Builder
	var extractor answerFieldExtractor
	for {
		select {
		case token, ok := <-tokens:
			if !ok {
				select {
				case err := <-errs:
					if err != nil {
						return "", domain.WrapError(domain.ErrSynthesisFailure, "answer stream", err)
					}
				default:
				}
				return raw.String(), nil
			}
			raw.WriteString(token)
			if delta := extractor.next(raw.String()); delta != "" {
				emit(domain.ChunkEvent(delta))
			}
		case err := <-errs:
			if err != nil {
				return "", domain.WrapError(domain.ErrSynthesisFailure, "answer stream", err)
			}
		case <-synthCtx.Done():
			return "", domain.WrapError(domain.ErrSynthesisFailure, "answer stream", synthCtx.Err())
		}
	}
}

// finishAnswer turns the raw model reply into the final Answer, enforcing
// citation grounding against the citation-eligible candidates.
func (u *QAUseCase) finishAnswer(raw string, eligible []domain.Candidate) (*domain.Answer, error) {
	reply, err := parseModelReply(raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSynthesisFailure, "parse answer", err)
	}

	found := reply.answerFound()
	answer := &domain.Answer{
		Text:      reply.Answer,
		Found:     found,
		Citations: []domain.Citation{},
	}
	if !found {
		return answer, nil
	}

	answer.Citations = groundCitations(reply.Citations, eligible)
	if len(answer.Citations) == 0 {
		answer.Citations = fallbackCitations(eligible, 3)
	}
	return answer, nil
}

// streamNotFound closes out a stream whose retrieval produced nothing to
// answer from. The sentinel text goes out as one chunk so concatenation
// still reproduces the final answer.
func (u *QAUseCase) streamNotFound(ctx context.Context, req ports.QARequest, emit func(domain.StreamEvent), start time.Time) {
	answer := notFoundAnswer()
	if u.suggester != nil {
		answer.Suggestions = u.suggester.Suggest(ctx, req)
	}
	emit(domain.ChunkEvent(answer.Text))
	u.finish(ctx, req, answer, time.Since(start))
	emit(domain.DoneEvent(answer))
}

func notFoundAnswer() *domain.Answer {
	return &domain.Answer{
		Text:      domain.NotFoundAnswer,
		Found:     false,
		Citations: []domain.Citation{},
	}
}

// finish records metrics and publishes the completion event. Best effort;
// the answer is already final.
func (u *QAUseCase) finish(ctx context.Context, req ports.QARequest, answer *domain.Answer, elapsed time.Duration) {
	if u.metrics != nil {
		u.metrics.AnswerCompleted(answer.Found, elapsed)
		if answer.Found {
			u.metrics.CitationsAttached(len(answer.Citations))
		}
	}
	if u.publisher == nil {
		return
	}
	event := domain.AnsweredEvent{
		EventID:       uuid.NewString(),
		ProjectID:     req.Filter.ProjectID,
		Question:      req.Question,
		Answer:        answer.Text,
		Found:         answer.Found,
		CitationCount: len(answer.Citations),
		Suggestions:   len(answer.Suggestions),
		DurationMS:    elapsed.Milliseconds(),
		At:            time.Now().UTC(),
	}
	if err := u.publisher.PublishAnswered(ctx, event); err != nil {
		slog.Warn("qa_event_publish_failed", "project_id", req.Filter.ProjectID, "error", err)
	}
}
