package ports

import (
	"context"

	"github.com/sitedocs/docqa/internal/core/domain"
)

// QARequest is one question against one project.
type QARequest struct {
	Question string
	Filter   domain.SearchFilter
	// Size caps retrieval fan-out; zero means the configured default.
	Size int
}

// QuestionAnswerer is the inbound contract for the QA pipeline.
type QuestionAnswerer interface {
	Answer(ctx context.Context, req QARequest) (*domain.Answer, error)
	// AnswerStream runs the same pipeline but reports progress and
	// incremental answer text through emit. Emit is called from a single
	// goroutine in event order; the terminal event is always last.
	AnswerStream(ctx context.Context, req QARequest, emit func(domain.StreamEvent))
}

// Searcher is the inbound contract for direct hybrid search, bypassing
// reranking and synthesis.
type Searcher interface {
	Search(ctx context.Context, query string, size int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}
