package ports

import (
	"context"

	"github.com/sitedocs/docqa/internal/core/domain"
)

// ChunkIndex answers lexical and vector queries over the document-chunk
// index. Read-only; the ingestion pipeline owns writes.
type ChunkIndex interface {
	SearchLexical(ctx context.Context, query string, size int, filter domain.SearchFilter, boosts []domain.PageBoost) ([]domain.Chunk, []float64, error)
	SearchVector(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.Chunk, []float64, error)
}

// TableIndex answers the same two-signal queries over extracted table rows.
type TableIndex interface {
	SearchLexical(ctx context.Context, query string, labels []string, size int, filter domain.SearchFilter) ([]domain.TableRow, []float64, error)
	SearchVector(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.TableRow, []float64, error)
}

// Embedder converts question text into a fixed-length dense vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker rescores candidate texts against the question. Scores come back
// in input order; a failure here must degrade, not fail the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Generator drives the language model.
type Generator interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
	// StreamGenerate emits raw model tokens on the returned channel, which
	// is closed when the stream ends. A non-nil error on the second channel
	// terminates the stream.
	StreamGenerate(ctx context.Context, system, user string) (<-chan string, <-chan error, error)
}

// TOCStore reads table-of-contents entries for a project.
type TOCStore interface {
	ListEntries(ctx context.Context, projectID, docID string) ([]domain.TOCEntry, error)
}

// SuggestionCache keeps tested query suggestions for a short TTL so a
// repeated not-found question does not redo three inner pipeline runs.
type SuggestionCache interface {
	Get(projectID, question string) ([]domain.QuerySuggestion, bool)
	Set(projectID, question string, suggestions []domain.QuerySuggestion)
}

// AnswerEventPublisher broadcasts completed answers for external
// consumers (conversation persistence, dashboard). Best effort.
type AnswerEventPublisher interface {
	PublishAnswered(ctx context.Context, event domain.AnsweredEvent) error
}
