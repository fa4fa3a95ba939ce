package domain

// NotFoundAnswer is the sentinel answer used when the context holds no
// evidence. Kept as a compatibility fallback; the structured Found flag is
// authoritative.
const NotFoundAnswer = "Not found in the project documents."

type CandidateOrigin string

const (
	OriginChunk CandidateOrigin = "chunk"
	OriginTable CandidateOrigin = "table"
)

// Chunk is a unit of retrievable text owned by the ingestion pipeline.
// The query side only ever reads it.
type Chunk struct {
	ChunkID    string    `json:"chunk_id"`
	DocID      string    `json:"doc_id"`
	ProjectID  string    `json:"project_id"`
	PageNumber int       `json:"page_number"`
	Section    string    `json:"section,omitempty"`
	Text       string    `json:"text"`
	BBox       []float64 `json:"bbox,omitempty"`
	TokenCount int       `json:"token_count,omitempty"`
	DocType    string    `json:"doc_type,omitempty"`
	Discipline string    `json:"discipline,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// TableRow is one extracted row of a tabular region, flattened for search.
type TableRow struct {
	RowID      string            `json:"row_id"`
	DocID      string            `json:"doc_id"`
	ProjectID  string            `json:"project_id"`
	PageNumber int               `json:"page_number"`
	TableLabel string            `json:"table_label,omitempty"`
	Columns    map[string]string `json:"columns,omitempty"`
	Text       string            `json:"table_text"`
	BBox       []float64         `json:"bbox,omitempty"`
	DocType    string            `json:"doc_type,omitempty"`
	Discipline string            `json:"discipline,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Labels     []string          `json:"labels,omitempty"`
}

// Candidate is the retrieval-internal union of a chunk or table row.
// It keeps every field needed to render a Citation.
type Candidate struct {
	ID         string
	Origin     CandidateOrigin
	DocID      string
	ProjectID  string
	PageNumber int
	Section    string
	Text       string
	BBox       []float64
	Source     string
	Confidence float64

	LexicalScore float64
	VectorScore  float64
	HybridScore  float64
	RerankScore  float64
}

// SearchFilter narrows retrieval to a project and optional facets.
type SearchFilter struct {
	ProjectID  string
	DocID      string
	DocType    string
	Discipline string
}

type Citation struct {
	DocID      string    `json:"doc_id"`
	PageNumber int       `json:"page_number"`
	Snippet    string    `json:"snippet,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
}

type QuerySuggestion struct {
	Query         string     `json:"query"`
	Preview       string     `json:"preview"`
	CitationCount int        `json:"citation_count"`
	Answer        string     `json:"cached_answer,omitempty"`
	Citations     []Citation `json:"cached_citations,omitempty"`
}

type Answer struct {
	Text        string            `json:"answer"`
	Found       bool              `json:"found"`
	Citations   []Citation        `json:"citations"`
	Suggestions []QuerySuggestion `json:"suggestions,omitempty"`
}

// SearchResult is one ranked hit on the direct /search surface.
type SearchResult struct {
	Chunk
	Score float64 `json:"score"`
}
