package domain

// TOCEntry is one table-of-contents line parsed at ingestion time.
// Unique on (doc_id, title, page_start, page_end).
type TOCEntry struct {
	DocID      string  `json:"doc_id"`
	Title      string  `json:"title"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	Confidence float64 `json:"confidence"`
	Raw        string  `json:"raw,omitempty"`
}

// PageBoost biases retrieval toward a page range of one document.
type PageBoost struct {
	DocID     string
	PageStart int
	PageEnd   int
	Weight    float64
}

// Covers reports whether the boost range contains the given location.
func (b PageBoost) Covers(docID string, page int) bool {
	return b.DocID == docID && page >= b.PageStart && page <= b.PageEnd
}
