package domain

import "time"

// AnsweredEvent is emitted after a QA request completes. Conversation
// persistence and the dashboard consume it; the core never stores answers
// itself.
type AnsweredEvent struct {
	EventID       string        `json:"event_id"`
	ProjectID     string        `json:"project_id"`
	Question      string        `json:"question"`
	Answer        string        `json:"answer"`
	Found         bool          `json:"found"`
	CitationCount int           `json:"citation_count"`
	Suggestions   int           `json:"suggestions"`
	DurationMS    int64         `json:"duration_ms"`
	At            time.Time     `json:"at"`
}
