package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

const tocBoostWeight = 3.5

// Discipline trigger vocabulary. A question must hit one of these groups
// before the TOC store is consulted at all; entries are then kept only when
// their title shares a trigger word with the question.
var tocTriggers = [][]string{
	{"architectural", "drawing", "floor plan", "plan", "architecture"},
	{"site plan", "site", "lot plan"},
	{"civil", "grading", "lot grading"},
	{"mechanical", "hvac", "ventilation", "heating", "cooling"},
	{"electrical", "electric", "power", "wiring"},
	{"plumbing", "plumb", "piping", "water"},
	{"spec", "specification", "sb-12", "support doc", "supporting"},
	{"permit", "application"},
	{"inspection", "inspect"},
	{"structural", "structure", "framing", "foundation"},
}

// TOCRouter maps a question to page-range boosts using table-of-contents
// entries. Any failure degrades to no boost; it never fails the query.
type TOCRouter struct {
	store ports.TOCStore
}

func NewTOCRouter(store ports.TOCStore) *TOCRouter {
	return &TOCRouter{store: store}
}

func (r *TOCRouter) Route(ctx context.Context, projectID, docID, question string) []domain.PageBoost {
	if r == nil || r.store == nil || strings.TrimSpace(question) == "" {
		return nil
	}

	ql := strings.ToLower(question)
	if !anyTriggerHit(ql) {
		return nil
	}

	entries, err := r.store.ListEntries(ctx, projectID, docID)
	if err != nil {
		slog.Warn("toc_routing_failed", "project_id", projectID, "error", err)
		return nil
	}

	out := make([]domain.PageBoost, 0, len(entries))
	for _, entry := range entries {
		if !titleSharesTrigger(ql, strings.ToLower(entry.Title)) {
			continue
		}
		weight := tocBoostWeight
		if entry.Confidence > 0 && entry.Confidence < 1 {
			weight *= entry.Confidence
		}
		out = append(out, domain.PageBoost{
			DocID:     entry.DocID,
			PageStart: entry.PageStart,
			PageEnd:   entry.PageEnd,
			Weight:    weight,
		})
	}
	if len(out) > 0 {
		slog.Debug("toc_routing_boosts", "project_id", projectID, "ranges", len(out))
	}
	return out
}

func anyTriggerHit(question string) bool {
	for _, group := range tocTriggers {
		for _, word := range group {
			if strings.Contains(question, word) {
				return true
			}
		}
	}
	return false
}

// titleSharesTrigger requires the same trigger word in both the question
// and the TOC title, the signal that the entry covers the asked discipline.
func titleSharesTrigger(question, title string) bool {
	for _, group := range tocTriggers {
		for _, word := range group {
			if strings.Contains(question, word) && strings.Contains(title, word) {
				return true
			}
		}
	}
	return false
}
