package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sitedocs/docqa/internal/core/domain"
)

// ContextConfig bounds the prompt context handed to the language model.
type ContextConfig struct {
	MaxChars      int // total context budget
	MaxChunkChars int // per-block text budget
	MaxBlocks     int
}

func (c ContextConfig) normalize() ContextConfig {
	out := c
	if out.MaxChars <= 0 {
		out.MaxChars = 24000
	}
	if out.MaxChunkChars <= 0 {
		out.MaxChunkChars = 1200
	}
	if out.MaxBlocks <= 0 {
		out.MaxBlocks = 10
	}
	return out
}

// buildContext renders reranked candidates into the prompt context.
// Guarantees: blocks appear in rank order, every emitted block has a
// matching entry in the returned slice at the same position, at most one
// candidate per (doc_id, page) pair survives, and the rendered string
// never exceeds MaxChars.
func buildContext(candidates []domain.Candidate, cfg ContextConfig) (string, []domain.Candidate) {
	cfg = cfg.normalize()

	deduped := dedupeByPage(candidates, cfg.MaxBlocks)

	var b strings.Builder
	selected := make([]domain.Candidate, 0, len(deduped))
	for _, cand := range deduped {
		text := cand.Text
		if len(text) > cfg.MaxChunkChars {
			text = trimToSentenceBoundary(text, cfg.MaxChunkChars)
		}
		block := contextHeader(len(selected)+1, cand) + "\n" + text

		need := len(block)
		if b.Len() > 0 {
			need += 2 // separator
		}
		if b.Len()+need > cfg.MaxChars {
			break
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		selected = append(selected, cand)
	}

	return b.String(), selected
}

// dedupeByPage keeps the first candidate per id and per (doc_id, page) so
// one busy page cannot flood the context.
func dedupeByPage(candidates []domain.Candidate, maxItems int) []domain.Candidate {
	seenIDs := make(map[string]struct{}, len(candidates))
	seenPages := make(map[string]struct{}, len(candidates))

	out := make([]domain.Candidate, 0, maxItems)
	for _, cand := range candidates {
		if _, ok := seenIDs[cand.ID]; ok {
			continue
		}
		seenIDs[cand.ID] = struct{}{}

		pageKey := fmt.Sprintf("%s:%d", cand.DocID, cand.PageNumber)
		if _, ok := seenPages[pageKey]; ok {
			continue
		}
		seenPages[pageKey] = struct{}{}

		out = append(out, cand)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}

func contextHeader(position int, cand domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] doc_id=%s page=%d", position, cand.DocID, cand.PageNumber)
	if cand.Section != "" {
		fmt.Fprintf(&b, " section=%s", cand.Section)
	}
	source := cand.Source
	if source == "" {
		source = "text"
	}
	fmt.Fprintf(&b, " source=%s", source)
	if cand.Confidence > 0 {
		fmt.Fprintf(&b, " conf=%.2f", cand.Confidence)
	}
	if len(cand.BBox) == 4 {
		fmt.Fprintf(&b, " bbox=[%.1f,%.1f,%.1f,%.1f]", cand.BBox[0], cand.BBox[1], cand.BBox[2], cand.BBox[3])
	}
	return b.String()
}

// trimToSentenceBoundary cuts text at the last sentence end before
// maxChars. A hard cut with an ellipsis is used when the boundary would
// lose more than 30% of the budget.
func trimToSentenceBoundary(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	for maxChars > 0 && !utf8.RuneStart(text[maxChars]) {
		maxChars--
	}
	truncated := text[:maxChars]

	last := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(truncated, sep); idx > last {
			last = idx
		}
	}
	if last > (maxChars*7)/10 {
		return text[:last+1]
	}
	return truncated + "…"
}
