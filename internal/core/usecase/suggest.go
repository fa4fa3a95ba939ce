package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

const rephraseSystemPrompt = `You rephrase questions about construction project documents.
Given a question that found no answer, produce 3 alternative phrasings that might match the documents better.
Use construction terminology: drawing labels, schedule names, assembly codes, specification sections.
Keep each alternative short and specific.

Return ONLY valid JSON, no markdown, no prose:
{"suggestions": ["alternative 1", "alternative 2", "alternative 3"]}`

const (
	maxSuggestions   = 3
	previewCharLimit = 150
)

// answerRunner is the inner, non-streaming pipeline a suggestion is tested
// against.
type answerRunner interface {
	answerOnce(ctx context.Context, req ports.QARequest) (*domain.Answer, error)
}

// SuggestionEngine turns a not-found outcome into tested alternative
// queries. Alternatives are generated by the model, then each is run
// through the full pipeline one at a time; only the ones that produce a
// real answer survive. Everything here is best effort: any failure means
// fewer, or zero, suggestions.
type SuggestionEngine struct {
	generator ports.Generator
	runner    answerRunner
	cache     ports.SuggestionCache
	metrics   QAObserver
}

func NewSuggestionEngine(generator ports.Generator, runner answerRunner, cache ports.SuggestionCache, metrics QAObserver) *SuggestionEngine {
	return &SuggestionEngine{
		generator: generator,
		runner:    runner,
		cache:     cache,
		metrics:   metrics,
	}
}

// Suggest returns tested alternatives for a question whose answer came
// back not found. Results are cached per (project, question) so repeated
// misses do not redo the inner pipeline runs.
func (e *SuggestionEngine) Suggest(ctx context.Context, req ports.QARequest) []domain.QuerySuggestion {
	if e == nil || e.generator == nil || e.runner == nil {
		return nil
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(req.Filter.ProjectID, req.Question); ok {
			return cached
		}
	}

	alternatives := e.generateAlternatives(ctx, req.Question)
	if len(alternatives) == 0 {
		return nil
	}

	// Sequential on purpose: one outstanding inner run bounds the load on
	// the model service and keeps suggestion order deterministic.
	suggestions := make([]domain.QuerySuggestion, 0, len(alternatives))
	for _, alt := range alternatives {
		suggestion, ok := e.test(ctx, req, alt)
		if ok {
			suggestions = append(suggestions, suggestion)
		}
	}

	if e.cache != nil {
		e.cache.Set(req.Filter.ProjectID, req.Question, suggestions)
	}
	return suggestions
}

func (e *SuggestionEngine) generateAlternatives(ctx context.Context, question string) []string {
	raw, err := e.generator.GenerateJSON(ctx, rephraseSystemPrompt, fmt.Sprintf("QUESTION: %s", question))
	if err != nil {
		slog.Warn("suggestion_rephrase_failed", "error", err)
		return nil
	}

	var reply struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			slog.Warn("suggestion_rephrase_unparseable")
			return nil
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
			slog.Warn("suggestion_rephrase_unparseable", "error", err)
			return nil
		}
	}

	out := make([]string, 0, maxSuggestions)
	seen := make(map[string]struct{}, maxSuggestions)
	for _, alt := range reply.Suggestions {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		key := strings.ToLower(alt)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, alt)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// test runs one alternative through the inner pipeline and keeps it only
// when the answer is found.
func (e *SuggestionEngine) test(ctx context.Context, req ports.QARequest, alternative string) (domain.QuerySuggestion, bool) {
	inner := req
	inner.Question = alternative

	answer, err := e.runner.answerOnce(ctx, inner)
	if err != nil {
		slog.Warn("suggestion_test_failed", "error", err)
		return domain.QuerySuggestion{}, false
	}
	if e.metrics != nil {
		e.metrics.SuggestionTested(answer.Found)
	}
	if !answer.Found {
		return domain.QuerySuggestion{}, false
	}

	return domain.QuerySuggestion{
		Query:         alternative,
		Preview:       previewText(answer.Text),
		CitationCount: len(answer.Citations),
		Answer:        answer.Text,
		Citations:     answer.Citations,
	}, true
}

func previewText(text string) string {
	if len(text) <= previewCharLimit {
		return text
	}
	cut := previewCharLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
