package usecase

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAnswerFieldExtractorIncremental(t *testing.T) {
	full := `{"answer":"The wall is rated 1H.","found":true,"citations":[]}`

	var extractor answerFieldExtractor
	var emitted strings.Builder
	for i := 1; i <= len(full); i++ {
		emitted.WriteString(extractor.next(full[:i]))
	}

	if emitted.String() != "The wall is rated 1H." {
		t.Fatalf("concatenated deltas = %q", emitted.String())
	}
}

func TestAnswerFieldExtractorEscapes(t *testing.T) {
	full := `{"answer":"line one\nquote \" and slash \\ end","found":true}`

	var extractor answerFieldExtractor
	var emitted strings.Builder
	for i := 1; i <= len(full); i++ {
		emitted.WriteString(extractor.next(full[:i]))
	}

	want := "line one\nquote \" and slash \\ end"
	if emitted.String() != want {
		t.Fatalf("deltas = %q, want %q", emitted.String(), want)
	}
}

func TestAnswerFieldExtractorUnicodeEscapes(t *testing.T) {
	payload := map[string]any{"answer": "area 12 m² \U0001F600", "found": true}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	full := string(raw)

	var extractor answerFieldExtractor
	var emitted strings.Builder
	for i := 1; i <= len(full); i++ {
		emitted.WriteString(extractor.next(full[:i]))
	}

	if emitted.String() != "area 12 m² \U0001F600" {
		t.Fatalf("unicode deltas = %q", emitted.String())
	}
}

func TestAnswerFieldExtractorSurrogatePair(t *testing.T) {
	full := `{"answer":"smile 😀 done","found":true}`

	var extractor answerFieldExtractor
	var emitted strings.Builder
	for i := 1; i <= len(full); i++ {
		emitted.WriteString(extractor.next(full[:i]))
	}

	if emitted.String() != "smile \U0001F600 done" {
		t.Fatalf("surrogate deltas = %q", emitted.String())
	}
}

func TestAnswerFieldExtractorStopsAtClosingQuote(t *testing.T) {
	full := `{"answer":"short","citations":[{"snippet":"not the answer"}]}`

	var extractor answerFieldExtractor
	got := extractor.next(full)
	if got != "short" {
		t.Fatalf("extracted %q", got)
	}
	if more := extractor.next(full + "}"); more != "" {
		t.Fatalf("nothing further expected, got %q", more)
	}
}

func TestAnswerFieldExtractorNoAnswerYet(t *testing.T) {
	var extractor answerFieldExtractor
	for _, prefix := range []string{"", "{", `{"ans`, `{"answer"`, `{"answer":`, `{"answer":"`} {
		if got := extractor.next(prefix); got != "" {
			t.Fatalf("prefix %q yielded %q", prefix, got)
		}
	}
}
