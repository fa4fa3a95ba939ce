package usecase

import (
	"strings"
	"testing"

	"github.com/sitedocs/docqa/internal/core/domain"
)

func TestParseModelReplyDirect(t *testing.T) {
	raw := `{"answer":"Wall W2A is rated 1H.","found":true,"citations":[{"doc_id":"d1","page_number":10,"snippet":"W2A 1H","bbox":[1,2,3,4]}]}`
	reply, err := parseModelReply(raw)
	if err != nil {
		t.Fatalf("parseModelReply() error = %v", err)
	}
	if reply.Answer != "Wall W2A is rated 1H." || !reply.answerFound() {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if len(reply.Citations) != 1 || reply.Citations[0].PageNumber != 10 {
		t.Fatalf("citations not parsed: %+v", reply.Citations)
	}
}

func TestParseModelReplyRepairsFencedJSON(t *testing.T) {
	raw := "```json\n{\"answer\":\"ok\",\"found\":true,\"citations\":[]}\n```"
	reply, err := parseModelReply(raw)
	if err != nil {
		t.Fatalf("parseModelReply() error = %v", err)
	}
	if reply.Answer != "ok" {
		t.Fatalf("unexpected answer: %q", reply.Answer)
	}
}

func TestParseModelReplyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"found":true}`} {
		if _, err := parseModelReply(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestAnswerFoundSentinelFallback(t *testing.T) {
	withFlag := modelReply{Answer: "Not found in the project documents.", Found: boolPtr(true)}
	if !withFlag.answerFound() {
		t.Fatal("explicit flag must win over sentinel text")
	}

	noFlag := modelReply{Answer: "Not found in the project documents."}
	if noFlag.answerFound() {
		t.Fatal("sentinel prefix must mean not found when flag is absent")
	}

	positive := modelReply{Answer: "The rating is 1H."}
	if !positive.answerFound() {
		t.Fatal("regular answer must mean found")
	}
}

func TestGroundCitationsDropsUnmatched(t *testing.T) {
	selected := []domain.Candidate{
		{ID: "c1", DocID: "d1", PageNumber: 10, BBox: []float64{1, 2, 3, 4}},
	}
	citations := []domain.Citation{
		{DocID: "d1", PageNumber: 10, Snippet: "kept"},
		{DocID: "d1", PageNumber: 99, Snippet: "wrong page"},
		{DocID: "dX", PageNumber: 10, Snippet: "wrong doc"},
	}

	got := groundCitations(citations, selected)
	if len(got) != 1 {
		t.Fatalf("expected 1 grounded citation, got %d", len(got))
	}
	if got[0].Snippet != "kept" {
		t.Fatalf("wrong citation survived: %+v", got[0])
	}
}

func TestGroundCitationsPatchesBBox(t *testing.T) {
	selected := []domain.Candidate{
		{ID: "c1", DocID: "d1", PageNumber: 10, BBox: []float64{5, 6, 7, 8}},
	}

	missing := groundCitations([]domain.Citation{{DocID: "d1", PageNumber: 10}}, selected)
	if len(missing) != 1 || len(missing[0].BBox) != 4 || missing[0].BBox[0] != 5 {
		t.Fatalf("missing bbox not patched: %+v", missing)
	}

	zeroed := groundCitations([]domain.Citation{{DocID: "d1", PageNumber: 10, BBox: []float64{0, 0, 0, 0}}}, selected)
	if len(zeroed) != 1 || zeroed[0].BBox[2] != 7 {
		t.Fatalf("zeroed bbox not patched: %+v", zeroed)
	}
}

func TestGroundCitationsTrimsSnippet(t *testing.T) {
	selected := []domain.Candidate{{ID: "c1", DocID: "d1", PageNumber: 1}}
	long := strings.Repeat("s", maxSnippetChars+50)

	got := groundCitations([]domain.Citation{{DocID: "d1", PageNumber: 1, Snippet: long}}, selected)
	if len(got[0].Snippet) > maxSnippetChars+len("…") {
		t.Fatalf("snippet not trimmed: %d", len(got[0].Snippet))
	}
}

func TestFallbackCitations(t *testing.T) {
	selected := []domain.Candidate{
		{ID: "c1", DocID: "d1", PageNumber: 1, Text: "one"},
		{ID: "c2", DocID: "d1", PageNumber: 2, Text: "two"},
		{ID: "c3", DocID: "d2", PageNumber: 3, Text: "three"},
		{ID: "c4", DocID: "d2", PageNumber: 4, Text: "four"},
	}

	got := fallbackCitations(selected, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 fallback citations, got %d", len(got))
	}
	if got[0].DocID != "d1" || got[0].PageNumber != 1 || got[0].Snippet != "one" {
		t.Fatalf("unexpected first fallback: %+v", got[0])
	}
}

func boolPtr(v bool) *bool { return &v }
