package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sitedocs/docqa/internal/core/domain"
)

const synthSystemPrompt = `You are an assistant for construction projects.
Use ONLY the CONTEXT provided. If not found, set "found" to false and answer exactly "Not found in the project documents."

CRITICAL: Return ONLY valid JSON. No markdown. No prose before or after the JSON. No code fences.

JSON schema:
{
  "answer": "string",
  "found": true,
  "citations": [
    {
      "doc_id": "string",
      "page_number": 123,
      "snippet": "string",
      "bbox": [x1, y1, x2, y2]
    }
  ]
}

Rules:
- Quote numeric values with units exactly as written in context.
- Do not invent information.
- Always include 1-3 citations when the answer is found.
- If no evidence in context, return: {"answer":"Not found in the project documents.","found":false,"citations":[]}
- Extract bbox from the context headers. Format: [1] doc_id=xxx page=N source=xxx conf=0.9 bbox=[x1,y1,x2,y2]
- Copy the bbox array exactly as shown (4 numbers). If bbox is not present, use null.`

func synthUserPrompt(question, contextText string) string {
	return fmt.Sprintf("QUESTION: %s\n\nCONTEXT:\n%s\n", question, contextText)
}

const maxSnippetChars = 240

type modelReply struct {
	Answer    string            `json:"answer"`
	Found     *bool             `json:"found"`
	Citations []domain.Citation `json:"citations"`
}

// parseModelReply decodes the model's structured output, attempting a
// repair pass (first {...} block) when the raw reply carries prose or code
// fences around the JSON.
func parseModelReply(raw string) (modelReply, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return modelReply{}, fmt.Errorf("empty model reply")
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw), &reply); err == nil && reply.Answer != "" {
		return reply, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return modelReply{}, fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return modelReply{}, fmt.Errorf("unmarshal model reply: %w", err)
	}
	if reply.Answer == "" {
		return modelReply{}, fmt.Errorf("model reply has no answer field")
	}
	return reply, nil
}

// answerFound resolves the structured flag with the legacy sentinel-phrase
// fallback for models that omit it.
func (r modelReply) answerFound() bool {
	if r.Found != nil {
		return *r.Found
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Answer)), "not found")
}

// groundCitations enforces the traceability invariant: a citation survives
// only when some selected candidate matches its (doc_id, page_number).
// Missing or zeroed bboxes are patched from the matching candidate and
// snippets are trimmed for the front end.
func groundCitations(citations []domain.Citation, selected []domain.Candidate) []domain.Citation {
	out := make([]domain.Citation, 0, len(citations))
	for _, cite := range citations {
		matched := findCandidate(selected, cite.DocID, cite.PageNumber)
		if matched == nil {
			continue
		}
		if len(cite.BBox) != 4 || allZero(cite.BBox) {
			cite.BBox = matched.BBox
		}
		cite.Snippet = trimSnippet(cite.Snippet)
		out = append(out, cite)
	}
	return out
}

// fallbackCitations renders the top selected candidates directly when the
// model answered without citing.
func fallbackCitations(selected []domain.Candidate, limit int) []domain.Citation {
	if limit <= 0 || limit > len(selected) {
		limit = len(selected)
	}
	out := make([]domain.Citation, 0, limit)
	for _, cand := range selected[:limit] {
		out = append(out, domain.Citation{
			DocID:      cand.DocID,
			PageNumber: cand.PageNumber,
			Snippet:    trimSnippet(cand.Text),
			BBox:       cand.BBox,
		})
	}
	return out
}

func findCandidate(selected []domain.Candidate, docID string, page int) *domain.Candidate {
	for i := range selected {
		if selected[i].DocID == docID && selected[i].PageNumber == page {
			return &selected[i]
		}
	}
	return nil
}

func allZero(bbox []float64) bool {
	for _, v := range bbox {
		if v != 0 {
			return false
		}
	}
	return true
}

func trimSnippet(snippet string) string {
	if len(snippet) <= maxSnippetChars {
		return snippet
	}
	cut := maxSnippetChars
	for cut > 0 && !utf8.RuneStart(snippet[cut]) {
		cut--
	}
	return snippet[:cut] + "…"
}
