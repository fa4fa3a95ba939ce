package usecase

import (
	"sort"

	"github.com/sitedocs/docqa/internal/core/domain"
)

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
}

// fuseCandidatesRRF combines one index's lexical and vector result lists
// with reciprocal-rank fusion. Dedup is by candidate id; when both signals
// return the same id the richer copy wins and the fused score accumulates.
// Output order is deterministic: fused score desc, doc id asc, id asc.
func fuseCandidatesRRF(lexical, vector []domain.Candidate, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(lexical)+len(vector))
	addList := func(list []domain.Candidate) {
		for rank, cand := range list {
			entry := acc[cand.ID]
			entry.candidate = mergeSignalCopies(entry.candidate, cand)
			entry.score += 1.0 / float64(rrfK+rank+1)
			acc[cand.ID] = entry
		}
	}

	addList(lexical)
	addList(vector)

	out := make([]domain.Candidate, 0, len(acc))
	for _, entry := range acc {
		cand := entry.candidate
		cand.HybridScore = entry.score
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// mergeSignalCopies keeps the fuller of two copies of the same candidate,
// carrying both per-signal scores forward.
func mergeSignalCopies(current, incoming domain.Candidate) domain.Candidate {
	if current.ID == "" {
		return incoming
	}
	if current.Text == "" && incoming.Text != "" {
		current.Text = incoming.Text
	}
	if current.Section == "" && incoming.Section != "" {
		current.Section = incoming.Section
	}
	if len(current.BBox) == 0 && len(incoming.BBox) > 0 {
		current.BBox = incoming.BBox
	}
	if incoming.LexicalScore > current.LexicalScore {
		current.LexicalScore = incoming.LexicalScore
	}
	if incoming.VectorScore > current.VectorScore {
		current.VectorScore = incoming.VectorScore
	}
	return current
}
