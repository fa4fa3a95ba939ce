package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sitedocs/docqa/internal/core/domain"
	"github.com/sitedocs/docqa/internal/core/ports"
)

// RetrieverConfig bounds the candidate pool produced by one retrieval pass.
type RetrieverConfig struct {
	ChunkPoolSize int // per-signal fetch size against the chunk index
	TablePoolSize int // per-signal fetch size against the table-row index
	FusionRRFK    int
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	out := c
	if out.ChunkPoolSize <= 0 {
		out.ChunkPoolSize = 64
	}
	if out.TablePoolSize <= 0 {
		out.TablePoolSize = 20
	}
	if out.FusionRRFK <= 0 {
		out.FusionRRFK = 60
	}
	return out
}

// HybridRetriever fans out BM25 and k-NN queries against the chunk and
// table-row indices concurrently and fuses the results into one candidate
// pool. One failed signal degrades silently; only the loss of all four
// signals is an error.
type HybridRetriever struct {
	chunks  ports.ChunkIndex
	tables  ports.TableIndex
	cfg     RetrieverConfig
	metrics RetrievalObserver
}

// RetrievalObserver records degradation for observability. Optional.
type RetrievalObserver interface {
	SignalFailed(index, signal string)
}

func NewHybridRetriever(chunks ports.ChunkIndex, tables ports.TableIndex, cfg RetrieverConfig, metrics RetrievalObserver) *HybridRetriever {
	return &HybridRetriever{
		chunks:  chunks,
		tables:  tables,
		cfg:     cfg.normalize(),
		metrics: metrics,
	}
}

type signalResult struct {
	candidates []domain.Candidate
	err        error
	attempted  bool
}

func (s signalResult) failed() bool {
	return s.attempted && s.err != nil
}

// Retrieve produces the merged candidate pool for one question.
// The queryVector may be nil when embedding failed upstream; in that case
// only the lexical signals run. A positive sizeHint caps the chunk pool
// instead of the configured default.
func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	query string,
	queryVector []float32,
	filter domain.SearchFilter,
	boosts []domain.PageBoost,
	sizeHint int,
) ([]domain.Candidate, error) {
	chunkPoolSize := r.cfg.ChunkPoolSize
	if sizeHint > 0 {
		chunkPoolSize = sizeHint
		if chunkPoolSize > 100 {
			chunkPoolSize = 100
		}
	}
	labels := ExtractLabels(query)

	var wg sync.WaitGroup
	var chunkBM25, chunkKNN, tableBM25, tableKNN signalResult

	run := func(dst *signalResult, fn func(context.Context) ([]domain.Candidate, error)) {
		dst.attempted = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst.candidates, dst.err = fn(ctx)
		}()
	}

	run(&chunkBM25, func(ctx context.Context) ([]domain.Candidate, error) {
		chunks, scores, err := r.chunks.SearchLexical(ctx, query, chunkPoolSize, filter, boosts)
		if err != nil {
			return nil, err
		}
		return chunkCandidates(chunks, scores, signalLexical), nil
	})
	run(&tableBM25, func(ctx context.Context) ([]domain.Candidate, error) {
		rows, scores, err := r.tables.SearchLexical(ctx, query, labels, r.cfg.TablePoolSize, filter)
		if err != nil {
			return nil, err
		}
		return tableCandidates(rows, scores, signalLexical), nil
	})
	if len(queryVector) > 0 {
		run(&chunkKNN, func(ctx context.Context) ([]domain.Candidate, error) {
			chunks, scores, err := r.chunks.SearchVector(ctx, queryVector, chunkPoolSize, filter)
			if err != nil {
				return nil, err
			}
			return chunkCandidates(chunks, scores, signalVector), nil
		})
		run(&tableKNN, func(ctx context.Context) ([]domain.Candidate, error) {
			rows, scores, err := r.tables.SearchVector(ctx, queryVector, r.cfg.TablePoolSize, filter)
			if err != nil {
				return nil, err
			}
			return tableCandidates(rows, scores, signalVector), nil
		})
	}
	wg.Wait()

	r.observe("chunks", "bm25", chunkBM25.err)
	r.observe("chunks", "knn", chunkKNN.err)
	r.observe("tables", "bm25", tableBM25.err)
	r.observe("tables", "knn", tableKNN.err)

	chunkPool, chunkErr := r.fuseIndex(chunkBM25, chunkKNN, boosts, chunkPoolSize)
	tablePool, tableErr := r.fuseIndex(tableBM25, tableKNN, boosts, r.cfg.TablePoolSize)

	if chunkErr != nil && tableErr != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieve",
			fmt.Errorf("chunks: %w; tables: %w", chunkErr, tableErr))
	}

	out := make([]domain.Candidate, 0, len(chunkPool)+len(tablePool))
	out = append(out, chunkPool...)
	out = append(out, tablePool...)
	sortByHybrid(out)
	return out, nil
}

// fuseIndex merges one index's two signal result sets. An index fails when
// every signal that actually ran against it failed; a signal skipped
// upstream (no query vector) contributes nothing either way. The error
// surfaces to the caller so total failure can be detected.
func (r *HybridRetriever) fuseIndex(lexical, vector signalResult, boosts []domain.PageBoost, limit int) ([]domain.Candidate, error) {
	if lexical.failed() && !vector.attempted {
		return nil, fmt.Errorf("bm25: %w; knn: not attempted", lexical.err)
	}
	if lexical.failed() && vector.failed() {
		return nil, fmt.Errorf("bm25: %w; knn: %w", lexical.err, vector.err)
	}

	lex := lexical.candidates
	vec := vector.candidates
	if lexical.err != nil {
		lex = nil
	}
	if vector.err != nil {
		vec = nil
	}

	lex = applyPageBoosts(lex, boosts)
	fused := fuseCandidatesRRF(lex, vec, r.cfg.FusionRRFK)
	return trimCandidates(fused, limit), nil
}

func (r *HybridRetriever) observe(index, signal string, err error) {
	if err == nil {
		return
	}
	slog.Warn("retrieval_signal_failed", "index", index, "signal", signal, "error", err)
	if r.metrics != nil {
		r.metrics.SignalFailed(index, signal)
	}
}

// applyPageBoosts adds each covering boost weight to the candidate's
// lexical score and restores descending score order so rank-based fusion
// sees the bias.
func applyPageBoosts(candidates []domain.Candidate, boosts []domain.PageBoost) []domain.Candidate {
	if len(candidates) == 0 || len(boosts) == 0 {
		return candidates
	}
	boosted := false
	for i := range candidates {
		for _, b := range boosts {
			if b.Covers(candidates[i].DocID, candidates[i].PageNumber) {
				candidates[i].LexicalScore += b.Weight
				boosted = true
			}
		}
	}
	if boosted {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].LexicalScore != candidates[j].LexicalScore {
				return candidates[i].LexicalScore > candidates[j].LexicalScore
			}
			return candidates[i].ID < candidates[j].ID
		})
	}
	return candidates
}

type signalKind int

const (
	signalLexical signalKind = iota
	signalVector
)

func chunkCandidates(chunks []domain.Chunk, scores []float64, kind signalKind) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(chunks))
	for i, c := range chunks {
		cand := domain.Candidate{
			ID:         c.ChunkID,
			Origin:     domain.OriginChunk,
			DocID:      c.DocID,
			ProjectID:  c.ProjectID,
			PageNumber: c.PageNumber,
			Section:    c.Section,
			Text:       c.Text,
			BBox:       c.BBox,
			Source:     c.Source,
			Confidence: c.Confidence,
		}
		if i < len(scores) {
			setSignalScore(&cand, kind, scores[i])
		}
		out = append(out, cand)
	}
	return out
}

func tableCandidates(rows []domain.TableRow, scores []float64, kind signalKind) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(rows))
	for i, row := range rows {
		cand := domain.Candidate{
			ID:         row.RowID,
			Origin:     domain.OriginTable,
			DocID:      row.DocID,
			ProjectID:  row.ProjectID,
			PageNumber: row.PageNumber,
			Section:    row.TableLabel,
			Text:       row.Text,
			BBox:       row.BBox,
			Source:     "table",
			Confidence: row.Confidence,
		}
		if i < len(scores) {
			setSignalScore(&cand, kind, scores[i])
		}
		out = append(out, cand)
	}
	return out
}

func setSignalScore(c *domain.Candidate, kind signalKind, score float64) {
	switch kind {
	case signalLexical:
		c.LexicalScore = score
	case signalVector:
		c.VectorScore = score
	}
}
