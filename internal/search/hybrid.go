package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groundcheck-ai/groundcheck/internal/embed"
	"github.com/groundcheck-ai/groundcheck/internal/errors"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Default per-backend result counts.
const (
	DefaultTopKBM25   = 50
	DefaultTopKVector = 50
)

// HybridRetriever blends lexical and dense recall over the same chunk set.
type HybridRetriever struct {
	embedder embed.Embedder
	keyword  store.KeywordIndex
	vector   store.VectorIndex
	docs     store.DocStore
	rrfK     int
	logger   *slog.Logger
}

// NewHybridRetriever wires the two backends and the chunk store.
func NewHybridRetriever(
	embedder embed.Embedder,
	keyword store.KeywordIndex,
	vector store.VectorIndex,
	docs store.DocStore,
	rrfK int,
	logger *slog.Logger,
) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = DefaultRRFConstant
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		embedder: embedder,
		keyword:  keyword,
		vector:   vector,
		docs:     docs,
		rrfK:     rrfK,
		logger:   logger,
	}
}

// Retrieve returns the fused candidate list for query, deduplicated by
// chunk id and in fused-rank order. The query is embedded exactly once;
// both backends search concurrently. Empty backends are fine; an embedding
// failure is a retrieval error.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topKBM25, topKVector int) ([]Candidate, error) {
	if topKBM25 <= 0 {
		topKBM25 = DefaultTopKBM25
	}
	if topKVector <= 0 {
		topKVector = DefaultTopKVector
	}

	start := time.Now()

	var bm25Results, vecResults []store.ScoredID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bm25Results = r.keyword.Search(query, topKBM25)
		return nil
	})
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return errors.EmbeddingError(err)
		}
		vecResults, err = r.vector.Search(gctx, vec, topKVector)
		if err != nil {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := FuseRRF(r.rrfK, bm25Results, vecResults)
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}
	chunks, err := r.docs.GetChunks(ctx, ids)
	if err != nil {
		return nil, errors.StoreError(err)
	}

	// Unresolved ids are dropped silently; fused order is preserved.
	candidates := make([]Candidate, 0, len(fused))
	for _, f := range fused {
		chunk, ok := chunks[f.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Chunk: chunk, Score: f.Score, Source: SourceHybrid})
	}

	r.logger.Debug("hybrid retrieval",
		slog.Int("bm25", len(bm25Results)),
		slog.Int("vector", len(vecResults)),
		slog.Int("fused", len(candidates)),
		slog.Duration("elapsed", time.Since(start)))
	return candidates, nil
}
