// Package search provides hybrid retrieval: concurrent BM25 and dense
// search fused with Reciprocal Rank Fusion, cross-encoder reranking, and
// the fallback strategies used when retrieval quality is poor.
package search

import (
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Candidate source methods.
const (
	SourceBM25     = "bm25"
	SourceVector   = "vector"
	SourceHybrid   = "hybrid"
	SourceReranked = "reranked"
)

// Candidate is one retrieved chunk with its current score. Score semantics
// depend on Source: RRF-fused for "hybrid", cross-encoder logit for
// "reranked".
type Candidate struct {
	Chunk  *store.Chunk
	Score  float64
	Source string
}

// Scorer judges a candidate list, returning a quality score in [0,1] and
// the reason codes that explain it.
type Scorer interface {
	Score(candidates []Candidate) (float64, []string)
}
