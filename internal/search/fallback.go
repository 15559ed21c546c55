package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groundcheck-ai/groundcheck/internal/llm"
)

// Fallback pass decisions.
const (
	DecisionProceed = "proceed"
	DecisionAbstain = "abstain"
)

// MaxRewrites caps LLM query reformulations per fallback pass.
const MaxRewrites = 3

const rewritePrompt = `The following query didn't retrieve good results. Generate 3 alternative versions of this query that might retrieve better results. Use synonyms, rephrasings, and different angles.

Original query: %s

Return a JSON object:
- "rewrites": list of 3 alternative query strings`

// FallbackConfig holds the tunables for the fallback pass.
type FallbackConfig struct {
	// ExpandK replaces both top-K values during expanded retrieval.
	ExpandK int

	// RerankTopN is the candidate count kept after each rerank.
	RerankTopN int

	// ProceedThreshold ends the pass early after expansion.
	ProceedThreshold float64

	// AbstainThreshold is the floor below which even the best rewrite
	// result abstains.
	AbstainThreshold float64
}

// FallbackResult is the outcome of a fallback pass.
type FallbackResult struct {
	Candidates  []Candidate
	RQ          float64
	ReasonCodes []string
	Decision    string // proceed or abstain
}

// FallbackManager runs the two recovery strategies when initial retrieval
// quality is poor: expanded-K retrieval, then LLM query rewrites.
type FallbackManager struct {
	retriever *HybridRetriever
	reranker  Reranker
	scorer    Scorer
	llm       llm.LLM
	config    FallbackConfig
	logger    *slog.Logger
}

// NewFallbackManager wires the fallback pass.
func NewFallbackManager(
	retriever *HybridRetriever,
	reranker Reranker,
	scorer Scorer,
	model llm.LLM,
	cfg FallbackConfig,
	logger *slog.Logger,
) *FallbackManager {
	if cfg.ExpandK <= 0 {
		cfg.ExpandK = 100
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = DefaultRerankTopN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackManager{
		retriever: retriever,
		reranker:  reranker,
		scorer:    scorer,
		llm:       model,
		config:    cfg,
		logger:    logger,
	}
}

// Retrieve runs the fallback strategies in order. Expansion that reaches the
// proceed threshold short-circuits; otherwise each rewrite is retried with
// default K and the best-RQ candidate set wins. The final decision compares
// the best RQ against the abstain floor.
func (f *FallbackManager) Retrieve(ctx context.Context, query string) (FallbackResult, error) {
	// Strategy 1: expanded retrieval.
	candidates, err := f.retrieveAndRerank(ctx, query, query, f.config.ExpandK, f.config.ExpandK)
	if err != nil {
		return FallbackResult{}, err
	}
	rq, reasons := f.scorer.Score(candidates)
	f.logger.Debug("fallback expansion scored", slog.Float64("rq", rq), slog.Int("candidates", len(candidates)))

	if rq >= f.config.ProceedThreshold {
		return FallbackResult{Candidates: candidates, RQ: rq, ReasonCodes: reasons, Decision: DecisionProceed}, nil
	}

	// Strategy 2: LLM query rewrites. The expansion result seeds "best".
	best := FallbackResult{Candidates: candidates, RQ: rq, ReasonCodes: reasons}
	for _, rewrite := range f.queryRewrites(ctx, query) {
		// Rewrites retrieve with default K; reranking stays against the
		// original query so scores remain comparable.
		rewritten, err := f.retrieveAndRerank(ctx, rewrite, query, 0, 0)
		if err != nil {
			f.logger.Warn("fallback rewrite retrieval failed",
				slog.String("rewrite", rewrite),
				slog.String("error", err.Error()))
			continue
		}
		newRQ, newReasons := f.scorer.Score(rewritten)
		if newRQ > best.RQ {
			best = FallbackResult{Candidates: rewritten, RQ: newRQ, ReasonCodes: newReasons}
		}
	}

	if best.RQ >= f.config.AbstainThreshold {
		best.Decision = DecisionProceed
	} else {
		best.Decision = DecisionAbstain
	}
	return best, nil
}

func (f *FallbackManager) retrieveAndRerank(ctx context.Context, retrieveQuery, rerankQuery string, kBM25, kVec int) ([]Candidate, error) {
	candidates, err := f.retriever.Retrieve(ctx, retrieveQuery, kBM25, kVec)
	if err != nil {
		return nil, err
	}
	return f.reranker.Rerank(ctx, rerankQuery, candidates, f.config.RerankTopN)
}

type rewriteResponse struct {
	Rewrites []string `json:"rewrites"`
}

// queryRewrites asks the LLM for alternative phrasings. Failure yields an
// empty list, never an error.
func (f *FallbackManager) queryRewrites(ctx context.Context, query string) []string {
	var resp rewriteResponse
	err := f.llm.GenerateJSON(ctx, llm.Request{
		Prompt:      fmt.Sprintf(rewritePrompt, query),
		Temperature: 0.0,
	}, &resp)
	if err != nil {
		f.logger.Warn("query rewrite failed", slog.String("error", err.Error()))
		return nil
	}
	if len(resp.Rewrites) > MaxRewrites {
		resp.Rewrites = resp.Rewrites[:MaxRewrites]
	}
	return resp.Rewrites
}
