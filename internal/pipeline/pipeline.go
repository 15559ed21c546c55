// Package pipeline orchestrates the online query path: understanding,
// decomposition, hybrid retrieval, reranking, quality gating with fallback,
// generation, verification, and the final confidence-based decision.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/query"
	"github.com/groundcheck-ai/groundcheck/internal/scoring"
	"github.com/groundcheck-ai/groundcheck/internal/search"
	"github.com/groundcheck-ai/groundcheck/internal/store"
	"github.com/groundcheck-ai/groundcheck/internal/trace"
	"github.com/groundcheck-ai/groundcheck/internal/verify"
)

// Canned answer texts for gated responses.
const (
	abstainAnswer = "I cannot provide a reliable answer. The retrieved evidence is insufficient for this question."

	abstainVerifiedAnswer = "I cannot provide a reliable answer to this question. " +
		"The evidence is insufficient or contradictory."

	clarifyNote = "\n\nNote: This answer has moderate uncertainty. " +
		"Some claims may not be fully supported by the available evidence."
)

// selfConsistencyBudget is the minimum remaining budget for the optional
// self-consistency check to run.
const selfConsistencyBudget = 1500 * time.Millisecond

// traceSaveTimeout bounds the detached trace write.
const traceSaveTimeout = 5 * time.Second

// Pipeline wires every stage of the query path.
type Pipeline struct {
	decomposer      *query.Decomposer
	retriever       *search.HybridRetriever
	reranker        search.Reranker
	rqScorer        search.Scorer
	fallback        *search.FallbackManager
	generator       *gen.Generator
	groundedness    *verify.GroundednessChecker
	contradiction   *verify.ContradictionDetector
	selfConsistency *verify.SelfConsistencyChecker
	decider         *verify.DecisionMaker
	confidence      *scoring.ConfidenceCalculator
	traces          store.TraceStore
	cfg             *config.Config
	logger          *slog.Logger
}

// New assembles the pipeline from its stages.
func New(
	decomposer *query.Decomposer,
	retriever *search.HybridRetriever,
	reranker search.Reranker,
	rqScorer search.Scorer,
	fallback *search.FallbackManager,
	generator *gen.Generator,
	groundedness *verify.GroundednessChecker,
	contradiction *verify.ContradictionDetector,
	selfConsistency *verify.SelfConsistencyChecker,
	decider *verify.DecisionMaker,
	confidence *scoring.ConfidenceCalculator,
	traces store.TraceStore,
	cfg *config.Config,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		decomposer:      decomposer,
		retriever:       retriever,
		reranker:        reranker,
		rqScorer:        rqScorer,
		fallback:        fallback,
		generator:       generator,
		groundedness:    groundedness,
		contradiction:   contradiction,
		selfConsistency: selfConsistency,
		decider:         decider,
		confidence:      confidence,
		traces:          traces,
		cfg:             cfg,
		logger:          logger,
	}
}

// Execute runs the full pipeline for one query.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Response, error) {
	return p.run(ctx, req, nil)
}

// ExecuteStream runs the pipeline, streaming answer fragments through
// onToken. The returned response carries the final metadata; gated
// responses (abstain, clarify on refusal) may arrive without any tokens.
func (p *Pipeline) ExecuteStream(ctx context.Context, req Request, onToken func(text string) error) (*Response, error) {
	return p.run(ctx, req, onToken)
}

func (p *Pipeline) run(ctx context.Context, req Request, onToken func(text string) error) (*Response, error) {
	tc := trace.New()
	budget := time.Duration(req.LatencyBudgetMS) * time.Millisecond
	if budget <= 0 {
		budget = time.Duration(p.cfg.Server.DefaultBudgetMS) * time.Millisecond
	}
	deadline := time.Now().Add(budget)

	// Stage 1: query understanding.
	endSpan := tc.StartSpan("query_understanding")
	processed := query.Process(req.Query)
	endSpan(trace.StatusOK)

	// Stage 2: decomposition.
	endSpan = tc.StartSpan("decomposition")
	decomposed := p.decomposer.Decompose(ctx, processed.Normalized)
	endSpan(trace.StatusOK)

	// Stage 3: hybrid retrieval per sub-question, deduplicated.
	endSpan = tc.StartSpan("retrieval")
	var all []search.Candidate
	for _, sq := range decomposed.SubQuestions {
		candidates, err := p.retriever.Retrieve(ctx, sq, p.cfg.Retrieval.BM25TopK, p.cfg.Retrieval.VectorTopK)
		if err != nil {
			endSpan(trace.StatusError)
			return nil, err
		}
		all = append(all, candidates...)
	}
	all = deduplicate(all)
	endSpan(trace.StatusOK)

	// Stage 4: reranking against the normalized query.
	endSpan = tc.StartSpan("reranking")
	reranked, err := p.reranker.Rerank(ctx, processed.Normalized, all, p.cfg.Retrieval.RerankTopN)
	if err != nil {
		endSpan(trace.StatusError)
		return nil, err
	}
	endSpan(trace.StatusOK)

	// Stage 5: retrieval quality.
	endSpan = tc.StartSpan("rq_scoring")
	rqScore, rqReasons := p.rqScorer.Score(reranked)
	endSpan(trace.StatusOK)
	p.logRetrieval(tc.ID(), rqScore, reranked)

	// Stage 6: decision gate with fallback.
	proceedThreshold := p.cfg.Scoring.ProceedThreshold
	if req.Mode == gen.ModeStrict {
		proceedThreshold = p.cfg.Scoring.StrictProceedThreshold
	}

	if rqScore < p.cfg.Scoring.FallbackThreshold {
		return p.abstainResponse(rqScore, rqReasons, tc, req), nil
	}
	if rqScore < proceedThreshold {
		endSpan = tc.StartSpan("fallback")
		result, err := p.fallback.Retrieve(ctx, processed.Normalized)
		if err != nil {
			endSpan(trace.StatusError)
			return nil, err
		}
		endSpan(trace.StatusOK)

		if result.Decision == search.DecisionAbstain {
			reasons := append(append([]string(nil), rqReasons...), scoring.ReasonFallbackFailed)
			return p.abstainResponse(rqScore, reasons, tc, req), nil
		}
		reranked = result.Candidates
		rqScore = result.RQ
		rqReasons = append(rqReasons, scoring.ReasonFallbackUsed)
	}

	// Stage 7: generation, streamed when a token sink is provided.
	endSpan = tc.StartSpan("generation")
	var genResult *gen.Result
	if onToken != nil {
		genResult, err = p.generator.GenerateStream(ctx, processed.Normalized, reranked, &decomposed, req.Mode, onToken)
	} else {
		genResult, err = p.generator.Generate(ctx, processed.Normalized, reranked, &decomposed, req.Mode)
	}
	if err != nil {
		endSpan(trace.StatusError)
		return nil, err
	}
	endSpan(trace.StatusOK)

	// A generated refusal means the evidence did not support an answer,
	// regardless of what the verifier would say about it.
	if admitsIgnorance(genResult.Answer) {
		reasons := append(append([]string(nil), rqReasons...), scoring.ReasonLowGroundedness)
		if rqScore >= p.cfg.Scoring.ProceedThreshold {
			p.logger.Info("answer admits ignorance, clarifying",
				slog.String("query", processed.Normalized),
				slog.Float64("rq", round4(rqScore)))
			return p.clarifyResponse(genResult, rqScore, reasons, tc, req), nil
		}
		p.logger.Info("answer admits ignorance, abstaining",
			slog.String("query", processed.Normalized),
			slog.Float64("rq", round4(rqScore)))
		return p.abstainResponse(rqScore, reasons, tc, req), nil
	}

	// Stage 8: verification. Groundedness and contradiction run
	// concurrently; self-consistency only with enough budget left.
	endSpan = tc.StartSpan("verification")
	var groundedness, contradictionRate float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groundedness = p.groundedness.Check(gctx, genResult.Answer, reranked)
		return nil
	})
	g.Go(func() error {
		contradictionRate = p.contradiction.DetectAnswerConflicts(gctx, genResult.Answer, reranked)
		return nil
	})
	_ = g.Wait()

	var selfConsistency *float64
	if time.Until(deadline) > selfConsistencyBudget {
		score := p.selfConsistency.Check(ctx, processed.Normalized, reranked, genResult.Answer)
		selfConsistency = &score
	} else {
		tc.Skip("self_consistency")
	}

	verification := p.decider.Decide(groundedness, contradictionRate, selfConsistency, req.Mode)
	endSpan(trace.StatusOK)

	// Stage 9: final confidence and decision.
	confidence := p.confidence.Confidence(rqScore, groundedness, contradictionRate)
	p.logger.Info("generation metrics",
		slog.String("trace_id", tc.ID()),
		slog.Float64("groundedness", round4(groundedness)),
		slog.Float64("contradiction_rate", round4(contradictionRate)),
		slog.Float64("confidence", round4(confidence)),
		slog.String("decision", verification.Decision))

	allReasons := append(append([]string(nil), rqReasons...), verification.ReasonCodes...)
	decision := mapDecision(verification.Decision)

	answer := genResult.Answer
	switch decision {
	case DecisionAbstain:
		answer = abstainVerifiedAnswer
	case DecisionClarify:
		answer += clarifyNote
	}

	resp := &Response{
		Answer:     answer,
		Citations:  citations(genResult),
		Confidence: round4(confidence),
		Decision:   decision,
		Reasons:    allReasons,
		Debug: DebugInfo{
			RetrievalQuality: round4(rqScore),
			RerankTopScores:  topScores(reranked, 5),
			TraceID:          tc.ID(),
			LatencyMS:        round2(tc.ElapsedMS()),
		},
	}
	p.saveTrace(tc, req.Query, rqScore, confidence, decision, allReasons)
	return resp, nil
}

func (p *Pipeline) abstainResponse(rqScore float64, reasons []string, tc *trace.Context, req Request) *Response {
	p.saveTrace(tc, req.Query, rqScore, 0.0, DecisionAbstain, reasons)
	return &Response{
		Answer:     abstainAnswer,
		Citations:  []Citation{},
		Confidence: 0.0,
		Decision:   DecisionAbstain,
		Reasons:    reasons,
		Debug: DebugInfo{
			RetrievalQuality: round4(rqScore),
			RerankTopScores:  []float64{},
			TraceID:          tc.ID(),
			LatencyMS:        round2(tc.ElapsedMS()),
		},
	}
}

func (p *Pipeline) clarifyResponse(genResult *gen.Result, rqScore float64, reasons []string, tc *trace.Context, req Request) *Response {
	confidence := round4(rqScore * 0.5)
	p.saveTrace(tc, req.Query, rqScore, confidence, DecisionClarify, reasons)
	return &Response{
		Answer:     genResult.Answer + clarifyNote,
		Citations:  citations(genResult),
		Confidence: confidence,
		Decision:   DecisionClarify,
		Reasons:    reasons,
		Debug: DebugInfo{
			RetrievalQuality: round4(rqScore),
			RerankTopScores:  []float64{},
			TraceID:          tc.ID(),
			LatencyMS:        round2(tc.ElapsedMS()),
		},
	}
}

// saveTrace persists the trace without blocking the response.
func (p *Pipeline) saveTrace(tc *trace.Context, queryText string, rqScore, confidence float64, decision string, reasons []string) {
	record := tc.ToTrace(queryText, rqScore, confidence, decision, reasons)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), traceSaveTimeout)
		defer cancel()
		if err := p.traces.SaveTrace(ctx, record); err != nil {
			p.logger.Warn("trace save failed",
				slog.String("trace_id", record.ID),
				slog.String("error", err.Error()))
		}
	}()
}

func (p *Pipeline) logRetrieval(traceID string, rqScore float64, reranked []search.Candidate) {
	docs := make(map[string]struct{}, len(reranked))
	for _, c := range reranked {
		docs[c.Chunk.DocID] = struct{}{}
	}
	p.logger.Info("retrieval metrics",
		slog.String("trace_id", traceID),
		slog.Float64("rq_score", round4(rqScore)),
		slog.Any("top_scores", topScores(reranked, 5)),
		slog.Int("candidates", len(reranked)),
		slog.Int("unique_docs", len(docs)))
}

// deduplicate keeps one candidate per chunk id, preferring the higher
// score, in first-seen order.
func deduplicate(candidates []search.Candidate) []search.Candidate {
	index := make(map[string]int, len(candidates))
	out := make([]search.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.Chunk.ID]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		index[c.Chunk.ID] = len(out)
		out = append(out, c)
	}
	return out
}

func citations(result *gen.Result) []Citation {
	out := make([]Citation, 0, len(result.CitedChunks))
	for i, chunk := range result.CitedChunks {
		out = append(out, Citation{
			DocID:       chunk.DocID,
			ChunkID:     chunk.ID,
			TextSnippet: result.CitedSpans[i].Text,
		})
	}
	return out
}

func topScores(candidates []search.Candidate, n int) []float64 {
	if len(candidates) < n {
		n = len(candidates)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = round4(candidates[i].Score)
	}
	return out
}

// refusalPhrases are the explicit patterns a model uses when the evidence
// cannot answer the question. Kept narrow to avoid false positives on
// legitimate answers that merely mention missing details.
var refusalPhrases = []string{
	"do not contain information",
	"does not contain information",
	"do not contain the answer",
	"does not contain the answer",
	"do not contain the necessary",
	"do not contain the coordinates",
	"don't contain information",
	"doesn't contain information",
	"cannot answer the question",
	"cannot answer this question",
	"unable to answer",
	"i cannot provide an answer",
	"i am unable to",
	"no relevant information",
	"outside the scope of",
	"is not discussed in",
	"are not discussed in",
	"not contain any information",
	"do not address",
	"does not address",
	"not provided in the evidence",
}

func admitsIgnorance(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func mapDecision(verification string) string {
	switch verification {
	case verify.DecisionPass:
		return DecisionAnswer
	case verify.DecisionWarn:
		return DecisionClarify
	default:
		return DecisionAbstain
	}
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
