package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
)

// DefaultRerankTopN is the candidate count kept after reranking.
const DefaultRerankTopN = 10

// Reranker rescores fused candidates against the normalized query.
type Reranker interface {
	// Rerank returns the top-N candidates rescored, source set to
	// "reranked". Empty input returns empty output.
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error)
}

// CrossEncoderConfig configures the reranker service client.
type CrossEncoderConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// CrossEncoderReranker calls an external cross-encoder scoring service.
type CrossEncoderReranker struct {
	client *http.Client
	config CrossEncoderConfig
	logger *slog.Logger
}

var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates the HTTP reranker client.
func NewCrossEncoderReranker(cfg CrossEncoderConfig, logger *slog.Logger) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reranker: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossEncoderReranker{
		client: &http.Client{},
		config: cfg,
		logger: logger,
	}, nil
}

type rerankRequest struct {
	Model    string   `json:"model,omitempty"`
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores each candidate passage against the query and keeps the
// top-N by cross-encoder score.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}
	if topN <= 0 {
		topN = DefaultRerankTopN
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Text
	}

	scores, err := errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([]float64, error) {
		return r.scoreOnce(ctx, query, passages)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRerankerFailed, err)
	}
	if len(scores) != len(candidates) {
		return nil, errors.New(errors.ErrCodeRerankerFailed,
			fmt.Sprintf("score count mismatch: sent %d passages, got %d scores", len(candidates), len(scores)), nil)
	}

	rescored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		rescored[i] = Candidate{Chunk: c.Chunk, Score: scores[i], Source: SourceReranked}
	}
	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].Score > rescored[j].Score })

	if len(rescored) > topN {
		rescored = rescored[:topN]
	}
	return rescored, nil
}

func (r *CrossEncoderReranker) scoreOnce(ctx context.Context, query string, passages []string) ([]float64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Model: r.config.Model, Query: query, Passages: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned %d", resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return parsed.Scores, nil
}

// NoopReranker keeps the fused order, relabeling the top-N as reranked.
// Used when no cross-encoder service is configured.
type NoopReranker struct{}

var _ Reranker = (*NoopReranker)(nil)

// Rerank truncates to top-N, preserving fused order and scores.
func (NoopReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topN int) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = Candidate{Chunk: c.Chunk, Score: c.Score, Source: SourceReranked}
	}
	return out, nil
}
