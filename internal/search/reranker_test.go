package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

func fusedCandidates(texts ...string) []Candidate {
	out := make([]Candidate, len(texts))
	for i, text := range texts {
		out[i] = Candidate{
			Chunk:  &store.Chunk{ID: string(rune('a' + i)), Text: text},
			Score:  1.0 / float64(i+1),
			Source: SourceHybrid,
		}
	}
	return out
}

// newRerankServer serves fixed scores and records the last request.
func newRerankServer(t *testing.T, scores []float64, lastReq *rerankRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(lastReq))
		json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrossEncoderRerankReorders(t *testing.T) {
	var req rerankRequest
	srv := newRerankServer(t, []float64{0.1, 0.9, 0.5}, &req)

	reranker, err := NewCrossEncoderReranker(CrossEncoderConfig{Endpoint: srv.URL, Model: "ce-small"}, nil)
	require.NoError(t, err)

	out, err := reranker.Rerank(context.Background(), "the query", fusedCandidates("first", "second", "third"), 10)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "second", out[0].Chunk.Text)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, "third", out[1].Chunk.Text)
	assert.Equal(t, "first", out[2].Chunk.Text)
	for _, c := range out {
		assert.Equal(t, SourceReranked, c.Source)
	}

	assert.Equal(t, "the query", req.Query)
	assert.Equal(t, "ce-small", req.Model)
	assert.Equal(t, []string{"first", "second", "third"}, req.Passages)
}

func TestCrossEncoderRerankTruncatesToTopN(t *testing.T) {
	var req rerankRequest
	srv := newRerankServer(t, []float64{0.2, 0.8, 0.5, 0.9}, &req)

	reranker, err := NewCrossEncoderReranker(CrossEncoderConfig{Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	out, err := reranker.Rerank(context.Background(), "q", fusedCandidates("a", "b", "c", "d"), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, 0.8, out[1].Score)
}

func TestCrossEncoderRerankScoreCountMismatch(t *testing.T) {
	var req rerankRequest
	srv := newRerankServer(t, []float64{0.5}, &req)

	reranker, err := NewCrossEncoderReranker(CrossEncoderConfig{Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", fusedCandidates("a", "b"), 10)
	assert.Error(t, err)
}

func TestCrossEncoderRerankEmptyInput(t *testing.T) {
	reranker, err := NewCrossEncoderReranker(CrossEncoderConfig{Endpoint: "http://unused.invalid"}, nil)
	require.NoError(t, err)

	out, err := reranker.Rerank(context.Background(), "q", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCrossEncoderRequiresEndpoint(t *testing.T) {
	_, err := NewCrossEncoderReranker(CrossEncoderConfig{}, nil)
	assert.Error(t, err)
}

func TestNoopRerankerKeepsOrder(t *testing.T) {
	in := fusedCandidates("a", "b", "c")

	out, err := NoopReranker{}.Rerank(context.Background(), "q", in, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.Text)
	assert.Equal(t, in[0].Score, out[0].Score)
	assert.Equal(t, SourceReranked, out[0].Source)
}
