package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, dims int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, 4, &requests)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		Endpoint:   srv.URL,
		Model:      "test-model",
		Dimensions: 4,
		BatchSize:  2,
	}, nil)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// Batch size 2 over 3 texts means two requests.
	assert.Equal(t, int32(2), requests.Load())
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		Endpoint: "http://unused", Model: "m", Dimensions: 4,
	}, nil)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestOpenAIEmbedder_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		Endpoint: srv.URL, Model: "m", Dimensions: 4,
	}, nil)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIEmbedder_DimensionMismatchRejected(t *testing.T) {
	srv := newEmbeddingServer(t, 3, nil)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{
		Endpoint: srv.URL, Model: "m", Dimensions: 8,
	}, nil)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "width mismatch")
}

func TestOpenAIEmbedder_ConfigValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{Model: "m", Dimensions: 4}, nil)
	assert.Error(t, err)

	_, err = NewOpenAIEmbedder(OpenAIConfig{Endpoint: "http://x", Dimensions: 4}, nil)
	assert.Error(t, err)

	_, err = NewOpenAIEmbedder(OpenAIConfig{Endpoint: "http://x", Model: "m"}, nil)
	assert.Error(t, err)
}
