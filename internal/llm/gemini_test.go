package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiTextResponse(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestGeminiClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/models/test-model:generateContent")
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is photosynthesis?", req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "Be concise.", req.SystemInstruction.Parts[0].Text)

		fmt.Fprint(w, geminiTextResponse("Photosynthesis converts light to energy."))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, APIKey: "secret", Model: "test-model"}, nil)
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), Request{
		Prompt: "What is photosynthesis?",
		System: "Be concise.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light to energy.", got)
}

func TestGeminiClient_GenerateJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		// Model wraps the JSON in a fence despite JSON mode.
		fmt.Fprint(w, geminiTextResponse("```json\n{\"rewrites\": [\"alt one\"]}\n```"))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	var out rewriteList
	require.NoError(t, c.GenerateJSON(context.Background(), Request{Prompt: "rewrite"}, &out))
	assert.Equal(t, []string{"alt one"}, out.Rewrites)
}

func TestGeminiClient_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		assert.Equal(t, "alt=sse", r.URL.RawQuery)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, fragment := range []string{"Photo", "synthesis", " converts light."} {
			fmt.Fprintf(w, "data: %s\n\n", geminiTextResponse(fragment))
		}
	}))
	defer srv.Close()

	c, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	var sb strings.Builder
	err = c.GenerateStream(context.Background(), Request{Prompt: "q"}, func(text string) error {
		sb.WriteString(text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light.", sb.String())
}

func TestGeminiClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "invalid request"}}`)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(GeminiConfig{Endpoint: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestGeminiClient_ConfigValidation(t *testing.T) {
	_, err := NewGeminiClient(GeminiConfig{Model: "m"}, nil)
	assert.Error(t, err)
	_, err = NewGeminiClient(GeminiConfig{Endpoint: "http://x"}, nil)
	assert.Error(t, err)
}

func TestStub_ServesResponsesInOrder(t *testing.T) {
	s := NewStub("first", "second")

	got, err := s.Generate(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, _ = s.Generate(context.Background(), Request{Prompt: "b"})
	assert.Equal(t, "second", got)

	// Last response repeats once exhausted.
	got, _ = s.Generate(context.Background(), Request{Prompt: "c"})
	assert.Equal(t, "second", got)
	assert.Equal(t, 3, s.CallCount())
}
