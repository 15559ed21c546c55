package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
)

// OpenAIConfig configures the OpenAI-compatible embedding client.
type OpenAIConfig struct {
	Endpoint   string // base URL, e.g. https://api.openai.com/v1
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client *http.Client
	config OpenAIConfig
	logger *slog.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the HTTP embedding client.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embed: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embed: dimensions must be positive")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	// No client-level timeout: per-request contexts carry the deadline so
	// the pipeline's latency budget propagates.
	return &OpenAIEmbedder{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		}},
		config: cfg,
		logger: logger,
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in batches of the configured size, preserving
// input order. Any hard provider failure aborts the whole batch.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.config.BatchSize {
		end := i + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([][]float32, error) {
			return e.embedOnce(ctx, texts[i:end])
		})
		if err != nil {
			return nil, errors.EmbeddingError(err)
		}
		results = append(results, vecs...)
	}

	e.logger.Debug("embedded batch",
		slog.Int("count", len(texts)),
		slog.String("model", e.config.Model),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embeddingRequest{Input: batch, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := strings.TrimRight(e.config.Endpoint, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("embedding provider returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(parsed.Data))
	}

	// The API allows out-of-order items; reassemble by index.
	vecs := make([][]float32, len(batch))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		if len(item.Embedding) != e.config.Dimensions {
			return nil, fmt.Errorf("embedding width mismatch: expected %d, got %d",
				e.config.Dimensions, len(item.Embedding))
		}
		vecs[item.Index] = item.Embedding
	}
	return vecs, nil
}

// Dimensions returns the embedding width.
func (e *OpenAIEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.config.Model }
