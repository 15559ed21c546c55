package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/groundcheck-ai/groundcheck/internal/errors"
)

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	Endpoint  string // base URL, e.g. https://generativelanguage.googleapis.com/v1beta
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	client *http.Client
	config GeminiConfig
	logger *slog.Logger
}

var _ LLM = (*GeminiClient)(nil)

// NewGeminiClient creates the generation client.
func NewGeminiClient(cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("llm: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		}},
		config: cfg,
		logger: logger,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

// Generate returns the full completion text.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	body, err := c.call(ctx, req, ":generateContent", "")
	if err != nil {
		return "", err
	}
	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text").String()
	return text, nil
}

// GenerateStream consumes the SSE streaming endpoint, invoking onChunk per
// text fragment.
func (c *GeminiClient) GenerateStream(ctx context.Context, req Request, onChunk func(text string) error) error {
	httpReq, err := c.buildRequest(ctx, req, ":streamGenerateContent", "alt=sse", "")
	if err != nil {
		return err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.LLMError(fmt.Errorf("stream request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return errors.LLMError(fmt.Errorf("llm provider returned %d: %s", resp.StatusCode, apiErrorMessage(data)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		text := gjson.Get(payload, "candidates.0.content.parts.0.text").String()
		if text == "" {
			continue
		}
		if err := onChunk(text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.LLMError(fmt.Errorf("stream read: %w", err))
	}
	return nil
}

// GenerateJSON requests a JSON-mode completion and unmarshals it into out,
// falling back to tolerant extraction when the payload is wrapped in prose.
func (c *GeminiClient) GenerateJSON(ctx context.Context, req Request, out any) error {
	body, err := c.call(ctx, req, ":generateContent", "application/json")
	if err != nil {
		return err
	}
	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text").String()
	if err := ExtractJSON(text, out); err != nil {
		return errors.Wrap(errors.ErrCodeStructuredOutput, err)
	}
	return nil
}

// ModelName returns the model identifier.
func (c *GeminiClient) ModelName() string { return c.config.Model }

func (c *GeminiClient) call(ctx context.Context, req Request, action, mimeType string) ([]byte, error) {
	return errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		httpReq, err := c.buildRequest(reqCtx, req, action, "", mimeType)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, errors.LLMError(fmt.Errorf("generation request: %w", err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, errors.LLMError(fmt.Errorf("read generation response: %w", err))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.LLMError(fmt.Errorf("llm provider returned %d: %s", resp.StatusCode, apiErrorMessage(data)))
		}
		return data, nil
	})
}

func (c *GeminiClient) buildRequest(ctx context.Context, req Request, action, query, mimeType string) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      req.Temperature,
			MaxOutputTokens:  maxTokens,
			ResponseMimeType: mimeType,
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	url := strings.TrimRight(c.config.Endpoint, "/") + "/models/" + c.config.Model + action
	if query != "" {
		url += "?" + query
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.config.APIKey)
	}
	return httpReq, nil
}

func apiErrorMessage(data []byte) string {
	if msg := gjson.GetBytes(data, "error.message").String(); msg != "" {
		return msg
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
