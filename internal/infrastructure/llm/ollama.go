package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"trendsurf/internal/domain"
)

// OllamaClient talks to a self-hosted Ollama-compatible server. The base URL
// may be empty at construction when only call-time overrides supply it.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaClient builds a client; call timeouts are applied per request via
// context by the gateways.
func NewOllamaClient(baseURL string) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Embed posts the batch to /api/embeddings and extracts vectors in order.
func (c *OllamaClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: EMBED_BASE_URL or OLLAMA_BASE_URL must be set for ollama embeddings", ErrNotConfigured)
	}

	payload := map[string]any{"model": model, "input": texts}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, c.baseURL+"/api/embeddings", payload, &out); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(out.Data))
	for _, item := range out.Data {
		vectors = append(vectors, item.Embedding)
	}
	return vectors, nil
}

// Generate posts the prompt to /api/generate and maps the backend token
// counters into the completion result.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string, opts domain.GenerationOptions) (domain.CompletionResult, error) {
	baseURL := c.baseURL
	if v := opts.Overrides["base_url"]; v != "" {
		baseURL = strings.TrimSuffix(v, "/")
	}
	if baseURL == "" {
		return domain.CompletionResult{}, fmt.Errorf("%w: OLLAMA_BASE_URL is not set and no base_url override supplied", ErrNotConfigured)
	}

	options := map[string]any{}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	payload := map[string]any{
		"model":   model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}
	if opts.System != "" {
		payload["system"] = opts.System
	}

	var out struct {
		Response        string `json:"response"`
		Model           string `json:"model"`
		PromptEvalCount *int   `json:"prompt_eval_count"`
		EvalCount       *int   `json:"eval_count"`
	}
	if err := c.post(ctx, baseURL+"/api/generate", payload, &out); err != nil {
		return domain.CompletionResult{}, err
	}

	resultModel := out.Model
	if resultModel == "" {
		resultModel = model
	}
	return domain.CompletionResult{
		Content:          out.Response,
		Model:            resultModel,
		Provider:         ProviderOllama,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

func (c *OllamaClient) post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
