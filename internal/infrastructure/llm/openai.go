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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIClient talks to any OpenAI-compatible API. The base URL defaults to
// the public endpoint; the bearer token is optional for keyless gateways.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIClient builds a client; call timeouts are applied per request via
// context by the gateways.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

// Embed posts the batch to /embeddings and extracts vectors in input order.
func (c *OpenAIClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	payload := map[string]any{"model": model, "input": texts}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, c.baseURL+"/embeddings", c.apiKey, payload, &out); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(out.Data))
	for _, item := range out.Data {
		vectors = append(vectors, item.Embedding)
	}
	return vectors, nil
}

// Generate posts a chat request: optional system message first, then one
// user message carrying the prompt.
func (c *OpenAIClient) Generate(ctx context.Context, model, prompt string, opts domain.GenerationOptions) (domain.CompletionResult, error) {
	baseURL := c.baseURL
	if v := opts.Overrides["base_url"]; v != "" {
		baseURL = strings.TrimSuffix(v, "/")
	}
	apiKey := c.apiKey
	if v := opts.Overrides["api_key"]; v != "" {
		apiKey = v
	}

	var messages []chatMessage
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if opts.Temperature != nil {
		payload["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     *int `json:"prompt_tokens"`
			CompletionTokens *int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := c.post(ctx, baseURL+"/chat/completions", apiKey, payload, &out); err != nil {
		return domain.CompletionResult{}, err
	}
	if len(out.Choices) == 0 {
		return domain.CompletionResult{}, fmt.Errorf("response carried no choices")
	}

	resultModel := out.Model
	if resultModel == "" {
		resultModel = model
	}
	return domain.CompletionResult{
		Content:          out.Choices[0].Message.Content,
		Model:            resultModel,
		Provider:         ProviderOpenAICompat,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

func (c *OpenAIClient) post(ctx context.Context, endpoint, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
