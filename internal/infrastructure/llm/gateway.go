package llm

import (
	"context"
	"fmt"
	"time"

	"trendsurf/internal/config"
	"trendsurf/internal/domain"
	"trendsurf/internal/ports"
)

const defaultTemperature = 0.7

// embedBackend and generateBackend are the two capabilities each provider
// protocol implements. Both concrete backends are constructed once from
// configuration; gateways only select by tag.
type embedBackend interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type generateBackend interface {
	Generate(ctx context.Context, model, prompt string, opts domain.GenerationOptions) (domain.CompletionResult, error)
}

// EmbedOptions override the configured defaults for a single call.
type EmbedOptions struct {
	Provider string
	Model    string
	Timeout  time.Duration
}

// EmbeddingGateway resolves provider/model defaults and dispatches to one of
// the two embedding backends. Protocol differences never leak to callers.
type EmbeddingGateway struct {
	defaultProvider string
	defaultModel    string
	timeout         time.Duration
	backends        map[string]embedBackend
}

var _ ports.Embedder = (*EmbeddingGateway)(nil)

// NewEmbeddingGateway constructs both backends from configuration. The
// ollama base URL falls back to the generation section's, matching how the
// two sections share a self-hosted deployment.
func NewEmbeddingGateway(cfg config.Config) *EmbeddingGateway {
	ollamaBase := cfg.Embedding.BaseURL
	if ollamaBase == "" {
		ollamaBase = cfg.Generation.OllamaBaseURL
	}
	openaiBase := cfg.Embedding.BaseURL
	if openaiBase == "" {
		openaiBase = cfg.Generation.OpenAIBaseURL
	}
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = cfg.Generation.OpenAIAPIKey
	}

	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &EmbeddingGateway{
		defaultProvider: cfg.Embedding.Provider,
		defaultModel:    cfg.Embedding.Model,
		timeout:         timeout,
		backends: map[string]embedBackend{
			ProviderOllama:       NewOllamaClient(ollamaBase),
			ProviderOpenAICompat: NewOpenAIClient(openaiBase, apiKey),
		},
	}
}

// EmbedTexts turns texts into vectors positionally aligned with the input.
// Empty input returns an empty result without any network call.
func (g *EmbeddingGateway) EmbedTexts(ctx context.Context, texts []string, opts EmbedOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	provider := opts.Provider
	if provider == "" {
		provider = g.defaultProvider
	}
	if provider == "" {
		return nil, fmt.Errorf("%w: embedding provider is not set", ErrNotConfigured)
	}

	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model is not set", ErrNotConfigured)
	}

	backend, ok := g.backends[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = g.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return backend.Embed(callCtx, model, texts)
}

// Embed satisfies ports.Embedder using the configured defaults.
func (g *EmbeddingGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.EmbedTexts(ctx, texts, EmbedOptions{})
}

// ModelName reports the configured default embedding model.
func (g *EmbeddingGateway) ModelName() string {
	return g.defaultModel
}

// GenerationGateway enforces the allowlist policy and dispatches prompts to
// one of the two generation backends.
type GenerationGateway struct {
	allowlist Allowlist
	backends  map[string]generateBackend
	timeouts  map[string]time.Duration
}

var _ ports.Generator = (*GenerationGateway)(nil)

// NewGenerationGateway constructs both backends from configuration.
func NewGenerationGateway(cfg config.GenerationConfig) *GenerationGateway {
	ollamaTimeout := time.Duration(cfg.OllamaTimeoutSeconds) * time.Second
	if ollamaTimeout <= 0 {
		ollamaTimeout = 120 * time.Second
	}
	openaiTimeout := time.Duration(cfg.OpenAITimeoutSeconds) * time.Second
	if openaiTimeout <= 0 {
		openaiTimeout = 60 * time.Second
	}

	return &GenerationGateway{
		allowlist: Allowlist(cfg.AllowedModels()),
		backends: map[string]generateBackend{
			ProviderOllama:       NewOllamaClient(cfg.OllamaBaseURL),
			ProviderOpenAICompat: NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey),
		},
		timeouts: map[string]time.Duration{
			ProviderOllama:       ollamaTimeout,
			ProviderOpenAICompat: openaiTimeout,
		},
	}
}

// Generate produces a completion after the policy check passes. Temperature
// defaults to 0.7 when unset.
func (g *GenerationGateway) Generate(ctx context.Context, provider, model, prompt string, opts domain.GenerationOptions) (domain.CompletionResult, error) {
	if err := g.allowlist.Validate(provider, model); err != nil {
		return domain.CompletionResult{}, err
	}

	backend, ok := g.backends[provider]
	if !ok {
		return domain.CompletionResult{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	if opts.Temperature == nil {
		temperature := defaultTemperature
		opts.Temperature = &temperature
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = g.timeouts[provider]
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return backend.Generate(callCtx, model, prompt, opts)
}

// ValidateChoice is the standalone policy check used by the request layer
// before accepting a user-chosen provider/model pair. Unknown provider tags
// are rejected outright.
func (g *GenerationGateway) ValidateChoice(provider, model string) error {
	if _, ok := g.backends[provider]; !ok {
		return fmt.Errorf("%w: unknown provider %s", ErrNotAllowed, provider)
	}
	return g.allowlist.Validate(provider, model)
}
