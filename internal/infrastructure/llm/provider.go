package llm

import (
	"errors"
	"fmt"
	"slices"
)

// Provider tags select one of the two backend protocols.
const (
	ProviderOllama       = "ollama"
	ProviderOpenAICompat = "openai_compat"
)

var (
	// ErrNotConfigured reports a missing endpoint, credential or model
	// default. Fails fast, never retried.
	ErrNotConfigured = errors.New("llm configuration missing")
	// ErrNotAllowed reports a provider/model pair rejected by the
	// allowlist. Detected before any network call.
	ErrNotAllowed = errors.New("provider/model not allowed")
	// ErrUnsupportedProvider reports an unknown provider tag.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// Allowlist maps provider tags to permitted model names. An empty map
// permits any provider/model pair.
type Allowlist map[string][]string

// Validate checks a provider/model pair against the allowlist.
func (a Allowlist) Validate(provider, model string) error {
	if len(a) == 0 {
		return nil
	}
	models, ok := a[provider]
	if !ok {
		return fmt.Errorf("%w: provider %s", ErrNotAllowed, provider)
	}
	if !slices.Contains(models, model) {
		return fmt.Errorf("%w: model %s for provider %s", ErrNotAllowed, model, provider)
	}
	return nil
}
