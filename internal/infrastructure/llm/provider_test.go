package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlistValidate(t *testing.T) {
	tests := []struct {
		name      string
		allowlist Allowlist
		provider  string
		model     string
		wantErr   bool
	}{
		{
			name:     "empty allowlist permits everything",
			provider: ProviderOllama,
			model:    "llama3",
		},
		{
			name:      "listed pair passes",
			allowlist: Allowlist{ProviderOllama: {"llama3", "mistral"}},
			provider:  ProviderOllama,
			model:     "mistral",
		},
		{
			name:      "unlisted model rejected",
			allowlist: Allowlist{ProviderOllama: {"llama3"}},
			provider:  ProviderOllama,
			model:     "gemma",
			wantErr:   true,
		},
		{
			name:      "unlisted provider rejected",
			allowlist: Allowlist{ProviderOllama: {"llama3"}},
			provider:  ProviderOpenAICompat,
			model:     "gpt-4o-mini",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.allowlist.Validate(tt.provider, tt.model)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotAllowed)
				return
			}
			assert.NoError(t, err)
		})
	}
}
