// Package llm abstracts the language model provider behind a small
// interface so pipeline components can be tested against fakes and the
// provider can be swapped or disabled at startup.
package llm

import "context"

// ResponseFormatJSON asks the provider for JSON-only output.
const ResponseFormatJSON = "json"

// Options bound a single generation call.
type Options struct {
	Temperature    float64
	MaxTokens      int
	ResponseFormat string
}

// Provider generates text from a prompt. Implementations classify failures:
// quota/rate-limit errors are retryable, anything else fails fast so the
// caller can take its deterministic fallback.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	Enabled() bool
}

// Disabled is a Provider that is never available. Components holding it as
// an extension point must check Enabled before use.
type Disabled struct{}

func (Disabled) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return "", errProviderDisabled
}

func (Disabled) Enabled() bool { return false }
