package agentllm

import (
	"fmt"
	"strings"
)

// Provider names an OpenAI-compatible chat backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultAnthropicModel   = "claude-3-haiku-20240307"
)

// ParseProvider accepts the provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q", s)
	}
}

// Endpoint is a resolved provider configuration.
type Endpoint struct {
	Provider Provider
	BaseURL  string
	Model    string
	APIKey   string
}

// Resolve fills the provider defaults for empty fields.
func (e Endpoint) Resolve() Endpoint {
	switch e.Provider {
	case ProviderAnthropic:
		if e.BaseURL == "" {
			e.BaseURL = DefaultAnthropicBaseURL
		}
		if e.Model == "" {
			e.Model = DefaultAnthropicModel
		}
	default:
		e.Provider = ProviderOpenAI
		if e.BaseURL == "" {
			e.BaseURL = DefaultOpenAIBaseURL
		}
		if e.Model == "" {
			e.Model = DefaultOpenAIModel
		}
	}
	return e
}

// NewClientFor builds a client for the resolved endpoint.
func NewClientFor(e Endpoint, opts ...Option) *Client {
	e = e.Resolve()
	return NewClient(e.BaseURL, e.APIKey, opts...)
}
