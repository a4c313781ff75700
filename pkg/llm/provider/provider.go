// Package provider builds the configured llm.Completer.
package provider

import (
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/ollama"
	"github.com/papercomputeco/mnemo/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider string

	// Target is the provider base URL. Empty uses the provider default.
	Target string
	Model  string
	APIKey string
}

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// New creates the Completer for the configured provider type.
// Returns an error if the provider type is not recognized.
func New(cfg Config) (llm.Completer, error) {
	switch cfg.Provider {
	case Anthropic:
		return anthropic.New(cfg.APIKey, cfg.Target, cfg.Model), nil
	case OpenAI:
		return openai.New(cfg.APIKey, cfg.Target, cfg.Model), nil
	case Ollama, "":
		return ollama.New(cfg.Target, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", cfg.Provider, SupportedProviders())
	}
}
