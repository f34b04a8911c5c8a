package llm

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"openrouter": "openrouter/auto",
	"gemini":     "gemini-2.5-flash",
}

// providerEnvKeys maps provider names to their API key environment
// variables, in detection order.
var providerEnvKeys = []struct {
	provider string
	env      string
}{
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
	{"openrouter", "OPENROUTER_API_KEY"},
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("openrouter", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenRouterProvider(cfg)
	})
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
}

// NewProvider creates a provider by name. An empty cfg.APIKey is filled from
// the provider's environment variable.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProvider, name, strings.Join(AvailableProviders(), ", "))
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv(name))
	}
	return factory(cfg)
}

// RegisterProvider adds or replaces a provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	slices.Sort(providers)
	return providers
}

// DetectProvider returns the first provider whose API key is set, checking
// Anthropic, OpenAI, Gemini and OpenRouter in that order.
func DetectProvider() (provider string, apiKey string) {
	for _, k := range providerEnvKeys {
		if key := os.Getenv(k.env); key != "" {
			return k.provider, key
		}
	}
	return "", ""
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	return DefaultModels[provider]
}

// APIKeyEnv returns the API key environment variable for a provider.
func APIKeyEnv(provider string) string {
	for _, k := range providerEnvKeys {
		if k.provider == provider {
			return k.env
		}
	}
	return ""
}
