package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"layout-translator/internal/document"
)

// ProviderConfig is the provider-independent configuration handed to factories
type ProviderConfig struct {
	URL       string
	APIKey    string
	Model     string
	Timeout   time.Duration
	NLLBCodes bool
}

// Factory builds a Translator
type Factory func(ctx context.Context, cfg ProviderConfig) (Translator, error)

// Registry maps provider names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in providers registered:
// "http" and "llm" (alias "openai")
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("http", func(_ context.Context, cfg ProviderConfig) (Translator, error) {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, document.NewError(document.ErrConfig, "http provider requires a URL", nil)
		}
		return NewHTTPTranslator(HTTPConfig{
			URL:       cfg.URL,
			APIKey:    cfg.APIKey,
			Timeout:   cfg.Timeout,
			NLLBCodes: cfg.NLLBCodes,
		}), nil
	})
	llm := func(ctx context.Context, cfg ProviderConfig) (Translator, error) {
		return NewLLMTranslator(ctx, LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.URL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}
	r.Register("llm", llm)
	r.Register("openai", llm)
	return r
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces a factory
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeName(name)] = f
}

// New builds the named provider
func (r *Registry) New(ctx context.Context, name string, cfg ProviderConfig) (Translator, error) {
	r.mu.RLock()
	f, ok := r.factories[normalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, document.NewErrorWithDetails(document.ErrConfig, "unknown translation provider",
			fmt.Sprintf("%q (known: %s)", name, strings.Join(r.Names(), ", ")), nil)
	}
	return f(ctx, cfg)
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
