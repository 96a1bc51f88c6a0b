// Package llm provides a provider-agnostic text completion client used to
// turn a prompt into diagram source.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Client is the provider-agnostic interface for LLM completion.
type Client interface {
	// Complete sends a request and blocks until the full response is ready.
	Complete(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// Options carries per-call connection settings. Zero values mean the
// provider default.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// ProviderFactory creates a Client for the given model name.
type ProviderFactory func(model string, opts Options) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

// RegisterProvider registers a factory under the given provider name.
// It is typically called from a provider package's init function.
func RegisterProvider(name string, f ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Registered returns the names of all registered providers, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates a Client for a registered provider.
func NewClient(provider, model string, opts Options) (Client, error) {
	registryMu.RLock()
	f, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return f(model, opts)
}
