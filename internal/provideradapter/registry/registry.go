// Package registry builds provideradapter.Provider instances by name,
// wiring each concrete adapter package (anthropic, openai, google, test)
// behind the provider-agnostic contract. It is kept separate from
// provideradapter itself to avoid that package importing its own
// implementations.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"pidgin/internal/provideradapter"
	"pidgin/internal/provideradapter/anthropic"
	"pidgin/internal/provideradapter/google"
	"pidgin/internal/provideradapter/openai"
	testadapter "pidgin/internal/provideradapter/test"
)

// ModelProvider infers the adapter family a model string belongs to, by
// prefix convention (e.g. "claude-*" → anthropic, "gpt-*" → openai,
// "gemini-*" → google, "grok-*" → xai, "test"/"silent" → the deterministic
// adapters). An explicit "<provider>:<model>" prefix always wins.
func ModelProvider(model string) (provider, bareModel string) {
	if p, m, ok := strings.Cut(model, ":"); ok {
		return p, m
	}
	m := strings.ToLower(model)
	switch {
	case m == "test":
		return "test", model
	case m == "silent":
		return "silent", model
	case strings.HasPrefix(m, "claude"):
		return "anthropic", model
	case strings.HasPrefix(m, "gemini"):
		return "google", model
	case strings.HasPrefix(m, "grok"):
		return "xai", model
	case strings.HasPrefix(m, "llama") || strings.HasPrefix(m, "qwen") || strings.HasPrefix(m, "mistral"):
		return "ollama", model
	default:
		return "openai", model
	}
}

// Credentials bundles the environment-derived API keys and base URL
// overrides the registry needs. Populated once at daemon startup, the same
// way the teacher's top-level Config reads provider keys via
// godotenv-overlaid environment variables.
type Credentials struct {
	OpenAIKey        string
	AnthropicKey     string
	GoogleKey        string
	XAIKey           string
	OllamaBaseURL    string
	OpenAIBaseURL    string
	AnthropicBaseURL string
}

// CredentialsFromEnv reads provider keys from the process environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		GoogleKey:        os.Getenv("GOOGLE_API_KEY"),
		XAIKey:           os.Getenv("XAI_API_KEY"),
		OllamaBaseURL:    envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Registry builds provideradapter.Provider instances on demand, caching one
// instance per provider name for the lifetime of the daemon (each adapter's
// underlying SDK client is safe for concurrent reuse across conversations).
type Registry struct {
	creds      Credentials
	httpClient *http.Client
	ctx        context.Context

	cache map[string]provideradapter.Provider
}

// New constructs a Registry. ctx is retained only for constructors (like
// the Google adapter) that need it to build their SDK client.
func New(ctx context.Context, creds Credentials, httpClient *http.Client) *Registry {
	return &Registry{creds: creds, httpClient: httpClient, ctx: ctx, cache: map[string]provideradapter.Provider{}}
}

// For returns the adapter for the given provider name ("openai",
// "anthropic", "google", "xai", "ollama", "test", "silent"), constructing
// and caching it on first use.
func (r *Registry) For(provider string) (provideradapter.Provider, error) {
	if p, ok := r.cache[provider]; ok {
		return p, nil
	}
	p, err := r.build(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: build %s adapter: %w", provider, err)
	}
	r.cache[provider] = p
	return p, nil
}

// ForModel resolves the provider family for model and returns its adapter.
func (r *Registry) ForModel(model string) (provideradapter.Provider, error) {
	provider, _ := ModelProvider(model)
	return r.For(provider)
}

func (r *Registry) build(provider string) (provideradapter.Provider, error) {
	switch provider {
	case "test":
		return testadapter.NewProvider(), nil
	case "silent":
		return testadapter.Silent{}, nil
	case "anthropic":
		return anthropic.New(r.creds.AnthropicKey, r.creds.AnthropicBaseURL, r.httpClient), nil
	case "openai":
		return openai.New("openai", r.creds.OpenAIKey, r.creds.OpenAIBaseURL, r.httpClient), nil
	case "xai":
		return openai.New("xai", r.creds.XAIKey, "https://api.x.ai/v1", r.httpClient), nil
	case "ollama":
		return openai.New("ollama", "ollama", r.creds.OllamaBaseURL, r.httpClient), nil
	case "google":
		return google.New(r.ctx, r.creds.GoogleKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
