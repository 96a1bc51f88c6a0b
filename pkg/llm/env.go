package llm

import (
	"os"
	"strings"
)

const (
	// DefaultOllamaBaseURL is used when neither an explicit URL nor
	// OLLAMA_BASE_URL is set.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// MockEnv switches Generate to a canned response when set to "1".
	MockEnv = "UMLFLOW_MOCK_LLM"

	// MockResponse is what Generate returns in mock mode. It is valid
	// Mermaid so a downstream render succeeds.
	MockResponse = "graph LR\n  A[Kroki] --> B[Diagrams]"
)

var apiKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// APIKeyEnv names the environment variable holding a provider's key.
func APIKeyEnv(provider string) string { return apiKeyEnv[provider] }

// ResolveAPIKey returns the explicit key when non-blank, else the
// provider's environment variable. Both are trimmed.
func ResolveAPIKey(provider, explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	env := apiKeyEnv[provider]
	if env == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(env))
}

// ResolveOllamaBaseURL picks the explicit URL, then OLLAMA_BASE_URL, then
// DefaultOllamaBaseURL, with trailing slashes removed.
func ResolveOllamaBaseURL(explicit string) string {
	base := strings.TrimSpace(explicit)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	}
	if base == "" {
		base = DefaultOllamaBaseURL
	}
	return strings.TrimRight(base, "/")
}

// MockEnabled reports whether mock mode is on.
func MockEnabled() bool {
	return strings.TrimSpace(os.Getenv(MockEnv)) == "1"
}
