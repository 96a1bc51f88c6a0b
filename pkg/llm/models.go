package llm

// Provider names accepted by NewClient once the providers package is linked.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Providers lists the provider choices in the order they are offered.
var Providers = []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// Model catalogues offered as defaults. Any model name the provider accepts
// may be passed; these are only suggestions.
var (
	OpenAIModels = []string{
		"gpt-4o-mini",
		"gpt-4o",
		"gpt-4-turbo",
		"gpt-3.5-turbo",
	}
	AnthropicModels = []string{
		"claude-3-5-haiku-20241022",
		"claude-3-5-sonnet-20241022",
		"claude-3-opus-20240229",
	}
	OllamaModels = []string{
		"llama3.2",
		"llama3.1",
		"mistral",
		"codellama",
		"qwen2.5-coder",
		"phi3",
		"gemma2",
	}
	GeminiModels = []string{
		"gemini-2.0-flash",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-1.0-pro",
	}
)

// Models returns the catalogue for a provider, or nil if it has none.
func Models(provider string) []string {
	switch provider {
	case ProviderOllama:
		return OllamaModels
	case ProviderOpenAI:
		return OpenAIModels
	case ProviderAnthropic:
		return AnthropicModels
	case ProviderGemini:
		return GeminiModels
	}
	return nil
}

// AllModels is every catalogued model, Ollama first.
func AllModels() []string {
	var out []string
	for _, p := range Providers {
		out = append(out, Models(p)...)
	}
	return out
}

// DefaultModel is the first catalogued model of a provider.
func DefaultModel(provider string) string {
	if m := Models(provider); len(m) > 0 {
		return m[0]
	}
	return ""
}
