package providers

import (
	"net/http"
	"strings"

	"github.com/stackforge/conductor/llm"
)

// OllamaProvider serves local Ollama, vLLM, and other self-hosted
// OpenAI-compatible endpoints. Separate from OpenAIProvider so the
// default URL points at localhost and no API key is required.
type OllamaProvider struct {
	OpenAIProvider // Shared request/response wire format
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// SetHeaders is a no-op for local endpoints.
func (o *OllamaProvider) SetHeaders(_ *http.Request) {}
