package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/conductor/llm"
)

func TestProvidersRegistered(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "ollama"} {
		assert.NotNil(t, llm.GetProvider(name), "provider %s", name)
	}
}

func TestOpenAIBuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"https://openrouter.ai/api/v1", "https://openrouter.ai/api/v1/chat/completions"},
		{"https://gw.example.com/v1/", "https://gw.example.com/v1/chat/completions"},
		{"https://gw.example.com/v1/chat/completions", "https://gw.example.com/v1/chat/completions"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.BuildURL(tt.base))
	}
}

func TestOpenAIRequestBody(t *testing.T) {
	p := &OpenAIProvider{}
	temp := 0.2

	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, &temp, 256)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "gpt-4o", decoded["model"])
	assert.InDelta(t, 0.2, decoded["temperature"], 0.001)
	assert.EqualValues(t, 256, decoded["max_tokens"])
	assert.Len(t, decoded["messages"], 2)
}

func TestOpenAIRequestBodyOmitsOptionals(t *testing.T) {
	p := &OpenAIProvider{}

	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{
		{Role: "user", Content: "hi"},
	}, nil, 0)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.NotContains(t, decoded, "temperature")
	assert.NotContains(t, decoded, "max_tokens")
}

func TestOpenAIParseResponse(t *testing.T) {
	p := &OpenAIProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "gpt-4o-2024",
		"choices": [{"message": {"role": "assistant", "content": "answer"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`), "gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOpenAIParseResponseNoChoices(t *testing.T) {
	p := &OpenAIProvider{}
	_, err := p.ParseResponse([]byte(`{"model": "m", "choices": []}`), "m")
	assert.Error(t, err)
}

func TestOpenAIHeaders(t *testing.T) {
	p := &OpenAIProvider{}

	t.Setenv("LLM_API_KEY", "primary-key")
	t.Setenv("OPENAI_API_KEY", "fallback-key")

	req, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	p.SetHeaders(req)
	assert.Equal(t, "Bearer primary-key", req.Header.Get("Authorization"))

	t.Setenv("LLM_API_KEY", "")
	req, _ = http.NewRequest(http.MethodPost, "http://example.com", nil)
	p.SetHeaders(req)
	assert.Equal(t, "Bearer fallback-key", req.Header.Get("Authorization"))
}

func TestAnthropicRequestBody(t *testing.T) {
	p := &AnthropicProvider{}
	temp := 0.1

	body, err := p.BuildRequestBody("claude-sonnet-4", []llm.Message{
		{Role: "system", Content: "review code"},
		{Role: "user", Content: "here it is"},
	}, &temp, 0)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	// The system prompt moves to its own field and max_tokens gets the
	// required default.
	assert.Equal(t, "review code", decoded["system"])
	assert.EqualValues(t, 4096, decoded["max_tokens"])
	messages := decoded["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestAnthropicParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "claude-sonnet-4",
		"content": [{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 20, "output_tokens": 10}
	}`), "claude-sonnet-4")
	require.NoError(t, err)

	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestAnthropicHeaders(t *testing.T) {
	p := &AnthropicProvider{}
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")

	req, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	p.SetHeaders(req)
	assert.Equal(t, "ant-key", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicBuildURL(t *testing.T) {
	p := &AnthropicProvider{}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", p.BuildURL(""))
	assert.Equal(t, "https://proxy.example.com/v1/messages", p.BuildURL("https://proxy.example.com/"))
}

func TestOllamaDefaults(t *testing.T) {
	p := &OllamaProvider{}

	assert.Equal(t, "http://localhost:11434/v1/chat/completions", p.BuildURL(""))

	req, _ := http.NewRequest(http.MethodPost, "http://example.com", nil)
	p.SetHeaders(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}
