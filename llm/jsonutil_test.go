package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain object",
			content: `{"subtasks": ["a", "b"]}`,
			want:    `{"subtasks": ["a", "b"]}`,
		},
		{
			name:    "json fence",
			content: "Here is the plan:\n```json\n{\"subtasks\": [\"a\"]}\n```\nDone.",
			want:    `{"subtasks": ["a"]}`,
		},
		{
			name:    "unlabeled fence",
			content: "```\n{\"approved\": true}\n```",
			want:    `{"approved": true}`,
		},
		{
			name:    "object surrounded by prose",
			content: "Sure! The result is {\"score\": 8} as requested.",
			want:    `{"score": 8}`,
		},
		{
			name:    "trailing commas removed",
			content: `{"items": ["a", "b",], "n": 2,}`,
			want:    `{"items": ["a", "b"], "n": 2}`,
		},
		{
			name:    "no object",
			content: "I cannot produce JSON for that.",
			want:    "",
		},
		{
			name:    "empty input",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestExtractJSONStripsComments(t *testing.T) {
	content := "```json\n" +
		"{\n" +
		"  \"files\": { // generated files\n" +
		"    \"/App.jsx\": \"code\"\n" +
		"  },\n" +
		"  \"explanation\": \"see https://example.com/docs\"\n" +
		"}\n" +
		"```"

	raw := ExtractJSON(content)
	require.NotEmpty(t, raw)

	var parsed struct {
		Files       map[string]string `json:"files"`
		Explanation string            `json:"explanation"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	assert.Equal(t, "code", parsed.Files["/App.jsx"])
	// The URL's double slash must survive comment stripping.
	assert.Equal(t, "see https://example.com/docs", parsed.Explanation)
}

func TestExtractJSONNestedObjects(t *testing.T) {
	content := `{"files": {"/a.js": "x", "/b.js": "y"}, "explanation": "two files"}`

	raw := ExtractJSON(content)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	assert.Contains(t, parsed, "files")
	assert.Contains(t, parsed, "explanation")
}
