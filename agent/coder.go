package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stackforge/conductor/llm"
)

// coderTemperature is low for consistent code generation.
const coderTemperature = 0.2

// Coder generates files for a single subtask. A nil client selects the
// offline stub.
type Coder struct {
	client Completer
	logger *slog.Logger
}

// NewCoder creates a coder agent.
func NewCoder(client Completer, logger *slog.Logger) *Coder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coder{client: client, logger: logger}
}

// Generate produces files for one subtask against an immutable context
// snapshot. Returns a ServiceError when the collaborator is unreachable
// or its output cannot be parsed.
func (c *Coder) Generate(ctx context.Context, req GenerationRequest) (*CodeResult, error) {
	if c.client == nil {
		c.logger.Debug("No LLM configured, using stub coder", "subtask", req.Subtask)
		return stubCode(req), nil
	}

	system := fmt.Sprintf(coderSystemPrompt,
		req.Framework,
		coderExistingFilesSection(req.Context.ExistingFiles),
		coderFeedbackSection(req.Context.ReviewFeedback))

	user := "Subtask: " + req.Subtask
	if req.Context.Task != "" {
		user = "Main task: " + req.Context.Task + "\n\n" + user
	}

	temp := coderTemperature
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, serviceErr("coder", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, serviceErr("coder", fmt.Errorf("no JSON object in response"))
	}

	var result CodeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, serviceErr("coder", fmt.Errorf("parse generated files: %w", err))
	}

	c.logger.Info("Code generated",
		"subtask", req.Subtask,
		"files", len(result.Files),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens)

	return &result, nil
}
