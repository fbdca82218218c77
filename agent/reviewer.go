package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stackforge/conductor/llm"
)

// reviewerTemperature is very low for consistent verdicts.
const reviewerTemperature = 0.1

// Reviewer evaluates a set of generated files. A nil client selects the
// offline stub.
type Reviewer struct {
	client Completer
	logger *slog.Logger
}

// NewReviewer creates a reviewer agent.
func NewReviewer(client Completer, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{client: client, logger: logger}
}

// Review assesses files against the framework's conventions. Returns a
// ServiceError when the collaborator is unreachable or its output cannot
// be parsed; the engine treats that as fail-open, not as a rejection.
func (r *Reviewer) Review(ctx context.Context, files map[string]string, framework string) (*ReviewResult, error) {
	if r.client == nil {
		r.logger.Debug("No LLM configured, using stub reviewer", "files", len(files))
		return stubReview(files, framework), nil
	}

	user := fmt.Sprintf("Please review the following %s code:\n%s",
		framework, reviewerFilesBlock(files))

	temp := reviewerTemperature
	resp, err := r.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(reviewerSystemPrompt, framework)},
			{Role: "user", Content: user},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, serviceErr("reviewer", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, serviceErr("reviewer", fmt.Errorf("no JSON object in response"))
	}

	var result ReviewResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, serviceErr("reviewer", fmt.Errorf("parse review: %w", err))
	}

	r.logger.Info("Review complete",
		"approved", result.Approved,
		"score", result.Score,
		"issues", len(result.Issues),
		"model", resp.Model)

	return &result, nil
}
