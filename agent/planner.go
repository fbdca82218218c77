package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stackforge/conductor/llm"
)

// plannerTemperature keeps decompositions consistent across runs.
const plannerTemperature = 0.3

// Planner decomposes a task into subtasks via the LLM collaborator.
// A nil client selects the offline stub.
type Planner struct {
	client Completer
	logger *slog.Logger
}

// NewPlanner creates a planner agent.
func NewPlanner(client Completer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// Plan decomposes task into ordered subtasks for the given framework.
// Returns a ServiceError when the collaborator is unreachable or its
// output cannot be parsed.
func (p *Planner) Plan(ctx context.Context, task, framework string) (*PlanResult, error) {
	if p.client == nil {
		p.logger.Debug("No LLM configured, using stub planner", "task", task)
		return stubPlan(task, framework), nil
	}

	temp := plannerTemperature
	resp, err := p.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(plannerSystemPrompt, framework)},
			{Role: "user", Content: "Task: " + task},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, serviceErr("planner", err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, serviceErr("planner", fmt.Errorf("no JSON object in response"))
	}

	var result PlanResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, serviceErr("planner", fmt.Errorf("parse plan: %w", err))
	}

	p.logger.Info("Plan generated",
		"subtasks", len(result.Subtasks),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens)

	return &result, nil
}
