// Package agent implements the external text-generation collaborators of
// the workflow: a planner that decomposes tasks, a coder that generates
// files, and a reviewer that gates the output. Each agent speaks to an LLM
// endpoint and parses a documented JSON schema from the response; when no
// endpoint is configured the agents fall back to deterministic offline
// stubs.
package agent

import (
	"context"
	"fmt"

	"github.com/stackforge/conductor/llm"
)

// Completer is the subset of the LLM client the agents use. Extracted as
// an interface so tests can substitute mock responses.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// PlanResult is the planner's decomposition of a task.
type PlanResult struct {
	// Subtasks are ordered, independently implementable work items.
	Subtasks []string `json:"subtasks"`

	// Reasoning explains the breakdown. Informational only.
	Reasoning string `json:"reasoning,omitempty"`
}

// GenerationContext is the immutable snapshot a coder works against.
// Captured at dispatch time; concurrent coders never see each other's
// output within the same round.
type GenerationContext struct {
	// Task is the original top-level goal.
	Task string `json:"task"`

	// ExistingFiles maps path to content for files already generated.
	ExistingFiles map[string]string `json:"existing_files,omitempty"`

	// ReviewFeedback carries the reviewer's rejection feedback on
	// revision rounds. Empty on initial generation.
	ReviewFeedback string `json:"review_feedback,omitempty"`
}

// GenerationRequest is one unit of coder work.
type GenerationRequest struct {
	Subtask   string            `json:"subtask"`
	Framework string            `json:"framework"`
	Context   GenerationContext `json:"context"`
}

// CodeResult is the coder's output for one request.
type CodeResult struct {
	// Files maps absolute-style paths (leading slash) to content.
	Files map[string]string `json:"files"`

	// Explanation summarizes what was created.
	Explanation string `json:"explanation,omitempty"`
}

// ReviewResult is the reviewer's verdict on a set of files.
type ReviewResult struct {
	Approved    bool     `json:"approved"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ServiceError reports that a collaborator was unreachable or returned
// output that could not be parsed. The engine decides per stage whether
// this is fatal (plan, generate) or fail-open (review).
type ServiceError struct {
	// Agent names the collaborator that failed ("planner", "coder",
	// "reviewer").
	Agent string

	// Err is the underlying cause.
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s agent: %v", e.Agent, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// serviceErr wraps an agent failure.
func serviceErr(agent string, err error) error {
	return &ServiceError{Agent: agent, Err: err}
}
