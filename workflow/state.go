// Package workflow implements the multi-agent code-generation engine:
// a versioned workflow state record, a deterministic file-merge reducer,
// an FSM-driven engine sequencing plan / fan-out generation / review with
// bounded revision loops, and a concurrency-safe registry of workflows.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// MaxIterations caps the review/revision loop. A workflow reaches a
// terminal status within MaxIterations+1 review calls.
const MaxIterations = 3

// Agent tags recorded in State.CurrentAgent. Observability only.
const (
	AgentPlanner  = "planner"
	AgentCoder    = "coder"
	AgentReviewer = "reviewer"
)

// Status represents the current stage of a workflow.
type Status string

const (
	// StatusStarted indicates the workflow was created but planning has
	// not completed.
	StatusStarted Status = "started"
	// StatusPlanningComplete indicates the plan is set and the initial
	// generation round has not finished.
	StatusPlanningComplete Status = "planning_complete"
	// StatusCoding indicates a generation round finished and the result
	// is awaiting review.
	StatusCoding Status = "coding"
	// StatusNeedsRevision indicates the reviewer rejected the output and
	// a revision round is pending.
	StatusNeedsRevision Status = "needs_revision"
	// StatusCodingRevision indicates a revision round finished and the
	// result is awaiting re-review.
	StatusCodingRevision Status = "coding_revision"
	// StatusCompleted indicates the reviewer approved the output.
	StatusCompleted Status = "completed"
	// StatusCompletedWithIssues indicates the iteration cap was reached
	// with the reviewer still rejecting.
	StatusCompletedWithIssues Status = "completed_with_issues"
	// StatusFailed indicates a fatal collaborator failure or cancellation.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known workflow status.
func (s Status) IsValid() bool {
	switch s {
	case StatusStarted, StatusPlanningComplete, StatusCoding,
		StatusNeedsRevision, StatusCodingRevision,
		StatusCompleted, StatusCompletedWithIssues, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further stage transitions occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithIssues, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the status may advance to target.
// Any non-terminal status may transition to failed.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StatusFailed {
		return true
	}
	switch s {
	case StatusStarted:
		return target == StatusPlanningComplete
	case StatusPlanningComplete:
		return target == StatusCoding
	case StatusCoding, StatusCodingRevision:
		return target == StatusCompleted ||
			target == StatusNeedsRevision ||
			target == StatusCompletedWithIssues
	case StatusNeedsRevision:
		return target == StatusCodingRevision
	default:
		return false
	}
}

// StatusChange records one status transition in the workflow history.
type StatusChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the record threaded through every stage of one workflow.
// The engine owns it exclusively while running; everyone else sees
// snapshots taken via Clone.
type State struct {
	// ID uniquely identifies the workflow. Immutable.
	ID string `json:"id"`

	// Task is the original natural-language goal. Immutable.
	Task string `json:"task"`

	// Framework is the target output dialect (e.g., "react"). Immutable.
	Framework string `json:"framework"`

	// Plan is the ordered subtask list. Set exactly once by planning.
	// Its length determines the fan-out degree of the initial round.
	Plan []string `json:"plan"`

	// Files maps file path to content. Grows only through the merge
	// reducer; never shrinks.
	Files map[string]string `json:"files"`

	// ReviewFeedback is the latest rejection feedback. Cleared on
	// approval, retained on completed_with_issues.
	ReviewFeedback string `json:"review_feedback,omitempty"`

	// Iteration counts revision rounds. Starts at 0, never exceeds
	// MaxIterations.
	Iteration int `json:"iteration"`

	// Status is the current workflow stage.
	Status Status `json:"status"`

	// CurrentAgent tags the stage that last wrote state. Observability
	// only, no behavioral effect.
	CurrentAgent string `json:"current_agent"`

	// Error is the fatal-error message. Once set the workflow is terminal.
	Error string `json:"error,omitempty"`

	// Explanation is the coder's summary of the most recent generation.
	Explanation string `json:"explanation,omitempty"`

	// ReviewScore is the latest reviewer quality score (1-10).
	ReviewScore int `json:"review_score,omitempty"`

	// ReviewIssues lists the latest reviewer findings.
	ReviewIssues []string `json:"review_issues,omitempty"`

	// ReviewSuggestions lists the latest reviewer suggestions.
	ReviewSuggestions []string `json:"review_suggestions,omitempty"`

	// Warnings records degraded-mode events: failed generation calls
	// that were tolerated, fail-open reviews. Annotation only.
	Warnings []string `json:"warnings,omitempty"`

	// CreatedAt is when the workflow was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// History is the append-only record of status transitions.
	History []StatusChange `json:"history,omitempty"`
}

// NewState creates the initial state for a new workflow.
func NewState(task, framework string) *State {
	now := time.Now()
	return &State{
		ID:        uuid.New().String(),
		Task:      task,
		Framework: framework,
		Plan:      []string{},
		Files:     map[string]string{},
		Status:    StatusStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// setStatus advances the status and appends to the transition history.
func (s *State) setStatus(target Status) {
	now := time.Now()
	s.History = append(s.History, StatusChange{
		From:      s.Status,
		To:        target,
		Timestamp: now,
	})
	s.Status = target
	s.UpdatedAt = now
}

// Clone returns a deep copy. Registry readers receive clones so an
// in-flight engine write can never produce a torn read.
func (s *State) Clone() *State {
	out := *s

	out.Plan = make([]string, len(s.Plan))
	copy(out.Plan, s.Plan)

	out.Files = make(map[string]string, len(s.Files))
	for k, v := range s.Files {
		out.Files[k] = v
	}

	if s.ReviewIssues != nil {
		out.ReviewIssues = make([]string, len(s.ReviewIssues))
		copy(out.ReviewIssues, s.ReviewIssues)
	}
	if s.ReviewSuggestions != nil {
		out.ReviewSuggestions = make([]string, len(s.ReviewSuggestions))
		copy(out.ReviewSuggestions, s.ReviewSuggestions)
	}
	if s.Warnings != nil {
		out.Warnings = make([]string, len(s.Warnings))
		copy(out.Warnings, s.Warnings)
	}
	if s.History != nil {
		out.History = make([]StatusChange, len(s.History))
		copy(out.History, s.History)
	}

	return &out
}
